// SPDX-License-Identifier: MPL-2.0

package capsule

import (
	"fmt"
	"strings"
)

// Dump renders the decoded structure as an indented field tree, the
// counterpart of the original construct-style parse dump. Byte regions are
// summarized by length; the version-gated fields appear only when present.
func (c *Capsule) Dump() string {
	var sb strings.Builder

	fmt.Fprintln(&sb, "CapsuleHeader:")
	fmt.Fprintf(&sb, "  CapsuleGuid:      %s\n", c.Header.CapsuleGuid)
	fmt.Fprintf(&sb, "  HeaderSize:       %d\n", c.Header.HeaderSize)
	fmt.Fprintf(&sb, "  Flags:            0x%08x\n", c.Header.Flags)
	fmt.Fprintf(&sb, "  CapsuleImageSize: %d\n", c.Header.CapsuleImageSize)
	fmt.Fprintf(&sb, "Padding:            %d byte(s)\n", len(c.Padding))

	fmc := &c.Body.FMCHeader
	fmt.Fprintln(&sb, "FirmwareManagementCapsuleHeader:")
	fmt.Fprintf(&sb, "  Version:             %d\n", fmc.Version)
	fmt.Fprintf(&sb, "  EmbeddedDriverCount: %d\n", fmc.EmbeddedDriverCount)
	fmt.Fprintf(&sb, "  PayloadItemCount:    %d\n", fmc.PayloadItemCount)
	for i, off := range fmc.ItemOffsets {
		fmt.Fprintf(&sb, "  ItemOffsetList[%d]:   0x%x\n", i, off)
	}

	h := &c.Body.Payload.ImageHeader
	fmt.Fprintln(&sb, "FirmwareManagementCapsuleImageHeader:")
	fmt.Fprintf(&sb, "  Version:              %d\n", h.Version)
	fmt.Fprintf(&sb, "  UpdateImageTypeId:    %s\n", h.UpdateImageTypeID)
	fmt.Fprintf(&sb, "  UpdateImageIndex:     %d\n", h.UpdateImageIndex)
	fmt.Fprintf(&sb, "  reserved_bytes:       %02x %02x %02x\n", h.Reserved[0], h.Reserved[1], h.Reserved[2])
	fmt.Fprintf(&sb, "  UpdateImageSize:      %d\n", h.UpdateImageSize)
	fmt.Fprintf(&sb, "  UpdateVendorCodeSize: %d\n", h.UpdateVendorCodeSize)
	if h.HasHardwareInstance() {
		fmt.Fprintf(&sb, "  UpdateHardwareInstance: 0x%x\n", h.HardwareInstance())
	}
	if h.HasCapsuleSupport() {
		fmt.Fprintf(&sb, "  ImageCapsuleSupport:  0x%x\n", h.CapsuleSupport())
	}

	if auth := c.Body.Payload.Auth; auth != nil {
		fmt.Fprintln(&sb, "FirmwareImageAuthentication:")
		fmt.Fprintf(&sb, "  MonotonicCount:   0x%x\n", auth.MonotonicCount)
		fmt.Fprintf(&sb, "  dwLength:         %d\n", auth.AuthInfo.Hdr.DwLength)
		fmt.Fprintf(&sb, "  wRevision:        0x%04x\n", auth.AuthInfo.Hdr.WRevision)
		fmt.Fprintf(&sb, "  wCertificateType: 0x%04x\n", auth.AuthInfo.Hdr.WCertificateType)
		fmt.Fprintf(&sb, "  CertType:         %s\n", auth.AuthInfo.CertType)
		fmt.Fprintf(&sb, "  CertData:         %d byte(s)\n", len(auth.AuthInfo.CertData))
	}

	fmt.Fprintf(&sb, "FirmwareImage:      %d byte(s)\n", len(c.Body.Payload.FirmwareImage))
	fmt.Fprintf(&sb, "RemainingBytes:     %d byte(s)", len(c.Remaining))
	return sb.String()
}
