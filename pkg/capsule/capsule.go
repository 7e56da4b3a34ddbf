// SPDX-License-Identifier: MPL-2.0

package capsule

import (
	"fmt"

	"capsule-cli/pkg/efiguid"
)

// Capsule flags defined by the UEFI specification for EFI_CAPSULE_HEADER.
const (
	FlagPersistAcrossReset  uint32 = 0x00010000
	FlagPopulateSystemTable uint32 = 0x00020000
	FlagInitiateReset       uint32 = 0x00040000

	// KnownFlags is the union of every flag this package recognizes.
	KnownFlags = FlagPersistAcrossReset | FlagPopulateSystemTable | FlagInitiateReset
)

// ImageCapsuleSupport bits (image header Version >= 3).
const (
	SupportAuthentication uint64 = 1
	SupportDependency     uint64 = 2

	// KnownSupportBits is the union of every support bit this package recognizes.
	KnownSupportBits = SupportAuthentication | SupportDependency
)

// WinCertTypeEFIGUID is the wCertificateType value of a WIN_CERTIFICATE_UEFI_GUID.
const WinCertTypeEFIGUID uint16 = 0x0EF1

// AuthRevision is the only supported WIN_CERTIFICATE wRevision.
const AuthRevision uint16 = 0x0200

var (
	// FMPCapsuleGUID is EFI_FIRMWARE_MANAGEMENT_CAPSULE_ID_GUID; every FMP
	// capsule carries it as the CapsuleGuid.
	FMPCapsuleGUID = efiguid.MustParse("6dcbd5ed-e82d-4c44-bda1-7194199ad92a")

	// PKCS7CertGUID is EFI_CERT_TYPE_PKCS7_GUID, the CertType of the
	// authentication block.
	PKCS7CertGUID = efiguid.MustParse("4aafd29d-68df-49ee-8aa9-347d375665a7")
)

// Fixed sizes of the on-disk structures, in bytes.
const (
	headerSize         = 28 // EFI_CAPSULE_HEADER
	fmcHeaderSize      = 8  // EFI_FIRMWARE_MANAGEMENT_CAPSULE_HEADER before the offset list
	imageHeaderSize    = 32 // image header before the version-gated fields
	monotonicCountSize = 8
	winCertHdrSize     = 8 // dwLength + wRevision + wCertificateType
)

type (
	// Header is EFI_CAPSULE_HEADER.
	Header struct {
		CapsuleGuid      efiguid.GUID
		HeaderSize       uint32
		Flags            uint32
		CapsuleImageSize uint32
	}

	// FMCHeader is EFI_FIRMWARE_MANAGEMENT_CAPSULE_HEADER.
	FMCHeader struct {
		Version             uint32
		EmbeddedDriverCount uint16
		PayloadItemCount    uint16
		// ItemOffsets carries EmbeddedDriverCount+PayloadItemCount entries.
		// They are preserved verbatim for re-encoding; offsets are not used
		// to locate the payload (the single supported payload directly
		// follows the offset list).
		ItemOffsets []uint64
	}

	// ImageHeader is EFI_FIRMWARE_MANAGEMENT_CAPSULE_IMAGE_HEADER.
	//
	// UpdateHardwareInstance exists only for Version >= 2 and
	// ImageCapsuleSupport only for Version >= 3, so both are held privately
	// and reached through accessors: the Has* methods report presence, the
	// value accessors panic with *AbsentFieldError when the header version
	// does not carry the field. The validation engine converts such panics
	// into per-rule failures.
	ImageHeader struct {
		Version              uint32
		UpdateImageTypeID    efiguid.GUID
		UpdateImageIndex     uint8
		Reserved             [3]byte
		UpdateImageSize      uint32
		UpdateVendorCodeSize uint32

		hardwareInstance *uint64
		capsuleSupport   *uint64
	}

	// WinCertHeader is the WIN_CERTIFICATE prefix of the authentication block.
	WinCertHeader struct {
		DwLength         uint32
		WRevision        uint16
		WCertificateType uint16
	}

	// WinCertificate is WIN_CERTIFICATE_UEFI_GUID: header, certificate type
	// GUID and the embedded PKCS7 blob.
	WinCertificate struct {
		Hdr      WinCertHeader
		CertType efiguid.GUID
		CertData []byte
	}

	// ImageAuth is EFI_FIRMWARE_IMAGE_AUTHENTICATION.
	ImageAuth struct {
		MonotonicCount uint64
		AuthInfo       WinCertificate
	}

	// Payload is the one supported binary update image. Auth is nil for the
	// unauthenticated variant; that nil is the variant tag Encode uses to
	// pick the output shape.
	Payload struct {
		ImageHeader   ImageHeader
		Auth          *ImageAuth
		FirmwareImage []byte
	}

	// Body is the capsule content after the header padding.
	Body struct {
		FMCHeader FMCHeader
		Payload   Payload
	}

	// Capsule is one fully decoded FMP capsule.
	Capsule struct {
		Header Header
		// Padding covers HeaderSize-28 bytes between the capsule header and
		// the body. Not interpreted, preserved for re-encoding.
		Padding []byte
		Body    Body
		// Remaining holds trailing bytes after the payload. A structurally
		// valid single-payload capsule has none; they are preserved so the
		// round-trip guarantee also holds for inputs that fail validation.
		Remaining []byte
	}
)

// AbsentFieldError is the panic value raised when a version-gated image
// header field is read on a header version that does not carry it.
type AbsentFieldError struct {
	Field   string
	Version uint32
}

func (e *AbsentFieldError) Error() string {
	return fmt.Sprintf("image header version %d has no %s field", e.Version, e.Field)
}

// HasHardwareInstance reports whether the header carries UpdateHardwareInstance.
func (h *ImageHeader) HasHardwareInstance() bool {
	return h.hardwareInstance != nil
}

// HardwareInstance returns UpdateHardwareInstance. It panics with an
// *AbsentFieldError when the header version is below 2.
func (h *ImageHeader) HardwareInstance() uint64 {
	if h.hardwareInstance == nil {
		panic(&AbsentFieldError{Field: "UpdateHardwareInstance", Version: h.Version})
	}
	return *h.hardwareInstance
}

// HasCapsuleSupport reports whether the header carries ImageCapsuleSupport.
func (h *ImageHeader) HasCapsuleSupport() bool {
	return h.capsuleSupport != nil
}

// CapsuleSupport returns ImageCapsuleSupport. It panics with an
// *AbsentFieldError when the header version is below 3.
func (h *ImageHeader) CapsuleSupport() uint64 {
	if h.capsuleSupport == nil {
		panic(&AbsentFieldError{Field: "ImageCapsuleSupport", Version: h.Version})
	}
	return *h.capsuleSupport
}

// SetHardwareInstance sets UpdateHardwareInstance on a Version >= 2 header.
func (h *ImageHeader) SetHardwareInstance(v uint64) {
	h.hardwareInstance = &v
}

// SetCapsuleSupport sets ImageCapsuleSupport on a Version >= 3 header.
func (h *ImageHeader) SetCapsuleSupport(v uint64) {
	h.capsuleSupport = &v
}

// Authenticated reports whether the payload carries an authentication block.
func (p *Payload) Authenticated() bool {
	return p.Auth != nil
}

// Image returns the firmware image bytes of the single payload.
func (c *Capsule) Image() []byte {
	return c.Body.Payload.FirmwareImage
}
