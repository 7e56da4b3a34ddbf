// SPDX-License-Identifier: MPL-2.0

package capsule

import (
	"encoding/binary"

	"capsule-cli/pkg/efiguid"
)

// Encode serializes the capsule back to its binary form. It is the exact
// structural inverse of Decode and recomputes nothing: every length field is
// written as stored, so size consistency after a mutation is the mutator's
// responsibility. For an unmutated, successfully decoded capsule the output
// equals the decoded input byte for byte.
func (c *Capsule) Encode() []byte {
	w := newWriter(c.encodedSize())

	g := c.Header.CapsuleGuid.Bytes()
	w.bytes(g[:])
	w.u32(c.Header.HeaderSize)
	w.u32(c.Header.Flags)
	w.u32(c.Header.CapsuleImageSize)

	w.bytes(c.Padding)

	fmc := &c.Body.FMCHeader
	w.u32(fmc.Version)
	w.u16(fmc.EmbeddedDriverCount)
	w.u16(fmc.PayloadItemCount)
	for _, off := range fmc.ItemOffsets {
		w.u64(off)
	}

	p := &c.Body.Payload
	h := &p.ImageHeader
	w.u32(h.Version)
	tid := h.UpdateImageTypeID.Bytes()
	w.bytes(tid[:])
	w.u8(h.UpdateImageIndex)
	w.bytes(h.Reserved[:])
	w.u32(h.UpdateImageSize)
	w.u32(h.UpdateVendorCodeSize)
	if h.hardwareInstance != nil {
		w.u64(*h.hardwareInstance)
	}
	if h.capsuleSupport != nil {
		w.u64(*h.capsuleSupport)
	}

	if p.Auth != nil {
		w.u64(p.Auth.MonotonicCount)
		w.u32(p.Auth.AuthInfo.Hdr.DwLength)
		w.u16(p.Auth.AuthInfo.Hdr.WRevision)
		w.u16(p.Auth.AuthInfo.Hdr.WCertificateType)
		ct := p.Auth.AuthInfo.CertType.Bytes()
		w.bytes(ct[:])
		w.bytes(p.Auth.AuthInfo.CertData)
	}
	w.bytes(p.FirmwareImage)

	w.bytes(c.Remaining)
	return w.buf
}

// encodedSize computes the output length from the in-memory structure, not
// from the stored size fields, so that Encode stays faithful even when a
// size field is inconsistent with the data it describes.
func (c *Capsule) encodedSize() int {
	n := headerSize + len(c.Padding)
	n += fmcHeaderSize + 8*len(c.Body.FMCHeader.ItemOffsets)

	h := &c.Body.Payload.ImageHeader
	n += imageHeaderSize
	if h.hardwareInstance != nil {
		n += 8
	}
	if h.capsuleSupport != nil {
		n += 8
	}

	if auth := c.Body.Payload.Auth; auth != nil {
		n += monotonicCountSize + winCertHdrSize + efiguid.Size + len(auth.AuthInfo.CertData)
	}
	n += len(c.Body.Payload.FirmwareImage)
	n += len(c.Remaining)
	return n
}

type writer struct {
	buf []byte
}

func newWriter(capacity int) *writer {
	return &writer{buf: make([]byte, 0, capacity)}
}

func (w *writer) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *writer) u16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *writer) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *writer) u64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *writer) bytes(b []byte) {
	w.buf = append(w.buf, b...)
}
