// SPDX-License-Identifier: MPL-2.0

package capsule

import (
	"encoding/binary"
	"errors"
	"fmt"

	"capsule-cli/pkg/efiguid"
)

var (
	// ErrTruncated is wrapped by DecodeError when a field extends past the
	// end of the supplied buffer.
	ErrTruncated = errors.New("buffer truncated")

	// ErrLengthUnderflow is wrapped by DecodeError when a length derived
	// from sibling fields comes out negative.
	ErrLengthUnderflow = errors.New("computed length underflows")
)

// DecodeError describes why a byte buffer could not be decoded. Decoding is
// atomic: when a DecodeError is returned, no Capsule is.
type DecodeError struct {
	// Field is the on-disk field being read when decoding failed.
	Field string
	// Offset is the byte offset at which that field starts.
	Offset int
	// Err is the underlying cause.
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// reader walks the input buffer, checking every read against the buffer
// length before performing it. Embedded length fields therefore can never
// cause a read past the supplied bytes.
type reader struct {
	buf []byte
	off int
}

func (r *reader) fail(field string, err error) *DecodeError {
	return &DecodeError{Field: field, Offset: r.off, Err: err}
}

func (r *reader) take(n int, field string) ([]byte, error) {
	if n < 0 {
		return nil, r.fail(field, fmt.Errorf("%w: %d bytes", ErrLengthUnderflow, n))
	}
	if r.off+n > len(r.buf) {
		return nil, r.fail(field, fmt.Errorf("%w: need %d bytes, %d left",
			ErrTruncated, n, len(r.buf)-r.off))
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) u8(field string) (uint8, error) {
	b, err := r.take(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16(field string) (uint16, error) {
	b, err := r.take(2, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32(field string) (uint32, error) {
	b, err := r.take(4, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64(field string) (uint64, error) {
	b, err := r.take(8, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) guid(field string) (efiguid.GUID, error) {
	b, err := r.take(efiguid.Size, field)
	if err != nil {
		return efiguid.GUID{}, err
	}
	g, err := efiguid.FromBytes(b)
	if err != nil {
		return efiguid.GUID{}, r.fail(field, err)
	}
	return g, nil
}

// bytesCopy reads n bytes and returns an owned copy, so the Capsule never
// aliases the caller's buffer.
func (r *reader) bytesCopy(n int, field string) ([]byte, error) {
	b, err := r.take(n, field)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Decode parses one FMP capsule from buf.
//
// Parsing is two-phase throughout: fixed-size fields are read first, then
// every variable-length region is sized from already-parsed sibling fields.
// Any truncation or length underflow yields a *DecodeError and no Capsule.
func Decode(buf []byte) (*Capsule, error) {
	r := &reader{buf: buf}
	c := &Capsule{}

	if err := decodeHeader(r, &c.Header); err != nil {
		return nil, err
	}

	// A HeaderSize below the fixed header length means no padding at all.
	// Such capsules still decode; the header-size validation rule reports
	// them. Only the derived byte regions treat underflow as fatal.
	padding := int64(c.Header.HeaderSize) - headerSize
	if padding < 0 {
		padding = 0
	}
	var err error
	if c.Padding, err = r.bytesCopy(int(padding), "Padding"); err != nil {
		return nil, err
	}

	if err := decodeFMCHeader(r, &c.Body.FMCHeader); err != nil {
		return nil, err
	}
	if err := decodePayload(r, &c.Body.Payload); err != nil {
		return nil, err
	}

	if c.Remaining, err = r.bytesCopy(len(buf)-r.off, "RemainingBytes"); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeHeader(r *reader, h *Header) error {
	var err error
	if h.CapsuleGuid, err = r.guid("CapsuleGuid"); err != nil {
		return err
	}
	if h.HeaderSize, err = r.u32("HeaderSize"); err != nil {
		return err
	}
	if h.Flags, err = r.u32("Flags"); err != nil {
		return err
	}
	if h.CapsuleImageSize, err = r.u32("CapsuleImageSize"); err != nil {
		return err
	}
	return nil
}

func decodeFMCHeader(r *reader, h *FMCHeader) error {
	var err error
	if h.Version, err = r.u32("FirmwareManagementCapsuleHeader.Version"); err != nil {
		return err
	}
	if h.EmbeddedDriverCount, err = r.u16("EmbeddedDriverCount"); err != nil {
		return err
	}
	if h.PayloadItemCount, err = r.u16("PayloadItemCount"); err != nil {
		return err
	}

	n := int(h.EmbeddedDriverCount) + int(h.PayloadItemCount)
	h.ItemOffsets = make([]uint64, n)
	for i := range h.ItemOffsets {
		if h.ItemOffsets[i], err = r.u64("ItemOffsetList"); err != nil {
			return err
		}
	}
	return nil
}

func decodeImageHeader(r *reader, h *ImageHeader) error {
	var err error
	if h.Version, err = r.u32("ImageHeader.Version"); err != nil {
		return err
	}
	if h.UpdateImageTypeID, err = r.guid("UpdateImageTypeId"); err != nil {
		return err
	}
	if h.UpdateImageIndex, err = r.u8("UpdateImageIndex"); err != nil {
		return err
	}
	b, err := r.take(3, "reserved_bytes")
	if err != nil {
		return err
	}
	copy(h.Reserved[:], b)
	if h.UpdateImageSize, err = r.u32("UpdateImageSize"); err != nil {
		return err
	}
	if h.UpdateVendorCodeSize, err = r.u32("UpdateVendorCodeSize"); err != nil {
		return err
	}

	if h.Version >= 2 {
		v, err := r.u64("UpdateHardwareInstance")
		if err != nil {
			return err
		}
		h.hardwareInstance = &v
	}
	if h.Version >= 3 {
		v, err := r.u64("ImageCapsuleSupport")
		if err != nil {
			return err
		}
		h.capsuleSupport = &v
	}
	return nil
}

func decodePayload(r *reader, p *Payload) error {
	if err := decodeImageHeader(r, &p.ImageHeader); err != nil {
		return err
	}

	h := &p.ImageHeader
	if authenticated(h) {
		return decodeAuthenticatedImage(r, p)
	}

	var err error
	p.FirmwareImage, err = r.bytesCopy(int(h.UpdateImageSize), "FirmwareImage")
	return err
}

// authenticated selects the payload variant: headers before Version 3 are
// always authenticated, Version 3 headers carry an explicit bit. Producers
// following the historical version-threshold-only convention are rejected by
// the authentication-required validation rule rather than re-interpreted
// here.
func authenticated(h *ImageHeader) bool {
	return h.Version < 3 || h.CapsuleSupport()&SupportAuthentication != 0
}

func decodeAuthenticatedImage(r *reader, p *Payload) error {
	auth := &ImageAuth{}

	var err error
	if auth.MonotonicCount, err = r.u64("MonotonicCount"); err != nil {
		return err
	}
	if auth.AuthInfo.Hdr.DwLength, err = r.u32("AuthInfo.Hdr.dwLength"); err != nil {
		return err
	}
	if auth.AuthInfo.Hdr.WRevision, err = r.u16("AuthInfo.Hdr.wRevision"); err != nil {
		return err
	}
	if auth.AuthInfo.Hdr.WCertificateType, err = r.u16("AuthInfo.Hdr.wCertificateType"); err != nil {
		return err
	}
	if auth.AuthInfo.CertType, err = r.guid("AuthInfo.CertType"); err != nil {
		return err
	}

	certData := int64(auth.AuthInfo.Hdr.DwLength) - winCertHdrSize - efiguid.Size
	if certData < 0 {
		return &DecodeError{
			Field:  "AuthInfo.CertData",
			Offset: r.off,
			Err:    fmt.Errorf("%w: dwLength %d", ErrLengthUnderflow, auth.AuthInfo.Hdr.DwLength),
		}
	}
	if auth.AuthInfo.CertData, err = r.bytesCopy(int(certData), "AuthInfo.CertData"); err != nil {
		return err
	}

	image := int64(p.ImageHeader.UpdateImageSize) - monotonicCountSize - int64(auth.AuthInfo.Hdr.DwLength)
	if image < 0 {
		return &DecodeError{
			Field:  "FirmwareImage",
			Offset: r.off,
			Err: fmt.Errorf("%w: UpdateImageSize %d, dwLength %d",
				ErrLengthUnderflow, p.ImageHeader.UpdateImageSize, auth.AuthInfo.Hdr.DwLength),
		}
	}
	if p.FirmwareImage, err = r.bytesCopy(int(image), "FirmwareImage"); err != nil {
		return err
	}

	p.Auth = auth
	return nil
}
