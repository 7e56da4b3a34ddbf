// SPDX-License-Identifier: MPL-2.0

package capsule_test

import (
	"encoding/binary"
	"testing"

	"capsule-cli/pkg/capsule"
	"capsule-cli/pkg/efiguid"
)

// capsuleSpec builds raw capsule bytes for tests. The zero value is not
// useful; start from validSpec() and override fields. Size fields are
// computed from the content unless an override is set, so a test can craft
// both consistent and deliberately inconsistent layouts.
type capsuleSpec struct {
	capsuleGuid efiguid.GUID
	headerSize  uint32
	flags       uint32
	padding     []byte

	fmcVersion  uint32
	driverCount uint16
	payloadDecl uint16 // PayloadItemCount field value
	itemOffsets []uint64

	imageVersion  uint32
	typeID        efiguid.GUID
	imageIndex    uint8
	reserved      [3]byte
	vendorSize    uint32
	hwInstance    uint64 // written iff imageVersion >= 2
	support       uint64 // written iff imageVersion >= 3
	authenticated bool   // emit the authentication block

	monotonic uint64
	wRevision uint16
	wCertType uint16
	certType  efiguid.GUID
	certData  []byte

	image    []byte
	trailing []byte

	// optional overrides for computed size fields
	capsuleImageSize *uint32
	updateImageSize  *uint32
	dwLength         *uint32
}

func validSpec() capsuleSpec {
	return capsuleSpec{
		capsuleGuid: capsule.FMPCapsuleGUID,
		headerSize:  32,
		flags:       0x00010000, // PERSIST_ACROSS_RESET
		padding:     []byte{0, 0, 0, 0},

		fmcVersion:  1,
		driverCount: 0,
		payloadDecl: 1,
		itemOffsets: []uint64{16},

		imageVersion:  3,
		typeID:        efiguid.MustParse("12345678-1234-5678-1234-56789abcdef0"),
		imageIndex:    1,
		vendorSize:    0,
		hwInstance:    0,
		support:       1, // AUTHENTICATION
		authenticated: true,

		monotonic: 2,
		wRevision: 0x0200,
		wCertType: 0x0EF1,
		certType:  capsule.PKCS7CertGUID,
		certData:  make([]byte, 40),

		image: []byte("firmware-image-content-0123456789abcdef"),
	}
}

func (s capsuleSpec) dwLen() uint32 {
	if s.dwLength != nil {
		return *s.dwLength
	}
	return uint32(8 + 16 + len(s.certData))
}

func (s capsuleSpec) imageSize() uint32 {
	if s.updateImageSize != nil {
		return *s.updateImageSize
	}
	if s.authenticated {
		return uint32(len(s.image)) + 8 + s.dwLen()
	}
	return uint32(len(s.image))
}

func (s capsuleSpec) build() []byte {
	var b []byte
	le := binary.LittleEndian

	guid := s.capsuleGuid.Bytes()
	b = append(b, guid[:]...)
	b = le.AppendUint32(b, s.headerSize)
	b = le.AppendUint32(b, s.flags)

	// body as laid out after the padding
	var body []byte
	body = le.AppendUint32(body, s.fmcVersion)
	body = le.AppendUint16(body, s.driverCount)
	body = le.AppendUint16(body, s.payloadDecl)
	for _, off := range s.itemOffsets {
		body = le.AppendUint64(body, off)
	}

	body = le.AppendUint32(body, s.imageVersion)
	tid := s.typeID.Bytes()
	body = append(body, tid[:]...)
	body = append(body, s.imageIndex)
	body = append(body, s.reserved[:]...)
	body = le.AppendUint32(body, s.imageSize())
	body = le.AppendUint32(body, s.vendorSize)
	if s.imageVersion >= 2 {
		body = le.AppendUint64(body, s.hwInstance)
	}
	if s.imageVersion >= 3 {
		body = le.AppendUint64(body, s.support)
	}

	if s.authenticated {
		body = le.AppendUint64(body, s.monotonic)
		body = le.AppendUint32(body, s.dwLen())
		body = le.AppendUint16(body, s.wRevision)
		body = le.AppendUint16(body, s.wCertType)
		ct := s.certType.Bytes()
		body = append(body, ct[:]...)
		body = append(body, s.certData...)
	}
	body = append(body, s.image...)

	if s.capsuleImageSize != nil {
		b = le.AppendUint32(b, *s.capsuleImageSize)
	} else {
		total := 28 + len(s.padding) + len(body)
		b = le.AppendUint32(b, uint32(total))
	}
	b = append(b, s.padding...)
	b = append(b, body...)
	b = append(b, s.trailing...)
	return b
}

func mustDecode(t *testing.T, raw []byte) *capsule.Capsule {
	t.Helper()
	c, err := capsule.Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return c
}

func u32ptr(v uint32) *uint32 { return &v }
