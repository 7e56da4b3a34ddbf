// SPDX-License-Identifier: MPL-2.0

package efiguid

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Size is the on-disk size of a GUID in bytes.
const Size = 16

var (
	// ErrInvalidGUID is the sentinel error wrapped by parse failures.
	ErrInvalidGUID = errors.New("invalid GUID")

	canonicalRe = regexp.MustCompile(
		`^([0-9a-fA-F]{8})-([0-9a-fA-F]{4})-([0-9a-fA-F]{4})-` +
			`([0-9a-fA-F]{4})-([0-9a-fA-F]{12})$`)
)

// GUID is a UEFI GUID, laid out field by field as the UEFI specification
// defines it. The zero value is the nil GUID.
type GUID struct {
	TimeLow                 uint32
	TimeMid                 uint16
	TimeHighAndVersion      uint16
	ClockSeqHighAndReserved uint8
	ClockSeqLow             uint8
	Node                    [6]byte
}

// Parse converts a canonical GUID string to a GUID. Matching is
// case-insensitive; anything else is rejected with ErrInvalidGUID.
func Parse(s string) (GUID, error) {
	m := canonicalRe.FindStringSubmatch(s)
	if m == nil {
		return GUID{}, fmt.Errorf("%w: %q", ErrInvalidGUID, s)
	}

	// The regexp guarantees every group is valid hex of the right width,
	// so the conversions below cannot fail.
	var g GUID
	g.TimeLow = uint32(hexVal(m[1]))
	g.TimeMid = uint16(hexVal(m[2]))
	g.TimeHighAndVersion = uint16(hexVal(m[3]))
	clockSeq := uint16(hexVal(m[4]))
	g.ClockSeqHighAndReserved = uint8(clockSeq >> 8)
	g.ClockSeqLow = uint8(clockSeq)
	node, _ := hex.DecodeString(m[5])
	copy(g.Node[:], node)
	return g, nil
}

// MustParse is Parse for trusted, compile-time constant inputs. It panics
// on error.
func MustParse(s string) GUID {
	g, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return g
}

// FromBytes decodes a GUID from its 16-byte mixed-endian wire form.
func FromBytes(b []byte) (GUID, error) {
	if len(b) != Size {
		return GUID{}, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidGUID, len(b), Size)
	}

	var g GUID
	g.TimeLow = binary.LittleEndian.Uint32(b[0:4])
	g.TimeMid = binary.LittleEndian.Uint16(b[4:6])
	g.TimeHighAndVersion = binary.LittleEndian.Uint16(b[6:8])
	g.ClockSeqHighAndReserved = b[8]
	g.ClockSeqLow = b[9]
	copy(g.Node[:], b[10:16])
	return g, nil
}

// Bytes returns the 16-byte mixed-endian wire form.
func (g GUID) Bytes() [Size]byte {
	var b [Size]byte
	binary.LittleEndian.PutUint32(b[0:4], g.TimeLow)
	binary.LittleEndian.PutUint16(b[4:6], g.TimeMid)
	binary.LittleEndian.PutUint16(b[6:8], g.TimeHighAndVersion)
	b[8] = g.ClockSeqHighAndReserved
	b[9] = g.ClockSeqLow
	copy(b[10:16], g.Node[:])
	return b
}

// String renders the canonical lowercase form.
func (g GUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%02x%02x-%02x%02x%02x%02x%02x%02x",
		g.TimeLow, g.TimeMid, g.TimeHighAndVersion,
		g.ClockSeqHighAndReserved, g.ClockSeqLow,
		g.Node[0], g.Node[1], g.Node[2], g.Node[3], g.Node[4], g.Node[5])
}

// Equal reports whether two GUIDs are the same value.
func (g GUID) Equal(o GUID) bool {
	return g == o
}

// IsZero reports whether g is the nil GUID.
func (g GUID) IsZero() bool {
	return g == GUID{}
}

// Validate checks the RFC 4122 conformance bits: the version nibble must be
// 1-5 and the variant bits must be binary 10. Vendor GUIDs in the wild do
// not always conform, so callers that only need a well-formed value can
// skip this.
func (g GUID) Validate() error {
	version := g.TimeHighAndVersion >> 12
	if version < 1 || version > 5 {
		return fmt.Errorf("%w: version %d out of range 1-5", ErrInvalidGUID, version)
	}
	if g.ClockSeqHighAndReserved&0xc0 != 0x80 {
		return fmt.Errorf("%w: reserved variant bits are not binary 10", ErrInvalidGUID)
	}
	return nil
}

// Details returns a per-field breakdown for diagnostic output.
func (g GUID) Details() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "TimeLow:                 0x%08x\n", g.TimeLow)
	fmt.Fprintf(&sb, "TimeMid:                 0x%04x\n", g.TimeMid)
	fmt.Fprintf(&sb, "TimeHighAndVersion:      0x%04x\n", g.TimeHighAndVersion)
	fmt.Fprintf(&sb, "ClockSeqHighAndReserved: 0x%02x\n", g.ClockSeqHighAndReserved)
	fmt.Fprintf(&sb, "ClockSeqLow:             0x%02x\n", g.ClockSeqLow)
	fmt.Fprintf(&sb, "Node:                    %02x%02x%02x%02x%02x%02x",
		g.Node[0], g.Node[1], g.Node[2], g.Node[3], g.Node[4], g.Node[5])
	return sb.String()
}

// CDefine renders the GUID as an EDK2-style C initializer macro.
func (g GUID) CDefine(name string) string {
	return fmt.Sprintf(
		"#define %s \\\n"+
			"  {0x%08x, 0x%04x, 0x%04x, \\\n"+
			"   {0x%02x, 0x%02x, 0x%02x, 0x%02x, 0x%02x, 0x%02x, 0x%02x, 0x%02x}}",
		name, g.TimeLow, g.TimeMid, g.TimeHighAndVersion,
		g.ClockSeqHighAndReserved, g.ClockSeqLow,
		g.Node[0], g.Node[1], g.Node[2], g.Node[3], g.Node[4], g.Node[5])
}

// hexVal converts a hex string already vetted by canonicalRe.
func hexVal(s string) uint64 {
	v, _ := strconv.ParseUint(s, 16, 64)
	return v
}
