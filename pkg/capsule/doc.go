// SPDX-License-Identifier: MPL-2.0

// Package capsule decodes, validates, mutates and re-encodes UEFI Firmware
// Management Protocol (FMP) capsules.
//
// The supported container is the single-payload authenticated FMP capsule:
// an EFI_CAPSULE_HEADER followed by an EFI_FIRMWARE_MANAGEMENT_CAPSULE_HEADER
// with exactly one payload item, whose image header is Version 3 with the
// authentication support bit set. Other shapes still decode whenever the
// binary layout permits it; the validation rules then report what is
// unsupported instead of failing the parse.
//
// Decoding is all-or-nothing: Decode either returns a fully populated
// Capsule or a *DecodeError, never a partial value. For a capsule that is
// decoded and not mutated, Encode returns the exact input bytes.
package capsule
