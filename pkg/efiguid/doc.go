// SPDX-License-Identifier: MPL-2.0

// Package efiguid implements the UEFI GUID value type.
//
// UEFI stores GUIDs with a mixed-endian on-disk layout: the first three
// fields are little-endian while the clock sequence and node fields keep
// their byte order. The canonical textual form is the familiar
// "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx" rendering.
package efiguid
