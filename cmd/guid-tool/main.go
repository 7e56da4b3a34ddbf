// SPDX-License-Identifier: MPL-2.0

// Guid-tool checks UEFI GUIDs against a database of known GUIDs.
package main

func main() {
	Execute()
}
