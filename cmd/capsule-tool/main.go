// SPDX-License-Identifier: MPL-2.0

// Capsule-tool manipulates UEFI capsules in FMP format.
package main

func main() {
	Execute()
}
