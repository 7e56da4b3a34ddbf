// SPDX-License-Identifier: MPL-2.0

// Package guiddb loads and queries the known-GUIDs database.
//
// A database is a CUE file validated against the embedded #Database
// schema. A built-in database ships with the binary; users may point
// the tools at their own file instead. Load-time validation rejects
// malformed GUIDs as well as duplicate GUIDs and duplicate
// descriptions, since either duplicate would make lookup results
// ambiguous.
package guiddb
