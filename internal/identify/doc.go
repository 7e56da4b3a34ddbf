// SPDX-License-Identifier: MPL-2.0

// Package identify checks a capsule's update image type id against an
// external GUID identification tool.
//
// The tool is given as a shell command line and run through the embedded
// shell interpreter, so flags and quoting behave the way they would in a
// POSIX shell. The tool prints a description of the GUID on stdout, or
// "Unknown" when it has no record of it. A non-zero exit status from the
// tool is always fatal, since it means the tool itself is broken rather
// than the GUID being unknown.
package identify
