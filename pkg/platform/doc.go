// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities.
//
// This package contains utilities for handling platform-specific concerns,
// such as OS name constants for runtime.GOOS comparisons and Windows
// reserved filenames that cannot be used for extracted images.
package platform
