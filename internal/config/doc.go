// SPDX-License-Identifier: MPL-2.0

// Package config handles tool configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/capsule-tool/config.cue (or XDG equivalent
// on Linux, ~/Library/Application Support/capsule-tool/config.cue on macOS,
// %APPDATA%\capsule-tool\config.cue on Windows). The file may set the GUID
// identification tool command line, a custom GUIDs database path, and UI settings.
//
// Configuration validation is performed against a CUE schema (config_schema.cue)
// to ensure type safety and provide clear error messages for invalid configurations.
package config
