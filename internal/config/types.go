// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidGuidTool is the sentinel error wrapped by InvalidGuidToolError.
	ErrInvalidGuidTool = errors.New("invalid guid tool")
	// ErrInvalidGuidsDb is the sentinel error wrapped by InvalidGuidsDbError.
	ErrInvalidGuidsDb = errors.New("invalid guids db path")
)

type (
	// Config is the top-level tool configuration.
	Config struct {
		// GuidTool is the shell command line of the GUID identification tool.
		GuidTool string `mapstructure:"guid_tool"`

		// GuidsDb is the path to a GUIDs database CUE file. Empty means the
		// database embedded in the binary.
		GuidsDb string `mapstructure:"guids_db"`

		// UI holds user interface settings.
		UI UIConfig `mapstructure:"ui"`
	}

	// UIConfig holds user interface settings.
	UIConfig struct {
		// Verbose enables debug output.
		Verbose bool `mapstructure:"verbose"`
	}

	// InvalidGuidToolError is returned when the guid_tool value is empty or
	// whitespace-only. It wraps ErrInvalidGuidTool for errors.Is() compatibility.
	InvalidGuidToolError struct {
		Value string
	}

	// InvalidGuidsDbError is returned when the guids_db value is whitespace-only.
	// It wraps ErrInvalidGuidsDb for errors.Is() compatibility.
	InvalidGuidsDbError struct {
		Value string
	}
)

// Error implements the error interface.
func (e *InvalidGuidToolError) Error() string {
	return fmt.Sprintf("invalid guid tool %q: must be a non-empty command line", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (*InvalidGuidToolError) Unwrap() error { return ErrInvalidGuidTool }

// Error implements the error interface.
func (e *InvalidGuidsDbError) Error() string {
	return fmt.Sprintf("invalid guids db path %q: must not be whitespace-only", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (*InvalidGuidsDbError) Unwrap() error { return ErrInvalidGuidsDb }

// DefaultConfig returns the built-in defaults used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		GuidTool: "guid-tool",
		GuidsDb:  "",
		UI: UIConfig{
			Verbose: false,
		},
	}
}

// Validate checks constraints that could not be enforced by the CUE schema,
// because the values may also arrive via defaults or flags rather than the
// config file.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.GuidTool) == "" {
		return &InvalidGuidToolError{Value: c.GuidTool}
	}
	if c.GuidsDb != "" && strings.TrimSpace(c.GuidsDb) == "" {
		return &InvalidGuidsDbError{Value: c.GuidsDb}
	}
	return nil
}
