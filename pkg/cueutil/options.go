// SPDX-License-Identifier: MPL-2.0

package cueutil

// DefaultMaxFileSize bounds the input handed to the CUE evaluator. The
// databases and config files this tool reads are small; anything larger is
// rejected before compilation.
const DefaultMaxFileSize int64 = 4 * 1024 * 1024

type parseOptions struct {
	filename    string
	maxFileSize int64
	concrete    bool
}

func defaultOptions() parseOptions {
	return parseOptions{
		maxFileSize: DefaultMaxFileSize,
		concrete:    true,
	}
}

// Option configures ParseAndDecode.
type Option func(*parseOptions)

// WithFilename sets the file name used in error messages.
func WithFilename(name string) Option {
	return func(o *parseOptions) { o.filename = name }
}

// WithMaxFileSize overrides the input size bound.
func WithMaxFileSize(n int64) Option {
	return func(o *parseOptions) { o.maxFileSize = n }
}

// WithoutConcrete validates without requiring concrete values, for schemas
// whose fields are all optional.
func WithoutConcrete() Option {
	return func(o *parseOptions) { o.concrete = false }
}
