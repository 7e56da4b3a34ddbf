// SPDX-License-Identifier: MPL-2.0

package identify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"capsule-cli/internal/guiddb"
	"capsule-cli/pkg/efiguid"
	"capsule-cli/pkg/types"
)

var (
	// ErrToolFailed is the sentinel error wrapped by ToolError.
	ErrToolFailed = errors.New("guid tool failed")
	// ErrGUIDMismatch is the sentinel error wrapped by MismatchError.
	ErrGUIDMismatch = errors.New("unexpected capsule guid")
)

type (
	// Tool runs an external GUID identification command. The command is a
	// shell command line, so it may carry its own flags, for example
	// "guid-tool --debug" or "guid-tool --guids-db custom.cue". The textual
	// GUID to identify is appended as the last argument.
	Tool struct {
		// Command is the shell command line to run.
		Command string
		// Logger receives progress and diagnostics. Nil means log.Default().
		Logger *log.Logger
	}

	// CheckOptions controls Check.
	CheckOptions struct {
		// Expected, when non-nil, is the update image type id the capsule
		// must carry.
		Expected *efiguid.GUID
		// Force downgrades an Expected mismatch to a warning.
		Force bool
		// PrintGUID prints the image type id GUID to Out.
		PrintGUID bool
		// Out is where user-facing lines are written. Nil means os.Stdout.
		Out io.Writer
	}

	// ToolError is returned when the GUID tool exits with a non-zero status
	// or cannot be run at all. It wraps ErrToolFailed for errors.Is()
	// compatibility.
	ToolError struct {
		Command  string
		ExitCode types.ExitCode
		Stderr   string
	}

	// MismatchError is returned by Check when the capsule GUID differs from
	// the expected one. It wraps ErrGUIDMismatch for errors.Is()
	// compatibility.
	MismatchError struct {
		Got  efiguid.GUID
		Want efiguid.GUID
	}
)

// Error implements the error interface.
func (e *ToolError) Error() string {
	return fmt.Sprintf("bad guid tool %q (exit status %d)", e.Command, e.ExitCode)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (*ToolError) Unwrap() error { return ErrToolFailed }

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("capsule guid %s while expecting %s", e.Got, e.Want)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (*MismatchError) Unwrap() error { return ErrGUIDMismatch }

func (t *Tool) logger() *log.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return log.Default()
}

// Identify runs the tool on g and returns the description it printed,
// with trailing whitespace removed.
func (t *Tool) Identify(ctx context.Context, g efiguid.GUID) (string, error) {
	cmdline := t.Command + " " + g.String()
	t.logger().Debug("run", "cmd", cmdline)

	prog, err := syntax.NewParser().Parse(strings.NewReader(cmdline), "guid-tool")
	if err != nil {
		return "", fmt.Errorf("failed to parse guid tool command line: %w", err)
	}

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.StdIO(nil, &stdout, &stderr),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			toolErr := &ToolError{
				Command:  t.Command,
				ExitCode: types.ExitCode(exitStatus),
				Stderr:   stderr.String(),
			}
			if toolErr.ExitCode.IsShellFailure() {
				t.logger().Warn("guid tool could not be invoked; is it installed and executable?",
					"cmd", t.Command)
			}
			return "", toolErr
		}
		return "", fmt.Errorf("failed to run guid tool: %w", err)
	}

	return strings.TrimRight(stdout.String(), " \t\r\n"), nil
}

// Check identifies the update image type id g and verifies it against
// opts.Expected when one is given. A mismatch is an error unless opts.Force
// downgrades it to a warning. Tool failures are always errors.
func (t *Tool) Check(ctx context.Context, g efiguid.GUID, opts CheckOptions) error {
	logger := t.logger()
	logger.Debug("check capsule GUID", "expected", opts.Expected)

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	if opts.PrintGUID {
		fmt.Fprintf(out, "Image type id GUID: %s\n", g)
	}

	descr, err := t.Identify(ctx, g)
	if err != nil {
		return err
	}

	if descr == guiddb.Unknown {
		fmt.Fprintf(out, "Capsule update image type id `%s' is unknown\n", g)
	} else {
		logger.Warn("capsule update image type id is known", "guid", g, "description", descr)
	}

	if opts.Expected != nil && !g.Equal(*opts.Expected) {
		if opts.Force {
			logger.Warn("bad capsule GUID but forced to continue anyway")
			return nil
		}
		return &MismatchError{Got: g, Want: *opts.Expected}
	}

	if opts.Expected != nil {
		fmt.Fprintln(out, "Capsule GUID is the expected one")
	}

	return nil
}
