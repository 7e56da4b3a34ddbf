// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"capsule-cli/internal/config"
	"capsule-cli/internal/identify"
	"capsule-cli/internal/issue"
	"capsule-cli/pkg/capsule"
	"capsule-cli/pkg/efiguid"
	"capsule-cli/pkg/platform"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// runCapsuleTool is the processing pipeline: decode, validate, GUID check,
// optional mutations, then outputs. Outputs are handled after modifications,
// so a dump shows the capsule as it would be saved.
func runCapsuleTool(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx)
	if err != nil {
		// Surface the problem but keep going on defaults; a broken config
		// file should not block inspecting a capsule.
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, debug))
		if entry := issue.Get(issue.ConfigLoadFailedId); entry != nil {
			if rendered, renderErr := entry.Render("dark"); renderErr == nil {
				fmt.Fprint(os.Stderr, rendered)
			}
		}
		cfg = nil
	}

	verbose := debug || (cfg != nil && cfg.UI.Verbose)
	logger := newLogger(verbose)

	path := args[0]
	logger.Debug("parsing", "file", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Error("could not read capsule; exiting", "file", path)
		return fail(issue.FileNotFoundId, err)
	}

	caps, err := capsule.Decode(raw)
	if err != nil {
		logger.Debug("decode failed", "err", err)
		logger.Error("could not parse capsule; exiting")
		return fail(issue.DecodeFailedId, err)
	}

	report := capsule.Validate(caps, capsule.Options{Force: force, Logger: logger})
	if !report.OK {
		logger.Error("invalid capsule; exiting")
		return fail(issue.ValidationFailedId, validationError(&report))
	}

	if err := checkGUID(ctx, caps, cfg, logger, cmd.OutOrStdout()); err != nil {
		return err
	}

	// Options, which modify the capsule.

	if deAuthenticate {
		logger.Info("de-authenticating capsule")
		if err := caps.DeAuthenticate(); err != nil {
			logger.Error("cannot de-authenticate capsule; exiting")
			return fail(issue.DeAuthNotSupportedId, err)
		}
	}

	if tamperImage {
		logger.Info("tampering with capsule firmware image")
		res, err := caps.Tamper(nil)
		if err != nil {
			logger.Error("cannot tamper with capsule; exiting")
			return fail(0, err)
		}
		logger.Debug("inverted image bit", "byte", res.ByteIndex, "bit", res.BitIndex)
	}

	// Options, which produce an output.

	if dumpCapsule {
		logger.Debug("dumping")
		fmt.Fprint(cmd.OutOrStdout(), caps.Dump())
	}

	if extractFile != "" {
		warnReservedName(logger, extractFile)
		logger.Info("extracting image", "file", extractFile)
		if err := caps.ExtractImage(extractFile); err != nil {
			return fail(issue.OutputWriteFailedId, err)
		}
	}

	if outputFile != "" {
		warnReservedName(logger, outputFile)
		logger.Info("saving capsule", "file", outputFile)
		if err := caps.WriteFile(outputFile); err != nil {
			return fail(issue.OutputWriteFailedId, err)
		}
	}

	return nil
}

// checkGUID resolves the GUID tool command line and runs the capsule GUID
// check against it. The --guid-tool flag wins over the config file; the
// configured GUIDs database and the --debug flag are forwarded to the tool.
func checkGUID(ctx context.Context, caps *capsule.Capsule, cfg *config.Config, logger *log.Logger, out io.Writer) error {
	cmdline := guidTool
	if cmdline == "" {
		if cfg != nil {
			cmdline = cfg.GuidTool
		} else {
			cmdline = config.DefaultConfig().GuidTool
		}
	}
	if cfg != nil && cfg.GuidsDb != "" {
		cmdline += " --guids-db " + cfg.GuidsDb
	}
	if debug {
		cmdline += " --debug"
	}

	expected, err := parseExpectedGUID()
	if err != nil {
		logger.Error("invalid expected GUID; exiting", "guid", expectedGUID)
		return fail(0, err)
	}

	tool := &identify.Tool{Command: cmdline, Logger: logger}
	g := caps.Body.Payload.ImageHeader.UpdateImageTypeID

	err = tool.Check(ctx, g, identify.CheckOptions{
		Expected:  expected,
		Force:     force,
		PrintGUID: printGUID,
		Out:       out,
	})
	switch {
	case errors.Is(err, identify.ErrGUIDMismatch):
		logger.Error("bad capsule GUID; exiting")
		return fail(issue.GuidMismatchId, err)
	case err != nil:
		logger.Error("bad guid tool; exiting", "tool", cmdline)
		return fail(issue.GuidToolFailedId, err)
	}

	return nil
}

// warnReservedName flags output filenames that Windows refuses to create.
// The file is still written; on non-Windows systems it only hurts portability.
func warnReservedName(logger *log.Logger, path string) {
	if platform.IsWindowsReservedName(filepath.Base(path)) {
		logger.Warn("output filename is reserved on Windows", "file", path)
	}
}

// validationError condenses a validation report into one error for display.
func validationError(report *capsule.Report) error {
	failures := report.Failures()
	if len(failures) == 0 {
		return errors.New("validation failed")
	}
	first := failures[0]
	return fmt.Errorf("check %s failed: %w", first.Name, first.Err)
}

// fail renders the issue catalog card for id (when one exists) and returns
// an ExitError carrying err.
func fail(id issue.Id, err error) error {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, debug))

	if entry := issue.Get(id); entry != nil {
		if rendered, renderErr := entry.Render("dark"); renderErr == nil {
			fmt.Fprint(os.Stderr, rendered)
		}
	}

	return &ExitError{Code: 1, Err: err}
}

// parseExpectedGUID parses the --expected-guid flag, when given.
func parseExpectedGUID() (*efiguid.GUID, error) {
	if expectedGUID == "" {
		return nil, nil
	}
	g, err := efiguid.Parse(expectedGUID)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
