// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"capsule-cli/internal/guiddb"
	"capsule-cli/internal/issue"
	"capsule-cli/pkg/efiguid"
	"capsule-cli/pkg/types"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"

	// debug enables debug messages
	debug bool
	// details dumps the GUID field breakdown and exits
	details bool
	// printCDefine prints the GUID as a C define and exits
	printCDefine bool
	// noValidate skips the RFC 4122 conformance check
	noValidate bool
	// guidsDb points at a GUIDs database CUE file; empty uses the embedded one
	guidsDb string

	rootCmd = &cobra.Command{
		Use:   "guid-tool <guid>",
		Short: "Check UEFI GUIDs",
		Long: `guid-tool checks UEFI GUIDs and looks them up in a database of
known GUIDs. It prints the description of a known GUID, or "Unknown".

Examples:
  guid-tool 6dcbd5ed-e82d-4c44-bda1-7194199ad92a
  guid-tool --details 6dcbd5ed-e82d-4c44-bda1-7194199ad92a
  guid-tool --print-c-define 6dcbd5ed-e82d-4c44-bda1-7194199ad92a
  guid-tool --guids-db my-guids.cue 6dcbd5ed-e82d-4c44-bda1-7194199ad92a`,
		Args: cobra.ExactArgs(1),
		RunE: runGuidTool,

		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.Flags().BoolVar(&debug, "debug", false, "turn on debug messages")
	rootCmd.Flags().BoolVar(&details, "details", false, "dump GUID details and exit")
	rootCmd.Flags().BoolVar(&printCDefine, "print-c-define", false, "print GUID as C define and exit")
	rootCmd.Flags().BoolVar(&noValidate, "no-validate", false, "do not check RFC 4122 conformance")
	rootCmd.Flags().StringVar(&guidsDb, "guids-db", "", "GUIDs database CUE file (default is the embedded database)")
}

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error { return e.Err }

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

func runGuidTool(cmd *cobra.Command, args []string) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "guid-tool",
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}

	g, err := efiguid.Parse(args[0])
	if err != nil {
		logger.Debug("parse failed", "err", err)
		logger.Errorf("Invalid GUID `%s'!", args[0])
		return &ExitError{Code: 1, Err: err}
	}

	if !noValidate {
		if err := g.Validate(); err != nil {
			logger.Debug("conformance check failed", "err", err)
			logger.Errorf("Invalid GUID `%s'!", args[0])
			return &ExitError{Code: 1, Err: err}
		}
	}

	out := cmd.OutOrStdout()

	if details {
		fmt.Fprintln(out, g.Details())
		return nil
	}

	if printCDefine {
		fmt.Fprintln(out, g.CDefine("GUID"))
		return nil
	}

	db, err := loadDatabase()
	if err != nil {
		logger.Error("could not load GUIDs database", "err", err)
		if entry := issue.Get(issue.GuidsDbInvalidId); entry != nil {
			if rendered, renderErr := entry.Render("dark"); renderErr == nil {
				fmt.Fprint(os.Stderr, rendered)
			}
		}
		return &ExitError{Code: 1, Err: err}
	}
	logger.Debug("database loaded", "entries", db.Len())

	fmt.Fprintln(out, db.Lookup(g))
	return nil
}

// loadDatabase loads the database named by --guids-db, or the embedded one.
func loadDatabase() (*guiddb.DB, error) {
	if guidsDb != "" {
		return guiddb.LoadFile(guidsDb)
	}
	return guiddb.Load()
}
