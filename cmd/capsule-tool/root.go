// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"capsule-cli/internal/config"
	"capsule-cli/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// debug enables debug messages
	debug bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// flags controlling the processing pipeline
	force          bool
	deAuthenticate bool
	tamperImage    bool
	extractFile    string
	outputFile     string
	expectedGUID   string
	printGUID      bool
	dumpCapsule    bool
	guidTool       string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "capsule-tool <capsule>",
		Short: "Manipulate UEFI capsules",
		Long: TitleStyle.Render("capsule-tool") + SubtitleStyle.Render(" - Manipulate UEFI capsules") + `

capsule-tool decodes, validates and transforms UEFI capsules in FMP
(Firmware Management Protocol) format. We expect authenticated capsules
as input; when not forcing processing we exit at the first error.

` + SubtitleStyle.Render("Examples:") + `
  capsule-tool capsule.bin                     Validate a capsule
  capsule-tool --dump capsule.bin              Validate and print all fields
  capsule-tool --print-guid capsule.bin        Print the image type id GUID
  capsule-tool --extract fw.bin capsule.bin    Extract the firmware image
  capsule-tool --de-authenticate --output out.bin capsule.bin
                                               Remove authentication
  capsule-tool --tamper --output bad.bin capsule.bin
                                               Corrupt one firmware image bit`,
		Args: cobra.ExactArgs(1),
		RunE: runCapsuleTool,

		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.Flags().BoolVar(&debug, "debug", false, "turn on debug messages")
	rootCmd.Flags().BoolVar(&force, "force", false, "force processing past errors")
	rootCmd.Flags().BoolVar(&deAuthenticate, "de-authenticate", false, "remove capsule authentication")
	rootCmd.Flags().BoolVar(&tamperImage, "tamper", false, "tamper with capsule firmware image")
	rootCmd.Flags().StringVar(&extractFile, "extract", "", "extract firmware image to file")
	rootCmd.Flags().StringVar(&outputFile, "output", "", "capsule output file")
	rootCmd.Flags().StringVar(&expectedGUID, "expected-guid", "", "expected update image type id GUID")
	rootCmd.Flags().BoolVar(&printGUID, "print-guid", false, "print the capsule image type id GUID during check")
	rootCmd.Flags().BoolVar(&dumpCapsule, "dump", false, "dump parsed capsule to standard output")
	rootCmd.Flags().StringVar(&guidTool, "guid-tool", "", "GUID identification tool command line (default from config)")
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/capsule-tool/config.cue)")
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// newLogger builds the tool logger. Debug level when --debug or the config
// asks for verbose output.
func newLogger(verbose bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "capsule-tool",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// loadConfig resolves the tool configuration, honoring the --config flag.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.NewProvider().Load(ctx, config.LoadOptions{
		ConfigFilePath: cfgFile,
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
