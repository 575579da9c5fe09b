// Package cli provides the command-line interface for docgrade.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/docgrade/docgrade/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config
	cfg config.Config

	// Logger cleanup, set by PersistentPreRun
	closeLogger func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "docgrade",
	Short: "Confidence assessment for document extraction results",
	Long: `Docgrade grades the output of document extraction: it decomposes an
extraction result into small verification tasks, runs them in parallel
against an inference backend, and reassembles per-field confidence scores,
explanations, and page geometry into a tree mirroring the extraction.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, cleanup := config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		closeLogger = cleanup
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogger != nil {
			if err := closeLogger(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(assessCmd)
}
