// Package cmd implements the coldrun command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coldrunhq/coldrun/internal/config"
	"github.com/coldrunhq/coldrun/internal/observability"
)

// versionInfo is populated by the build via SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build-time version metadata.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate)
}

// settings are the loaded CLI-wide settings, available to all commands
// after PersistentPreRunE.
var settings = &config.Settings{LogLevel: "info"}

var logLevelFlag string

var rootCmd = &cobra.Command{
	Use:   "coldrun",
	Short: "Reboot-isolated benchmark scheduler",
	Long: `coldrun runs performance benchmarks one execution per machine boot, so every
measurement starts from a pristine runtime state.

Progress lives entirely on disk: a fixed-width manifest header records the
randomized job order and a cursor into it, and a SQLite store mirrors job
statuses for analysis. Killing the process at any point is safe; the next
invocation resumes from the manifest.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.Load()
		if err != nil {
			return err
		}
		settings = s

		level := settings.LogLevel
		if cmd.Flags().Changed("log-level") {
			level = logLevelFlag
		}
		return observability.Init(level)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		observability.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level (debug|info|warn|error)")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the CLI with a context, typically one cancelled on
// SIGINT/SIGTERM so an in-flight job can abort cleanly.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return fmt.Errorf("%s: %w (exit code %d)", message, err, code)
}
