// Package cli implements the runner commands.
package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "runner",
	Short: "Execute one AI coding task against a repository workspace",
	Long: `The runner executes a single coding task inside an isolated workspace:
it analyzes the cloned repository, generates an execution plan for the
requested action, dispatches each step to a tool backend, and reports
progress to the callback API.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger: structured JSON on stderr, so
// stdout stays free for command output.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
