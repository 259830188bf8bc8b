package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	logLevel   string
	logFormat  string
	jsonOutput bool
	stateDir   string
	policyDir  string
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "setforge",
		Short: "SetForge - Declarative Host Configuration Engine",
		Long: `SetForge keeps a single host converged with a declared configuration:
packages, feature toggles, settings, terminal and shell profiles.

Workflow:
  - Declare items in JSON/YAML files or pick a category preset
  - Validate: structural checks, per-item state tests, conflicts, cost estimate
  - Apply: skip satisfied items, converge the rest, record before/after state`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output results in JSON format")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", defaultStateDir(), "directory for engine state files")
	rootCmd.PersistentFlags().StringVar(&policyDir, "policy-dir", "", "directory with additional .rego policies")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newCacheCommand())
	rootCmd.AddCommand(newPresetsCommand())
	rootCmd.AddCommand(newRunsCommand())

	return rootCmd
}
