package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/setforge/setforge/pkg/bridge"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the resolution cache",
	}

	cmd.AddCommand(newCacheStatsCommand())
	cmd.AddCommand(newCacheClearCommand())
	cmd.AddCommand(newCacheWatchCommand())

	return cmd
}

// warmCache resolves every built-in key so the statistics reflect a
// populated cache rather than an empty fresh process.
func warmCache(ctx context.Context, env *appEnv) error {
	for _, kind := range bridge.KnownKinds() {
		for _, key := range env.bridge.BaselineKeys(kind) {
			if _, err := env.bridge.Resolve(ctx, kind, key); err != nil {
				return fmt.Errorf("resolving %s/%s: %w", kind, key, err)
			}
		}
	}
	return nil
}

func newCacheStatsCommand() *cobra.Command {
	var warm bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show resolution cache statistics",
		Example: `  # Populate the cache from all built-in definitions, then report
  setforge cache stats --warm`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := newAppEnv(ctx)
			if err != nil {
				return err
			}
			if warm {
				if err := warmCache(ctx, env); err != nil {
					return err
				}
			}

			stats := env.bridge.CacheStatistics()
			if jsonOutput {
				return printJSON(stats)
			}
			fmt.Printf("Enabled: %t\n", stats.Enabled)
			fmt.Printf("Entries: %d\n", stats.Entries)
			fmt.Printf("Hits:    %d\n", stats.Hits)
			fmt.Printf("Misses:  %d\n", stats.Misses)
			return nil
		},
	}

	cmd.Flags().BoolVar(&warm, "warm", false, "resolve all built-in definitions before reporting")

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop all cached resolutions",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAppEnv(cmd.Context())
			if err != nil {
				return err
			}
			env.bridge.ClearCache()
			fmt.Println("Cache cleared.")
			return nil
		},
	}
}

func newCacheWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch override directories and invalidate on change",
		Long: `Watch monitors the override search roots and drops all cached
resolutions whenever an override file changes. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := newAppEnv(ctx)
			if err != nil {
				return err
			}
			fmt.Println("Watching override directories (ctrl-c to stop)...")
			if err := env.bridge.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
