package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/setforge/setforge/pkg/engine"
	"github.com/setforge/setforge/pkg/execute"
	"github.com/setforge/setforge/pkg/validate"
)

func newApplyCommand() *cobra.Command {
	var (
		preset        string
		dryRun        bool
		force         bool
		includeTypes  []string
		excludeTypes  []string
		batchPackages bool
		noHistory     bool
	)

	cmd := &cobra.Command{
		Use:   "apply [file-or-directory]",
		Short: "Converge the host with a declared configuration",
		Long: `Apply validates the configuration, then processes enabled items in
declaration order. Items whose current state already matches the
declaration are skipped unless forced; the rest are applied with
before/after state captured. A failing item is recorded and processing continues unless
the failure is critical. Each run is saved to the local run history.`,
		Example: `  # Preview what would change
  setforge apply workstation.yaml --dry-run

  # Converge, installing packages concurrently
  setforge apply workstation.yaml --batch-packages

  # Apply only package items from the developer preset
  setforge apply --preset developer --include-type package`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && preset == "" {
				return fmt.Errorf("a file, directory or --preset is required")
			}
			path := ""
			if len(args) == 1 {
				path = args[0]
			}

			ctx := cmd.Context()
			env, err := newAppEnv(ctx)
			if err != nil {
				return err
			}

			loaded, err := env.loadConfiguration(path, preset)
			if err != nil {
				return err
			}

			if !force {
				validator := validate.New(env.registry, validate.Options{
					Policy: env.gate,
					Logger: env.log,
				})
				result := validator.Validate(ctx, loaded.Configuration)
				if result.OverallStatus == engine.StatusInvalid || result.OverallStatus == engine.StatusError {
					if jsonOutput {
						return printJSON(result)
					}
					printValidationResult(result)
					return fmt.Errorf("validation %s, not applying (use --force to override)", result.OverallStatus)
				}
			}

			opts := execute.Options{
				DryRun:        dryRun,
				Force:         force,
				IncludeTypes:  normalizeTypes(includeTypes),
				ExcludeTypes:  normalizeTypes(excludeTypes),
				BatchPackages: batchPackages,
				Logger:        env.log,
			}
			if !noHistory && !dryRun {
				store, err := env.openStore(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				opts.Store = store
			}

			executor := execute.NewExecutor(env.registry, opts)
			result, execErr := executor.Execute(ctx, loaded.Configuration)

			if jsonOutput {
				if err := printJSON(result); err != nil {
					return err
				}
			} else {
				printWarnings(loaded.Warnings)
				printExecutionResult(result)
			}

			if execErr != nil {
				return execErr
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d item(s) failed", result.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "apply a built-in category preset instead of a file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without changing anything")
	cmd.Flags().BoolVar(&force, "force", false, "skip pre-apply validation and re-apply items even when already satisfied")
	cmd.Flags().StringSliceVar(&includeTypes, "include-type", nil, "only process items of these types")
	cmd.Flags().StringSliceVar(&excludeTypes, "exclude-type", nil, "skip items of these types")
	cmd.Flags().BoolVar(&batchPackages, "batch-packages", false, "install package items concurrently")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the run in the local history")

	return cmd
}
