package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/setforge/setforge/pkg/engine"
	"github.com/setforge/setforge/pkg/validate"
)

func newValidateCommand() *cobra.Command {
	var (
		preset      string
		itemTimeout time.Duration
		sequential  bool
		workers     int
		skipCompat    bool
		skipConflicts bool
		skipImpact    bool
	)

	cmd := &cobra.Command{
		Use:   "validate [file-or-directory]",
		Short: "Validate a configuration without changing the system",
		Long: `Validate runs the full pre-flight pipeline: structural checks, policy
evaluation, a bounded state test per item, compatibility, conflict
detection and a convergence cost estimate. Nothing is modified.`,
		Example: `  # Validate a single declaration file
  setforge validate workstation.yaml

  # Validate a directory of declaration files
  setforge validate ./conf.d

  # Validate the built-in developer preset sequentially
  setforge validate --preset developer --sequential`,
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

			validator := validate.New(env.registry, validate.Options{
				ItemTimeout:       itemTimeout,
				Parallel:          !sequential,
				Workers:           workers,
				SkipCompatibility: skipCompat,
				SkipConflicts:     skipConflicts,
				SkipImpact:        skipImpact,
				Policy:            env.gate,
				Logger:            env.log,
			})
			result := validator.Validate(ctx, loaded.Configuration)

			if jsonOutput {
				return printJSON(result)
			}
			printWarnings(loaded.Warnings)
			printValidationResult(result)

			if result.OverallStatus == engine.StatusInvalid || result.OverallStatus == engine.StatusError {
				return fmt.Errorf("validation %s", result.OverallStatus)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "validate a built-in category preset instead of a file")
	cmd.Flags().DurationVar(&itemTimeout, "item-timeout", validate.DefaultItemTimeout, "per-item state test timeout")
	cmd.Flags().BoolVar(&sequential, "sequential", false, "disable the parallel validation pool")
	cmd.Flags().IntVar(&workers, "workers", validate.DefaultWorkers, "parallel validation workers")
	cmd.Flags().BoolVar(&skipCompat, "skip-compatibility", false, "skip the system compatibility stage")
	cmd.Flags().BoolVar(&skipConflicts, "skip-conflicts", false, "skip conflict detection")
	cmd.Flags().BoolVar(&skipImpact, "skip-impact", false, "skip the convergence cost estimate")

	return cmd
}
