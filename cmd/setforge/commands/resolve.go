package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/setforge/setforge/pkg/bridge"
)

func newResolveCommand() *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "resolve <kind> <key>",
		Short: "Resolve a theme, profile or category definition",
		Long: `Resolve looks up a definition by kind and key: the built-in baseline is
merged with the highest-priority user override discovered under the
standard search roots. Supported kinds: category, theme, profile.`,
		Example: `  # Resolve the Dark theme with user overrides applied
  setforge resolve theme Dark

  # Resolve the developer category, bypassing the cache
  setforge resolve category developer --no-cache`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := bridge.RequestKind(args[0])
			key := args[1]

			known := false
			for _, k := range bridge.KnownKinds() {
				if k == kind {
					known = true
					break
				}
			}
			if !known {
				return fmt.Errorf("unknown kind %q (expected one of %v)", args[0], bridge.KnownKinds())
			}

			ctx := cmd.Context()
			env, err := newAppEnv(ctx)
			if err != nil {
				return err
			}
			if noCache {
				env.bridge.SetCacheEnabled(false)
			}

			payload, err := env.bridge.Resolve(ctx, kind, key)
			if err != nil {
				return err
			}
			return printJSON(payload)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the resolution cache")

	return cmd
}
