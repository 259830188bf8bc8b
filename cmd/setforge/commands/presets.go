package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/setforge/setforge/pkg/config"
)

func newPresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [name]",
		Short: "List built-in category presets or show one",
		Long: `Without arguments, presets lists the built-in categories that can be
passed to validate and apply via --preset. With a name, it prints the
preset's expanded configuration.`,
		Example: `  # List available presets
  setforge presets

  # Show the developer preset
  setforge presets developer --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAppEnv(cmd.Context())
			if err != nil {
				return err
			}

			if len(args) == 0 {
				names := config.Presets()
				if jsonOutput {
					return printJSON(names)
				}
				fmt.Println("Available presets:")
				for _, name := range names {
					fmt.Printf("  - %s\n", name)
				}
				return nil
			}

			cfg, err := env.parser.FromPreset(args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cfg)
			}
			fmt.Printf("Preset:      %s\n", cfg.Name)
			fmt.Printf("Version:     %s\n", cfg.Version)
			if cfg.Description != "" {
				fmt.Printf("Description: %s\n", cfg.Description)
			}
			fmt.Println("\nItems:")
			for _, item := range cfg.Items {
				state := "enabled"
				if !item.Enabled {
					state = "disabled"
				}
				fmt.Printf("  %-30s %-10s %s\n", item.Name, item.Type, state)
			}
			return nil
		},
	}
}
