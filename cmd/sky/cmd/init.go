package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/skydb/pkg/config"
)

func newInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file and create the data directories",
		Long: `Write a configuration file with the resolved settings and create the
data directories for the segment log and the path storage.

Examples:
  sky init
  sky init --config ./sky.yaml --data-dir ./data --layout fixed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if config.ConfigExists(a.configPath) && !force {
				fmt.Fprintf(out, "Configuration already exists at %s. Use --force to overwrite.\n", a.configPath)
				return nil
			}

			for _, dir := range []string{a.config.EventsDir(), a.config.PathsDir()} {
				if err := os.MkdirAll(dir, 0750); err != nil {
					return fmt.Errorf("failed to create data directory: %w", err)
				}
			}

			if err := config.SaveConfig(a.config, a.configPath); err != nil {
				return err
			}

			fmt.Fprintf(out, "Configuration written to %s\n", a.configPath)
			fmt.Fprintf(out, "Data directory: %s\n", a.config.DataDir)
			fmt.Fprintf(out, "Codec layout: %s\n", a.config.Layout())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}
