package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/blob-installer/internal/config"
)

// configCmd prints the configuration a run would use.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		return config.Write(cmd.OutOrStdout(), cfg)
	},
}
