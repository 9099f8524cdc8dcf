package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			// still print an invalid config, it is what the user needs to see
			validateErr := cfg.Validate()

			data, err := yaml.Marshal(cfg.Masked())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cfg.Path != "" {
				fmt.Fprintf(out, "# %s\n", cfg.Path)
			}
			if _, err := out.Write(data); err != nil {
				return err
			}
			return validateErr
		},
	}
}
