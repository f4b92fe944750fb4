package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cfg.AppName, cfg.Version)
		return nil
	},
}
