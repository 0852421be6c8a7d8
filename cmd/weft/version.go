package main

import (
	"github.com/spf13/cobra"

	"github.com/weftlab/weft/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the weft version",
	RunE: func(cmd *cobra.Command, args []string) error {
		if globalFlags.Output == "json" {
			return formatter(cmd).PrintJSON(map[string]string{
				"version": version.Version,
				"commit":  version.Commit,
				"date":    version.Date,
			})
		}
		cmd.Println(version.String())
		return nil
	},
}
