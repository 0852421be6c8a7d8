package main

import (
	"github.com/spf13/cobra"

	"github.com/weftlab/weft/cmd/weft/internal"
)

// GlobalFlags holds the persistent flags shared by every command.
type GlobalFlags struct {
	Verbose    bool
	Quiet      bool
	Output     string
	ConfigFile string
	HomeDir    string
}

var globalFlags = &GlobalFlags{}

// RegisterGlobalFlags registers persistent flags on the root command.
func RegisterGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().StringVarP(&globalFlags.Output, "output", "o", "text", "Output format (text|json)")
	cmd.PersistentFlags().StringVar(&globalFlags.ConfigFile, "config", "", "Path to config file (default: $WEFT_HOME/config.yaml)")
	cmd.PersistentFlags().StringVar(&globalFlags.HomeDir, "home", "", "weft home directory (default: ~/.weft)")
}

// ValidateGlobalFlags rejects inconsistent flag combinations.
func ValidateGlobalFlags() error {
	if globalFlags.Output != "text" && globalFlags.Output != "json" {
		return internal.NewCLIError(internal.ExitError,
			"--output must be text or json, got "+globalFlags.Output)
	}
	if globalFlags.Verbose && globalFlags.Quiet {
		return internal.NewCLIError(internal.ExitError,
			"--verbose and --quiet cannot be used together")
	}
	return nil
}

// formatter returns the output formatter for the selected format,
// writing to the command's stdout.
func formatter(cmd *cobra.Command) internal.Formatter {
	return internal.NewFormatter(globalFlags.Output, cmd.OutOrStdout())
}
