package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/weftlab/weft/cmd/weft/internal"
	"github.com/weftlab/weft/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the weft home directory and a default config file",
	Long: `Create the weft home directory and write a commented default
configuration file. Existing config files are left alone unless --force
is given.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	homeDir := globalFlags.HomeDir
	configPath := config.DefaultConfigPath(homeDir)

	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return internal.WrapError(internal.ExitError, "creating home directory", err)
	}

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return internal.NewCLIError(internal.ExitConfigError,
			"config already exists at "+configPath+" (use --force to overwrite)")
	}

	if err := os.WriteFile(configPath, config.DefaultYAML(), 0o644); err != nil {
		return internal.WrapError(internal.ExitError, "writing config file", err)
	}

	out := formatter(cmd)
	if err := out.PrintSuccess("config written to " + configPath); err != nil {
		return err
	}
	if !globalFlags.Quiet {
		cmd.Printf("Store will be created at %s on first build.\n",
			filepath.Join(homeDir, "weft.db"))
	}
	return nil
}
