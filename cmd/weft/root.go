package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weftlab/weft/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "weft - knowledge-graph retrieval over an automation component catalog",
	Long: `weft builds a knowledge graph from a flat catalog of automation
components and answers retrieval queries over it: semantic search,
keyword search, hybrid fusion, graph traversal, and explanations.

Start with 'weft init' to create a config, then 'weft build' to turn a
catalog into a graph, then 'weft query' to search it.`,
	PersistentPreRunE: preRun,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal-driven cancellation.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}

// preRun validates global flags and resolves the home directory before
// any command body runs.
func preRun(cmd *cobra.Command, args []string) error {
	if err := ValidateGlobalFlags(); err != nil {
		return err
	}

	if globalFlags.HomeDir == "" {
		globalFlags.HomeDir = os.Getenv("WEFT_HOME")
	}
	if globalFlags.HomeDir == "" {
		globalFlags.HomeDir = config.DefaultHomeDir()
	}
	if globalFlags.ConfigFile == "" {
		globalFlags.ConfigFile = config.DefaultConfigPath(globalFlags.HomeDir)
	}
	return nil
}

func init() {
	RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(tracesCmd)
	rootCmd.AddCommand(feedbackCmd)
}
