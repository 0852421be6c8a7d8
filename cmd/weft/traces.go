package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

var tracesLimit int

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "Show recent query traces",
	Long: `Show the most recent query traces, newest first: query text,
strategy, result count, and latency. Traces are observability data only
and never influence query answers.`,
	RunE: runTraces,
}

func init() {
	tracesCmd.Flags().IntVarP(&tracesLimit, "limit", "n", 20, "Number of traces to show")
}

func runTraces(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	traces, err := rt.store.RecentTraces(ctx, tracesLimit)
	if err != nil {
		return err
	}

	out := formatter(cmd)
	if globalFlags.Output == "json" {
		return out.PrintJSON(traces)
	}
	if len(traces) == 0 {
		cmd.Println("No traces recorded.")
		return nil
	}

	rows := make([][]string, 0, len(traces))
	for _, t := range traces {
		rows = append(rows, []string{
			t.CreatedAt.Format("15:04:05"),
			t.Strategy,
			truncateText(t.Query, 48),
			strconv.Itoa(t.ResultCount),
			strconv.FormatInt(t.LatencyMS, 10) + "ms",
		})
	}
	return out.PrintTable([]string{"time", "strategy", "query", "results", "latency"}, rows)
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
