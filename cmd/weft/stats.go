package main

import (
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show graph store statistics",
	Long: `Display entity, edge, and embedding counts, the average edge
strength, per-category and per-relation breakdowns, and the last build
metadata.`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	stats, err := rt.store.Stats(ctx)
	if err != nil {
		return err
	}

	out := formatter(cmd)
	if globalFlags.Output == "json" {
		return out.PrintJSON(stats)
	}

	cmd.Printf("Store: %s\n", stats.Path)
	cmd.Printf("Entities: %d  Edges: %d  Embeddings: %d\n",
		stats.Entities, stats.Edges, stats.Embeddings)
	cmd.Printf("Average edge strength: %.3f\n", stats.AvgStrength)
	if !stats.BuiltAt.IsZero() {
		cmd.Printf("Built: %s (build %s, model %s, %d dims)\n",
			stats.BuiltAt.Format("2006-01-02 15:04:05"),
			stats.BuildID, stats.EmbeddingModel, stats.Dimensions)
	}

	if len(stats.ByCategory) > 0 {
		cmd.Println("\nBy category:")
		rows := make([][]string, 0, len(stats.ByCategory))
		for cat, n := range stats.ByCategory {
			rows = append(rows, []string{string(cat), strconv.Itoa(n)})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
		if err := out.PrintTable([]string{"category", "entities"}, rows); err != nil {
			return err
		}
	}
	if len(stats.ByRelationType) > 0 {
		cmd.Println("\nBy relation:")
		rows := make([][]string, 0, len(stats.ByRelationType))
		for rel, n := range stats.ByRelationType {
			rows = append(rows, []string{string(rel), strconv.Itoa(n)})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
		if err := out.PrintTable([]string{"relation", "edges"}, rows); err != nil {
			return err
		}
	}
	return nil
}
