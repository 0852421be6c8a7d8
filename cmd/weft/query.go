package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/weftlab/weft/internal/query"
)

var (
	queryLimit          int
	querySemanticWeight float64
	queryKeywordWeight  float64
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the knowledge graph",
	Long: `Search the knowledge graph with one of three strategies:

  semantic  rank by embedding similarity to the query text
  keyword   rank by full-text match
  hybrid    fuse both signals plus a graph-neighborhood boost

When the embedding provider is unavailable, semantic and hybrid queries
degrade to keyword-only and say so in the result metadata.`,
}

var querySemanticCmd = &cobra.Command{
	Use:   "semantic QUERY",
	Short: "Semantic similarity search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, args[0], "semantic")
	},
}

var queryKeywordCmd = &cobra.Command{
	Use:   "keyword QUERY",
	Short: "Full-text keyword search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, args[0], "keyword")
	},
}

var queryHybridCmd = &cobra.Command{
	Use:   "hybrid QUERY",
	Short: "Fused semantic + keyword + graph search",
	Long: `Fuse semantic and keyword scores into one ranking, with a boost for
entities in the graph neighborhood of the strongest semantic hits.

Examples:
  weft query hybrid "send a chat message"
  weft query hybrid "parse incoming email" -k 10
  weft query hybrid "call a webhook" --semantic-weight 0.8 --keyword-weight 0.2`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, args[0], "hybrid")
	},
}

func init() {
	queryCmd.PersistentFlags().IntVarP(&queryLimit, "limit", "k", 10, "Maximum results to return")
	queryHybridCmd.Flags().Float64Var(&querySemanticWeight, "semantic-weight", -1, "Override the semantic fusion weight")
	queryHybridCmd.Flags().Float64Var(&queryKeywordWeight, "keyword-weight", -1, "Override the keyword fusion weight")

	queryCmd.AddCommand(querySemanticCmd)
	queryCmd.AddCommand(queryKeywordCmd)
	queryCmd.AddCommand(queryHybridCmd)
}

func runSearch(cmd *cobra.Command, text, strategy string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	engine, err := rt.engine()
	if err != nil {
		return err
	}

	var resp *query.SearchResponse
	switch strategy {
	case "semantic":
		resp, err = engine.SemanticSearch(ctx, text, queryLimit)
	case "keyword":
		resp, err = engine.KeywordSearch(ctx, text, queryLimit)
	case "hybrid":
		var opts query.Options
		if cmd.Flag("semantic-weight").Changed {
			opts.SemanticWeight = &querySemanticWeight
		}
		if cmd.Flag("keyword-weight").Changed {
			opts.KeywordWeight = &queryKeywordWeight
		}
		resp, err = engine.HybridSearch(ctx, text, queryLimit, opts)
	}
	if err != nil {
		return err
	}

	return printSearchResponse(cmd, resp)
}

func printSearchResponse(cmd *cobra.Command, resp *query.SearchResponse) error {
	out := formatter(cmd)
	if globalFlags.Output == "json" {
		return out.PrintJSON(resp)
	}

	if resp.Meta.Degraded {
		if err := out.PrintError("degraded to keyword-only: " + resp.Meta.DegradedReason); err != nil {
			return err
		}
	}
	if len(resp.Results) == 0 {
		cmd.Println("No results.")
		return nil
	}

	rows := make([][]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		rows = append(rows, []string{
			string(r.Entity.ID),
			r.Entity.Label,
			string(r.Entity.Category),
			formatScore(r.Score),
			formatScore(r.SemanticScore),
			formatScore(r.KeywordScore),
		})
	}
	if err := out.PrintTable(
		[]string{"id", "label", "category", "score", "semantic", "keyword"}, rows); err != nil {
		return err
	}
	if !globalFlags.Quiet {
		cmd.Printf("\n%d result(s), strategy %s, %dms\n",
			resp.Meta.ResultCount, resp.Meta.Strategy, resp.Meta.ElapsedMS)
		if resp.Meta.Truncated {
			cmd.Println("(more candidates matched; raise --limit to see them)")
		}
	}
	return nil
}

func formatScore(v float64) string {
	if v == 0 {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}
