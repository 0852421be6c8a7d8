package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftlab/weft/internal/types"
)

var (
	neighborsDepth int
	pathsMaxHops   int
	pathsMaxPaths  int
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Traverse the knowledge graph",
}

var graphNeighborsCmd = &cobra.Command{
	Use:   "neighbors ID",
	Short: "List entities within N hops of an entity",
	Long: `List every entity reachable within --depth hops, each reported at
its minimum distance. Symmetric relationships are traversed in both
directions.

Examples:
  weft graph neighbors slack-notify
  weft graph neighbors http-request --depth 2`,
	Args: cobra.ExactArgs(1),
	RunE: runNeighbors,
}

var graphPathsCmd = &cobra.Command{
	Use:   "paths SOURCE TARGET",
	Short: "Find connection paths between two entities",
	Long: `Find routes between two entities, shallowest first. Path confidence
is the product of the traversed edge strengths.

Examples:
  weft graph paths slack-notify email-poll
  weft graph paths a b --max-hops 4 --max-paths 20`,
	Args: cobra.ExactArgs(2),
	RunE: runPaths,
}

func init() {
	graphNeighborsCmd.Flags().IntVar(&neighborsDepth, "depth", 1, "Maximum hop distance")
	graphPathsCmd.Flags().IntVar(&pathsMaxHops, "max-hops", 3, "Maximum path length in edges")
	graphPathsCmd.Flags().IntVar(&pathsMaxPaths, "max-paths", 10, "Maximum number of paths to report")

	graphCmd.AddCommand(graphNeighborsCmd)
	graphCmd.AddCommand(graphPathsCmd)
}

func runNeighbors(cmd *cobra.Command, args []string) error {
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
	resp, err := engine.Neighbors(ctx, types.ID(args[0]), neighborsDepth)
	if err != nil {
		return err
	}

	out := formatter(cmd)
	if globalFlags.Output == "json" {
		return out.PrintJSON(resp)
	}
	if len(resp.Neighbors) == 0 {
		cmd.Println("No neighbors.")
		return nil
	}

	rows := make([][]string, 0, len(resp.Neighbors))
	for _, n := range resp.Neighbors {
		rows = append(rows, []string{
			string(n.Entity.ID),
			n.Entity.Label,
			string(n.Entity.Category),
			strconv.Itoa(n.Distance),
		})
	}
	if err := out.PrintTable([]string{"id", "label", "category", "distance"}, rows); err != nil {
		return err
	}
	if resp.Meta.Truncated && !globalFlags.Quiet {
		cmd.Println("(neighborhood truncated at the configured limit)")
	}
	return nil
}

func runPaths(cmd *cobra.Command, args []string) error {
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
	resp, err := engine.Paths(ctx, types.ID(args[0]), types.ID(args[1]), pathsMaxHops, pathsMaxPaths)
	if err != nil {
		return err
	}

	out := formatter(cmd)
	if globalFlags.Output == "json" {
		return out.PrintJSON(resp)
	}
	if len(resp.Paths) == 0 {
		cmd.Printf("No path from %s to %s within %d hops.\n", args[0], args[1], pathsMaxHops)
		return nil
	}

	for i, p := range resp.Paths {
		nodes := make([]string, len(p.Entities))
		for j, id := range p.Entities {
			nodes[j] = string(id)
		}
		cmd.Printf("%d. %s  (hops %d, confidence %.3f)\n",
			i+1, strings.Join(nodes, " -> "), p.Hops(), p.Confidence)
		for _, edge := range p.Edges {
			line := fmt.Sprintf("     %s -[%s %.2f]-> %s", edge.Source, edge.Type, edge.Strength, edge.Target)
			cmd.Println(line)
		}
	}
	if resp.Meta.Truncated && !globalFlags.Quiet {
		cmd.Println("(path search truncated; raise --max-paths for more)")
	}
	return nil
}
