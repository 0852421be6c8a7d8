package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftlab/weft/internal/types"
)

var explainResults []string

var explainCmd = &cobra.Command{
	Use:   "explain QUERY ID",
	Short: "Explain why an entity matches a query",
	Long: `Explain why an entity was returned for a query, using only facts
already stored on the entity and its edges: matched terms, matched use
cases, and connections to the other results.

Examples:
  weft explain "send a chat message" slack-notify
  weft explain "send a chat message" http-request --results slack-notify,email-poll`,
	Args: cobra.ExactArgs(2),
	RunE: runExplain,
}

func init() {
	explainCmd.Flags().StringSliceVar(&explainResults, "results", nil,
		"Other result ids to explain connections against")
}

func runExplain(cmd *cobra.Command, args []string) error {
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

	resultIDs := make([]types.ID, 0, len(explainResults))
	for _, raw := range explainResults {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			resultIDs = append(resultIDs, types.ID(trimmed))
		}
	}

	exp, err := engine.Explain(ctx, args[0], types.ID(args[1]), resultIDs)
	if err != nil {
		return err
	}

	out := formatter(cmd)
	if globalFlags.Output == "json" {
		return out.PrintJSON(exp)
	}

	cmd.Printf("%s (%s)\n\n%s\n", exp.Label, exp.EntityID, exp.Text)
	return nil
}
