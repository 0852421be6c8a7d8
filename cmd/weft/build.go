package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/weftlab/weft/internal/builder"
	"github.com/weftlab/weft/internal/catalog"
)

var (
	buildCatalogPath string
	buildEnrichDocs  bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the knowledge graph from a component catalog",
	Long: `Build the knowledge graph from a catalog of automation components.

The catalog is one YAML/JSON file or a directory of them. Building runs
the full pipeline - entity extraction, embedding generation,
relationship inference - and atomically replaces the committed graph.
Queries keep answering from the previous graph until the new one lands.

Examples:
  # Build from a single catalog file
  weft build --catalog ./catalog.yaml

  # Build from a directory of catalog files, enriching descriptions
  # from linked documentation first
  weft build --catalog ./catalog/ --enrich-docs`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildCatalogPath, "catalog", "", "Catalog file or directory (required)")
	buildCmd.Flags().BoolVar(&buildEnrichDocs, "enrich-docs", false, "Fetch linked docs and fold them into descriptions before embedding")
	_ = buildCmd.MarkFlagRequired("catalog")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	cat, issues, err := catalog.LoadPath(buildCatalogPath)
	if err != nil {
		return err
	}
	for _, issue := range issues {
		rt.logger.Warn("catalog file skipped", "issue", issue.String())
	}

	if buildEnrichDocs {
		baseDir := buildCatalogPath
		if fi, statErr := os.Stat(buildCatalogPath); statErr == nil && !fi.IsDir() {
			baseDir = filepath.Dir(buildCatalogPath)
		}
		enricher := catalog.NewEnricher(catalog.WithBaseDir(baseDir))
		for _, issue := range enricher.Enrich(ctx, cat) {
			rt.logger.Warn("doc enrichment skipped", "issue", issue.String())
		}
	}

	b, err := builder.New(rt.store, rt.provider, rt.cfg.Builder, rt.logger)
	if err != nil {
		return err
	}
	result, err := b.Build(ctx, cat)
	if err != nil {
		return err
	}

	out := formatter(cmd)
	if globalFlags.Output == "json" {
		return out.PrintJSON(result)
	}

	if err := out.PrintSuccess(fmt.Sprintf(
		"graph built: %d entities, %d edges, %d embedded (%.1fs)",
		result.Entities, result.Edges, result.Embedded, result.Elapsed.Seconds())); err != nil {
		return err
	}
	if result.Degraded {
		if err := out.PrintError(fmt.Sprintf(
			"%d entities have no embedding; queries degrade to keyword-only until a rebuild",
			result.EmbeddingFailures)); err != nil {
			return err
		}
	}
	for _, skip := range result.Skipped {
		cmd.Printf("  skipped %s: %s\n", skip.ID, skip.Reason)
	}
	return nil
}
