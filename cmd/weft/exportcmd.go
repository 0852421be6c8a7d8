package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weftlab/weft/cmd/weft/internal"
	"github.com/weftlab/weft/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the graph to a portable snapshot",
	Long: `Serialize the committed graph - entities, edges, embeddings, and a
content-hashed manifest - to a JSON snapshot for distribution or backup.

Examples:
  weft export --out graph.json
  weft export > graph.json`,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a graph snapshot",
	Long: `Verify a snapshot's content hash and manifest and atomically replace
the committed graph with it. A tampered or truncated snapshot is
rejected before anything is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Write the snapshot to this file (default stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	exporter, err := export.NewExporter(rt.store, rt.logger)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return internal.WrapError(internal.ExitError, "creating snapshot file", err)
		}
		defer f.Close()
		w = f
	}

	manifest, err := exporter.Export(ctx, w)
	if err != nil {
		return err
	}

	if exportOut != "" && !globalFlags.Quiet {
		return formatter(cmd).PrintSuccess(fmt.Sprintf(
			"exported %d entities, %d edges, %d embeddings to %s",
			manifest.EntityCount, manifest.EdgeCount, manifest.EmbeddingCount, exportOut))
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	f, err := os.Open(args[0])
	if err != nil {
		return internal.WrapError(internal.ExitError, "opening snapshot file", err)
	}
	defer f.Close()

	importer, err := export.NewImporter(rt.store, rt.logger)
	if err != nil {
		return err
	}
	manifest, err := importer.Import(ctx, f)
	if err != nil {
		return err
	}

	return formatter(cmd).PrintSuccess(fmt.Sprintf(
		"imported %d entities, %d edges, %d embeddings (model %s)",
		manifest.EntityCount, manifest.EdgeCount, manifest.EmbeddingCount, manifest.EmbeddingModel))
}
