// Package export serializes a graph snapshot to a portable JSON
// document and restores one through the store's build transaction. It
// runs off the query path: exports read a single immutable snapshot,
// imports go through the same atomic commit a rebuild uses.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/types"
	"github.com/weftlab/weft/pkg/version"
)

// FormatVersion identifies the snapshot document layout. Importers
// refuse documents written under a different version.
const FormatVersion = 1

// Manifest describes a snapshot document. ContentHash is the SHA-256
// hex digest of the canonical payload; any edit to entities, edges, or
// embeddings after export breaks it.
type Manifest struct {
	FormatVersion  int       `json:"format_version"`
	BuiltAt        time.Time `json:"built_at,omitempty"`
	ExportedAt     time.Time `json:"exported_at"`
	EntityCount    int       `json:"entity_count"`
	EdgeCount      int       `json:"edge_count"`
	EmbeddingCount int       `json:"embedding_count"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	Dimensions     int       `json:"dimensions,omitempty"`
	ContentHash    string    `json:"content_hash"`
	ToolVersion    string    `json:"tool_version"`
}

// payload is the hashed portion of a document: entities sorted by
// ascending id with their embeddings lifted out, edges in insertion
// order, embeddings keyed by entity id.
type payload struct {
	Entities   []*graph.Entity   `json:"entities"`
	Edges      []*graph.Edge     `json:"edges"`
	Embeddings map[string]string `json:"embeddings,omitempty"`
}

// document is the on-disk snapshot layout.
type document struct {
	Manifest Manifest `json:"manifest"`
	payload
}

// hashPayload computes the canonical content hash. Both sides marshal
// the parsed payload through the same struct, so the digest is stable
// across an export/import cycle.
func hashPayload(p *payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshaling snapshot payload: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Exporter writes snapshot documents for a store.
type Exporter struct {
	store  graph.Store
	logger *slog.Logger
}

// NewExporter creates an Exporter over the given store.
func NewExporter(store graph.Store, logger *slog.Logger) (*Exporter, error) {
	if store == nil {
		return nil, types.NewValidationError("exporter needs a store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: store, logger: logger.With("component", "export")}, nil
}

// Export serializes the current snapshot to w and returns the manifest
// it wrote. The snapshot is taken once up front, so a rebuild landing
// mid-export never mixes into the document.
func (x *Exporter) Export(ctx context.Context, w io.Writer) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := x.store.Snapshot()

	p := &payload{
		Entities: make([]*graph.Entity, 0, snap.Len()),
		Edges:    snap.Edges(),
	}
	for _, id := range snap.IDs() {
		ent := snap.Entity(id).Clone()
		if ent.HasEmbedding() {
			if p.Embeddings == nil {
				p.Embeddings = make(map[string]string)
			}
			p.Embeddings[string(id)] = encodeVector(ent.Embedding)
			ent.Embedding = nil
		}
		p.Entities = append(p.Entities, ent)
	}

	hash, err := hashPayload(p)
	if err != nil {
		return nil, err
	}
	model, _ := snap.Meta(graph.MetaEmbeddingModel)
	manifest := Manifest{
		FormatVersion:  FormatVersion,
		BuiltAt:        snap.BuiltAt(),
		ExportedAt:     time.Now().UTC(),
		EntityCount:    len(p.Entities),
		EdgeCount:      len(p.Edges),
		EmbeddingCount: len(p.Embeddings),
		EmbeddingModel: model,
		Dimensions:     snap.Dimensions(),
		ContentHash:    hash,
		ToolVersion:    version.Short(),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{Manifest: manifest, payload: *p}); err != nil {
		return nil, fmt.Errorf("writing snapshot document: %w", err)
	}

	x.logger.Info("snapshot exported",
		"entities", manifest.EntityCount,
		"edges", manifest.EdgeCount,
		"embeddings", manifest.EmbeddingCount,
		"content_hash", manifest.ContentHash)
	return &manifest, nil
}
