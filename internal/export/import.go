package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/types"
)

// Importer restores snapshot documents into a store.
type Importer struct {
	store  graph.Store
	logger *slog.Logger
}

// NewImporter creates an Importer over the given store.
func NewImporter(store graph.Store, logger *slog.Logger) (*Importer, error) {
	if store == nil {
		return nil, types.NewValidationError("importer needs a store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, logger: logger.With("component", "export")}, nil
}

// Import reads a snapshot document from r, verifies it, and commits it
// through the store's build transaction. The previous graph keeps
// serving queries until the commit swaps it out; any verification
// failure leaves the store untouched.
func (m *Importer) Import(ctx context.Context, r io.Reader) (*Manifest, error) {
	var doc document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, types.NewValidationError("snapshot document is not valid JSON: %v", err)
	}

	manifest := doc.Manifest
	if manifest.FormatVersion != FormatVersion {
		return nil, types.NewValidationError(
			"snapshot format version %d is not supported, want %d",
			manifest.FormatVersion, FormatVersion)
	}

	hash, err := hashPayload(&doc.payload)
	if err != nil {
		return nil, err
	}
	if hash != manifest.ContentHash {
		return nil, types.NewStorageCorruptionError(
			fmt.Sprintf("snapshot content hash mismatch: manifest %s, payload %s",
				manifest.ContentHash, hash), nil)
	}

	if manifest.EntityCount != len(doc.Entities) ||
		manifest.EdgeCount != len(doc.Edges) ||
		manifest.EmbeddingCount != len(doc.Embeddings) {
		return nil, types.NewStorageCorruptionError("snapshot counts disagree with manifest", nil)
	}

	entities := make([]*graph.Entity, len(doc.Entities))
	byID := make(map[types.ID]*graph.Entity, len(doc.Entities))
	for i, ent := range doc.Entities {
		cp := ent.Clone()
		if err := cp.Validate(); err != nil {
			return nil, err
		}
		if byID[cp.ID] != nil {
			return nil, types.NewValidationError("snapshot contains entity %s twice", cp.ID)
		}
		entities[i] = cp
		byID[cp.ID] = cp
	}

	for id, encoded := range doc.Embeddings {
		ent := byID[types.ID(id)]
		if ent == nil {
			return nil, types.NewValidationError("snapshot embeds unknown entity %s", id)
		}
		vec, err := decodeVector(encoded, manifest.Dimensions)
		if err != nil {
			return nil, err
		}
		ent.Embedding = vec
	}

	for _, edge := range doc.Edges {
		if err := edge.Validate(); err != nil {
			return nil, err
		}
		if byID[edge.Source] == nil || byID[edge.Target] == nil {
			return nil, types.NewDanglingReferenceError(edge.Source, edge.Target)
		}
	}

	txn, err := m.store.BeginBuild(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			txn.Abort()
		}
	}()

	meta := map[string]string{}
	if manifest.EmbeddingModel != "" {
		meta[graph.MetaEmbeddingModel] = manifest.EmbeddingModel
	}
	if err := txn.Commit(ctx, &graph.GraphSet{
		Entities: entities,
		Edges:    doc.Edges,
		Meta:     meta,
	}); err != nil {
		return nil, err
	}
	committed = true

	m.logger.Info("snapshot imported",
		"entities", len(entities),
		"edges", len(doc.Edges),
		"embeddings", len(doc.Embeddings),
		"model", manifest.EmbeddingModel)
	return &manifest, nil
}
