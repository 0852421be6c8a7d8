package graph

import (
	"context"
	"time"

	"github.com/weftlab/weft/internal/types"
)

// Store-wide metadata keys written at build commit and read by the
// stats and export surfaces.
const (
	MetaBuiltAt        = "built_at"
	MetaBuildID        = "build_id"
	MetaEmbeddingModel = "embedding_model"
	MetaEmbeddingDims  = "embedding_dimensions"
	MetaEntityCount    = "entity_count"
	MetaEdgeCount      = "edge_count"
)

// KeywordHit is one lexical match from the full-text index. Rank is the
// raw bm25 value: negative, with smaller (more negative) meaning a
// better match.
type KeywordHit struct {
	Entity *Entity `json:"entity"`
	Rank   float64 `json:"rank"`
}

// MetadataPatch is the narrow write surface for usage feedback. Nil
// pointer fields leave the current value untouched; UsageDelta adds to
// the usage counter, creating it at the delta when absent.
type MetadataPatch struct {
	SuccessRate *float64 `json:"success_rate,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	UsageDelta  float64  `json:"usage_delta,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p MetadataPatch) IsZero() bool {
	return p.SuccessRate == nil && p.Rating == nil && p.UsageDelta == 0
}

// StoreStats summarizes the committed graph.
type StoreStats struct {
	Entities       int                  `json:"entities"`
	Edges          int                  `json:"edges"`
	Embeddings     int                  `json:"embeddings"`
	AvgStrength    float64              `json:"avg_strength"`
	ByCategory     map[Category]int     `json:"by_category"`
	ByRelationType map[RelationType]int `json:"by_relation_type"`
	BuiltAt        time.Time            `json:"built_at,omitempty"`
	BuildID        string               `json:"build_id,omitempty"`
	EmbeddingModel string               `json:"embedding_model,omitempty"`
	Dimensions     int                  `json:"dimensions,omitempty"`
	Path           string               `json:"path,omitempty"`
}

// GraphSet is the staged output of a build: the complete entity and
// edge population that replaces the committed graph, plus store-wide
// metadata recorded with it. Edges keep their slice order as the
// committed insertion order.
type GraphSet struct {
	Entities []*Entity
	Edges    []*Edge
	Meta     map[string]string
}

// BuildTxn is the builder's exclusive commit surface. Exactly one build
// transaction exists at a time; Commit atomically replaces the graph
// and swaps the read snapshot, Abort releases the build slot leaving
// the previous graph untouched. Either must be called exactly once.
type BuildTxn interface {
	Commit(ctx context.Context, set *GraphSet) error
	Abort()
}

// Store is the knowledge-graph storage contract. One writer mutates at
// a time; readers always see the last committed snapshot and are never
// blocked by writes or rebuilds.
type Store interface {
	// PutEntity inserts or overwrites one entity by id.
	PutEntity(ctx context.Context, e *Entity) error

	// GetEntity returns the entity with its embedding hydrated, or a
	// NOT_FOUND error.
	GetEntity(ctx context.Context, id types.ID) (*Entity, error)

	// PutEdge inserts or overwrites one edge by logical key. Both
	// endpoints must exist.
	PutEdge(ctx context.Context, e *Edge) error

	// EdgesFrom returns edges incident to id as a source, in insertion
	// order. Symmetric edges appear in both accessors.
	EdgesFrom(ctx context.Context, id types.ID) ([]*Edge, error)

	// EdgesTo returns edges incident to id as a target, in insertion
	// order.
	EdgesTo(ctx context.Context, id types.ID) ([]*Edge, error)

	// NearestNeighbors returns the top-k entities by descending cosine
	// similarity, ties broken by ascending id.
	NearestNeighbors(ctx context.Context, vector []float64, k int) ([]Neighbor, error)

	// KeywordHits returns bm25-ranked lexical matches for the query
	// text, best first.
	KeywordHits(ctx context.Context, text string, limit int) ([]KeywordHit, error)

	// SetMetadata writes one store-wide key.
	SetMetadata(ctx context.Context, key, value string) error

	// GetMetadata reads one store-wide key, or a NOT_FOUND error.
	GetMetadata(ctx context.Context, key string) (string, error)

	// UpdateEntityMetadata applies a usage-feedback patch to one
	// entity. Build-derived fields are never touched.
	UpdateEntityMetadata(ctx context.Context, id types.ID, patch MetadataPatch) error

	// Stats summarizes the committed graph.
	Stats(ctx context.Context) (*StoreStats, error)

	// Snapshot returns the current immutable read view.
	Snapshot() *Snapshot

	// BeginBuild opens the exclusive build transaction; a second
	// concurrent call fails with BUILD_IN_PROGRESS.
	BeginBuild(ctx context.Context) (BuildTxn, error)

	// RecordTrace enqueues a query trace without blocking. Traces may
	// be dropped under pressure.
	RecordTrace(t types.QueryTrace)

	// RecentTraces returns the n most recent query traces, newest
	// first.
	RecentTraces(ctx context.Context, n int) ([]types.QueryTrace, error)

	// Health reports storage health.
	Health(ctx context.Context) types.HealthStatus

	// Close flushes pending traces and releases the store.
	Close() error
}
