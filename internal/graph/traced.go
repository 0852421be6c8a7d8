package graph

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/weftlab/weft/internal/types"
)

// Span attribute keys, following the "weft.graph.*" convention.
const (
	attrEntityID    = "weft.graph.entity_id"
	attrEdgeType    = "weft.graph.edge_type"
	attrResultCount = "weft.graph.result_count"
	attrTopK        = "weft.graph.top_k"
	attrDurationMS  = "weft.graph.duration_ms"
	attrQueryText   = "weft.graph.query_text"
)

// TracedStore wraps a Store with OpenTelemetry spans. Every operation
// that takes a context gets a span named "weft.graph.<op>" carrying a
// duration attribute; failures record the error and set the span
// status. Snapshot and RecordTrace stay untraced: both are
// non-blocking reads off the hot path.
type TracedStore struct {
	inner  Store
	tracer trace.Tracer
}

// TracedStoreOption configures a TracedStore.
type TracedStoreOption func(*TracedStore)

// NewTracedStore wraps inner with tracing through the given tracer.
func NewTracedStore(inner Store, tracer trace.Tracer, opts ...TracedStoreOption) *TracedStore {
	t := &TracedStore{inner: inner, tracer: tracer}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ Store = (*TracedStore)(nil)

// finishSpan records duration and outcome on a span.
func finishSpan(span trace.Span, start time.Time, err error) {
	span.SetAttributes(attribute.Float64(attrDurationMS,
		float64(time.Since(start).Microseconds())/1000.0))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

func (t *TracedStore) PutEntity(ctx context.Context, e *Entity) error {
	ctx, span := t.tracer.Start(ctx, "weft.graph.put_entity")
	defer span.End()
	if e != nil {
		span.SetAttributes(attribute.String(attrEntityID, e.ID.String()))
	}

	start := time.Now()
	err := t.inner.PutEntity(ctx, e)
	finishSpan(span, start, err)
	return err
}

func (t *TracedStore) GetEntity(ctx context.Context, id types.ID) (*Entity, error) {
	ctx, span := t.tracer.Start(ctx, "weft.graph.get_entity")
	defer span.End()
	span.SetAttributes(attribute.String(attrEntityID, id.String()))

	start := time.Now()
	ent, err := t.inner.GetEntity(ctx, id)
	finishSpan(span, start, err)
	return ent, err
}

func (t *TracedStore) PutEdge(ctx context.Context, e *Edge) error {
	ctx, span := t.tracer.Start(ctx, "weft.graph.put_edge")
	defer span.End()
	if e != nil {
		span.SetAttributes(attribute.String(attrEdgeType, e.Type.String()))
	}

	start := time.Now()
	err := t.inner.PutEdge(ctx, e)
	finishSpan(span, start, err)
	return err
}

func (t *TracedStore) EdgesFrom(ctx context.Context, id types.ID) ([]*Edge, error) {
	ctx, span := t.tracer.Start(ctx, "weft.graph.edges_from")
	defer span.End()
	span.SetAttributes(attribute.String(attrEntityID, id.String()))

	start := time.Now()
	edges, err := t.inner.EdgesFrom(ctx, id)
	span.SetAttributes(attribute.Int(attrResultCount, len(edges)))
	finishSpan(span, start, err)
	return edges, err
}

func (t *TracedStore) EdgesTo(ctx context.Context, id types.ID) ([]*Edge, error) {
	ctx, span := t.tracer.Start(ctx, "weft.graph.edges_to")
	defer span.End()
	span.SetAttributes(attribute.String(attrEntityID, id.String()))

	start := time.Now()
	edges, err := t.inner.EdgesTo(ctx, id)
	span.SetAttributes(attribute.Int(attrResultCount, len(edges)))
	finishSpan(span, start, err)
	return edges, err
}

func (t *TracedStore) NearestNeighbors(ctx context.Context, vector []float64, k int) ([]Neighbor, error) {
	ctx, span := t.tracer.Start(ctx, "weft.graph.nearest_neighbors")
	defer span.End()
	span.SetAttributes(
		attribute.Int(attrTopK, k),
		attribute.Int("weft.graph.vector_dim", len(vector)),
	)

	start := time.Now()
	hits, err := t.inner.NearestNeighbors(ctx, vector, k)
	span.SetAttributes(attribute.Int(attrResultCount, len(hits)))
	finishSpan(span, start, err)
	return hits, err
}

func (t *TracedStore) KeywordHits(ctx context.Context, text string, limit int) ([]KeywordHit, error) {
	ctx, span := t.tracer.Start(ctx, "weft.graph.keyword_hits")
	defer span.End()
	span.SetAttributes(
		attribute.String(attrQueryText, text),
		attribute.Int(attrTopK, limit),
	)

	start := time.Now()
	hits, err := t.inner.KeywordHits(ctx, text, limit)
	span.SetAttributes(attribute.Int(attrResultCount, len(hits)))
	finishSpan(span, start, err)
	return hits, err
}

func (t *TracedStore) SetMetadata(ctx context.Context, key, value string) error {
	ctx, span := t.tracer.Start(ctx, "weft.graph.set_metadata")
	defer span.End()
	span.SetAttributes(attribute.String("weft.graph.meta_key", key))

	start := time.Now()
	err := t.inner.SetMetadata(ctx, key, value)
	finishSpan(span, start, err)
	return err
}

func (t *TracedStore) GetMetadata(ctx context.Context, key string) (string, error) {
	ctx, span := t.tracer.Start(ctx, "weft.graph.get_metadata")
	defer span.End()
	span.SetAttributes(attribute.String("weft.graph.meta_key", key))

	start := time.Now()
	v, err := t.inner.GetMetadata(ctx, key)
	finishSpan(span, start, err)
	return v, err
}

func (t *TracedStore) UpdateEntityMetadata(ctx context.Context, id types.ID, patch MetadataPatch) error {
	ctx, span := t.tracer.Start(ctx, "weft.graph.update_entity_metadata")
	defer span.End()
	span.SetAttributes(attribute.String(attrEntityID, id.String()))

	start := time.Now()
	err := t.inner.UpdateEntityMetadata(ctx, id, patch)
	finishSpan(span, start, err)
	return err
}

func (t *TracedStore) Stats(ctx context.Context) (*StoreStats, error) {
	ctx, span := t.tracer.Start(ctx, "weft.graph.stats")
	defer span.End()

	start := time.Now()
	st, err := t.inner.Stats(ctx)
	finishSpan(span, start, err)
	return st, err
}

func (t *TracedStore) Snapshot() *Snapshot {
	return t.inner.Snapshot()
}

func (t *TracedStore) BeginBuild(ctx context.Context) (BuildTxn, error) {
	ctx, span := t.tracer.Start(ctx, "weft.graph.begin_build")
	defer span.End()

	start := time.Now()
	txn, err := t.inner.BeginBuild(ctx)
	finishSpan(span, start, err)
	if err != nil {
		return nil, err
	}
	return &tracedBuildTxn{inner: txn, tracer: t.tracer}, nil
}

func (t *TracedStore) RecordTrace(qt types.QueryTrace) {
	t.inner.RecordTrace(qt)
}

func (t *TracedStore) RecentTraces(ctx context.Context, n int) ([]types.QueryTrace, error) {
	return t.inner.RecentTraces(ctx, n)
}

func (t *TracedStore) Health(ctx context.Context) types.HealthStatus {
	return t.inner.Health(ctx)
}

func (t *TracedStore) Close() error {
	return t.inner.Close()
}

// tracedBuildTxn spans the commit, the single most expensive store
// operation.
type tracedBuildTxn struct {
	inner  BuildTxn
	tracer trace.Tracer
}

func (t *tracedBuildTxn) Commit(ctx context.Context, set *GraphSet) error {
	ctx, span := t.tracer.Start(ctx, "weft.graph.build_commit")
	defer span.End()
	if set != nil {
		span.SetAttributes(
			attribute.Int("weft.graph.entity_count", len(set.Entities)),
			attribute.Int("weft.graph.edge_count", len(set.Edges)),
		)
	}

	start := time.Now()
	err := t.inner.Commit(ctx, set)
	finishSpan(span, start, err)
	return err
}

func (t *tracedBuildTxn) Abort() {
	t.inner.Abort()
}
