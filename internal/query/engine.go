package query

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/weftlab/weft/internal/embed"
	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/types"
)

// Engine answers read queries against the store's committed snapshot.
// It never mutates the graph; the only write it performs is the
// non-blocking query trace. Engines are stateless and safe for any
// number of concurrent callers, and the one potentially blocking step
// on the read path, the embedding call, carries a bounded timeout with
// automatic keyword-only degradation.
type Engine struct {
	store    graph.Store
	provider embed.Provider
	cfg      Config
	logger   *slog.Logger
}

// NewEngine creates an Engine over the given store and provider.
func NewEngine(store graph.Store, provider embed.Provider, cfg Config, logger *slog.Logger) (*Engine, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, types.NewValidationError("engine needs a store")
	}
	if provider == nil {
		return nil, types.NewValidationError("engine needs an embedding provider")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		provider: provider,
		cfg:      cfg,
		logger:   logger.With("component", "query.engine"),
	}, nil
}

// SemanticSearch embeds the query text and returns the top-k entities
// by cosine similarity. When the provider fails or times out the call
// degrades to keyword-only scoring and says so in the metadata; the
// caller still gets a ranking, not an error.
func (e *Engine) SemanticSearch(ctx context.Context, text string, k int) (*SearchResponse, error) {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		return nil, types.NewValidationError("query text cannot be empty")
	}

	snap := e.store.Snapshot()
	k = clampK(k, snap.Len())
	if snap.Len() == 0 || snap.EmbeddingCount() == 0 {
		return e.degrade(ctx, text, k, start, "store holds no embeddings")
	}

	vector, err := e.embedQuery(ctx, text)
	if err != nil {
		return e.degrade(ctx, text, k, start, err.Error())
	}

	hits, err := e.store.NearestNeighbors(ctx, vector, k)
	if err != nil {
		return nil, err
	}

	resp := &SearchResponse{
		Results: make([]Result, len(hits)),
		Meta:    Meta{Strategy: StrategySemantic},
	}
	for i, h := range hits {
		score := clamp01(h.Score)
		resp.Results[i] = Result{Entity: h.Entity, Score: score, SemanticScore: score}
	}
	e.finish(text, &resp.Meta, len(resp.Results), start)
	return resp, nil
}

// KeywordSearch returns the top-k entities by lexical overlap with the
// query text, bm25-ranked and normalized to [0,1]. It is both a fusion
// input and the documented fallback when embeddings are unavailable.
func (e *Engine) KeywordSearch(ctx context.Context, text string, k int) (*SearchResponse, error) {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		return nil, types.NewValidationError("query text cannot be empty")
	}
	k = clampK(k, e.store.Snapshot().Len())

	results, err := e.keywordResults(ctx, text, k)
	if err != nil {
		return nil, err
	}
	resp := &SearchResponse{Results: results, Meta: Meta{Strategy: StrategyKeyword}}
	e.finish(text, &resp.Meta, len(resp.Results), start)
	return resp, nil
}

// keywordResults fetches and normalizes lexical hits. The best bm25
// rank in the set maps to score 1; the rest scale against it.
func (e *Engine) keywordResults(ctx context.Context, text string, limit int) ([]Result, error) {
	hits, err := e.store.KeywordHits(ctx, text, limit)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(hits))
	best := 0.0
	if len(hits) > 0 {
		best = hits[0].Rank
	}
	for i, h := range hits {
		score := 1.0
		if best < 0 {
			score = clamp01(h.Rank / best)
		}
		results[i] = Result{Entity: h.Entity, Score: score, KeywordScore: score}
	}
	return results, nil
}

// degrade answers a semantic query with keyword-only results, flagging
// the degradation in the metadata. Degradation is a documented feature
// of the engine, not a failure: the response still carries a ranking.
func (e *Engine) degrade(ctx context.Context, text string, k int, start time.Time, reason string) (*SearchResponse, error) {
	e.logger.Warn("semantic search degraded to keyword-only", "reason", reason)
	results, err := e.keywordResults(ctx, text, k)
	if err != nil {
		return nil, err
	}
	resp := &SearchResponse{
		Results: results,
		Meta: Meta{
			Strategy:       StrategyKeywordDegraded,
			Degraded:       true,
			DegradedReason: reason,
		},
	}
	e.finish(text, &resp.Meta, len(resp.Results), start)
	return resp, nil
}

// embedQuery runs the one provider call on the read path under the
// configured bounded timeout, propagating any sooner caller deadline.
func (e *Engine) embedQuery(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.embedTimeout())
	defer cancel()

	vector, err := e.provider.Embed(ctx, text)
	if err != nil {
		return nil, types.NewEmbeddingUnavailableError("query embedding failed", err)
	}
	return vector, nil
}

// finish stamps the metadata and records the query trace off the hot
// path.
func (e *Engine) finish(text string, meta *Meta, count int, start time.Time) {
	meta.ResultCount = count
	meta.ElapsedMS = time.Since(start).Milliseconds()
	e.store.RecordTrace(types.NewQueryTrace(text, meta.Strategy, count, time.Since(start), meta.Degraded))
}

// clampK forces k into [1, size]. A store with no entities keeps k at 1
// and simply returns nothing.
func clampK(k, size int) int {
	if k < 1 {
		k = 1
	}
	if size > 0 && k > size {
		k = size
	}
	return k
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// incidentEdges returns every edge touching id exactly once, treating
// the graph as undirected for traversal. Symmetric edges already appear
// in both accessors, so only directed inbound edges come from EdgesTo.
func incidentEdges(snap *graph.Snapshot, id types.ID) []*graph.Edge {
	from := snap.EdgesFrom(id)
	edges := make([]*graph.Edge, 0, len(from))
	edges = append(edges, from...)
	for _, edge := range snap.EdgesTo(id) {
		if !edge.Type.Symmetric() {
			edges = append(edges, edge)
		}
	}
	return edges
}
