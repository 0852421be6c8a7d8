package builder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/weftlab/weft/internal/catalog"
	"github.com/weftlab/weft/internal/embed"
	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/types"
)

// SkipIssue records one catalog record the build left out.
type SkipIssue struct {
	ID     types.ID `json:"id"`
	Label  string   `json:"label,omitempty"`
	Reason string   `json:"reason"`
}

func (i SkipIssue) String() string {
	return fmt.Sprintf("record %s (%s) skipped: %s", i.ID, i.Label, i.Reason)
}

// Result is the accounting of one completed build.
type Result struct {
	Entities          int           `json:"entities"`
	Edges             int           `json:"edges"`
	Embedded          int           `json:"embedded"`
	Skipped           []SkipIssue   `json:"skipped,omitempty"`
	SkippedHints      []string      `json:"skipped_hints,omitempty"`
	EmbeddingFailures int           `json:"embedding_failures,omitempty"`
	Degraded          bool          `json:"degraded"`
	Elapsed           time.Duration `json:"elapsed"`
}

// Builder turns a flat catalog into the committed knowledge graph
// through a strict four-stage pipeline: entity extraction, embedding
// generation, relationship inference, and an atomic commit. Queries
// keep serving the previous snapshot for the whole build; any stage
// failure leaves that snapshot active.
type Builder struct {
	store    graph.Store
	provider embed.Provider
	cfg      Config
	logger   *slog.Logger
}

// New creates a Builder over the given store and embedding provider.
func New(store graph.Store, provider embed.Provider, cfg Config, logger *slog.Logger) (*Builder, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, types.NewValidationError("builder needs a store")
	}
	if provider == nil {
		return nil, types.NewValidationError("builder needs an embedding provider")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		store:    store,
		provider: provider,
		cfg:      cfg,
		logger:   logger.With("component", "builder"),
	}, nil
}

// Build runs the pipeline over the catalog and commits the result. A
// second concurrent call fails with BUILD_IN_PROGRESS. A record that
// fails extraction is skipped and logged; the build fails only when
// zero entities survive. Embedding failures retry with bounded backoff
// and then degrade to entities without vectors.
func (b *Builder) Build(ctx context.Context, cat *catalog.Catalog) (*Result, error) {
	start := time.Now()
	if cat == nil {
		return nil, types.NewValidationError("catalog cannot be nil")
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}

	txn, err := b.store.BeginBuild(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			txn.Abort()
		}
	}()

	res := &Result{}

	// Stage 1: extraction.
	entities := make([]*graph.Entity, 0, len(cat.Records))
	for i := range cat.Records {
		rec := &cat.Records[i]
		ent, extractErr := extractEntity(rec)
		if extractErr != nil {
			res.Skipped = append(res.Skipped, SkipIssue{ID: rec.ID, Label: rec.Label, Reason: extractErr.Error()})
			b.logger.Warn("catalog record skipped", "id", rec.ID, "error", extractErr)
			continue
		}
		entities = append(entities, ent)
	}
	if len(entities) == 0 {
		return nil, types.WrapError(types.ErrCodeBuildFailed,
			fmt.Sprintf("no usable entities in %d catalog records", len(cat.Records)), nil)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
	res.Entities = len(entities)

	// Stage 2: embeddings.
	if err := b.embedEntities(ctx, entities, res); err != nil {
		return nil, err
	}

	// Stage 3: relationship inference.
	index := make(map[types.ID]*graph.Entity, len(entities))
	for _, e := range entities {
		index[e.ID] = e
	}
	patterns := cat.ResolvePatterns()
	edges := inferEdges(entities, patterns, b.cfg)
	declared, hintIssues := hintEdges(cat.Records, patterns, index, b.cfg)
	edges = append(edges, declared...)
	for _, issue := range hintIssues {
		res.SkippedHints = append(res.SkippedHints, issue.String())
		b.logger.Warn("declared relationship skipped", "detail", issue.String())
	}
	res.Edges = len(edges)

	// Stage 4: atomic commit.
	set := &graph.GraphSet{
		Entities: entities,
		Edges:    edges,
		Meta: map[string]string{
			graph.MetaEmbeddingModel: b.provider.Model(),
		},
	}
	if err := txn.Commit(ctx, set); err != nil {
		return nil, err
	}
	committed = true

	res.Elapsed = time.Since(start)
	b.logger.Info("graph build finished",
		"entities", res.Entities,
		"edges", res.Edges,
		"embedded", res.Embedded,
		"skipped", len(res.Skipped),
		"degraded", res.Degraded,
		"elapsed", res.Elapsed)
	return res, nil
}

// embedEntities runs stage two: one provider call per batch of
// "label: description" texts. A batch that keeps failing after bounded
// retries leaves its entities without vectors; they are excluded from
// nearest-neighbor search until re-embedded, and the result records the
// degradation.
func (b *Builder) embedEntities(ctx context.Context, entities []*graph.Entity, res *Result) error {
	for from := 0; from < len(entities); from += b.cfg.BatchSize {
		to := from + b.cfg.BatchSize
		if to > len(entities) {
			to = len(entities)
		}
		batch := entities[from:to]

		texts := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = embedText(e)
		}

		vectors, err := b.embedWithRetry(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.EmbeddingFailures += len(batch)
			res.Degraded = true
			b.logger.Warn("embedding batch failed after retries; building without vectors",
				"batch_start", from, "batch_size", len(batch), "error", err)
			continue
		}
		if len(vectors) != len(batch) {
			return types.NewEmbeddingUnavailableError(
				fmt.Sprintf("provider returned %d vectors for %d texts", len(vectors), len(batch)), nil)
		}
		for i, e := range batch {
			e.Embedding = vectors[i]
			res.Embedded++
		}
	}
	return nil
}

// embedWithRetry retries transient provider failures with exponential
// backoff, honoring context cancellation between attempts.
func (b *Builder) embedWithRetry(ctx context.Context, texts []string) ([][]float64, error) {
	var lastErr error
	for attempt := 0; attempt <= b.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := b.cfg.RetryBaseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		vectors, err := b.provider.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !types.IsRetryable(err) {
			break
		}
	}
	return nil, types.NewEmbeddingUnavailableError("embedding batch failed", lastErr)
}

// embedText is the canonical text an entity is embedded from. Keeping
// it in one place keeps query-time and build-time embeddings
// comparable.
func embedText(e *graph.Entity) string {
	if e.Description == "" {
		return e.Label
	}
	return e.Label + ": " + e.Description
}
