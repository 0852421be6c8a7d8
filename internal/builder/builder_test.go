package builder

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlab/weft/internal/catalog"
	"github.com/weftlab/weft/internal/embed"
	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/types"
)

// stubProvider returns a fixed vector per text so tests can dictate
// cosine similarities exactly. Unlisted texts get an axis vector far
// from everything else.
type stubProvider struct {
	dims    int
	vectors map[string][]float64
}

func (p *stubProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := p.vectors[text]; ok {
		return v, nil
	}
	v := make([]float64, p.dims)
	v[p.dims-1] = 1
	return v, nil
}

func (p *stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *stubProvider) Dimensions() int { return p.dims }
func (p *stubProvider) Model() string   { return "stub-v1" }
func (p *stubProvider) Health(ctx context.Context) types.HealthStatus {
	return types.Healthy("stub")
}

func newTestStore(t *testing.T, dims int) *graph.LocalStore {
	t.Helper()
	s, err := graph.OpenLocal(context.Background(), graph.LocalConfig{
		Path:       filepath.Join(t.TempDir(), "weft.db"),
		Dimensions: dims,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// scenarioCatalog is the canonical three-record catalog: two messaging
// components, one http component, one pattern joining A and C.
func scenarioCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Records: []catalog.Record{
			{ID: "a", Label: "Slack Notify", Description: "send a chat message to a channel", Category: "messaging"},
			{ID: "b", Label: "Discord Notify", Description: "send a chat message to a server", Category: "messaging"},
			{ID: "c", Label: "HTTP Request", Description: "call an external REST endpoint", Category: "http"},
		},
		Patterns: []catalog.Pattern{
			{ID: "p1", Members: []types.ID{"a", "c"}},
		},
	}
}

func edgeBetween(edges []*graph.Edge, a, b types.ID, rt graph.RelationType) *graph.Edge {
	for _, e := range edges {
		if e.Type != rt {
			continue
		}
		if (e.Source == a && e.Target == b) || (e.Source == b && e.Target == a) {
			return e
		}
	}
	return nil
}

func TestBuilder_ScenarioEdges(t *testing.T) {
	store := newTestStore(t, 3)
	provider := &stubProvider{dims: 3, vectors: map[string][]float64{
		"Slack Notify: send a chat message to a channel":  {1, 0, 0},
		"Discord Notify: send a chat message to a server": {0.99, 0.1, 0},
		"HTTP Request: call an external REST endpoint":    {0, 1, 0},
	}}
	b, err := New(store, provider, Config{}, nil)
	require.NoError(t, err)

	res, err := b.Build(context.Background(), scenarioCatalog())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Entities)
	assert.Equal(t, 3, res.Embedded)
	assert.False(t, res.Degraded)

	edges := store.Snapshot().Edges()
	assert.NotNil(t, edgeBetween(edges, "a", "b", graph.RelationBelongsToCategory),
		"same-category pair must earn belongs-to-category")
	assert.NotNil(t, edgeBetween(edges, "a", "c", graph.RelationUsedInPattern),
		"co-occurring pair must earn used-in-pattern")
	// cos(A,B) > 0.85 with these vectors.
	assert.NotNil(t, edgeBetween(edges, "a", "b", graph.RelationSimilarTo))
	assert.Nil(t, edgeBetween(edges, "b", "c", graph.RelationUsedInPattern))
}

func TestBuilder_StrengthBounds(t *testing.T) {
	store := newTestStore(t, 3)
	b, err := New(store, &stubProvider{dims: 3, vectors: map[string][]float64{}}, Config{}, nil)
	require.NoError(t, err)

	_, err = b.Build(context.Background(), scenarioCatalog())
	require.NoError(t, err)

	for _, e := range store.Snapshot().Edges() {
		assert.GreaterOrEqual(t, e.Strength, 0.0)
		assert.LessOrEqual(t, e.Strength, 1.0)
	}
}

func TestBuilder_SkipsBadRecords(t *testing.T) {
	store := newTestStore(t, 3)
	b, err := New(store, &stubProvider{dims: 3}, Config{}, nil)
	require.NoError(t, err)

	cat := scenarioCatalog()
	cat.Records = append(cat.Records,
		catalog.Record{ID: "", Label: "no id"},
		catalog.Record{ID: "d", Label: ""},
	)

	res, err := b.Build(context.Background(), cat)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Entities)
	assert.Len(t, res.Skipped, 2)
}

func TestBuilder_ZeroEntitiesFails(t *testing.T) {
	store := newTestStore(t, 3)
	b, err := New(store, &stubProvider{dims: 3}, Config{}, nil)
	require.NoError(t, err)

	_, err = b.Build(context.Background(), &catalog.Catalog{
		Records: []catalog.Record{{ID: "", Label: "broken"}},
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeBuildFailed))

	// The failed build must not hold the build slot.
	txn, err := store.BeginBuild(context.Background())
	require.NoError(t, err)
	txn.Abort()
}

func TestBuilder_NoDanglingEdgesFromHints(t *testing.T) {
	store := newTestStore(t, 3)
	b, err := New(store, &stubProvider{dims: 3}, Config{}, nil)
	require.NoError(t, err)

	cat := scenarioCatalog()
	cat.Records[0].Requires = []types.ID{"c", "ghost"}
	cat.Records[1].Solves = []types.ID{"missing"}
	cat.Patterns = append(cat.Patterns, catalog.Pattern{ID: "p2", Members: []types.ID{"a", "phantom"}})

	res, err := b.Build(context.Background(), cat)
	require.NoError(t, err)
	assert.NotEmpty(t, res.SkippedHints)

	snap := store.Snapshot()
	for _, e := range snap.Edges() {
		assert.True(t, snap.Has(e.Source), "edge source %s must exist", e.Source)
		assert.True(t, snap.Has(e.Target), "edge target %s must exist", e.Target)
	}
	assert.NotNil(t, edgeBetween(snap.Edges(), "a", "c", graph.RelationRequires))
}

func TestBuilder_RandomizedCatalogsNeverCommitDanglingEdges(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	categories := []string{"messaging", "http", "storage", "scheduling", "general"}

	for round := 0; round < 5; round++ {
		t.Run(fmt.Sprintf("round_%d", round), func(t *testing.T) {
			n := 10 + rng.Intn(11)
			ids := make([]types.ID, n)
			cat := &catalog.Catalog{}
			for i := range ids {
				ids[i] = types.ID(fmt.Sprintf("comp-%d-%d", round, i))
				rec := catalog.Record{
					ID:          ids[i],
					Label:       fmt.Sprintf("Component %d", i),
					Description: fmt.Sprintf("does task %d in round %d", i, round),
					Category:    categories[rng.Intn(len(categories))],
				}
				// Hints point at a mix of real and nonexistent ids.
				if rng.Intn(3) == 0 {
					rec.Requires = []types.ID{ids[rng.Intn(n)], types.ID(fmt.Sprintf("ghost-%d", i))}
				}
				if rng.Intn(4) == 0 {
					rec.Solves = []types.ID{types.ID(fmt.Sprintf("missing-%d", i))}
				}
				cat.Records = append(cat.Records, rec)
			}
			for p := 0; p < 3+rng.Intn(4); p++ {
				members := []types.ID{ids[rng.Intn(n)], ids[rng.Intn(n)]}
				if rng.Intn(2) == 0 {
					members = append(members, types.ID(fmt.Sprintf("phantom-%d", p)))
				}
				cat.Patterns = append(cat.Patterns, catalog.Pattern{
					ID:      fmt.Sprintf("pat-%d-%d", round, p),
					Members: members,
				})
			}

			store := newTestStore(t, 3)
			b, err := New(store, &stubProvider{dims: 3}, Config{}, nil)
			require.NoError(t, err)
			_, err = b.Build(context.Background(), cat)
			require.NoError(t, err)

			snap := store.Snapshot()
			for _, e := range snap.Edges() {
				assert.True(t, snap.Has(e.Source), "edge source %s must exist", e.Source)
				assert.True(t, snap.Has(e.Target), "edge target %s must exist", e.Target)
				assert.GreaterOrEqual(t, e.Strength, 0.0)
				assert.LessOrEqual(t, e.Strength, 1.0)
			}
		})
	}
}

func TestBuilder_TriggeredByFromPatternOrder(t *testing.T) {
	store := newTestStore(t, 3)
	b, err := New(store, &stubProvider{dims: 3}, Config{}, nil)
	require.NoError(t, err)

	cat := &catalog.Catalog{
		Records: []catalog.Record{
			{ID: "cron", Label: "Cron Trigger", Kind: catalog.KindTrigger, Category: "scheduling"},
			{ID: "mail", Label: "Send Mail", Kind: catalog.KindAction, Category: "messaging"},
		},
		Patterns: []catalog.Pattern{
			{ID: "daily-digest", Members: []types.ID{"cron", "mail"}},
		},
	}
	_, err = b.Build(context.Background(), cat)
	require.NoError(t, err)

	edges := store.Snapshot().Edges()
	e := edgeBetween(edges, "mail", "cron", graph.RelationTriggeredBy)
	require.NotNil(t, e)
	assert.Equal(t, types.ID("mail"), e.Source)
	assert.Equal(t, types.ID("cron"), e.Target)
}

func TestBuilder_EmbeddingFailureDegrades(t *testing.T) {
	store := newTestStore(t, embed.DefaultDimensions)
	mock := embed.NewMockProvider()
	mock.SetBatchError(types.NewEmbeddingUnavailableError("provider down", nil))

	b, err := New(store, mock, Config{MaxRetries: 1, RetryBaseDelay: 1}, nil)
	require.NoError(t, err)

	res, err := b.Build(context.Background(), scenarioCatalog())
	require.NoError(t, err, "embedding failure must degrade, not abort")
	assert.True(t, res.Degraded)
	assert.Equal(t, 3, res.EmbeddingFailures)
	assert.Equal(t, 0, res.Embedded)

	// Entities exist but carry no vectors and are invisible to
	// nearest-neighbor search.
	snap := store.Snapshot()
	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, 0, snap.EmbeddingCount())
}

func TestBuilder_EmbeddingRetryRecovers(t *testing.T) {
	store := newTestStore(t, embed.DefaultDimensions)
	mock := embed.NewMockProvider()
	mock.FailBatches(1)

	b, err := New(store, mock, Config{MaxRetries: 2, RetryBaseDelay: 1}, nil)
	require.NoError(t, err)

	res, err := b.Build(context.Background(), scenarioCatalog())
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, 3, res.Embedded)
}

func TestBuilder_RebuildIdempotent(t *testing.T) {
	store := newTestStore(t, 3)
	provider := &stubProvider{dims: 3, vectors: map[string][]float64{
		"Slack Notify: send a chat message to a channel":  {1, 0, 0},
		"Discord Notify: send a chat message to a server": {0.9, 0.3, 0},
		"HTTP Request: call an external REST endpoint":    {0, 1, 0},
	}}
	b, err := New(store, provider, Config{}, nil)
	require.NoError(t, err)

	first, err := b.Build(context.Background(), scenarioCatalog())
	require.NoError(t, err)
	strengths := map[string]float64{}
	for _, e := range store.Snapshot().Edges() {
		strengths[e.LogicalKey()] = e.Strength
	}

	second, err := b.Build(context.Background(), scenarioCatalog())
	require.NoError(t, err)

	assert.Equal(t, first.Entities, second.Entities)
	assert.Equal(t, first.Edges, second.Edges)
	snap := store.Snapshot()
	assert.Equal(t, len(strengths), snap.EdgeCount())
	for _, e := range snap.Edges() {
		prev, ok := strengths[e.LogicalKey()]
		require.True(t, ok, "edge %s must survive the rebuild", e.LogicalKey())
		assert.InDelta(t, prev, e.Strength, 1e-9)
	}
}

func TestBuilder_SecondBuildRejected(t *testing.T) {
	store := newTestStore(t, 3)
	b, err := New(store, &stubProvider{dims: 3}, Config{}, nil)
	require.NoError(t, err)

	txn, err := store.BeginBuild(context.Background())
	require.NoError(t, err)
	defer txn.Abort()

	_, err = b.Build(context.Background(), scenarioCatalog())
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeBuildInProgress))
}

func TestBuilder_FanoutCap(t *testing.T) {
	store := newTestStore(t, 3)
	b, err := New(store, &stubProvider{dims: 3}, Config{MaxEdgesPerEntity: 2}, nil)
	require.NoError(t, err)

	// Six records in one category: uncapped inference would give every
	// node five belongs-to-category edges.
	cat := &catalog.Catalog{}
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		cat.Records = append(cat.Records, catalog.Record{
			ID: types.ID(id), Label: id + " connector", Category: "data",
		})
	}
	_, err = b.Build(context.Background(), cat)
	require.NoError(t, err)

	// The cap is per endpoint: an edge survives when either endpoint
	// ranks it, so incident counts can exceed the cap but stay bounded
	// by 2*cap.
	counts := map[types.ID]int{}
	for _, e := range store.Snapshot().Edges() {
		counts[e.Source]++
		counts[e.Target]++
	}
	for id, n := range counts {
		assert.LessOrEqual(t, n, 4, "entity %s fan-out must stay bounded", id)
	}
	assert.Less(t, store.Snapshot().EdgeCount(), 15)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		wantOK bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"similarity above one", func(c *Config) { c.SimilarityThreshold = 1.5 }, false},
		{"similar below candidate", func(c *Config) { c.SimilarThreshold = 0.5 }, false},
		{"zero cap", func(c *Config) { c.MaxEdgesPerEntity = -1 }, false},
		{"weights above one", func(c *Config) {
			c.StrengthSimilarityWeight = 0.8
			c.StrengthCooccurWeight = 0.4
		}, false},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestExtractEntity_Heuristics(t *testing.T) {
	rec := &catalog.Record{
		ID:          "slack-post",
		Label:       "Slack Post Message",
		Description: "Send a chat notification to a Slack channel using an API key. Watch the rate limit.",
		Kind:        catalog.KindAction,
	}
	ent, err := extractEntity(rec)
	require.NoError(t, err)

	assert.Equal(t, graph.CategoryMessaging, ent.Category)

	useCases, ok := ent.Metadata.GetStrings(types.MetaKeyUseCases)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(useCases), 2)
	assert.LessOrEqual(t, len(useCases), 6)

	prereqs, ok := ent.Metadata.GetStrings(types.MetaKeyPrerequisites)
	require.True(t, ok)
	assert.NotEmpty(t, prereqs)

	pitfalls, ok := ent.Metadata.GetStrings(types.MetaKeyPitfalls)
	require.True(t, ok)
	assert.NotEmpty(t, pitfalls)

	// Success rate stays unknown; the builder never fabricates one.
	_, known := ent.Metadata.GetNumber(types.MetaKeySuccessRate)
	assert.False(t, known)

	kind, _ := ent.Metadata.GetString(types.MetaKeyKind)
	assert.Equal(t, catalog.KindAction, kind)
}

func TestExtractEntity_CarriesForwardUsageMetadata(t *testing.T) {
	rec := &catalog.Record{
		ID:    "mail",
		Label: "Send Mail",
		Metadata: types.Metadata{
			types.MetaKeySuccessRate: types.MetaNumber(0.75),
			types.MetaKeyUsageCount:  types.MetaNumber(12),
		},
	}
	ent, err := extractEntity(rec)
	require.NoError(t, err)

	rate, ok := ent.Metadata.GetNumber(types.MetaKeySuccessRate)
	require.True(t, ok)
	assert.Equal(t, 0.75, rate)
	usage, ok := ent.Metadata.GetNumber(types.MetaKeyUsageCount)
	require.True(t, ok)
	assert.Equal(t, 12.0, usage)
}

func TestInferEdges_CompatibleNeedsRepeatedCooccurrence(t *testing.T) {
	cfg := DefaultConfig()
	entities := []*graph.Entity{
		graph.NewEntity("a", "A").WithCategory(graph.CategoryMessaging).WithEmbedding([]float64{1, 0, 0}),
		graph.NewEntity("b", "B").WithCategory(graph.CategoryHTTP).WithEmbedding([]float64{0, 1, 0}),
	}
	once := []catalog.Pattern{{ID: "p1", Members: []types.ID{"a", "b"}}}
	twice := append(once, catalog.Pattern{ID: "p2", Members: []types.ID{"a", "b"}})

	edges := inferEdges(entities, once, cfg)
	assert.Nil(t, edgeBetween(edges, "a", "b", graph.RelationCompatibleWith),
		"one orthogonal co-occurrence must not imply compatibility")
	assert.NotNil(t, edgeBetween(edges, "a", "b", graph.RelationUsedInPattern))

	edges = inferEdges(entities, twice, cfg)
	assert.NotNil(t, edgeBetween(edges, "a", "b", graph.RelationCompatibleWith))
}

func TestInferEdges_DeterministicOrder(t *testing.T) {
	cfg := DefaultConfig()
	entities := []*graph.Entity{
		graph.NewEntity("a", "A").WithCategory(graph.CategoryData),
		graph.NewEntity("b", "B").WithCategory(graph.CategoryData),
		graph.NewEntity("c", "C").WithCategory(graph.CategoryData),
	}
	patterns := []catalog.Pattern{{ID: "p", Members: []types.ID{"a", "b", "c"}}}

	first := inferEdges(entities, patterns, cfg)
	second := inferEdges(entities, patterns, cfg)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].LogicalKey(), second[i].LogicalKey())
		assert.Equal(t, first[i].Strength, second[i].Strength)
	}
}

func TestEdgeStrength_Clamped(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg.MinEdgeStrength, edgeStrength(0, 0, 0, cfg))
	assert.InDelta(t, 1.0, edgeStrength(1, 3, 3, cfg), 1e-9)
	got := edgeStrength(math.Nextafter(1, 2), 5, 5, cfg)
	assert.LessOrEqual(t, got, 1.0)
}
