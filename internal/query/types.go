package query

import (
	"time"

	"github.com/weftlab/weft/internal/embed"
	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/types"
)

// Strategy names reported in response metadata and query traces. These
// are part of the engine's contract: every response states which
// strategy actually ran, including the degraded fallback.
const (
	StrategySemantic        = "semantic"
	StrategyKeyword         = "keyword"
	StrategyHybrid          = "hybrid"
	StrategyKeywordDegraded = "keyword-only (degraded)"
	StrategyNeighbors       = "neighbors"
	StrategyPaths           = "paths"
	StrategyExplain         = "explain"
)

// Config holds the query-engine tuning parameters.
type Config struct {
	// SemanticWeight and KeywordWeight are the default hybrid fusion
	// weights. Their sum must not exceed 1.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight" mapstructure:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight" json:"keyword_weight" mapstructure:"keyword_weight"`

	// GraphWeight is the reserved neighbor boost. It is only ever added
	// to candidates already found by semantic or keyword search; it
	// never promotes an entity into the result set on its own.
	GraphWeight float64 `yaml:"graph_weight" json:"graph_weight" mapstructure:"graph_weight"`

	// GraphBoostSeeds is how many top semantic hits have their 1-hop
	// neighborhoods inspected for the boost.
	GraphBoostSeeds int `yaml:"graph_boost_seeds" json:"graph_boost_seeds" mapstructure:"graph_boost_seeds"`

	// NeighborLimit caps how many nodes a Neighbors call reports; the
	// response is flagged truncated when the cap bites. Zero means
	// unlimited.
	NeighborLimit int `yaml:"neighbor_limit" json:"neighbor_limit" mapstructure:"neighbor_limit"`

	// EmbedTimeout bounds the one provider call on the read path,
	// clamped to [1s, 5s]. A sooner caller deadline still applies; on
	// timeout the query degrades to keyword-only.
	EmbedTimeout time.Duration `yaml:"embed_timeout" json:"embed_timeout" mapstructure:"embed_timeout"`
}

// DefaultConfig returns the documented default query parameters.
func DefaultConfig() Config {
	return Config{
		SemanticWeight:  0.60,
		KeywordWeight:   0.25,
		GraphWeight:     0.15,
		GraphBoostSeeds: 5,
		NeighborLimit:   200,
		EmbedTimeout:    embed.DefaultTimeout,
	}
}

// ApplyDefaults fills zero-valued fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.SemanticWeight == 0 && c.KeywordWeight == 0 {
		c.SemanticWeight = def.SemanticWeight
		c.KeywordWeight = def.KeywordWeight
	}
	if c.GraphWeight == 0 {
		c.GraphWeight = def.GraphWeight
	}
	if c.GraphBoostSeeds == 0 {
		c.GraphBoostSeeds = def.GraphBoostSeeds
	}
	if c.NeighborLimit == 0 {
		c.NeighborLimit = def.NeighborLimit
	}
	if c.EmbedTimeout == 0 {
		c.EmbedTimeout = def.EmbedTimeout
	}
}

// Validate checks the Config is usable.
func (c *Config) Validate() error {
	if c.SemanticWeight < 0 || c.KeywordWeight < 0 || c.GraphWeight < 0 {
		return types.NewError(types.ErrCodeConfigInvalid, "query weights cannot be negative")
	}
	if c.SemanticWeight+c.KeywordWeight > 1.0+1e-9 {
		return types.NewError(types.ErrCodeConfigInvalid,
			"semantic_weight and keyword_weight cannot sum above 1")
	}
	if c.GraphBoostSeeds < 0 {
		return types.NewError(types.ErrCodeConfigInvalid, "graph_boost_seeds cannot be negative")
	}
	if c.NeighborLimit < 0 {
		return types.NewError(types.ErrCodeConfigInvalid, "neighbor_limit cannot be negative")
	}
	if c.EmbedTimeout < 0 {
		return types.NewError(types.ErrCodeConfigInvalid, "embed_timeout cannot be negative")
	}
	return nil
}

// embedTimeout returns the configured provider timeout clamped to the
// documented [1s, 5s] window.
func (c Config) embedTimeout() time.Duration {
	d := c.EmbedTimeout
	if d == 0 {
		d = embed.DefaultTimeout
	}
	if d < embed.MinTimeout {
		d = embed.MinTimeout
	}
	if d > embed.MaxTimeout {
		d = embed.MaxTimeout
	}
	return d
}

// Options overrides the hybrid fusion weights for one call. Nil fields
// keep the configured defaults.
type Options struct {
	SemanticWeight *float64 `json:"semantic_weight,omitempty"`
	KeywordWeight  *float64 `json:"keyword_weight,omitempty"`
}

// Meta describes how a query was actually answered. Degraded reports
// the keyword-only fallback; Truncated reports a result set cut short
// by a bound rather than exhausted.
type Meta struct {
	Strategy       string `json:"strategy"`
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`
	Truncated      bool   `json:"truncated"`
	ElapsedMS      int64  `json:"elapsed_ms"`
	ResultCount    int    `json:"result_count"`
}

// Result is one ranked entity with its score decomposition.
type Result struct {
	Entity        *graph.Entity `json:"entity"`
	Score         float64       `json:"score"`
	SemanticScore float64       `json:"semantic_score,omitempty"`
	KeywordScore  float64       `json:"keyword_score,omitempty"`
	GraphBoost    float64       `json:"graph_boost,omitempty"`
}

// SearchResponse is the answer to a semantic, keyword, or hybrid query.
type SearchResponse struct {
	Results []Result `json:"results"`
	Meta    Meta     `json:"meta"`
}

// NeighborNode is one entity reached by bounded traversal, reported at
// its minimum hop distance from the start.
type NeighborNode struct {
	Entity   *graph.Entity `json:"entity"`
	Distance int           `json:"distance"`
}

// NeighborsResponse is the answer to a bounded-depth neighbors query.
type NeighborsResponse struct {
	Neighbors []NeighborNode `json:"neighbors"`
	Meta      Meta           `json:"meta"`
}

// Path is one route between two entities. Confidence is the product of
// the traversed edge strengths; a zero-length path (source == target)
// has confidence 1.
type Path struct {
	Entities   []types.ID    `json:"entities"`
	Edges      []*graph.Edge `json:"edges"`
	Confidence float64       `json:"confidence"`
}

// Hops reports the path length in edges.
func (p Path) Hops() int {
	return len(p.Edges)
}

// PathsResponse is the answer to a bounded path search.
type PathsResponse struct {
	Paths []Path `json:"paths"`
	Meta  Meta   `json:"meta"`
}

// Explanation justifies one result entity for one query, built only
// from fields already stored on the entity and its edges.
type Explanation struct {
	EntityID        types.ID `json:"entity_id"`
	Label           string   `json:"label"`
	MatchedTerms    []string `json:"matched_terms,omitempty"`
	MatchedUseCases []string `json:"matched_use_cases,omitempty"`
	Connections     []string `json:"connections,omitempty"`
	Text            string   `json:"text"`
}
