package builder

import (
	"time"

	"github.com/weftlab/weft/internal/types"
)

// Config holds the graph-construction tuning parameters. The thresholds
// and caps are configuration with documented defaults, not constants:
// catalogs differ in density and the right values are found by looking
// at the resulting graph, not decided up front.
type Config struct {
	// SimilarityThreshold is the cosine similarity at which a pair of
	// entities becomes a relationship candidate.
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold" mapstructure:"similarity_threshold"`

	// SimilarThreshold is the cosine similarity at which a candidate
	// pair additionally earns a similar-to edge.
	SimilarThreshold float64 `yaml:"similar_threshold" json:"similar_threshold" mapstructure:"similar_threshold"`

	// CompatibleMinCooccur is how many shared patterns a pair needs
	// before co-occurrence alone earns a compatible-with edge.
	CompatibleMinCooccur int `yaml:"compatible_min_cooccur" json:"compatible_min_cooccur" mapstructure:"compatible_min_cooccur"`

	// MaxEdgesPerEntity caps inferred fan-out, keeping the strongest
	// edges, so the edge count stays O(n * cap). Declared catalog hints
	// (requires, solves, triggered-by) are exempt.
	MaxEdgesPerEntity int `yaml:"max_edges_per_entity" json:"max_edges_per_entity" mapstructure:"max_edges_per_entity"`

	// StrengthSimilarityWeight and StrengthCooccurWeight combine cosine
	// similarity and normalized co-occurrence into edge strength.
	StrengthSimilarityWeight float64 `yaml:"strength_similarity_weight" json:"strength_similarity_weight" mapstructure:"strength_similarity_weight"`
	StrengthCooccurWeight    float64 `yaml:"strength_cooccur_weight" json:"strength_cooccur_weight" mapstructure:"strength_cooccur_weight"`

	// MinEdgeStrength floors inferred edges so a category pairing with
	// no other signal still carries traversable weight.
	MinEdgeStrength float64 `yaml:"min_edge_strength" json:"min_edge_strength" mapstructure:"min_edge_strength"`

	// HintStrength is the fixed strength of edges declared directly in
	// the catalog (requires, solves, triggered-by).
	HintStrength float64 `yaml:"hint_strength" json:"hint_strength" mapstructure:"hint_strength"`

	// BatchSize is how many entities go into one embedding call.
	BatchSize int `yaml:"batch_size" json:"batch_size" mapstructure:"batch_size"`

	// MaxRetries bounds embedding retry attempts per batch; after the
	// retries are exhausted the affected entities are built without
	// vectors and excluded from semantic search until re-embedded.
	MaxRetries int `yaml:"max_retries" json:"max_retries" mapstructure:"max_retries"`

	// RetryBaseDelay seeds the exponential backoff between retries.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" json:"retry_base_delay" mapstructure:"retry_base_delay"`
}

// DefaultConfig returns the documented default build parameters.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold:      0.60,
		SimilarThreshold:         0.85,
		CompatibleMinCooccur:     2,
		MaxEdgesPerEntity:        30,
		StrengthSimilarityWeight: 0.7,
		StrengthCooccurWeight:    0.3,
		MinEdgeStrength:          0.1,
		HintStrength:             0.9,
		BatchSize:                32,
		MaxRetries:               3,
		RetryBaseDelay:           200 * time.Millisecond,
	}
}

// ApplyDefaults fills zero-valued fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = def.SimilarityThreshold
	}
	if c.SimilarThreshold == 0 {
		c.SimilarThreshold = def.SimilarThreshold
	}
	if c.CompatibleMinCooccur == 0 {
		c.CompatibleMinCooccur = def.CompatibleMinCooccur
	}
	if c.MaxEdgesPerEntity == 0 {
		c.MaxEdgesPerEntity = def.MaxEdgesPerEntity
	}
	if c.StrengthSimilarityWeight == 0 && c.StrengthCooccurWeight == 0 {
		c.StrengthSimilarityWeight = def.StrengthSimilarityWeight
		c.StrengthCooccurWeight = def.StrengthCooccurWeight
	}
	if c.MinEdgeStrength == 0 {
		c.MinEdgeStrength = def.MinEdgeStrength
	}
	if c.HintStrength == 0 {
		c.HintStrength = def.HintStrength
	}
	if c.BatchSize == 0 {
		c.BatchSize = def.BatchSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = def.RetryBaseDelay
	}
}

// Validate checks the Config is usable for a build.
func (c *Config) Validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return types.NewError(types.ErrCodeConfigInvalid,
			"similarity_threshold must be within [0,1]")
	}
	if c.SimilarThreshold < 0 || c.SimilarThreshold > 1 {
		return types.NewError(types.ErrCodeConfigInvalid,
			"similar_threshold must be within [0,1]")
	}
	if c.SimilarThreshold < c.SimilarityThreshold {
		return types.NewError(types.ErrCodeConfigInvalid,
			"similar_threshold cannot be below similarity_threshold")
	}
	if c.CompatibleMinCooccur < 1 {
		return types.NewError(types.ErrCodeConfigInvalid,
			"compatible_min_cooccur must be positive")
	}
	if c.MaxEdgesPerEntity < 1 {
		return types.NewError(types.ErrCodeConfigInvalid,
			"max_edges_per_entity must be positive")
	}
	if c.StrengthSimilarityWeight < 0 || c.StrengthCooccurWeight < 0 {
		return types.NewError(types.ErrCodeConfigInvalid,
			"strength weights cannot be negative")
	}
	if c.StrengthSimilarityWeight+c.StrengthCooccurWeight <= 0 {
		return types.NewError(types.ErrCodeConfigInvalid,
			"strength weights cannot both be zero")
	}
	if c.StrengthSimilarityWeight+c.StrengthCooccurWeight > 1.0+1e-9 {
		return types.NewError(types.ErrCodeConfigInvalid,
			"strength weights cannot sum above 1")
	}
	if c.MinEdgeStrength < 0 || c.MinEdgeStrength > 1 {
		return types.NewError(types.ErrCodeConfigInvalid,
			"min_edge_strength must be within [0,1]")
	}
	if c.HintStrength < 0 || c.HintStrength > 1 {
		return types.NewError(types.ErrCodeConfigInvalid,
			"hint_strength must be within [0,1]")
	}
	if c.BatchSize < 1 {
		return types.NewError(types.ErrCodeConfigInvalid,
			"batch_size must be positive")
	}
	if c.MaxRetries < 0 {
		return types.NewError(types.ErrCodeConfigInvalid,
			"max_retries cannot be negative")
	}
	if c.RetryBaseDelay < 0 {
		return types.NewError(types.ErrCodeConfigInvalid,
			"retry_base_delay cannot be negative")
	}
	return nil
}
