package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"

	"github.com/weftlab/weft/internal/types"
)

// LocalProvider generates embeddings offline by hashing the model
// version and text into a seeded pseudo-random vector. The same
// model+text pair always produces the same vector, on every platform,
// so rebuilds and exported snapshots stay reproducible without any
// network dependency. Changing the model label changes every vector.
//
// The vectors carry no semantic meaning beyond identity: two texts are
// either identical (cosine 1) or effectively orthogonal. Lexical search
// carries relevance when this provider is active; the hybrid engine is
// built to tolerate that.
type LocalProvider struct {
	dimensions int
	model      string
}

// NewLocalProvider creates the offline deterministic provider.
func NewLocalProvider(cfg Config) (*LocalProvider, error) {
	cfg.ApplyDefaults()
	if cfg.Dimensions <= 0 {
		return nil, types.NewError(types.ErrCodeConfigInvalid, "embedding dimensions must be positive")
	}
	return &LocalProvider{
		dimensions: cfg.Dimensions,
		model:      cfg.Model,
	}, nil
}

// Embed generates a deterministic embedding for a single text.
func (p *LocalProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return deterministicVector(p.model, text, p.dimensions), nil
}

// EmbedBatch generates deterministic embeddings for multiple texts.
func (p *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = deterministicVector(p.model, text, p.dimensions)
	}
	return vectors, nil
}

// Dimensions returns the dimensionality of the embedding vectors.
func (p *LocalProvider) Dimensions() int {
	return p.dimensions
}

// Model returns the local model version label.
func (p *LocalProvider) Model() string {
	return p.model
}

// Health always reports healthy; there is nothing to reach.
func (p *LocalProvider) Health(ctx context.Context) types.HealthStatus {
	return types.Healthy("local provider ready")
}

// deterministicVector derives a unit-length vector from the model
// version and text. A SHA-256 hash of both seeds a pseudo-random
// generator producing values in [-1, 1], then the vector is normalized.
func deterministicVector(model, text string, dims int) []float64 {
	hash := sha256.Sum256([]byte(model + "\x00" + text))
	seed := int64(binary.BigEndian.Uint64(hash[:8]))
	rng := rand.New(rand.NewSource(seed))

	vector := make([]float64, dims)
	for i := range vector {
		vector[i] = (rng.Float64() * 2) - 1
	}

	return normalizeVector(vector)
}

// normalizeVector normalizes a vector to unit length in place and
// returns it. Zero vectors are returned unchanged.
func normalizeVector(v []float64) []float64 {
	var sum float64
	for _, val := range v {
		sum += val * val
	}
	if sum == 0 {
		return v
	}

	norm := math.Sqrt(sum)
	for i, val := range v {
		v[i] = val / norm
	}
	return v
}
