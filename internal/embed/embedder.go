package embed

import (
	"context"
	"time"

	"github.com/weftlab/weft/internal/types"
)

// Provider generates embedding vectors from text content.
// Implementations must be thread-safe for concurrent access.
type Provider interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimensionality of embedding vectors.
	Dimensions() int

	// Model returns the name of the embedding model being used.
	Model() string

	// Health returns the health status of the provider.
	Health(ctx context.Context) types.HealthStatus
}

// Request timeout bounds. A provider call never waits longer than
// MaxTimeout and is never cut shorter than MinTimeout, whatever the
// configuration says; a sooner caller deadline still applies.
const (
	MinTimeout     = 1 * time.Second
	MaxTimeout     = 5 * time.Second
	DefaultTimeout = 3 * time.Second
)

// DefaultDimensions is the vector width used when none is configured.
const DefaultDimensions = 384

// Config holds configuration for embedding providers.
type Config struct {
	// Provider specifies which implementation to use.
	// Options: "local", "openai"
	Provider string `yaml:"provider" json:"provider" mapstructure:"provider"`

	// Model is the specific embedding model to use.
	// For OpenAI: "text-embedding-3-small" or "text-embedding-3-large".
	// For local: a version label baked into the generated vectors.
	Model string `yaml:"model" json:"model" mapstructure:"model"`

	// Dimensions is the vector width every embedding must have.
	Dimensions int `yaml:"dimensions" json:"dimensions" mapstructure:"dimensions"`

	// APIKey is the API key for the embedding provider.
	// Can also be provided via environment variable (OPENAI_API_KEY).
	APIKey string `yaml:"api_key" json:"api_key" mapstructure:"api_key"`

	// BaseURL is the base URL for the embedding API.
	// For OpenAI, this defaults to "https://api.openai.com/v1"
	BaseURL string `yaml:"base_url" json:"base_url" mapstructure:"base_url"`

	// BatchSize is how many texts go into one EmbedBatch call.
	BatchSize int `yaml:"batch_size" json:"batch_size" mapstructure:"batch_size"`

	// MaxRetries is the maximum number of retry attempts for transient failures.
	MaxRetries int `yaml:"max_retries" json:"max_retries" mapstructure:"max_retries"`

	// Timeout is the per-request timeout in seconds, clamped to [1, 5].
	Timeout int `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
}

// DefaultConfig returns the offline local provider configuration.
func DefaultConfig() Config {
	return Config{
		Provider:   string(ProviderLocal),
		Model:      "local-hash-v1",
		Dimensions: DefaultDimensions,
		BaseURL:    "https://api.openai.com/v1",
		BatchSize:  32,
		MaxRetries: 3,
		Timeout:    int(DefaultTimeout / time.Second),
	}
}

// ApplyDefaults fills zero-valued fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Provider == "" {
		c.Provider = def.Provider
	}
	if c.Model == "" {
		if ProviderType(c.Provider) == ProviderOpenAI {
			c.Model = "text-embedding-3-small"
		} else {
			c.Model = def.Model
		}
	}
	if c.Dimensions == 0 {
		c.Dimensions = def.Dimensions
	}
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.BatchSize == 0 {
		c.BatchSize = def.BatchSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
}

// Validate checks if the Config is valid.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return types.NewError(types.ErrCodeConfigInvalid, "embedding provider cannot be empty")
	}
	if c.Model == "" {
		return types.NewError(types.ErrCodeConfigInvalid, "embedding model cannot be empty")
	}
	if c.Dimensions <= 0 {
		return types.NewError(types.ErrCodeConfigInvalid, "embedding dimensions must be positive")
	}
	if c.BatchSize <= 0 {
		return types.NewError(types.ErrCodeConfigInvalid, "embedding batch_size must be positive")
	}
	if c.MaxRetries < 0 {
		return types.NewError(types.ErrCodeConfigInvalid, "embedding max_retries must be non-negative")
	}
	if c.Timeout < 0 {
		return types.NewError(types.ErrCodeConfigInvalid, "embedding timeout must be non-negative")
	}
	return nil
}

// RequestTimeout returns the configured timeout clamped to [MinTimeout,
// MaxTimeout].
func (c Config) RequestTimeout() time.Duration {
	d := time.Duration(c.Timeout) * time.Second
	if d == 0 {
		return DefaultTimeout
	}
	if d < MinTimeout {
		return MinTimeout
	}
	if d > MaxTimeout {
		return MaxTimeout
	}
	return d
}
