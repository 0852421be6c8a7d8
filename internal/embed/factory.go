package embed

import (
	"fmt"

	"github.com/weftlab/weft/internal/types"
)

// ProviderType represents available embedding provider implementations.
type ProviderType string

const (
	// ProviderLocal derives deterministic vectors from a hash of the
	// text. Offline, no API key, reproducible builds. DEFAULT.
	ProviderLocal ProviderType = "local"

	// ProviderOpenAI uses OpenAI's embeddings API
	// (text-embedding-3-small/large). Requires an API key.
	ProviderOpenAI ProviderType = "openai"
)

// New creates an embedding provider from the configuration.
//
// Supported provider types:
//   - "local": hash-derived offline vectors, no API key - DEFAULT
//   - "openai": OpenAI embeddings API, requires api_key
func New(cfg Config) (Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch ProviderType(cfg.Provider) {
	case ProviderLocal:
		return NewLocalProvider(cfg)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg)
	default:
		return nil, types.NewError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown embedding provider '%s' - must be 'local' or 'openai'", cfg.Provider))
	}
}
