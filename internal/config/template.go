package config

import "fmt"

// DefaultYAML renders a commented starter config for `weft init`. The
// commented lines document the defaults without pinning them, so a
// later release can change a default without editing every config file.
func DefaultYAML() []byte {
	cfg := DefaultConfig()
	return []byte(fmt.Sprintf(`# weft configuration
core:
  home_dir: %s
  # debug: false

store:
  path: %s
  # trace_buffer: 256

embedder:
  # provider: local | openai
  provider: %s
  model: %s
  dimensions: %d
  # api_key: ${WEFT_OPENAI_API_KEY}

builder:
  # similarity_threshold: %.2f
  # similar_threshold: %.2f
  # max_edges_per_entity: %d

query:
  # semantic_weight: %.2f
  # keyword_weight: %.2f
  # graph_weight: %.2f

logging:
  level: %s
  format: %s

tracing:
  enabled: false
  # endpoint: localhost:4317
  # insecure: true
`,
		cfg.Core.HomeDir,
		cfg.Store.Path,
		cfg.Embedder.Provider,
		cfg.Embedder.Model,
		cfg.Embedder.Dimensions,
		cfg.Builder.SimilarityThreshold,
		cfg.Builder.SimilarThreshold,
		cfg.Builder.MaxEdgesPerEntity,
		cfg.Query.SemanticWeight,
		cfg.Query.KeywordWeight,
		cfg.Query.GraphWeight,
		cfg.Logging.Level,
		cfg.Logging.Format,
	))
}
