package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlab/weft/internal/types"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "local", cfg.Embedder.Provider)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, DefaultStorePath(cfg.Core.HomeDir), cfg.Store.Path)
}

func TestLoad_OverridesAndDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  path: /tmp/custom.db
embedder:
  provider: local
  dimensions: 64
query:
  semantic_weight: 0.5
  keyword_weight: 0.3
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.db", cfg.Store.Path)
	assert.Equal(t, 64, cfg.Embedder.Dimensions)
	assert.Equal(t, 0.5, cfg.Query.SemanticWeight)
	assert.Equal(t, 0.3, cfg.Query.KeywordWeight)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections carry defaults.
	assert.Equal(t, 0.15, cfg.Query.GraphWeight)
	assert.NotZero(t, cfg.Builder.SimilarityThreshold)
}

func TestLoad_EnvInterpolation(t *testing.T) {
	t.Setenv("WEFT_TEST_STORE", "/tmp/from-env.db")
	path := writeConfig(t, `
store:
  path: ${WEFT_TEST_STORE}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.db", cfg.Store.Path)
}

func TestLoad_UnsetEnvLeftVerbatim(t *testing.T) {
	path := writeConfig(t, `
store:
  path: ${WEFT_TEST_DOES_NOT_EXIST}/weft.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, cfg.Store.Path, "${WEFT_TEST_DOES_NOT_EXIST}")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"bad log level", "logging:\n  level: loud\n"},
		{"bad log format", "logging:\n  format: xml\n"},
		{"weights above one", "query:\n  semantic_weight: 0.9\n  keyword_weight: 0.3\n"},
		{"tracing without endpoint", "tracing:\n  enabled: true\n"},
		{"negative trace buffer", "store:\n  trace_buffer: -1\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.contents))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeConfigInvalid))
}

func TestLoadOrDefault_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Embedder.Provider)
}

func TestDefaultYAMLLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, DefaultYAML(), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultConfig().Embedder.Provider, cfg.Embedder.Provider)
}
