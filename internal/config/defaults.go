package config

import (
	"os"
	"path/filepath"

	"github.com/weftlab/weft/internal/builder"
	"github.com/weftlab/weft/internal/embed"
	"github.com/weftlab/weft/internal/query"
)

// DefaultHomeDir returns ~/.weft, falling back to the temp directory
// when the user home cannot be determined.
func DefaultHomeDir() string {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".weft")
	}
	return filepath.Join(userHome, ".weft")
}

// DefaultConfigPath returns the config file path under a home directory.
func DefaultConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

// DefaultStorePath returns the store file path under a home directory.
func DefaultStorePath(homeDir string) string {
	return filepath.Join(homeDir, "weft.db")
}

// DefaultConfig returns a fully-populated default configuration.
func DefaultConfig() *Config {
	homeDir := DefaultHomeDir()
	return &Config{
		Core: CoreConfig{
			HomeDir: homeDir,
		},
		Store: StoreConfig{
			Path: DefaultStorePath(homeDir),
		},
		Embedder: embed.DefaultConfig(),
		Builder:  builder.DefaultConfig(),
		Query:    query.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Enabled: false,
		},
	}
}
