// Package config holds the root configuration for the weft tool: one
// YAML file with sections per subsystem, loaded through viper with
// ${ENV_VAR} interpolation. Subsystem packages own their own config
// structs; this package composes and validates them.
package config

import (
	"fmt"

	"github.com/weftlab/weft/internal/builder"
	"github.com/weftlab/weft/internal/embed"
	"github.com/weftlab/weft/internal/query"
	"github.com/weftlab/weft/internal/types"
)

// Config is the root configuration.
type Config struct {
	Core     CoreConfig     `mapstructure:"core" yaml:"core" json:"core"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store" json:"store"`
	Embedder embed.Config   `mapstructure:"embedder" yaml:"embedder" json:"embedder"`
	Builder  builder.Config `mapstructure:"builder" yaml:"builder" json:"builder"`
	Query    query.Config   `mapstructure:"query" yaml:"query" json:"query"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging" json:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing" yaml:"tracing" json:"tracing"`
}

// CoreConfig contains tool-wide settings.
type CoreConfig struct {
	// HomeDir is the weft home directory; the store and config live
	// under it by default.
	HomeDir string `mapstructure:"home_dir" yaml:"home_dir" json:"home_dir"`
	// Debug lowers the log level to debug regardless of logging.level.
	Debug bool `mapstructure:"debug" yaml:"debug" json:"debug"`
}

// StoreConfig contains graph store settings.
type StoreConfig struct {
	// Path is the SQLite database file. Empty means <home_dir>/weft.db.
	Path string `mapstructure:"path" yaml:"path" json:"path"`
	// TraceBuffer sizes the query-trace queue.
	TraceBuffer int `mapstructure:"trace_buffer" yaml:"trace_buffer" json:"trace_buffer"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level" json:"level"`
	// Format is json or text.
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// TracingConfig contains OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	// Endpoint is the OTLP/gRPC collector address, host:port.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	// Insecure disables TLS toward the collector.
	Insecure bool `mapstructure:"insecure" yaml:"insecure" json:"insecure"`
}

// ApplyDefaults fills zero-valued fields across every section.
func (c *Config) ApplyDefaults() {
	if c.Core.HomeDir == "" {
		c.Core.HomeDir = DefaultHomeDir()
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath(c.Core.HomeDir)
	}
	c.Embedder.ApplyDefaults()
	c.Builder.ApplyDefaults()
	c.Query.ApplyDefaults()
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks every section; sections validate themselves, this
// adds the cross-cutting checks.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return types.NewError(types.ErrCodeConfigInvalid, "store.path cannot be empty")
	}
	if c.Store.TraceBuffer < 0 {
		return types.NewError(types.ErrCodeConfigInvalid, "store.trace_buffer cannot be negative")
	}
	if err := c.Embedder.Validate(); err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	if err := c.Builder.Validate(); err != nil {
		return fmt.Errorf("builder: %w", err)
	}
	if err := c.Query.Validate(); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return types.NewError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return types.NewError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("logging.format must be json or text, got %q", c.Logging.Format))
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return types.NewError(types.ErrCodeConfigInvalid,
			"tracing.endpoint is required when tracing is enabled")
	}
	return nil
}
