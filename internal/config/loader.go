package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/weftlab/weft/internal/types"
)

// Load reads the YAML file at path, interpolates ${ENV_VAR} references,
// applies defaults for anything the file leaves out, and validates the
// result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, types.NewError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("reading config file %s: %v", path, err))
	}

	// Interpolate on the raw settings map so every string field gets
	// the same treatment, then decode the interpolated map.
	interpolated := interpolateEnvVars(v.AllSettings())
	merged := viper.New()
	if err := merged.MergeConfigMap(interpolated.(map[string]any)); err != nil {
		return nil, types.NewError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("merging config: %v", err))
	}

	var cfg Config
	if err := merged.Unmarshal(&cfg); err != nil {
		return nil, types.NewError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("unmarshaling config: %v", err))
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns the validated defaults
// when no file exists at path.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateEnvVars walks the settings tree replacing ${VAR} in string
// values with the environment value. Unset variables are left verbatim
// so validation can point at them.
func interpolateEnvVars(data any) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = interpolateEnvVars(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = interpolateEnvVars(value)
		}
		return out
	case string:
		return interpolateString(v)
	default:
		return v
	}
}

func interpolateString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if value := os.Getenv(name); value != "" {
			return value
		}
		return match
	})
}
