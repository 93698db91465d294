package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v10"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PARKLEDGER_"

// Search paths tried when no file is named explicitly.
var searchPaths = []string{
	"configs/parkledger.toml",
	"parkledger.toml",
}

// Load builds the configuration from defaults, the TOML file at path and the
// environment. An empty path searches the default locations and skips the
// file when none exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = ResolvePath()
	}
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ResolvePath returns the first existing default config file, or "".
func ResolvePath() string {
	for _, p := range searchPaths {
		if fileExists(p) {
			return p
		}
	}
	return ""
}

func decodeFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config: %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
