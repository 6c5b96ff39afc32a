package config

import (
	"fmt"
	"os"
	"strings"

	"resolvecore/internal/engine/tree"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateIndex(&cfg); err != nil {
		return nil, err
	}
	if err := validateResolve(&cfg); err != nil {
		return nil, err
	}
	if err := validateWatch(&cfg); err != nil {
		return nil, err
	}
	if err := validateExclude(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateVersion(cfg *Config) error {
	if cfg.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", cfg.Version)
	}
	if cfg.Version > 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateIndex(cfg *Config) error {
	if cfg.Index.CacheCapacity < 0 {
		return fmt.Errorf("index.cache_capacity must be >= 0, got %d", cfg.Index.CacheCapacity)
	}
	return nil
}

func validateResolve(cfg *Config) error {
	if _, err := tree.ParseStage(cfg.Resolve.DefaultStage); err != nil {
		return fmt.Errorf("resolve.default_stage: %w", err)
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", cfg.Watch.Debounce)
	}
	for i, p := range cfg.Watch.Paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("watch.paths[%d] must not be empty", i)
		}
	}
	for i, ext := range cfg.Watch.Extensions {
		if !strings.HasPrefix(strings.TrimSpace(ext), ".") {
			return fmt.Errorf("watch.extensions[%d] %q must start with a dot", i, ext)
		}
	}
	return nil
}

func validateExclude(cfg *Config) error {
	for i, pattern := range cfg.Exclude.Dirs {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("exclude.dirs[%d] %q: %w", i, pattern, err)
		}
	}
	for i, pattern := range cfg.Exclude.Files {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("exclude.files[%d] %q: %w", i, pattern, err)
		}
	}
	return nil
}
