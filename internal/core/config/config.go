package config

import (
	"strings"
	"time"

	"resolvecore/internal/engine/tree"
)

type Config struct {
	Version       int           `toml:"version"`
	Index         Index         `toml:"index"`
	Resolve       Resolve       `toml:"resolve"`
	Watch         Watch         `toml:"watch"`
	Exclude       Exclude       `toml:"exclude"`
	Observability Observability `toml:"observability"`
}

type Index struct {
	// CacheCapacity bounds the class member scope cache of each module.
	CacheCapacity int `toml:"cache_capacity"`
}

type Resolve struct {
	DefaultStage string `toml:"default_stage"`
	StubMode     bool   `toml:"stub_mode"`
}

type Watch struct {
	Enabled    bool          `toml:"enabled"`
	Paths      []string      `toml:"paths"`
	Debounce   time.Duration `toml:"debounce"`
	Extensions []string      `toml:"extensions"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Observability struct {
	Metrics *bool `toml:"metrics"`
	Tracing *bool `toml:"tracing"`
}

func (o Observability) MetricsEnabled() bool { return o.Metrics == nil || *o.Metrics }

func (o Observability) TracingEnabled() bool { return o.Tracing == nil || *o.Tracing }

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Stage parses Resolve.DefaultStage. Load has already validated it.
func (c *Config) Stage() tree.Stage {
	stage, err := tree.ParseStage(c.Resolve.DefaultStage)
	if err != nil {
		return tree.StageDeclarations
	}
	return stage
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Index.CacheCapacity == 0 {
		cfg.Index.CacheCapacity = 256
	}
	if strings.TrimSpace(cfg.Resolve.DefaultStage) == "" {
		cfg.Resolve.DefaultStage = tree.StageDeclarations.String()
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if len(cfg.Watch.Paths) == 0 {
		cfg.Watch.Paths = []string{"."}
	}
	if len(cfg.Watch.Extensions) == 0 {
		cfg.Watch.Extensions = []string{".kt"}
	}
	if cfg.Exclude.Dirs == nil {
		cfg.Exclude.Dirs = []string{".git", "build"}
	}
}
