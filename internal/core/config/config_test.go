package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"resolvecore/internal/engine/tree"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "resolvecore*.toml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
version = 1

[index]
cache_capacity = 64

[resolve]
default_stage = "implicit_types"
stub_mode = true

[watch]
enabled = true
paths = ["./src", "./lib"]
debounce = "1s"
extensions = [".kt", ".kts"]

[exclude]
dirs = [".git", "out*"]
files = ["*.tmp"]

[observability]
metrics = false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Index.CacheCapacity != 64 {
		t.Errorf("Expected cache_capacity 64, got %d", cfg.Index.CacheCapacity)
	}
	if cfg.Stage() != tree.StageImplicitTypes {
		t.Errorf("Expected stage IMPLICIT_TYPES, got %s", cfg.Stage())
	}
	if !cfg.Resolve.StubMode {
		t.Error("Expected stub_mode to be enabled")
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("Expected debounce 1s, got %v", cfg.Watch.Debounce)
	}
	if len(cfg.Watch.Paths) != 2 || cfg.Watch.Paths[1] != "./lib" {
		t.Errorf("Unexpected watch paths: %v", cfg.Watch.Paths)
	}
	if len(cfg.Exclude.Files) != 1 || cfg.Exclude.Files[0] != "*.tmp" {
		t.Errorf("Unexpected exclude files: %v", cfg.Exclude.Files)
	}
	if cfg.Observability.MetricsEnabled() {
		t.Error("Expected metrics to be disabled")
	}
	if !cfg.Observability.TracingEnabled() {
		t.Error("Expected tracing to default to enabled")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	def := DefaultConfig()
	if cfg.Version != 1 || def.Version != 1 {
		t.Errorf("Expected version 1, got %d and %d", cfg.Version, def.Version)
	}
	if cfg.Index.CacheCapacity != 256 {
		t.Errorf("Expected default cache_capacity 256, got %d", cfg.Index.CacheCapacity)
	}
	if cfg.Stage() != tree.StageDeclarations {
		t.Errorf("Expected default stage DECLARATIONS, got %s", cfg.Stage())
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("Expected default debounce 500ms, got %v", cfg.Watch.Debounce)
	}
	if len(cfg.Watch.Extensions) != 1 || cfg.Watch.Extensions[0] != ".kt" {
		t.Errorf("Unexpected default extensions: %v", cfg.Watch.Extensions)
	}
	if cfg.Watch.Enabled {
		t.Error("Expected watching to be disabled by default")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"future version", "version = 3", "unsupported config version 3"},
		{"negative capacity", "[index]\ncache_capacity = -1", "index.cache_capacity must be >= 0"},
		{"unknown stage", "[resolve]\ndefault_stage = \"LOWERED\"", "resolve.default_stage"},
		{"extension without dot", "[watch]\nextensions = [\"kt\"]", "must start with a dot"},
		{"bad glob", "[exclude]\nfiles = [\"[\"]", "exclude.files[0]"},
		{"bad toml", "version = ", "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("RESOLVECORE_RESOLVE_STUB_MODE", "true")
	t.Setenv("RESOLVECORE_WATCH_DEBOUNCE", "2s")
	t.Setenv("RESOLVECORE_INDEX_CACHE_CAPACITY", "not-a-number")
	t.Setenv("RESOLVECORE_OBSERVABILITY_TRACING", "false")

	cfg := DefaultConfig()
	ApplyEnvOverrides(cfg)

	if !cfg.Resolve.StubMode {
		t.Error("Expected stub mode override")
	}
	if cfg.Watch.Debounce != 2*time.Second {
		t.Errorf("Expected debounce 2s, got %v", cfg.Watch.Debounce)
	}
	if cfg.Index.CacheCapacity != 256 {
		t.Errorf("Invalid override should be ignored, got %d", cfg.Index.CacheCapacity)
	}
	if cfg.Observability.TracingEnabled() {
		t.Error("Expected tracing override to disable tracing")
	}
}

func TestWatchRoots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Paths = []string{"src", "./src", "/abs/lib"}

	roots := cfg.WatchRoots("/project")
	want := []string{"/project/src", "/abs/lib"}
	if len(roots) != len(want) {
		t.Fatalf("Expected %v, got %v", want, roots)
	}
	for i := range want {
		if roots[i] != want[i] {
			t.Errorf("roots[%d] = %q, want %q", i, roots[i], want[i])
		}
	}
}

func TestValidateWatchPaths(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "plain.kt")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Watch.Paths = []string{"missing", "plain.kt", "."}
	if errs := Validate(cfg, base); len(errs) != 0 {
		t.Errorf("Disabled watching should not be validated, got %v", errs)
	}

	cfg.Watch.Enabled = true
	errs := Validate(cfg, base)
	if len(errs) != 2 {
		t.Fatalf("Expected 2 errors, got %v", errs)
	}
	if !strings.Contains(errs[0].Error(), "does not exist") {
		t.Errorf("Unexpected error: %v", errs[0])
	}
	if !strings.Contains(errs[1].Error(), "is not a directory") {
		t.Errorf("Unexpected error: %v", errs[1])
	}
}
