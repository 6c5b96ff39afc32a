package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: RESOLVECORE_[SECTION]_[KEY] (e.g., RESOLVECORE_RESOLVE_STUB_MODE).
func ApplyEnvOverrides(cfg *Config) {
	setEnvInt(&cfg.Index.CacheCapacity, "RESOLVECORE_INDEX_CACHE_CAPACITY")

	setEnvString(&cfg.Resolve.DefaultStage, "RESOLVECORE_RESOLVE_DEFAULT_STAGE")
	setEnvBool(&cfg.Resolve.StubMode, "RESOLVECORE_RESOLVE_STUB_MODE")

	setEnvBool(&cfg.Watch.Enabled, "RESOLVECORE_WATCH_ENABLED")
	setEnvDuration(&cfg.Watch.Debounce, "RESOLVECORE_WATCH_DEBOUNCE")

	setEnvBoolPtr(&cfg.Observability.Metrics, "RESOLVECORE_OBSERVABILITY_METRICS")
	setEnvBoolPtr(&cfg.Observability.Tracing, "RESOLVECORE_OBSERVABILITY_TRACING")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvBoolPtr(target **bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = &b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
