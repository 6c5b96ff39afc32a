// Package app wires configuration, a resolve session and the source watcher.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"resolvecore/internal/core/config"
	"resolvecore/internal/core/errors"
	"resolvecore/internal/core/watcher"
	"resolvecore/internal/engine/index"
	"resolvecore/internal/engine/resolve"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Update summarises one batch of source changes.
type Update struct {
	Changed     []string
	Evicted     []string
	Resolved    int
	Diagnostics int
	Duration    time.Duration
}

type Options struct {
	Logger *slog.Logger
	// SpanProcessor receives resolution spans when tracing is enabled.
	SpanProcessor sdktrace.SpanProcessor
	Dependencies  []*index.Module
}

type App struct {
	Config  *config.Config
	Session *resolve.Session

	sources        resolve.SourceSet
	logger         *slog.Logger
	tracerProvider *sdktrace.TracerProvider
	activeWatcher  *watcher.Watcher

	updateMu sync.RWMutex
	onUpdate func(Update)
}

func New(cfg *config.Config, module string, sources resolve.SourceSet, builder resolve.Builder, opts Options) (*App, error) {
	if sources == nil || builder == nil {
		return nil, errors.New(errors.CodeValidationError, "app requires a source set and a builder")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	a := &App{
		Config:  cfg,
		sources: sources,
		logger:  opts.Logger,
	}
	if cfg.Observability.TracingEnabled() && opts.SpanProcessor != nil {
		a.tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(opts.SpanProcessor))
		otel.SetTracerProvider(a.tracerProvider)
	}
	a.Session = resolve.NewSession(module, sources, builder, resolve.Options{
		CacheCapacity: cfg.Index.CacheCapacity,
		StubMode:      cfg.Resolve.StubMode,
		Dependencies:  opts.Dependencies,
		Logger:        opts.Logger,
	})
	return a, nil
}

func (a *App) SetUpdateHandler(handler func(Update)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = handler
}

func (a *App) emitUpdate(u Update) {
	a.updateMu.RLock()
	handler := a.onUpdate
	a.updateMu.RUnlock()
	if handler != nil {
		handler(u)
	}
}

// ResolveAll drives every source file to the configured default stage. Hard
// failures and user-code diagnostics are combined into the returned error.
func (a *App) ResolveAll(ctx context.Context) error {
	var result *multierror.Error
	for _, path := range a.sources.Paths() {
		if _, err := a.Session.ResolveToStage(ctx, path, a.Config.Stage()); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := a.Session.Diagnostics().Err(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// HandleChanges evicts the changed files and their dependents, then drives
// the evicted files that still exist back to the default stage.
func (a *App) HandleChanges(paths []string) {
	a.logger.Info("detected changes", "count", len(paths))
	start := time.Now()
	ctx := context.Background()

	evicted := a.Session.Invalidate(paths...)

	existing := make(map[string]bool)
	for _, p := range a.sources.Paths() {
		existing[p] = true
	}
	resolved := 0
	for _, path := range evicted {
		if !existing[path] {
			continue
		}
		if _, err := a.Session.ResolveToStage(ctx, path, a.Config.Stage()); err != nil {
			a.logger.Warn("failed to re-resolve file", "path", path, "error", err)
			continue
		}
		resolved++
	}

	a.emitUpdate(Update{
		Changed:     paths,
		Evicted:     evicted,
		Resolved:    resolved,
		Diagnostics: a.Session.Diagnostics().Len(),
		Duration:    time.Since(start),
	})
}

// MetricsHandler serves the Prometheus collectors, or 404 when metrics are
// disabled.
func (a *App) MetricsHandler() http.Handler {
	if !a.Config.Observability.MetricsEnabled() {
		return http.NotFoundHandler()
	}
	return promhttp.Handler()
}

func (a *App) Close() error {
	var result *multierror.Error
	if a.activeWatcher != nil {
		if err := a.activeWatcher.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		a.activeWatcher = nil
	}
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(context.Background()); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
