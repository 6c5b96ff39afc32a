package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	TransformerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "resolvecore_transformer_seconds",
		Help:    "Time spent running one stage transformer over a file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"transformer", "stage"})

	DeclarationsStamped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolvecore_declarations_stamped_total",
		Help: "Declarations advanced to a resolve stage.",
	}, []string{"stage"})

	DesignatedResolves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolvecore_designated_resolves_total",
		Help: "Single-declaration resolutions along a designated path.",
	}, []string{"stage"})

	IndexBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolvecore_index_builds_total",
		Help: "Source files built into declaration trees, by build mode.",
	}, []string{"mode"})

	IndexFilesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolvecore_index_files_recorded_total",
		Help: "Files registered in a module declaration index.",
	}, []string{"module"})

	IndexInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolvecore_index_invalidations_total",
		Help: "Files evicted from a module index after a source change.",
	}, []string{"module"})

	ClassScopeCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolvecore_class_scope_cache_total",
		Help: "Class member scope cache lookups by result.",
	}, []string{"result"})

	Diagnostics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resolvecore_diagnostics_total",
		Help: "Diagnostics reported while resolving user code.",
	})

	DeepCopyDeclarations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resolvecore_deep_copy_declarations_total",
		Help: "Declarations given fresh symbols by deep copy.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resolvecore_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
