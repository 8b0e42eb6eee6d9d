package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Research run metrics
	ResearchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_runs_total",
			Help: "Total number of research runs by outcome",
		},
		[]string{"template", "status"},
	)

	ResearchRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_run_duration_seconds",
			Help:    "Research run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"template"},
	)

	ResearchSources = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_sources_per_run",
			Help:    "Number of merged sources in a completed research result",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	GraphsComposed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_graphs_composed_total",
			Help: "Total number of task graphs exported for external execution",
		},
		[]string{"template"},
	)

	// Graph execution metrics
	NodeExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_node_executions_total",
			Help: "Task nodes reaching a terminal state",
		},
		[]string{"capability", "state"},
	)

	DependencyShortCircuits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_dependency_short_circuits_total",
			Help: "Task nodes failed without invocation because a parent failed",
		},
		[]string{"capability"},
	)

	GraphLayers = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_graph_layers",
			Help:    "Number of readiness layers executed per graph",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	// Worker invocation metrics
	WorkerInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_worker_invocations_total",
			Help: "Total number of worker capability invocations",
		},
		[]string{"capability", "mode", "status"},
	)

	WorkerInvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_worker_invocation_duration_seconds",
			Help:    "Worker capability invocation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"capability", "mode"},
	)

	// Template metrics
	TemplatesLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_templates_loaded_total",
			Help: "Total number of pipeline templates loaded",
		},
		[]string{"template"},
	)

	TemplateValidationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_template_validation_errors_total",
			Help: "Total number of pipeline template validation errors by code",
		},
		[]string{"code"},
	)

	// Search cache metrics
	SearchCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_search_cache_lookups_total",
			Help: "Search result cache lookups",
		},
		[]string{"backend", "result"},
	)

	// Chat metrics
	ChatIntents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_chat_intents_total",
			Help: "Chat messages by classified intent",
		},
		[]string{"intent"},
	)
)

// RecordResearchRun records metrics for a finished research run
func RecordResearchRun(template, status string, durationSeconds float64, sources int) {
	ResearchRuns.WithLabelValues(template, status).Inc()
	ResearchRunDuration.WithLabelValues(template).Observe(durationSeconds)
	if status == "success" {
		ResearchSources.Observe(float64(sources))
	}
}

// RecordWorkerInvocation records one capability call
func RecordWorkerInvocation(capability, mode, status string, durationSeconds float64) {
	WorkerInvocations.WithLabelValues(capability, mode, status).Inc()
	WorkerInvocationDuration.WithLabelValues(capability, mode).Observe(durationSeconds)
}

// RecordNodeTerminal records a node reaching Completed or Failed
func RecordNodeTerminal(capability, state string) {
	NodeExecutions.WithLabelValues(capability, state).Inc()
}

// RecordSearchCacheLookup records a cache hit or miss
func RecordSearchCacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	SearchCacheLookups.WithLabelValues(backend, result).Inc()
}
