package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sonarfix_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	GraphFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sonarfix_graph_files_total",
		Help: "Total number of files tracked in the dependency graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sonarfix_graph_edges_total",
		Help: "Total number of usage edges in the dependency graph.",
	})

	GraphDegradedFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sonarfix_graph_degraded_files_total",
		Help: "Files whose last parse produced a degraded model.",
	})

	ImpactQueriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sonarfix_impact_queries_total",
		Help: "Total number of impact analyses performed.",
	})

	FixAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sonarfix_fix_attempts_total",
		Help: "Fix attempts by rule and outcome.",
	}, []string{"rule", "outcome"})

	FixValidationRejectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sonarfix_fix_validation_rejects_total",
		Help: "Handler edits rejected by the syntax validation gate.",
	})

	RepairFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sonarfix_repair_fallback_total",
		Help: "Generative repair attempts by result.",
	}, []string{"result"})

	SonarRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sonarfix_sonar_requests_total",
		Help: "SonarQube API requests by status class.",
	}, []string{"status"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sonarfix_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
