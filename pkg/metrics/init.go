package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initPipelineMetrics() {
	r.PipelineRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgraph_pipeline_runs_total",
			Help: "Total number of pipeline executions",
		},
		[]string{"status"},
	)

	r.StageDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskgraph_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"stage"},
	)

	r.PipelineRowsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "riskgraph_contract_rows_total",
			Help: "Total number of contract rows aggregated",
		},
	)

	r.LastEdges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "riskgraph_last_edges",
			Help: "Buyer-supplier edges produced by the last pipeline run",
		},
	)

	r.LastProjectionEdges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "riskgraph_last_projection_edges",
			Help: "Supplier projection edges produced by the last pipeline run",
		},
	)

	r.LastCommunities = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "riskgraph_last_communities",
			Help: "Communities selected by the last pipeline run",
		},
	)

	r.LastModularity = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "riskgraph_last_modularity",
			Help: "Modularity of the partition selected by the last pipeline run",
		},
	)

	r.LastHighRiskThreshold = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "riskgraph_last_high_risk_threshold",
			Help: "Risk score threshold of the last pipeline run",
		},
	)
}

func (r *Registry) initDetectionMetrics() {
	r.LouvainRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgraph_louvain_runs_total",
			Help: "Total number of seeded Louvain runs by outcome",
		},
		[]string{"outcome"},
	)

	r.LouvainRunDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riskgraph_louvain_run_duration_seconds",
			Help:    "Duration of a single seeded Louvain run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)
}

func (r *Registry) initJobMetrics() {
	r.AnalysesSubmittedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "riskgraph_analyses_submitted_total",
			Help: "Total number of analyses submitted to the service",
		},
	)

	r.AnalysesByStatus = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskgraph_analyses",
			Help: "Analyses currently held by the service, by status",
		},
		[]string{"status"},
	)
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgraph_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskgraph_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestsInFlight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "riskgraph_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)
}
