// Package metrics exposes Prometheus instrumentation for the analysis
// pipeline, the community detector and the HTTP API.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Pipeline Metrics
	PipelineRunsTotal     *prometheus.CounterVec
	StageDuration         *prometheus.HistogramVec
	PipelineRowsTotal     prometheus.Counter
	LastEdges             prometheus.Gauge
	LastProjectionEdges   prometheus.Gauge
	LastCommunities       prometheus.Gauge
	LastModularity        prometheus.Gauge
	LastHighRiskThreshold prometheus.Gauge

	// Detection Metrics
	LouvainRunsTotal   *prometheus.CounterVec
	LouvainRunDuration prometheus.Histogram

	// Analysis job Metrics
	AnalysesSubmittedTotal prometheus.Counter
	AnalysesByStatus       *prometheus.GaugeVec

	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with every metric initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initPipelineMetrics()
	r.initDetectionMetrics()
	r.initJobMetrics()
	r.initHTTPMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
