package metrics

import (
	"time"

	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
)

// RecordStage records the duration of one pipeline stage
func (r *Registry) RecordStage(stage string, duration time.Duration) {
	r.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordPipelineRun records a finished pipeline execution
func (r *Registry) RecordPipelineRun(status string) {
	r.PipelineRunsTotal.WithLabelValues(status).Inc()
}

// RecordRuns records the per-seed outcomes of one detection
func (r *Registry) RecordRuns(runs []models.RunDiagnostic) {
	for _, run := range runs {
		outcome := "completed"
		if run.Excluded {
			outcome = "excluded"
		}
		r.LouvainRunsTotal.WithLabelValues(outcome).Inc()
		r.LouvainRunDuration.Observe(float64(run.RuntimeMS) / 1000.0)
	}
}

// UpdateResult publishes the headline figures of a completed pipeline run
func (r *Registry) UpdateResult(rows, edges int, m models.GlobalMetrics) {
	r.PipelineRowsTotal.Add(float64(rows))
	r.LastEdges.Set(float64(edges))
	r.LastProjectionEdges.Set(float64(m.ProjectionEdges))
	r.LastCommunities.Set(float64(m.CommunitiesCount))
	r.LastModularity.Set(m.Modularity)
	r.LastHighRiskThreshold.Set(m.RiskThreshold)
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// SetAnalyses replaces the per-status analysis gauges
func (r *Registry) SetAnalyses(counts map[string]int) {
	r.AnalysesByStatus.Reset()
	for status, n := range counts {
		r.AnalysesByStatus.WithLabelValues(status).Set(float64(n))
	}
}
