package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	if r.PipelineRunsTotal == nil {
		t.Error("PipelineRunsTotal not initialized")
	}
	if r.LouvainRunsTotal == nil {
		t.Error("LouvainRunsTotal not initialized")
	}
	if r.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal not initialized")
	}
	if r.GetPrometheusRegistry() == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestDefaultRegistry(t *testing.T) {
	if DefaultRegistry() != DefaultRegistry() {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordRuns(t *testing.T) {
	r := NewRegistry()

	r.RecordRuns([]models.RunDiagnostic{
		{Seed: 42, Modularity: 0.4, RuntimeMS: 3},
		{Seed: 43, Modularity: 0.41, RuntimeMS: 4},
		{Seed: 44, Excluded: true, RuntimeMS: 1000},
	})

	var metric dto.Metric
	completed, err := r.LouvainRunsTotal.GetMetricWithLabelValues("completed")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	if err := completed.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2 {
		t.Errorf("completed runs = %v, want 2", metric.Counter.GetValue())
	}

	excluded, err := r.LouvainRunsTotal.GetMetricWithLabelValues("excluded")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	if err := excluded.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 1 {
		t.Errorf("excluded runs = %v, want 1", metric.Counter.GetValue())
	}
}

func TestUpdateResult(t *testing.T) {
	r := NewRegistry()

	r.UpdateResult(10, 7, models.GlobalMetrics{
		ProjectionEdges:  5,
		CommunitiesCount: 2,
		Modularity:       0.5,
		RiskThreshold:    0.8,
	})

	var metric dto.Metric
	if err := r.LastModularity.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() != 0.5 {
		t.Errorf("modularity gauge = %v, want 0.5", metric.Gauge.GetValue())
	}

	if err := r.PipelineRowsTotal.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 10 {
		t.Errorf("rows counter = %v, want 10", metric.Counter.GetValue())
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	r := NewRegistry()

	r.RecordHTTPRequest("GET", "/api/v1/analyses", "200", 100*time.Millisecond)
	r.RecordHTTPRequest("GET", "/api/v1/analyses", "200", 50*time.Millisecond)

	counter, err := r.HTTPRequestsTotal.GetMetricWithLabelValues("GET", "/api/v1/analyses", "200")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2 {
		t.Errorf("Counter value = %v, want 2", metric.Counter.GetValue())
	}
}

func TestSetAnalyses(t *testing.T) {
	r := NewRegistry()

	r.SetAnalyses(map[string]int{"running": 2, "completed": 1})
	r.SetAnalyses(map[string]int{"completed": 3})

	gauge, err := r.AnalysesByStatus.GetMetricWithLabelValues("completed")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	var metric dto.Metric
	if err := gauge.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() != 3 {
		t.Errorf("completed analyses = %v, want 3", metric.Gauge.GetValue())
	}
}
