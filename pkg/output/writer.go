// Package output writes pipeline tables as CSV files and a JSON report.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gilchrisn/procurement-risk-graph/pkg/aggregation"
	"github.com/gilchrisn/procurement-risk-graph/pkg/materialization"
	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
	"github.com/gilchrisn/procurement-risk-graph/pkg/pipeline"
)

// File names inside the output directory
const (
	MarketsFile   = "markets_clean.csv"
	EdgesFile     = "edges_agg.csv"
	FeaturesFile  = "edges_features.csv"
	SuppliersFile = "supplier_communities.csv"
	SummaryFile   = "community_risk_summary.csv"
	TopLargeFile  = "community_risk_top_large.csv"
	MetricsFile   = "community_modularity_metrics.csv"
	RunsFile      = "community_runs.csv"
	ReportFile    = "result.json"

	CaseStudiesFile   = "case_studies_top20.csv"
	BuyersRiskFile    = "buyers_high_risk.csv"
	SuppliersRiskFile = "suppliers_high_risk.csv"
	QuantilesFile     = "risk_score_quantiles.csv"
	SupplierRankFile  = "suppliers_pagerank_top10.csv"
	ProjectionFile    = "supplier_projection.csv"
)

const (
	dateLayout     = "2006-01-02"
	defaultDirPerm = 0o755
)

// Writer persists the tables of a pipeline result
type Writer interface {
	WriteAll(result *pipeline.Result, outputDir string) ([]string, error)
}

// FileWriter implements Writer for the local filesystem
type FileWriter struct{}

// NewFileWriter creates a new file-based writer
func NewFileWriter() Writer {
	return &FileWriter{}
}

// Report is the JSON summary of a run
type Report struct {
	Stats       aggregation.Stats               `json:"stats"`
	Projection  materialization.ProjectionStats `json:"projection"`
	Metrics     models.GlobalMetrics            `json:"metrics"`
	Runs        []models.RunDiagnostic          `json:"runs"`
	TopLarge    []models.CommunitySummary       `json:"top_large_communities"`
	Quantiles   []models.QuantilePoint          `json:"risk_quantiles"`
	Centrality  []models.SupplierRank           `json:"top_suppliers_pagerank"`
	RuntimeMS   int64                           `json:"runtime_ms"`
	GeneratedAt time.Time                       `json:"generated_at"`
}

// NewReport extracts the JSON report of a pipeline result
func NewReport(result *pipeline.Result) Report {
	return Report{
		Stats:       result.Stats,
		Projection:  result.ProjectionStats,
		Metrics:     result.Metrics,
		Runs:        result.Detection.Runs,
		TopLarge:    result.TopLarge,
		Quantiles:   result.RiskQuantiles,
		Centrality:  result.Centrality,
		RuntimeMS:   result.RuntimeMS,
		GeneratedAt: time.Now().UTC(),
	}
}

// WriteAll writes every table and returns the written paths
func (fw *FileWriter) WriteAll(result *pipeline.Result, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, defaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	steps := []struct {
		name  string
		write func(string) error
	}{
		{MarketsFile, func(p string) error { return WriteContracts(p, result.Rows) }},
		{EdgesFile, func(p string) error { return WriteEdges(p, result.Edges) }},
		{FeaturesFile, func(p string) error { return WriteScoredEdges(p, result.Scored) }},
		{SuppliersFile, func(p string) error { return WriteSupplierCommunities(p, result.Suppliers) }},
		{SummaryFile, func(p string) error { return WriteSummary(p, result.Summary.Communities) }},
		{TopLargeFile, func(p string) error { return WriteSummary(p, result.TopLarge) }},
		{MetricsFile, func(p string) error { return WriteMetrics(p, result.Metrics) }},
		{RunsFile, func(p string) error { return WriteRuns(p, result.Detection.Runs) }},
		{CaseStudiesFile, func(p string) error { return WriteScoredEdges(p, result.TopRisk) }},
		{BuyersRiskFile, func(p string) error { return WriteActorRisk(p, "acheteur_id", result.BuyersHighRisk) }},
		{SuppliersRiskFile, func(p string) error { return WriteActorRisk(p, "titulaire_id", result.SuppliersHighRisk) }},
		{QuantilesFile, func(p string) error { return WriteQuantiles(p, result.RiskQuantiles) }},
		{SupplierRankFile, func(p string) error { return WriteSupplierRanks(p, result.Centrality) }},
		{ProjectionFile, func(p string) error { return materialization.SaveProjection(result.Projection, p) }},
		{ReportFile, func(p string) error { return WriteJSON(p, NewReport(result)) }},
	}

	paths := make([]string, 0, len(steps))
	for _, step := range steps {
		path := filepath.Join(outputDir, step.name)
		if err := step.write(path); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", step.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteJSON writes v as indented JSON
func WriteJSON(path string, v interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeCSV(path string, header []string, n int, row func(i int) []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := writer.Write(row(i)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
