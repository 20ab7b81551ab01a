package output

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
	"github.com/gilchrisn/procurement-risk-graph/pkg/parser"
	"github.com/gilchrisn/procurement-risk-graph/pkg/pipeline"
)

func sampleRows() []models.ContractRow {
	notified := time.Date(2022, 3, 14, 0, 0, 0, 0, time.UTC)
	return []models.ContractRow{
		{UID: "u1", BuyerID: "B1", BuyerName: "Ville, Nord", SupplierID: "S1", Amount: models.Float(100), OffersReceived: models.Float(3), NotificationDate: &notified},
		{UID: "u2", BuyerID: "B1", SupplierID: "S2", Amount: models.Float(900), OffersReceived: models.Float(1)},
		{UID: "u3", BuyerID: "B2", SupplierID: "S1", Amount: models.Float(100)},
		{UID: "u4", BuyerID: "B3", SupplierID: "S3", CPVCode: "45000000"},
	}
}

func runSample(t *testing.T) *pipeline.Result {
	t.Helper()
	opts := pipeline.DefaultOptions()
	opts.Detection.Runs = 3
	result, err := pipeline.New(opts, zerolog.Nop(), nil).Run(context.Background(), sampleRows())
	require.NoError(t, err)
	return result
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteAll(t *testing.T) {
	result := runSample(t)
	dir := filepath.Join(t.TempDir(), "out")

	paths, err := NewFileWriter().WriteAll(result, dir)
	require.NoError(t, err)

	expected := []string{
		MarketsFile, EdgesFile, FeaturesFile, SuppliersFile, SummaryFile, TopLargeFile,
		MetricsFile, RunsFile, CaseStudiesFile, BuyersRiskFile, SuppliersRiskFile,
		QuantilesFile, SupplierRankFile, ProjectionFile, ReportFile,
	}
	require.Len(t, paths, len(expected))
	for i, name := range expected {
		assert.Equal(t, filepath.Join(dir, name), paths[i])
		assert.FileExists(t, paths[i])
	}

	edges := readCSV(t, filepath.Join(dir, EdgesFile))
	assert.Len(t, edges, 5)
	assert.Equal(t, edgeHeader, edges[0])

	features := readCSV(t, filepath.Join(dir, FeaturesFile))
	assert.Len(t, features, 5)
	assert.Equal(t, "risk_score", features[0][len(features[0])-1])

	metrics := readCSV(t, filepath.Join(dir, MetricsFile))
	require.Len(t, metrics, 2)
	assert.Equal(t, "projection_nodes", metrics[0][0])
	assert.Equal(t, "3", metrics[1][0])

	runs := readCSV(t, filepath.Join(dir, RunsFile))
	assert.Len(t, runs, 4)

	suppliers := readCSV(t, filepath.Join(dir, SuppliersFile))
	assert.Len(t, suppliers, 4)

	data, err := os.ReadFile(filepath.Join(dir, ReportFile))
	require.NoError(t, err)
	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 4, report.Stats.Rows)
	assert.Equal(t, result.Metrics.CommunitiesCount, report.Metrics.CommunitiesCount)
	assert.Len(t, report.Runs, 3)
	assert.Len(t, report.Quantiles, 9)
}

func TestWriteContractsReloads(t *testing.T) {
	rows := sampleRows()
	path := filepath.Join(t.TempDir(), MarketsFile)
	require.NoError(t, WriteContracts(path, rows))

	reloaded, schema, err := parser.ReadContractsFile(path, parser.DefaultColumnMapping())
	require.NoError(t, err)
	require.Len(t, reloaded, len(rows))
	assert.True(t, schema.Has(parser.FieldNotificationDate))

	first := reloaded[0]
	assert.Equal(t, "u1", first.UID)
	assert.Equal(t, "Ville, Nord", first.BuyerName)
	assert.Equal(t, 100.0, *first.Amount)
	assert.Equal(t, 3.0, *first.OffersReceived)
	require.NotNil(t, first.NotificationDate)
	assert.True(t, rows[0].NotificationDate.Equal(*first.NotificationDate))

	assert.Nil(t, reloaded[1].NotificationDate)
	assert.Nil(t, reloaded[2].OffersReceived)
	assert.Nil(t, reloaded[3].Amount)
	assert.Equal(t, "45000000", reloaded[3].CPVCode)
}

func TestWriteActorRisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), BuyersRiskFile)
	require.NoError(t, WriteActorRisk(path, "acheteur_id", []models.ActorRisk{
		{ID: "B1", HighRiskEdges: 2, Edges: 5, MaxRisk: 0.75},
	}))

	records := readCSV(t, path)
	assert.Equal(t, [][]string{
		{"acheteur_id", "high_edges", "edges", "max_risk"},
		{"B1", "2", "5", "0.75"},
	}, records)
}

func TestWriteAllUnwritableDir(t *testing.T) {
	result := runSample(t)
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := NewFileWriter().WriteAll(result, filepath.Join(file, "out"))
	assert.Error(t, err)
}
