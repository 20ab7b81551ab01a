package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
)

func TestTopRiskEdges(t *testing.T) {
	scored, _ := tenEdges()

	top := TopRiskEdges(scored, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "S9", top[0].SupplierID)
	assert.Equal(t, "S8", top[1].SupplierID)
	assert.Equal(t, "S7", top[2].SupplierID)

	// input is left untouched
	assert.Equal(t, "S0", scored[0].SupplierID)

	assert.Len(t, TopRiskEdges(scored, 50), 10)
	assert.Empty(t, TopRiskEdges(nil, 5))
}

func TestTopRiskEdgesTiesKeepInputOrder(t *testing.T) {
	scored := []models.ScoredEdge{
		{Edge: models.Edge{SupplierID: "A"}, RiskScore: 0.5},
		{Edge: models.Edge{SupplierID: "B"}, RiskScore: 0.9},
		{Edge: models.Edge{SupplierID: "C"}, RiskScore: 0.5},
	}

	top := TopRiskEdges(scored, 3)
	assert.Equal(t, "B", top[0].SupplierID)
	assert.Equal(t, "A", top[1].SupplierID)
	assert.Equal(t, "C", top[2].SupplierID)
}

func TestHighRiskActors(t *testing.T) {
	scored, assignment := tenEdges()
	s, err := Summarize(scored, assignment, DefaultOptions())
	require.NoError(t, err)

	buyers := s.HighRiskBuyers(scored, 10)
	assert.Equal(t, []models.ActorRisk{
		{ID: "B1", HighRiskEdges: 1, Edges: 5, MaxRisk: 0.9},
		{ID: "B0", HighRiskEdges: 0, Edges: 5, MaxRisk: 0.8},
	}, buyers)

	assert.Len(t, s.HighRiskBuyers(scored, 1), 1)

	suppliers := s.HighRiskSuppliers(scored, 3)
	require.Len(t, suppliers, 3)
	assert.Equal(t, "S9", suppliers[0].ID)
	assert.Equal(t, 1, suppliers[0].HighRiskEdges)
	assert.Equal(t, "S8", suppliers[1].ID)
	assert.Equal(t, "S7", suppliers[2].ID)
}

func TestHighRiskActorsTieBreak(t *testing.T) {
	scored := []models.ScoredEdge{
		{Edge: models.Edge{BuyerID: "Z", SupplierID: "S1"}, RiskScore: 0.5},
		{Edge: models.Edge{BuyerID: "A", SupplierID: "S2"}, RiskScore: 0.5},
		{Edge: models.Edge{BuyerID: "M", SupplierID: "S3"}, RiskScore: 0.5},
		{Edge: models.Edge{BuyerID: "M", SupplierID: "S4"}, RiskScore: 0.5},
	}
	s, err := Summarize(scored, map[string]int{"S1": 0, "S2": 0, "S3": 1, "S4": 1}, DefaultOptions())
	require.NoError(t, err)

	buyers := s.HighRiskBuyers(scored, -1)
	require.Len(t, buyers, 3)
	assert.Equal(t, "M", buyers[0].ID, "more high-risk edges first")
	assert.Equal(t, "A", buyers[1].ID)
	assert.Equal(t, "Z", buyers[2].ID)
}

func TestRiskQuantiles(t *testing.T) {
	scored, _ := tenEdges()

	points := RiskQuantiles(scored)
	require.Len(t, points, len(DistributionQuantiles))

	byQuantile := make(map[float64]float64)
	for i, p := range points {
		assert.Equal(t, DistributionQuantiles[i], p.Quantile)
		byQuantile[p.Quantile] = p.RiskScore
		if i > 0 {
			assert.GreaterOrEqual(t, p.RiskScore, points[i-1].RiskScore)
		}
	}
	assert.Equal(t, 0.0, byQuantile[0])
	assert.InDelta(t, 0.45, byQuantile[0.5], 1e-12)
	assert.InDelta(t, 0.855, byQuantile[0.95], 1e-12)
	assert.InDelta(t, 0.9, byQuantile[1], 1e-12)

	assert.Empty(t, RiskQuantiles(nil))
}
