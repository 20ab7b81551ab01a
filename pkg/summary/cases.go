package summary

import (
	"sort"

	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
	"github.com/gilchrisn/procurement-risk-graph/pkg/risk"
)

// DistributionQuantiles are the points reported by RiskQuantiles
var DistributionQuantiles = []float64{0, 0.05, 0.1, 0.25, 0.5, 0.75, 0.9, 0.95, 1}

// TopRiskEdges returns the k highest-risk edges. Ties keep input order.
func TopRiskEdges(scored []models.ScoredEdge, k int) []models.ScoredEdge {
	top := make([]models.ScoredEdge, len(scored))
	copy(top, scored)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].RiskScore > top[j].RiskScore
	})
	if k >= 0 && len(top) > k {
		top = top[:k]
	}
	return top
}

// HighRiskBuyers ranks buyers by their number of high-risk edges, then
// maximum risk, then edge count
func (s *Summary) HighRiskBuyers(scored []models.ScoredEdge, k int) []models.ActorRisk {
	return s.rankActors(scored, k, func(e models.ScoredEdge) string { return e.BuyerID })
}

// HighRiskSuppliers is HighRiskBuyers for the supplier side
func (s *Summary) HighRiskSuppliers(scored []models.ScoredEdge, k int) []models.ActorRisk {
	return s.rankActors(scored, k, func(e models.ScoredEdge) string { return e.SupplierID })
}

func (s *Summary) rankActors(scored []models.ScoredEdge, k int, key func(models.ScoredEdge) string) []models.ActorRisk {
	index := make(map[string]int)
	actors := make([]models.ActorRisk, 0)

	for i, e := range scored {
		id := key(e)
		pos, ok := index[id]
		if !ok {
			pos = len(actors)
			index[id] = pos
			actors = append(actors, models.ActorRisk{ID: id, MaxRisk: e.RiskScore})
		}
		a := &actors[pos]
		a.Edges++
		if i < len(s.HighRisk) && s.HighRisk[i] {
			a.HighRiskEdges++
		}
		if e.RiskScore > a.MaxRisk {
			a.MaxRisk = e.RiskScore
		}
	}

	sort.Slice(actors, func(i, j int) bool {
		a, b := actors[i], actors[j]
		if a.HighRiskEdges != b.HighRiskEdges {
			return a.HighRiskEdges > b.HighRiskEdges
		}
		if a.MaxRisk != b.MaxRisk {
			return a.MaxRisk > b.MaxRisk
		}
		if a.Edges != b.Edges {
			return a.Edges > b.Edges
		}
		return a.ID < b.ID
	})
	if k >= 0 && len(actors) > k {
		actors = actors[:k]
	}
	return actors
}

// RiskQuantiles describes the risk score distribution at DistributionQuantiles
func RiskQuantiles(scored []models.ScoredEdge) []models.QuantilePoint {
	points := make([]models.QuantilePoint, 0, len(DistributionQuantiles))
	if len(scored) == 0 {
		return points
	}

	risks := make([]float64, len(scored))
	for i, e := range scored {
		risks[i] = e.RiskScore
	}
	sort.Float64s(risks)

	for _, q := range DistributionQuantiles {
		points = append(points, models.QuantilePoint{Quantile: q, RiskScore: risk.Quantile(risks, q)})
	}
	return points
}
