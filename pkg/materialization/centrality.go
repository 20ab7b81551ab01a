package materialization

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
)

// Default PageRank parameters
const (
	DefaultDamping   = 0.85
	DefaultTolerance = 1e-6
)

// PageRank ranks suppliers by weighted PageRank over the projection, highest
// first with ties broken by supplier id. Each undirected edge is walked in
// both directions with its shared-buyer weight.
func (p *SupplierProjection) PageRank(damping, tolerance float64) []models.SupplierRank {
	ranks := make([]models.SupplierRank, 0, len(p.suppliers))
	if len(p.suppliers) == 0 {
		return ranks
	}

	directed := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for i := range p.suppliers {
		directed.AddNode(simple.Node(int64(i)))
	}
	for _, e := range p.edges {
		from, to := simple.Node(int64(e.From)), simple.Node(int64(e.To))
		directed.SetWeightedEdge(simple.WeightedEdge{F: from, T: to, W: e.Weight})
		directed.SetWeightedEdge(simple.WeightedEdge{F: to, T: from, W: e.Weight})
	}

	scores := network.PageRank(directed, damping, tolerance)
	for i, supplier := range p.suppliers {
		ranks = append(ranks, models.SupplierRank{SupplierID: supplier, PageRank: scores[int64(i)]})
	}

	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].PageRank != ranks[j].PageRank {
			return ranks[i].PageRank > ranks[j].PageRank
		}
		return ranks[i].SupplierID < ranks[j].SupplierID
	})
	return ranks
}

// TopSuppliers returns the k most central suppliers with default parameters
func (p *SupplierProjection) TopSuppliers(k int) []models.SupplierRank {
	ranks := p.PageRank(DefaultDamping, DefaultTolerance)
	if k >= 0 && len(ranks) > k {
		ranks = ranks[:k]
	}
	return ranks
}
