// Package summary joins community assignments onto scored edges and
// aggregates risk concentration per supplier community.
package summary

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
	"github.com/gilchrisn/procurement-risk-graph/pkg/risk"
)

// ErrUnassignedSupplier is returned when a scored edge's supplier has no community
var ErrUnassignedSupplier = errors.New("supplier has no assigned community")

// DefaultPercentile is the risk quantile above which an edge is high risk
const DefaultPercentile = 0.95

// Options configures the summarizer
type Options struct {
	Percentile float64
}

// DefaultOptions returns the 95th percentile threshold
func DefaultOptions() Options {
	return Options{Percentile: DefaultPercentile}
}

// Summary is the per-community risk table plus the global threshold figures
type Summary struct {
	Threshold           float64                   `json:"risk_p95_threshold"`
	GlobalHighRiskShare float64                   `json:"global_high_risk_share"`
	HighRisk            []bool                    `json:"-"` // parallel to the scored edges
	EdgeCommunity       []int                     `json:"-"` // parallel to the scored edges
	Communities         []models.CommunitySummary `json:"communities"`
}

type communityAcc struct {
	suppliers     map[string]struct{}
	buyers        map[string]struct{}
	risks         []float64
	highRisk      int
	offers        []float64
	shareBuyer    []float64
	shareSupplier []float64
}

// Summarize flags high-risk edges and aggregates them per community of their
// supplier endpoint. Rows are sorted by high-risk share, high-risk edges and
// edge count (all descending), then community id.
func Summarize(scored []models.ScoredEdge, assignment map[string]int, opts Options) (*Summary, error) {
	if opts.Percentile <= 0 || opts.Percentile > 1 {
		return nil, fmt.Errorf("percentile must be in (0, 1], got %v", opts.Percentile)
	}

	s := &Summary{
		HighRisk:      make([]bool, len(scored)),
		EdgeCommunity: make([]int, len(scored)),
		Communities:   make([]models.CommunitySummary, 0),
	}
	if len(scored) == 0 {
		return s, nil
	}

	risks := make([]float64, len(scored))
	for i, e := range scored {
		risks[i] = e.RiskScore
	}
	sort.Float64s(risks)
	s.Threshold = risk.Quantile(risks, opts.Percentile)

	accs := make(map[int]*communityAcc)
	highRiskTotal := 0
	for i, e := range scored {
		community, ok := assignment[e.SupplierID]
		if !ok {
			return nil, fmt.Errorf("%w: %q (buyer %q)", ErrUnassignedSupplier, e.SupplierID, e.BuyerID)
		}
		s.EdgeCommunity[i] = community

		acc, ok := accs[community]
		if !ok {
			acc = &communityAcc{
				suppliers: make(map[string]struct{}),
				buyers:    make(map[string]struct{}),
			}
			accs[community] = acc
		}

		acc.suppliers[e.SupplierID] = struct{}{}
		acc.buyers[e.BuyerID] = struct{}{}
		acc.risks = append(acc.risks, e.RiskScore)

		if e.RiskScore >= s.Threshold {
			s.HighRisk[i] = true
			acc.highRisk++
			highRiskTotal++
		}
		if e.OffersMean != nil {
			acc.offers = append(acc.offers, *e.OffersMean)
		}
		if e.EdgeShareBuyer != nil {
			acc.shareBuyer = append(acc.shareBuyer, *e.EdgeShareBuyer)
		}
		if e.EdgeShareSupplier != nil {
			acc.shareSupplier = append(acc.shareSupplier, *e.EdgeShareSupplier)
		}
	}
	s.GlobalHighRiskShare = float64(highRiskTotal) / float64(len(scored))

	for id, acc := range accs {
		sort.Float64s(acc.risks)
		row := models.CommunitySummary{
			CommunityID:           id,
			SuppliersCount:        len(acc.suppliers),
			BuyersCount:           len(acc.buyers),
			EdgesCount:            len(acc.risks),
			HighRiskEdges:         acc.highRisk,
			MeanRisk:              stat.Mean(acc.risks, nil),
			MedianRisk:            risk.Quantile(acc.risks, 0.5),
			MeanOffers:            mean(acc.offers),
			MeanEdgeShareBuyer:    mean(acc.shareBuyer),
			MeanEdgeShareSupplier: mean(acc.shareSupplier),
		}
		row.HighRiskShare = float64(row.HighRiskEdges) / float64(row.EdgesCount)
		if s.GlobalHighRiskShare > 0 {
			row.Enrichment = row.HighRiskShare / s.GlobalHighRiskShare
		}
		s.Communities = append(s.Communities, row)
	}

	sort.Slice(s.Communities, func(i, j int) bool {
		a, b := s.Communities[i], s.Communities[j]
		if a.HighRiskShare != b.HighRiskShare {
			return a.HighRiskShare > b.HighRiskShare
		}
		if a.HighRiskEdges != b.HighRiskEdges {
			return a.HighRiskEdges > b.HighRiskEdges
		}
		if a.EdgesCount != b.EdgesCount {
			return a.EdgesCount > b.EdgesCount
		}
		return a.CommunityID < b.CommunityID
	})

	return s, nil
}

// TopLarge keeps communities with at least minEdges edges and returns the
// first topK of them in summary order
func TopLarge(rows []models.CommunitySummary, minEdges, topK int) []models.CommunitySummary {
	out := make([]models.CommunitySummary, 0, topK)
	for _, row := range rows {
		if len(out) >= topK {
			break
		}
		if row.EdgesCount >= minEdges {
			out = append(out, row)
		}
	}
	return out
}

// Find returns the summary row of a community
func (s *Summary) Find(communityID int) (models.CommunitySummary, bool) {
	for _, row := range s.Communities {
		if row.CommunityID == communityID {
			return row, true
		}
	}
	return models.CommunitySummary{}, false
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := stat.Mean(values, nil)
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return nil
	}
	return &m
}
