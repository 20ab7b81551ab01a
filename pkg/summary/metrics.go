package summary

import (
	"sort"

	"github.com/gilchrisn/procurement-risk-graph/pkg/clustering"
	"github.com/gilchrisn/procurement-risk-graph/pkg/materialization"
	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
)

// SupplierCommunities builds the supplier-to-community table, ordered by
// community id, then projection weighted degree descending, then supplier id
func SupplierCommunities(partition clustering.Partition, proj *materialization.SupplierProjection) []models.SupplierCommunity {
	sizes := partition.Sizes()
	rows := make([]models.SupplierCommunity, 0, proj.NumNodes())
	for _, supplier := range proj.Suppliers() {
		community, ok := partition.Assignment[supplier]
		if !ok {
			continue
		}
		rows = append(rows, models.SupplierCommunity{
			SupplierID:               supplier,
			CommunityID:              community,
			CommunitySize:            sizes[community],
			ProjectionDegree:         proj.Degree(supplier),
			ProjectionWeightedDegree: proj.WeightedDegree(supplier),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.CommunityID != b.CommunityID {
			return a.CommunityID < b.CommunityID
		}
		if a.ProjectionWeightedDegree != b.ProjectionWeightedDegree {
			return a.ProjectionWeightedDegree > b.ProjectionWeightedDegree
		}
		return a.SupplierID < b.SupplierID
	})
	return rows
}

// Global assembles the single-row metrics record of a pipeline run
func Global(proj *materialization.SupplierProjection, detection *clustering.Detection, s *Summary) models.GlobalMetrics {
	mean, std, lo, hi := detection.ModularityStats()
	return models.GlobalMetrics{
		ProjectionNodes:           proj.NumNodes(),
		ProjectionEdges:           proj.NumEdges(),
		CommunitiesCount:          len(detection.Communities),
		LargestCommunitySuppliers: detection.Largest(),
		Modularity:                detection.Modularity,
		LouvainRuns:               len(detection.Runs),
		SeedStart:                 detection.SeedStart,
		BestSeed:                  detection.BestSeed,
		ModularityMean:            mean,
		ModularityStd:             std,
		ModularityMin:             lo,
		ModularityMax:             hi,
		RiskThreshold:             s.Threshold,
		GlobalHighRiskShare:       s.GlobalHighRiskShare,
	}
}
