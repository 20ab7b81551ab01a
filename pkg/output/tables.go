package output

import (
	"strconv"

	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
)

// ContractHeader uses the DECP column names so the file reloads with
// parser.DefaultColumnMapping
var ContractHeader = []string{
	"uid", "id", "type", "codeCPV",
	"acheteur_id", "acheteur_nom", "titulaire_id", "titulaire_nom",
	"montant", "dateNotification", "procedure", "dureeMois", "offresRecues",
	"acheteur_departement_code", "titulaire_departement_code",
	"acheteur_region_code", "titulaire_region_code",
}

var edgeHeader = []string{
	"acheteur_id", "acheteur_nom", "titulaire_id", "titulaire_nom",
	"montant_count", "montant_sum", "montant_mean", "montant_min", "montant_max",
	"offresRecues_mean", "offresRecues_min", "offresRecues_max",
	"dateNotification_min", "dateNotification_max",
}

var featureHeader = append(append([]string{}, edgeHeader...),
	"buyer_degree", "supplier_degree",
	"buyer_total_amount", "supplier_total_amount",
	"edge_share_buyer", "edge_share_supplier",
	"offers_score", "amount_log", "count_score",
	"edge_share_buyer_n", "edge_share_supplier_n",
	"offers_score_n", "amount_log_n", "count_score_n",
	"risk_score",
)

// WriteContracts writes the cleaned contract rows
func WriteContracts(path string, rows []models.ContractRow) error {
	return writeCSV(path, ContractHeader, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.UID, r.ID, r.Type, r.CPVCode,
			r.BuyerID, r.BuyerName, r.SupplierID, r.SupplierName,
			formatOptional(r.Amount), formatDate(r.NotificationDate), r.Procedure,
			formatOptional(r.DurationMonths), formatOptional(r.OffersReceived),
			r.BuyerDepartmentCode, r.SupplierDepartmentCode,
			r.BuyerRegionCode, r.SupplierRegionCode,
		}
	})
}

func edgeRecord(e models.Edge) []string {
	return []string{
		e.BuyerID, e.BuyerName, e.SupplierID, e.SupplierName,
		strconv.Itoa(e.Count),
		formatOptional(e.AmountSum), formatOptional(e.AmountMean),
		formatOptional(e.AmountMin), formatOptional(e.AmountMax),
		formatOptional(e.OffersMean), formatOptional(e.OffersMin), formatOptional(e.OffersMax),
		formatDate(e.FirstNotification), formatDate(e.LastNotification),
	}
}

// WriteEdges writes the aggregated buyer-supplier edges
func WriteEdges(path string, edges []models.Edge) error {
	return writeCSV(path, edgeHeader, len(edges), func(i int) []string {
		return edgeRecord(edges[i])
	})
}

// WriteScoredEdges writes edges with every derived feature and the risk score
func WriteScoredEdges(path string, scored []models.ScoredEdge) error {
	return writeCSV(path, featureHeader, len(scored), func(i int) []string {
		e := scored[i]
		return append(edgeRecord(e.Edge),
			strconv.Itoa(e.BuyerDegree), strconv.Itoa(e.SupplierDegree),
			formatFloat(e.BuyerTotalAmount), formatFloat(e.SupplierTotalAmount),
			formatOptional(e.EdgeShareBuyer), formatOptional(e.EdgeShareSupplier),
			formatFloat(e.OffersScore), formatFloat(e.AmountLog), formatFloat(e.CountScore),
			formatFloat(e.Normalized.EdgeShareBuyer), formatFloat(e.Normalized.EdgeShareSupplier),
			formatFloat(e.Normalized.OffersScore), formatFloat(e.Normalized.AmountLog),
			formatFloat(e.Normalized.CountScore),
			formatFloat(e.RiskScore),
		)
	})
}

// WriteSupplierCommunities writes the supplier-to-community mapping
func WriteSupplierCommunities(path string, rows []models.SupplierCommunity) error {
	header := []string{"supplier_id", "community_id", "community_size", "supplier_degree_proj", "supplier_wdegree_proj"}
	return writeCSV(path, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.SupplierID,
			strconv.Itoa(r.CommunityID),
			strconv.Itoa(r.CommunitySize),
			strconv.Itoa(r.ProjectionDegree),
			formatFloat(r.ProjectionWeightedDegree),
		}
	})
}

// WriteSummary writes community summary rows in the given order
func WriteSummary(path string, rows []models.CommunitySummary) error {
	header := []string{
		"community_id", "suppliers_count", "buyers_count", "edges_count", "high_risk_edges",
		"mean_risk", "median_risk", "mean_offers",
		"mean_edge_share_buyer", "mean_edge_share_supplier",
		"high_risk_share", "high_risk_enrichment",
	}
	return writeCSV(path, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			strconv.Itoa(r.CommunityID),
			strconv.Itoa(r.SuppliersCount),
			strconv.Itoa(r.BuyersCount),
			strconv.Itoa(r.EdgesCount),
			strconv.Itoa(r.HighRiskEdges),
			formatFloat(r.MeanRisk),
			formatFloat(r.MedianRisk),
			formatOptional(r.MeanOffers),
			formatOptional(r.MeanEdgeShareBuyer),
			formatOptional(r.MeanEdgeShareSupplier),
			formatFloat(r.HighRiskShare),
			formatFloat(r.Enrichment),
		}
	})
}

// WriteMetrics writes the single-row global metrics record
func WriteMetrics(path string, m models.GlobalMetrics) error {
	header := []string{
		"projection_nodes", "projection_edges", "communities_count", "largest_community_suppliers",
		"modularity", "louvain_runs", "seed_start", "best_seed",
		"modularity_mean", "modularity_std", "modularity_min", "modularity_max",
		"risk_p95_threshold", "global_high_risk_share",
	}
	return writeCSV(path, header, 1, func(int) []string {
		return []string{
			strconv.Itoa(m.ProjectionNodes),
			strconv.Itoa(m.ProjectionEdges),
			strconv.Itoa(m.CommunitiesCount),
			strconv.Itoa(m.LargestCommunitySuppliers),
			formatFloat(m.Modularity),
			strconv.Itoa(m.LouvainRuns),
			strconv.FormatInt(m.SeedStart, 10),
			strconv.FormatInt(m.BestSeed, 10),
			formatFloat(m.ModularityMean),
			formatFloat(m.ModularityStd),
			formatFloat(m.ModularityMin),
			formatFloat(m.ModularityMax),
			formatFloat(m.RiskThreshold),
			formatFloat(m.GlobalHighRiskShare),
		}
	})
}

// WriteRuns writes per-seed detection diagnostics
func WriteRuns(path string, runs []models.RunDiagnostic) error {
	header := []string{"seed", "modularity", "communities_count", "levels", "runtime_ms", "excluded", "error"}
	return writeCSV(path, header, len(runs), func(i int) []string {
		r := runs[i]
		return []string{
			strconv.FormatInt(r.Seed, 10),
			formatFloat(r.Modularity),
			strconv.Itoa(r.CommunitiesCount),
			strconv.Itoa(r.Levels),
			strconv.FormatInt(r.RuntimeMS, 10),
			strconv.FormatBool(r.Excluded),
			r.Error,
		}
	})
}

// WriteActorRisk writes a buyer or supplier high-risk ranking; idColumn names
// the identifier column
func WriteActorRisk(path, idColumn string, rows []models.ActorRisk) error {
	header := []string{idColumn, "high_edges", "edges", "max_risk"}
	return writeCSV(path, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{r.ID, strconv.Itoa(r.HighRiskEdges), strconv.Itoa(r.Edges), formatFloat(r.MaxRisk)}
	})
}

// WriteQuantiles writes the risk score distribution
func WriteQuantiles(path string, points []models.QuantilePoint) error {
	return writeCSV(path, []string{"quantile", "risk_score"}, len(points), func(i int) []string {
		return []string{formatFloat(points[i].Quantile), formatFloat(points[i].RiskScore)}
	})
}

// WriteSupplierRanks writes suppliers ordered by projection PageRank
func WriteSupplierRanks(path string, ranks []models.SupplierRank) error {
	return writeCSV(path, []string{"supplier_id", "pagerank"}, len(ranks), func(i int) []string {
		return []string{ranks[i].SupplierID, formatFloat(ranks[i].PageRank)}
	})
}
