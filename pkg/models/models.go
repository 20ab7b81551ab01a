package models

import (
	"time"
)

// ContractRow represents one procurement award as loaded from the raw table
type ContractRow struct {
	UID                    string     `json:"uid,omitempty"`
	ID                     string     `json:"id,omitempty"`
	Type                   string     `json:"type,omitempty"`
	CPVCode                string     `json:"cpv_code,omitempty"`
	BuyerID                string     `json:"buyer_id"`
	BuyerName              string     `json:"buyer_name,omitempty"`
	SupplierID             string     `json:"supplier_id"`
	SupplierName           string     `json:"supplier_name,omitempty"`
	Amount                 *float64   `json:"amount,omitempty"`
	NotificationDate       *time.Time `json:"notification_date,omitempty"`
	Procedure              string     `json:"procedure,omitempty"`
	DurationMonths         *float64   `json:"duration_months,omitempty"`
	OffersReceived         *float64   `json:"offers_received,omitempty"`
	BuyerDepartmentCode    string     `json:"buyer_department_code,omitempty"`
	SupplierDepartmentCode string     `json:"supplier_department_code,omitempty"`
	BuyerRegionCode        string     `json:"buyer_region_code,omitempty"`
	SupplierRegionCode     string     `json:"supplier_region_code,omitempty"`
}

// PairKey identifies a buyer-supplier relationship. Empty identifiers are valid keys.
type PairKey struct {
	BuyerID    string `json:"buyer_id"`
	SupplierID string `json:"supplier_id"`
}

// Key returns the pair key of a contract row
func (r ContractRow) Key() PairKey {
	return PairKey{BuyerID: r.BuyerID, SupplierID: r.SupplierID}
}

// Edge is the aggregate of every contract row sharing one buyer-supplier pair
type Edge struct {
	BuyerID      string `json:"buyer_id"`
	BuyerName    string `json:"buyer_name"`
	SupplierID   string `json:"supplier_id"`
	SupplierName string `json:"supplier_name"`

	Count int `json:"count"`

	AmountSum  *float64 `json:"amount_sum"`
	AmountMean *float64 `json:"amount_mean"`
	AmountMin  *float64 `json:"amount_min"`
	AmountMax  *float64 `json:"amount_max"`

	OffersMean *float64 `json:"offers_mean"`
	OffersMin  *float64 `json:"offers_min"`
	OffersMax  *float64 `json:"offers_max"`

	FirstNotification *time.Time `json:"first_notification"`
	LastNotification  *time.Time `json:"last_notification"`
}

// Key returns the pair key of an edge
func (e Edge) Key() PairKey {
	return PairKey{BuyerID: e.BuyerID, SupplierID: e.SupplierID}
}

// Components holds the five min-max normalized risk features
type Components struct {
	EdgeShareBuyer    float64 `json:"edge_share_buyer_n"`
	EdgeShareSupplier float64 `json:"edge_share_supplier_n"`
	OffersScore       float64 `json:"offers_score_n"`
	AmountLog         float64 `json:"amount_log_n"`
	CountScore        float64 `json:"count_score_n"`
}

// ScoredEdge is an Edge augmented with derived features and its risk score
type ScoredEdge struct {
	Edge

	BuyerDegree         int     `json:"buyer_degree"`
	SupplierDegree      int     `json:"supplier_degree"`
	BuyerTotalAmount    float64 `json:"buyer_total_amount"`
	SupplierTotalAmount float64 `json:"supplier_total_amount"`

	// Raw shares; nil when the ratio is undefined
	EdgeShareBuyer    *float64 `json:"edge_share_buyer"`
	EdgeShareSupplier *float64 `json:"edge_share_supplier"`

	OffersScore float64 `json:"offers_score"`
	AmountLog   float64 `json:"amount_log"`
	CountScore  float64 `json:"count_score"`

	Normalized Components `json:"normalized"`
	RiskScore  float64    `json:"risk_score"`
}

// SupplierCommunity is one row of the supplier-to-community mapping table
type SupplierCommunity struct {
	SupplierID               string  `json:"supplier_id"`
	CommunityID              int     `json:"community_id"`
	CommunitySize            int     `json:"community_size"`
	ProjectionDegree         int     `json:"supplier_degree_proj"`
	ProjectionWeightedDegree float64 `json:"supplier_wdegree_proj"`
}

// CommunitySummary aggregates risk statistics over the edges of one supplier community
type CommunitySummary struct {
	CommunityID           int      `json:"community_id"`
	SuppliersCount        int      `json:"suppliers_count"`
	BuyersCount           int      `json:"buyers_count"`
	EdgesCount            int      `json:"edges_count"`
	HighRiskEdges         int      `json:"high_risk_edges"`
	MeanRisk              float64  `json:"mean_risk"`
	MedianRisk            float64  `json:"median_risk"`
	MeanOffers            *float64 `json:"mean_offers"`
	MeanEdgeShareBuyer    *float64 `json:"mean_edge_share_buyer"`
	MeanEdgeShareSupplier *float64 `json:"mean_edge_share_supplier"`
	HighRiskShare         float64  `json:"high_risk_share"`
	Enrichment            float64  `json:"high_risk_enrichment"`
}

// RunDiagnostic records the outcome of one seeded community-detection run
type RunDiagnostic struct {
	Seed             int64   `json:"seed"`
	Modularity       float64 `json:"modularity"`
	CommunitiesCount int     `json:"communities_count"`
	Levels           int     `json:"levels"`
	RuntimeMS        int64   `json:"runtime_ms"`
	Excluded         bool    `json:"excluded"`
	Error            string  `json:"error,omitempty"`
}

// GlobalMetrics is the single-row record describing a whole pipeline run
type GlobalMetrics struct {
	ProjectionNodes           int     `json:"projection_nodes"`
	ProjectionEdges           int     `json:"projection_edges"`
	CommunitiesCount          int     `json:"communities_count"`
	LargestCommunitySuppliers int     `json:"largest_community_suppliers"`
	Modularity                float64 `json:"modularity"`
	LouvainRuns               int     `json:"louvain_runs"`
	SeedStart                 int64   `json:"seed_start"`
	BestSeed                  int64   `json:"best_seed"`
	ModularityMean            float64 `json:"modularity_mean"`
	ModularityStd             float64 `json:"modularity_std"`
	ModularityMin             float64 `json:"modularity_min"`
	ModularityMax             float64 `json:"modularity_max"`
	RiskThreshold             float64 `json:"risk_p95_threshold"`
	GlobalHighRiskShare       float64 `json:"global_high_risk_share"`
}

// ActorRisk counts high-risk edges of one buyer or supplier
type ActorRisk struct {
	ID            string  `json:"id"`
	HighRiskEdges int     `json:"high_edges"`
	Edges         int     `json:"edges"`
	MaxRisk       float64 `json:"max_risk"`
}

// SupplierRank is the PageRank centrality of a supplier in the projection
type SupplierRank struct {
	SupplierID string  `json:"supplier_id"`
	PageRank   float64 `json:"pagerank"`
}

// QuantilePoint is one point of the risk score distribution
type QuantilePoint struct {
	Quantile  float64 `json:"quantile"`
	RiskScore float64 `json:"risk_score"`
}

// Float returns a pointer to v, used to build optional numeric fields
func Float(v float64) *float64 {
	return &v
}
