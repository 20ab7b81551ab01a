// Package risk derives concentration, competition and volume features for
// buyer-supplier edges and combines them into a bounded risk score.
//
// Every feature is min-max scaled over the full edge table before being
// weighted, so scores are only comparable within one scoring pass.
package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
)

// Weights of the five normalized components. They must sum to one.
type Weights struct {
	EdgeShareBuyer    float64 `json:"edge_share_buyer"`
	EdgeShareSupplier float64 `json:"edge_share_supplier"`
	CountScore        float64 `json:"count_score"`
	OffersScore       float64 `json:"offers_score"`
	AmountLog         float64 `json:"amount_log"`
}

// DefaultWeights is the baseline weighting of the risk score
var DefaultWeights = Weights{
	EdgeShareBuyer:    0.30,
	EdgeShareSupplier: 0.20,
	CountScore:        0.20,
	OffersScore:       0.20,
	AmountLog:         0.10,
}

// ErrInvalidWeights is returned when weights are negative or do not sum to one
var ErrInvalidWeights = errors.New("invalid risk weights")

// Validate checks that the weights form a convex combination
func (w Weights) Validate() error {
	values := []float64{w.EdgeShareBuyer, w.EdgeShareSupplier, w.CountScore, w.OffersScore, w.AmountLog}
	for _, v := range values {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: negative or NaN weight %v", ErrInvalidWeights, v)
		}
	}
	if sum := floats.Sum(values); math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%w: weights sum to %v", ErrInvalidWeights, sum)
	}
	return nil
}

// Combine applies the weights to a set of normalized components
func (w Weights) Combine(c models.Components) float64 {
	return w.EdgeShareBuyer*c.EdgeShareBuyer +
		w.EdgeShareSupplier*c.EdgeShareSupplier +
		w.CountScore*c.CountScore +
		w.OffersScore*c.OffersScore +
		w.AmountLog*c.AmountLog
}

// Scorer computes scored edges from an edge table
type Scorer struct {
	weights Weights
}

// NewScorer validates the weights and returns a scorer
func NewScorer(weights Weights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights}, nil
}

// Score scores edges with DefaultWeights
func Score(edges []models.Edge) []models.ScoredEdge {
	s := &Scorer{weights: DefaultWeights}
	return s.Score(edges)
}

// Score returns one scored edge per input edge, in input order
func (s *Scorer) Score(edges []models.Edge) []models.ScoredEdge {
	n := len(edges)
	scored := make([]models.ScoredEdge, n)
	if n == 0 {
		return scored
	}

	buyerPartners := make(map[string]map[string]struct{})
	supplierPartners := make(map[string]map[string]struct{})
	buyerTotal := make(map[string]float64)
	supplierTotal := make(map[string]float64)

	for _, e := range edges {
		if buyerPartners[e.BuyerID] == nil {
			buyerPartners[e.BuyerID] = make(map[string]struct{})
		}
		buyerPartners[e.BuyerID][e.SupplierID] = struct{}{}
		if supplierPartners[e.SupplierID] == nil {
			supplierPartners[e.SupplierID] = make(map[string]struct{})
		}
		supplierPartners[e.SupplierID][e.BuyerID] = struct{}{}

		if e.AmountSum != nil {
			buyerTotal[e.BuyerID] += *e.AmountSum
			supplierTotal[e.SupplierID] += *e.AmountSum
		}
	}

	offersScores := offersScore(edges)

	shareBuyer := make([]float64, n)
	shareSupplier := make([]float64, n)
	offers := make([]float64, n)
	amountLog := make([]float64, n)
	count := make([]float64, n)

	for i, e := range edges {
		se := models.ScoredEdge{
			Edge:                e,
			BuyerDegree:         len(buyerPartners[e.BuyerID]),
			SupplierDegree:      len(supplierPartners[e.SupplierID]),
			BuyerTotalAmount:    buyerTotal[e.BuyerID],
			SupplierTotalAmount: supplierTotal[e.SupplierID],
		}

		se.EdgeShareBuyer = share(e.AmountSum, se.BuyerTotalAmount)
		se.EdgeShareSupplier = share(e.AmountSum, se.SupplierTotalAmount)
		se.OffersScore = offersScores[i]

		amount := 0.0
		if e.AmountSum != nil {
			amount = *e.AmountSum
		}
		se.AmountLog = finiteOrZero(math.Log1p(amount))
		se.CountScore = float64(e.Count)

		shareBuyer[i] = valueOrZero(se.EdgeShareBuyer)
		shareSupplier[i] = valueOrZero(se.EdgeShareSupplier)
		offers[i] = se.OffersScore
		amountLog[i] = se.AmountLog
		count[i] = se.CountScore

		scored[i] = se
	}

	shareBuyer = MinMax(shareBuyer)
	shareSupplier = MinMax(shareSupplier)
	offers = MinMax(offers)
	amountLog = MinMax(amountLog)
	count = MinMax(count)

	for i := range scored {
		scored[i].Normalized = models.Components{
			EdgeShareBuyer:    shareBuyer[i],
			EdgeShareSupplier: shareSupplier[i],
			OffersScore:       offers[i],
			AmountLog:         amountLog[i],
			CountScore:        count[i],
		}
		scored[i].RiskScore = s.weights.Combine(scored[i].Normalized)
	}

	return scored
}

// offersScore computes 1/(1+offers) with median imputation of missing offers.
// Without any offers data the feature is zero for every edge.
func offersScore(edges []models.Edge) []float64 {
	scores := make([]float64, len(edges))

	observed := make([]float64, 0, len(edges))
	for _, e := range edges {
		if e.OffersMean != nil {
			observed = append(observed, *e.OffersMean)
		}
	}
	if len(observed) == 0 {
		return scores
	}

	sort.Float64s(observed)
	median := Quantile(observed, 0.5)

	for i, e := range edges {
		offers := median
		if e.OffersMean != nil {
			offers = *e.OffersMean
		}
		scores[i] = finiteOrZero(1.0 / (1.0 + offers))
	}
	return scores
}

func share(amount *float64, total float64) *float64 {
	if amount == nil || total == 0 {
		return nil
	}
	v := *amount / total
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// MinMax scales values to [0,1]. A constant (or empty) column maps to all zeros.
func MinMax(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo, hi := floats.Min(values), floats.Max(values)
	if hi == lo || math.IsNaN(lo) || math.IsNaN(hi) {
		return out
	}

	span := hi - lo
	for i, v := range values {
		out[i] = (v - lo) / span
	}
	return out
}

// Quantile returns the p-quantile of sorted values, interpolating linearly
// between the two nearest order statistics. Empty input yields NaN.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= n {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Range reports the minimum and maximum risk score of a scored table
func Range(scored []models.ScoredEdge) (lo, hi float64) {
	if len(scored) == 0 {
		return 0, 0
	}
	lo, hi = scored[0].RiskScore, scored[0].RiskScore
	for _, e := range scored[1:] {
		lo = math.Min(lo, e.RiskScore)
		hi = math.Max(hi, e.RiskScore)
	}
	return lo, hi
}
