// Package aggregation collapses contract rows into one edge per buyer-supplier pair.
package aggregation

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
	"github.com/gilchrisn/procurement-risk-graph/pkg/parser"
)

// Func is an aggregate function applied to one input field
type Func string

const (
	Sum  Func = "sum"
	Mean Func = "mean"
	Min  Func = "min"
	Max  Func = "max"
)

// ErrUnsupportedAggregation is returned by Spec.Validate
var ErrUnsupportedAggregation = errors.New("unsupported aggregation")

// Spec declares which aggregates are computed for each input field.
// Row count and first-seen names are always produced.
type Spec map[parser.Field][]Func

var supported = map[parser.Field]map[Func]bool{
	parser.FieldAmount:           {Sum: true, Mean: true, Min: true, Max: true},
	parser.FieldOffersReceived:   {Mean: true, Min: true, Max: true},
	parser.FieldNotificationDate: {Min: true, Max: true},
}

// DefaultSpec returns the aggregation table used by the edge builder
func DefaultSpec() Spec {
	return Spec{
		parser.FieldAmount:           {Sum, Mean, Min, Max},
		parser.FieldOffersReceived:   {Mean, Min, Max},
		parser.FieldNotificationDate: {Min, Max},
	}
}

// Validate checks every declared aggregate has an Edge attribute to land in
func (s Spec) Validate() error {
	for field, funcs := range s {
		allowed, ok := supported[field]
		if !ok {
			return fmt.Errorf("%w: field %s", ErrUnsupportedAggregation, field)
		}
		for _, f := range funcs {
			if !allowed[f] {
				return fmt.Errorf("%w: %s of %s", ErrUnsupportedAggregation, f, field)
			}
		}
	}
	return nil
}

func (s Spec) has(field parser.Field, f Func) bool {
	for _, candidate := range s[field] {
		if candidate == f {
			return true
		}
	}
	return false
}

// Aggregator groups rows by exact (buyer, supplier) identifier pair
type Aggregator struct {
	spec Spec
}

// NewAggregator validates the spec and returns an aggregator
func NewAggregator(spec Spec) (*Aggregator, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{spec: spec}, nil
}

// Aggregate builds edges with the default spec
func Aggregate(rows []models.ContractRow) []models.Edge {
	agg := &Aggregator{spec: DefaultSpec()}
	return agg.Aggregate(rows)
}

type numericAcc struct {
	n   int
	sum float64
	min float64
	max float64
}

func (a *numericAcc) add(v *float64) {
	if v == nil {
		return
	}
	if a.n == 0 || *v < a.min {
		a.min = *v
	}
	if a.n == 0 || *v > a.max {
		a.max = *v
	}
	a.sum += *v
	a.n++
}

type dateAcc struct {
	set bool
	min time.Time
	max time.Time
}

func (a *dateAcc) add(t *time.Time) {
	if t == nil {
		return
	}
	if !a.set || t.Before(a.min) {
		a.min = *t
	}
	if !a.set || t.After(a.max) {
		a.max = *t
	}
	a.set = true
}

type group struct {
	edge   models.Edge
	amount numericAcc
	offers numericAcc
	dates  dateAcc
}

// Aggregate returns one edge per distinct pair, sorted by buyer then supplier
func (a *Aggregator) Aggregate(rows []models.ContractRow) []models.Edge {
	groups := make(map[models.PairKey]*group)

	for _, row := range rows {
		key := row.Key()
		g, exists := groups[key]
		if !exists {
			g = &group{edge: models.Edge{
				BuyerID:      row.BuyerID,
				BuyerName:    row.BuyerName,
				SupplierID:   row.SupplierID,
				SupplierName: row.SupplierName,
			}}
			groups[key] = g
		}

		g.edge.Count++
		g.amount.add(row.Amount)
		g.offers.add(row.OffersReceived)
		g.dates.add(row.NotificationDate)
	}

	edges := make([]models.Edge, 0, len(groups))
	for _, g := range groups {
		edges = append(edges, a.finalize(g))
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].BuyerID != edges[j].BuyerID {
			return edges[i].BuyerID < edges[j].BuyerID
		}
		return edges[i].SupplierID < edges[j].SupplierID
	})

	return edges
}

func (a *Aggregator) finalize(g *group) models.Edge {
	edge := g.edge

	if g.amount.n > 0 {
		if a.spec.has(parser.FieldAmount, Sum) {
			edge.AmountSum = models.Float(g.amount.sum)
		}
		if a.spec.has(parser.FieldAmount, Mean) {
			edge.AmountMean = models.Float(g.amount.sum / float64(g.amount.n))
		}
		if a.spec.has(parser.FieldAmount, Min) {
			edge.AmountMin = models.Float(g.amount.min)
		}
		if a.spec.has(parser.FieldAmount, Max) {
			edge.AmountMax = models.Float(g.amount.max)
		}
	}

	if g.offers.n > 0 {
		if a.spec.has(parser.FieldOffersReceived, Mean) {
			edge.OffersMean = models.Float(g.offers.sum / float64(g.offers.n))
		}
		if a.spec.has(parser.FieldOffersReceived, Min) {
			edge.OffersMin = models.Float(g.offers.min)
		}
		if a.spec.has(parser.FieldOffersReceived, Max) {
			edge.OffersMax = models.Float(g.offers.max)
		}
	}

	if g.dates.set {
		if a.spec.has(parser.FieldNotificationDate, Min) {
			first := g.dates.min
			edge.FirstNotification = &first
		}
		if a.spec.has(parser.FieldNotificationDate, Max) {
			last := g.dates.max
			edge.LastNotification = &last
		}
	}

	return edge
}

// Stats summarizes an aggregation
type Stats struct {
	Rows      int `json:"rows"`
	Buyers    int `json:"buyers"`
	Suppliers int `json:"suppliers"`
	Edges     int `json:"edges"`
}

// ComputeStats counts rows, distinct buyers, distinct suppliers and edges
func ComputeStats(rows []models.ContractRow, edges []models.Edge) Stats {
	buyers := make(map[string]struct{})
	suppliers := make(map[string]struct{})
	for _, row := range rows {
		buyers[row.BuyerID] = struct{}{}
		suppliers[row.SupplierID] = struct{}{}
	}
	return Stats{
		Rows:      len(rows),
		Buyers:    len(buyers),
		Suppliers: len(suppliers),
		Edges:     len(edges),
	}
}
