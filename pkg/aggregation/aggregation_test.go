package aggregation

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
	"github.com/gilchrisn/procurement-risk-graph/pkg/parser"
)

func day(d int) *time.Time {
	t := time.Date(2023, 1, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestAggregate(t *testing.T) {
	rows := []models.ContractRow{
		{BuyerID: "B2", SupplierID: "S1", SupplierName: "Acme", Amount: models.Float(100), OffersReceived: models.Float(1), NotificationDate: day(5)},
		{BuyerID: "B1", SupplierID: "S1", BuyerName: "Lyon", SupplierName: "Acme", Amount: models.Float(10), OffersReceived: models.Float(4), NotificationDate: day(9)},
		{BuyerID: "B1", SupplierID: "S1", BuyerName: "Lyon (renamed)", Amount: models.Float(30), NotificationDate: day(2)},
		{BuyerID: "B1", SupplierID: "S2"},
	}

	edges := Aggregate(rows)
	require.Len(t, edges, 3)

	// sorted by buyer then supplier
	assert.Equal(t, models.PairKey{BuyerID: "B1", SupplierID: "S1"}, edges[0].Key())
	assert.Equal(t, models.PairKey{BuyerID: "B1", SupplierID: "S2"}, edges[1].Key())
	assert.Equal(t, models.PairKey{BuyerID: "B2", SupplierID: "S1"}, edges[2].Key())

	e := edges[0]
	assert.Equal(t, 2, e.Count)
	assert.Equal(t, "Lyon", e.BuyerName, "first seen name wins")
	assert.Equal(t, 40.0, *e.AmountSum)
	assert.Equal(t, 20.0, *e.AmountMean)
	assert.Equal(t, 10.0, *e.AmountMin)
	assert.Equal(t, 30.0, *e.AmountMax)
	assert.Equal(t, 4.0, *e.OffersMean, "missing offers are skipped")
	assert.Equal(t, *day(2), *e.FirstNotification)
	assert.Equal(t, *day(9), *e.LastNotification)

	empty := edges[1]
	assert.Equal(t, 1, empty.Count)
	assert.Nil(t, empty.AmountSum)
	assert.Nil(t, empty.AmountMean)
	assert.Nil(t, empty.OffersMean)
	assert.Nil(t, empty.FirstNotification)
}

func TestAggregateMissingIdentifiers(t *testing.T) {
	rows := []models.ContractRow{
		{BuyerID: "", SupplierID: "S1"},
		{BuyerID: "", SupplierID: "S1"},
		{BuyerID: "B1", SupplierID: ""},
	}

	edges := Aggregate(rows)
	require.Len(t, edges, 2)
	assert.Equal(t, "", edges[0].BuyerID)
	assert.Equal(t, 2, edges[0].Count)
	assert.Equal(t, "", edges[1].SupplierID)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}

func TestNewAggregatorSpec(t *testing.T) {
	_, err := NewAggregator(Spec{parser.FieldOffersReceived: {Sum}})
	assert.ErrorIs(t, err, ErrUnsupportedAggregation)

	_, err = NewAggregator(Spec{parser.FieldProcedure: {Min}})
	assert.ErrorIs(t, err, ErrUnsupportedAggregation)

	agg, err := NewAggregator(Spec{parser.FieldAmount: {Sum}})
	require.NoError(t, err)

	edges := agg.Aggregate([]models.ContractRow{
		{BuyerID: "B1", SupplierID: "S1", Amount: models.Float(5), OffersReceived: models.Float(2)},
	})
	require.Len(t, edges, 1)
	assert.Equal(t, 5.0, *edges[0].AmountSum)
	assert.Nil(t, edges[0].AmountMean)
	assert.Nil(t, edges[0].OffersMean)
}

func TestComputeStats(t *testing.T) {
	rows := []models.ContractRow{
		{BuyerID: "B1", SupplierID: "S1"},
		{BuyerID: "B1", SupplierID: "S1"},
		{BuyerID: "B2", SupplierID: "S1"},
		{BuyerID: "B2", SupplierID: "S3"},
	}

	stats := ComputeStats(rows, Aggregate(rows))
	assert.Equal(t, Stats{Rows: 4, Buyers: 2, Suppliers: 2, Edges: 3}, stats)
}

// TestAggregateInvariants checks structural properties over random row tables
func TestAggregateInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	toRows := func(pairs []int) []models.ContractRow {
		rows := make([]models.ContractRow, len(pairs))
		for i, p := range pairs {
			rows[i] = models.ContractRow{
				BuyerID:    fmt.Sprintf("B%d", p/5),
				SupplierID: fmt.Sprintf("S%d", p%5),
				Amount:     models.Float(float64(i)),
			}
		}
		return rows
	}

	properties.Property("edge counts sum to row count", prop.ForAll(
		func(pairs []int) bool {
			rows := toRows(pairs)
			total := 0
			for _, e := range Aggregate(rows) {
				total += e.Count
			}
			return total == len(rows)
		},
		gen.SliceOf(gen.IntRange(0, 24)),
	))

	properties.Property("pairs are unique and ordered", prop.ForAll(
		func(pairs []int) bool {
			edges := Aggregate(toRows(pairs))
			for i := 1; i < len(edges); i++ {
				prev, cur := edges[i-1], edges[i]
				if prev.BuyerID > cur.BuyerID {
					return false
				}
				if prev.BuyerID == cur.BuyerID && prev.SupplierID >= cur.SupplierID {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 24)),
	))

	properties.Property("amount min <= mean <= max", prop.ForAll(
		func(pairs []int) bool {
			for _, e := range Aggregate(toRows(pairs)) {
				if *e.AmountMin > *e.AmountMean || *e.AmountMean > *e.AmountMax {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 24)),
	))

	properties.TestingRun(t)
}
