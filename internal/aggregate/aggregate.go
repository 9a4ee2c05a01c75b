// Package aggregate computes grouped sums and means over filtered views.
//
// Values that failed to parse (NaN) are skipped. A sum over no values is 0;
// a mean over no values is NaN and must be checked before display.
package aggregate

import (
	"cmp"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"superstore-dashboard/internal/models"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

type Dimension int

const (
	Region Dimension = iota
	Category
	SubCategory
	ProductName
	OrderDay
	OrderMonth
)

// Column is the source column a dimension reads.
func (d Dimension) Column() string {
	switch d {
	case Region:
		return models.ColRegion
	case Category:
		return models.ColCategory
	case SubCategory:
		return models.ColSubCategory
	case ProductName:
		return models.ColProductName
	default:
		return models.ColOrderDate
	}
}

func (d Dimension) key(r models.Record) (string, bool) {
	var k string
	switch d {
	case Region:
		k = r.Region
	case Category:
		k = r.Category
	case SubCategory:
		k = r.SubCategory
	case ProductName:
		k = r.ProductName
	case OrderDay:
		if !r.HasOrderDate() {
			return "", false
		}
		k = r.OrderDate.Format(dayLayout)
	case OrderMonth:
		if !r.HasOrderDate() {
			return "", false
		}
		k = r.OrderDate.Format(monthLayout)
	}
	return k, k != ""
}

type Measure int

const (
	Sales Measure = iota
	Profit
	Discount
	ProfitMargin
)

func (m Measure) value(r models.Record) float64 {
	switch m {
	case Profit:
		return r.Profit
	case Discount:
		return r.Discount
	case ProfitMargin:
		return r.ProfitMargin
	default:
		return r.Sales
	}
}

type Kind int

const (
	Sum Kind = iota
	Mean
)

type bucket struct {
	values []float64
}

func (b *bucket) result(kind Kind) float64 {
	if kind == Mean {
		if len(b.values) == 0 {
			return math.NaN()
		}
		return stat.Mean(b.values, nil)
	}
	var total float64
	for _, v := range b.values {
		total += v
	}
	return total
}

// Aggregate groups the view by dim and reduces measure with kind. Groups are
// ordered by key ascending, which is chronological for the time dimensions.
func Aggregate(view models.FilteredView, dim Dimension, measure Measure, kind Kind) []models.Group {
	buckets := map[string]*bucket{}
	for _, row := range view.Rows {
		key, ok := dim.key(row)
		if !ok {
			continue
		}
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		if v := measure.value(row); !math.IsNaN(v) {
			b.values = append(b.values, v)
		}
	}

	groups := make([]models.Group, 0, len(buckets))
	for key, b := range buckets {
		groups = append(groups, models.Group{Key: key, Value: b.result(kind), Count: len(b.values)})
	}
	slices.SortFunc(groups, func(a, b models.Group) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return groups
}

// TopN returns the n groups with the largest values, largest first. Ties
// keep their input order, so over Aggregate output they are ordered by key.
func TopN(groups []models.Group, n int) []models.Group {
	sorted := SortDescending(groups)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// SortDescending returns a copy of groups ordered by value, largest first.
func SortDescending(groups []models.Group) []models.Group {
	sorted := slices.Clone(groups)
	slices.SortStableFunc(sorted, func(a, b models.Group) int {
		return cmp.Compare(b.Value, a.Value)
	})
	return sorted
}

// MonthlySeries sums measure per calendar month. Months without rows between
// the first and last month are present with value 0.
func MonthlySeries(view models.FilteredView, measure Measure) []models.Group {
	groups := Aggregate(view, OrderMonth, measure, Sum)
	if len(groups) == 0 {
		return groups
	}

	byKey := make(map[string]models.Group, len(groups))
	for _, g := range groups {
		byKey[g.Key] = g
	}

	first, _ := time.Parse(monthLayout, groups[0].Key)
	last, _ := time.Parse(monthLayout, groups[len(groups)-1].Key)

	var series []models.Group
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		key := m.Format(monthLayout)
		g, ok := byKey[key]
		if !ok {
			g = models.Group{Key: key}
		}
		series = append(series, g)
	}
	return series
}

// DailySeries sums measure per order date, in chronological order.
func DailySeries(view models.FilteredView, measure Measure) []models.Point {
	groups := Aggregate(view, OrderDay, measure, Sum)
	points := make([]models.Point, 0, len(groups))
	for _, g := range groups {
		day, err := time.Parse(dayLayout, g.Key)
		if err != nil {
			continue
		}
		points = append(points, models.Point{Date: day, Value: g.Value})
	}
	return points
}

// CrossTab sums measure over the outer × inner grouping, ordered by outer
// then inner key.
func CrossTab(view models.FilteredView, outer, inner Dimension, measure Measure) []models.CrossGroup {
	type pair struct{ outer, inner string }
	sums := map[pair]float64{}
	for _, row := range view.Rows {
		o, ok := outer.key(row)
		if !ok {
			continue
		}
		i, ok := inner.key(row)
		if !ok {
			continue
		}
		p := pair{o, i}
		v := measure.value(row)
		if math.IsNaN(v) {
			v = 0
		}
		sums[p] += v
	}

	out := make([]models.CrossGroup, 0, len(sums))
	for p, v := range sums {
		out = append(out, models.CrossGroup{Outer: p.outer, Inner: p.inner, Value: v})
	}
	slices.SortFunc(out, func(a, b models.CrossGroup) int {
		if c := cmp.Compare(a.Outer, b.Outer); c != 0 {
			return c
		}
		return cmp.Compare(a.Inner, b.Inner)
	})
	return out
}

func Total(view models.FilteredView, measure Measure) float64 {
	b := collect(view, measure)
	return b.result(Sum)
}

func Average(view models.FilteredView, measure Measure) float64 {
	b := collect(view, measure)
	return b.result(Mean)
}

func collect(view models.FilteredView, measure Measure) *bucket {
	b := &bucket{values: make([]float64, 0, len(view.Rows))}
	for _, row := range view.Rows {
		if v := measure.value(row); !math.IsNaN(v) {
			b.values = append(b.values, v)
		}
	}
	return b
}

// Summarize computes the three headline metrics of the dashboard.
func Summarize(view models.FilteredView) models.Metrics {
	m := models.Metrics{
		TotalSales:  Total(view, Sales),
		TotalProfit: Total(view, Profit),
		Rows:        view.Len(),
	}
	if avg := Average(view, ProfitMargin); !math.IsNaN(avg) && !math.IsInf(avg, 0) {
		pct := avg * 100
		m.AvgProfitMarginPct = &pct
	}
	return m
}
