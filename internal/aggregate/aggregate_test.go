package aggregate

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superstore-dashboard/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func view(rows ...models.Record) models.FilteredView {
	return models.FilteredView{Rows: rows}
}

func TestAggregate_SumByRegion(t *testing.T) {
	v := view(
		models.Record{Region: "West", Sales: 10},
		models.Record{Region: "East", Sales: 5},
		models.Record{Region: "West", Sales: 2.5},
		models.Record{Region: "", Sales: 100},
		models.Record{Region: "East", Sales: math.NaN()},
	)

	got := Aggregate(v, Region, Sales, Sum)
	assert.Equal(t, []models.Group{
		{Key: "East", Value: 5, Count: 1},
		{Key: "West", Value: 12.5, Count: 2},
	}, got)
}

func TestAggregate_Mean(t *testing.T) {
	v := view(
		models.Record{Category: "Furniture", Profit: 10},
		models.Record{Category: "Furniture", Profit: 20},
		models.Record{Category: "Technology", Profit: math.NaN()},
	)

	got := Aggregate(v, Category, Profit, Mean)
	require.Len(t, got, 2)
	assert.InDelta(t, 15, got[0].Value, 1e-9)
	assert.True(t, math.IsNaN(got[1].Value), "mean over no values is NaN")
}

func TestTotal_EmptyView(t *testing.T) {
	empty := models.FilteredView{}
	assert.Equal(t, 0.0, Total(empty, Sales))
	assert.Equal(t, 0.0, Total(empty, Profit))
	assert.True(t, math.IsNaN(Average(empty, ProfitMargin)))
	assert.Empty(t, Aggregate(empty, Region, Sales, Sum))
}

func TestTopN_FewerGroupsThanN(t *testing.T) {
	groups := []models.Group{
		{Key: "a", Value: 3},
		{Key: "b", Value: 9},
		{Key: "c", Value: 1},
		{Key: "d", Value: 5},
	}

	got := TopN(groups, 10)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"b", "d", "a", "c"}, keys(got))
	assert.Equal(t, "a", groups[0].Key, "input must not be reordered")
}

func TestTopN_TruncatesAndKeepsTieOrder(t *testing.T) {
	groups := []models.Group{
		{Key: "first", Value: 5},
		{Key: "big", Value: 50},
		{Key: "second", Value: 5},
		{Key: "third", Value: 5},
		{Key: "small", Value: 1},
	}

	got := TopN(groups, 3)
	assert.Equal(t, []string{"big", "first", "second"}, keys(got))
}

func TestTopN_AggregateTiesByKey(t *testing.T) {
	v := view(
		models.Record{ProductName: "Stapler", Sales: 4},
		models.Record{ProductName: "Chair", Sales: 4},
		models.Record{ProductName: "Stapler", Sales: 0},
		models.Record{ProductName: "Desk", Sales: 9},
	)

	got := TopN(Aggregate(v, ProductName, Sales, Sum), 2)
	assert.Equal(t, []string{"Desk", "Chair"}, keys(got))
}

func TestMonthlySeries_FillsGaps(t *testing.T) {
	v := view(
		models.Record{OrderDate: day(2016, 11, 3), Sales: 10},
		models.Record{OrderDate: day(2016, 11, 28), Sales: 5},
		models.Record{OrderDate: day(2017, 2, 1), Sales: 7},
		models.Record{Sales: 1000},
	)

	got := MonthlySeries(v, Sales)
	assert.Equal(t, []string{"2016-11", "2016-12", "2017-01", "2017-02"}, keys(got))
	assert.Equal(t, []float64{15, 0, 0, 7}, values(got))
}

func TestDailySeries(t *testing.T) {
	v := view(
		models.Record{OrderDate: day(2016, 1, 2), Sales: 1},
		models.Record{OrderDate: day(2016, 1, 1), Sales: 2},
		models.Record{OrderDate: day(2016, 1, 2), Sales: 3},
	)

	got := DailySeries(v, Sales)
	assert.Equal(t, []models.Point{
		{Date: day(2016, 1, 1), Value: 2},
		{Date: day(2016, 1, 2), Value: 4},
	}, got)
}

func TestCrossTab(t *testing.T) {
	v := view(
		models.Record{Category: "Technology", SubCategory: "Phones", Profit: 10},
		models.Record{Category: "Furniture", SubCategory: "Tables", Profit: -4},
		models.Record{Category: "Technology", SubCategory: "Phones", Profit: 5},
		models.Record{Category: "Furniture", SubCategory: "Chairs", Profit: 3},
		models.Record{Category: "Furniture", Profit: 99},
	)

	got := CrossTab(v, Category, SubCategory, Profit)
	assert.Equal(t, []models.CrossGroup{
		{Outer: "Furniture", Inner: "Chairs", Value: 3},
		{Outer: "Furniture", Inner: "Tables", Value: -4},
		{Outer: "Technology", Inner: "Phones", Value: 15},
	}, got)
}

func TestSummarize(t *testing.T) {
	v := view(
		models.Record{Sales: 100, Profit: 20, ProfitMargin: 0.2},
		models.Record{Sales: 50, Profit: -5, ProfitMargin: -0.1},
		models.Record{Sales: 0, Profit: 3, ProfitMargin: math.NaN()},
	)

	m := Summarize(v)
	assert.Equal(t, 150.0, m.TotalSales)
	assert.Equal(t, 18.0, m.TotalProfit)
	assert.Equal(t, 3, m.Rows)
	require.NotNil(t, m.AvgProfitMarginPct)
	assert.InDelta(t, 5.0, *m.AvgProfitMarginPct, 1e-9)

	none := Summarize(view(models.Record{Sales: 0, ProfitMargin: math.NaN()}))
	assert.Nil(t, none.AvgProfitMarginPct)
}

func TestDimension_Column(t *testing.T) {
	assert.Equal(t, models.ColSubCategory, SubCategory.Column())
	assert.Equal(t, models.ColOrderDate, OrderMonth.Column())
}

func keys(groups []models.Group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Key
	}
	return out
}

func values(groups []models.Group) []float64 {
	out := make([]float64, len(groups))
	for i, g := range groups {
		out[i] = g.Value
	}
	return out
}
