package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superstore-dashboard/internal/dataset"
	"superstore-dashboard/internal/models"
)

var (
	testRegions    = []string{"East", "West", "Central"}
	testCategories = []string{"Furniture", "Technology"}
	testSubs       = []string{"Chairs", "Phones", "Tables"}
)

const testHeader = "Row ID,Order Date,Ship Date,Region,Category,Sub-Category,Product Name,Sales,Profit,Discount\n"

func createTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "superstore.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testSales(i int) float64  { return float64(i%97) + 1.5 }
func testProfit(i int) float64 { return float64(i%13) - 4 }

// generateCSV writes n rows spread over days calendar days starting 2023-01-01.
func generateCSV(n, days int) string {
	var b strings.Builder
	b.WriteString(testHeader)
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		date := start.AddDate(0, 0, i%days)
		fmt.Fprintf(&b, "%d,%s,%s,%s,%s,%s,Product %d,%g,%g,%g\n",
			i+1,
			date.Format("1/2/2006"),
			date.AddDate(0, 0, 3).Format("1/2/2006"),
			testRegions[i%len(testRegions)],
			testCategories[i%len(testCategories)],
			testSubs[i%len(testSubs)],
			i%17,
			testSales(i),
			testProfit(i),
			float64(i%5)/10,
		)
	}
	return b.String()
}

func loadTestDataset(t *testing.T, content string) *models.Dataset {
	t.Helper()
	ds, err := dataset.NewLoader(nil).Load(context.Background(), createTempCSV(t, content))
	require.NoError(t, err)
	return ds
}

func chartIDs(charts []models.Chart) []string {
	ids := make([]string, len(charts))
	for i, c := range charts {
		ids[i] = c.ID
	}
	return ids
}

func TestRender_EndToEndRegionTotal(t *testing.T) {
	ds := loadTestDataset(t, generateCSV(1000, 90))
	require.Len(t, ds.Rows, 1000)

	var want float64
	var wantRows int
	for i := 0; i < 1000; i++ {
		if testRegions[i%len(testRegions)] == "West" {
			want += testSales(i)
			wantRows++
		}
	}

	spec := models.FilterSpec{Regions: []string{"West"}, EmptySelectionMeansAll: true}
	vm := Render(context.Background(), ds, spec)

	assert.Equal(t, wantRows, vm.Rows)
	assert.Equal(t, wantRows, vm.Metrics.Rows)
	assert.InDelta(t, want, vm.Metrics.TotalSales, 1e-6)
	require.NotNil(t, vm.Metrics.AvgProfitMarginPct)

	for _, c := range vm.Charts {
		if c.ID == "sales-region" {
			require.Len(t, c.Points, 1)
			assert.Equal(t, "West", c.Points[0].Label)
			assert.InDelta(t, want, c.Points[0].Y, 1e-6)
		}
	}
}

func TestRender_AllCharts(t *testing.T) {
	ds := loadTestDataset(t, generateCSV(300, 59))

	vm := Render(context.Background(), ds, models.FilterSpec{EmptySelectionMeansAll: true})

	assert.Equal(t, []string{"summary-monthly", "summary-region", "summary-products", "summary-discount-profit"}, chartIDs(vm.Summary))
	assert.Equal(t, []string{"sales-trend", "sales-region", "top-products", "profit-treemap"}, chartIDs(vm.Charts))

	byID := make(map[string]models.Chart)
	for _, c := range append(vm.Summary, vm.Charts...) {
		byID[c.ID] = c
	}

	assert.Len(t, byID["summary-products"].Points, 8)
	assert.Len(t, byID["top-products"].Points, 10)
	assert.Len(t, byID["sales-trend"].Points, 59)
	assert.Len(t, byID["summary-discount-profit"].Points, 300)
	assert.Len(t, byID["summary-monthly"].Points, 2, "59 days from January 1 end on February 28")

	region := byID["summary-region"].Points
	for i := 1; i < len(region); i++ {
		assert.GreaterOrEqual(t, region[i-1].Y, region[i].Y, "region summary should be sorted descending")
	}

	for _, p := range byID["profit-treemap"].Points {
		assert.Contains(t, testCategories, p.Parent)
		assert.Contains(t, testSubs, p.Label)
	}
}

func TestRender_MissingColumnsOmitCharts(t *testing.T) {
	ds := loadTestDataset(t, "Sales,Profit\n100,10\n50,-5\n")

	vm := Render(context.Background(), ds, models.FilterSpec{Regions: []string{"West"}, EmptySelectionMeansAll: true})

	assert.Equal(t, 2, vm.Rows, "filters on absent columns impose no constraint")
	assert.InDelta(t, 150, vm.Metrics.TotalSales, 1e-9)
	assert.InDelta(t, 5, vm.Metrics.TotalProfit, 1e-9)
	assert.Empty(t, vm.Summary)
	assert.Empty(t, vm.Charts)
	assert.Equal(t, models.ForecastUnavailable, vm.Forecast.Status)
	assert.NotEmpty(t, vm.Forecast.Message)
}

func TestRender_EmptySelection(t *testing.T) {
	ds := loadTestDataset(t, generateCSV(30, 30))

	vm := Render(context.Background(), ds, models.FilterSpec{EmptySelectionMeansAll: false})

	assert.Zero(t, vm.Rows)
	assert.Zero(t, vm.Metrics.TotalSales)
	assert.Nil(t, vm.Metrics.AvgProfitMarginPct)
	assert.Equal(t, models.ForecastInsufficient, vm.Forecast.Status)
}

func TestRender_ForecastInsufficientHistory(t *testing.T) {
	ds := loadTestDataset(t, generateCSV(200, 20))

	vm := Render(context.Background(), ds, models.FilterSpec{EmptySelectionMeansAll: true})

	assert.Equal(t, models.ForecastInsufficient, vm.Forecast.Status)
	assert.Equal(t, "Not enough data for forecast.", vm.Forecast.Message)
	assert.Nil(t, vm.Forecast.Result)
	assert.NotEmpty(t, vm.Charts, "the rest of the dashboard still renders")
}

func TestRender_ForecastLinearTrend(t *testing.T) {
	var b strings.Builder
	b.WriteString("Order Date,Sales,Profit\n")
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "%s,%d,1\n", start.AddDate(0, 0, i).Format("2006-01-02"), 100+10*i)
	}
	ds := loadTestDataset(t, b.String())

	fv := RenderForecast(ds, models.FilterSpec{EmptySelectionMeansAll: true})

	require.Equal(t, models.ForecastOK, fv.Status, fv.Message)
	require.Len(t, fv.Result.Forecast, 30)
	assert.Len(t, fv.Result.Actual, 40)
	assert.Equal(t, start.AddDate(0, 0, 40), fv.Result.Forecast[0].Date)
	for i := 1; i < len(fv.Result.Forecast); i++ {
		assert.Greater(t, fv.Result.Forecast[i].Value, fv.Result.Forecast[i-1].Value)
	}
}

func TestRender_Deterministic(t *testing.T) {
	ds := loadTestDataset(t, generateCSV(500, 45))
	spec := models.FilterSpec{
		Categories:             []string{"Technology"},
		Dates:                  models.DateRange{Start: time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)},
		EmptySelectionMeansAll: true,
	}

	first := Render(context.Background(), ds, spec)
	second := Render(context.Background(), ds, spec)
	assert.Equal(t, first, second)
}

func TestRender_AllPartsFilledUnderConcurrentCalls(t *testing.T) {
	ds := loadTestDataset(t, generateCSV(300, 40))
	spec := models.FilterSpec{EmptySelectionMeansAll: true}
	want := Render(context.Background(), ds, spec)

	results := make([]*models.ViewModel, 8)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = Render(context.Background(), ds, spec)
		}()
	}
	wg.Wait()

	for _, vm := range results {
		assert.Equal(t, want, vm)
		assert.Equal(t, 300, vm.Metrics.Rows)
		assert.NotEmpty(t, vm.Summary)
		assert.NotEmpty(t, vm.Charts)
		assert.NotEmpty(t, vm.Preview.Rows)
		assert.NotEmpty(t, vm.Forecast.Status)
	}
}

func TestRender_PreviewIsBounded(t *testing.T) {
	ds := loadTestDataset(t, generateCSV(120, 30))

	vm := Render(context.Background(), ds, models.FilterSpec{EmptySelectionMeansAll: true})

	assert.Equal(t, 120, vm.Preview.Total)
	assert.Len(t, vm.Preview.Rows, maxPreviewRows)
	assert.Equal(t, ds.Header, vm.Preview.Header)
	assert.Equal(t, "1", vm.Preview.Rows[0][0])
}
