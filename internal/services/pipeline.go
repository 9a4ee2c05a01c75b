package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"superstore-dashboard/internal/aggregate"
	"superstore-dashboard/internal/filter"
	"superstore-dashboard/internal/forecast"
	"superstore-dashboard/internal/models"
)

const (
	summaryTopProducts = 8
	chartTopProducts   = 10
	maxPreviewRows     = 50

	msgInsufficientData = "Not enough data for forecast."
	msgForecastFailed   = "Forecast unavailable: the model could not be fitted to this selection."
	msgNoDateColumn     = "Forecast unavailable: the dataset has no order dates."
)

var tracer = otel.Tracer("superstore-dashboard/internal/services")

// Render runs the dashboard pipeline for one filter selection. It has no side
// effects beyond tracing; the same inputs always produce the same view model.
func Render(ctx context.Context, ds *models.Dataset, spec models.FilterSpec) *models.ViewModel {
	ctx, span := tracer.Start(ctx, "services.Render")
	defer span.End()

	view := filter.Apply(ds, spec)
	span.SetAttributes(
		attribute.Int("dataset.rows", ds.Len()),
		attribute.Int("view.rows", view.Len()),
	)

	vm := &models.ViewModel{Rows: view.Len()}

	// Every part reads the same immutable view and writes its own field.
	var wg sync.WaitGroup
	run := func(part func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			part()
		}()
	}

	run(func() { vm.Metrics = aggregate.Summarize(view) })
	run(func() { vm.Summary = summaryCharts(view) })
	run(func() { vm.Charts = standaloneCharts(view) })
	run(func() { vm.Preview = previewTable(view, maxPreviewRows) })
	run(func() {
		_, fspan := tracer.Start(ctx, "services.Forecast")
		defer fspan.End()
		vm.Forecast = forecastView(view)
		fspan.SetAttributes(attribute.String("forecast.status", string(vm.Forecast.Status)))
	})
	wg.Wait()

	return vm
}

func summaryCharts(view models.FilteredView) []models.Chart {
	charts := make([]models.Chart, 0, 4)

	if view.HasColumn(models.ColOrderDate) {
		charts = append(charts, groupChart("summary-monthly", models.ChartLine, "Monthly Sales",
			aggregate.MonthlySeries(view, aggregate.Sales)))
	}
	if view.HasColumn(models.ColRegion) {
		charts = append(charts, groupChart("summary-region", models.ChartBar, "Sales by Region",
			aggregate.SortDescending(aggregate.Aggregate(view, aggregate.Region, aggregate.Sales, aggregate.Sum))))
	}
	if view.HasColumn(models.ColProductName) {
		top := aggregate.TopN(aggregate.Aggregate(view, aggregate.ProductName, aggregate.Sales, aggregate.Sum), summaryTopProducts)
		charts = append(charts, groupChart("summary-products", models.ChartBarH, "Top Products (Sales)", top))
	}
	if view.HasColumn(models.ColDiscount) {
		charts = append(charts, scatterChart(view))
	}

	return charts
}

func standaloneCharts(view models.FilteredView) []models.Chart {
	charts := make([]models.Chart, 0, 4)

	if view.HasColumn(models.ColOrderDate) {
		charts = append(charts, pointChart("sales-trend", "Sales Trend", aggregate.DailySeries(view, aggregate.Sales)))
	}
	if view.HasColumn(models.ColRegion) {
		charts = append(charts, groupChart("sales-region", models.ChartBar, "Sales by Region",
			aggregate.Aggregate(view, aggregate.Region, aggregate.Sales, aggregate.Sum)))
	}
	if view.HasColumn(models.ColProductName) {
		top := aggregate.TopN(aggregate.Aggregate(view, aggregate.ProductName, aggregate.Sales, aggregate.Sum), chartTopProducts)
		charts = append(charts, groupChart("top-products", models.ChartBarH, "Top 10 Products by Sales", top))
	}
	if view.HasColumn(models.ColCategory) && view.HasColumn(models.ColSubCategory) {
		charts = append(charts, treemapChart(view))
	}

	return charts
}

func groupChart(id string, kind models.ChartKind, title string, groups []models.Group) models.Chart {
	points := make([]models.ChartPoint, len(groups))
	for i, g := range groups {
		points[i] = models.ChartPoint{Label: g.Key, Y: g.Value}
	}
	return models.Chart{ID: id, Kind: kind, Title: title, Points: points}
}

func pointChart(id, title string, series []models.Point) models.Chart {
	points := make([]models.ChartPoint, len(series))
	for i, p := range series {
		points[i] = models.ChartPoint{Label: p.Date.Format(time.DateOnly), Y: p.Value}
	}
	return models.Chart{ID: id, Kind: models.ChartLine, Title: title, Points: points}
}

func scatterChart(view models.FilteredView) models.Chart {
	points := make([]models.ChartPoint, 0, view.Len())
	for _, row := range view.Rows {
		if math.IsNaN(row.Discount) || math.IsNaN(row.Profit) {
			continue
		}
		points = append(points, models.ChartPoint{X: row.Discount, Y: row.Profit})
	}
	return models.Chart{ID: "summary-discount-profit", Kind: models.ChartScatter, Title: "Discount vs Profit", Points: points}
}

func treemapChart(view models.FilteredView) models.Chart {
	cells := aggregate.CrossTab(view, aggregate.Category, aggregate.SubCategory, aggregate.Profit)
	points := make([]models.ChartPoint, len(cells))
	for i, c := range cells {
		points[i] = models.ChartPoint{Label: c.Inner, Parent: c.Outer, Y: c.Value}
	}
	return models.Chart{ID: "profit-treemap", Kind: models.ChartTreemap, Title: "Profit Distribution", Points: points}
}

func previewTable(view models.FilteredView, limit int) models.Table {
	t := models.Table{Total: view.Len()}
	if view.Dataset != nil {
		t.Header = view.Dataset.Header
	}

	n := min(limit, view.Len())
	t.Rows = make([][]string, n)
	for i := 0; i < n; i++ {
		t.Rows[i] = view.Rows[i].Values
	}
	return t
}

// forecastView fits the daily sales series and converts every forecaster
// failure into a message so the rest of the dashboard still renders.
func forecastView(view models.FilteredView) models.ForecastView {
	if !view.HasColumn(models.ColOrderDate) {
		return models.ForecastView{Status: models.ForecastUnavailable, Message: msgNoDateColumn}
	}

	result, err := forecast.Forecast(aggregate.DailySeries(view, aggregate.Sales))
	switch {
	case err == nil:
		return models.ForecastView{Status: models.ForecastOK, Result: result}
	case errors.Is(err, forecast.ErrInsufficientData):
		return models.ForecastView{Status: models.ForecastInsufficient, Message: msgInsufficientData}
	default:
		return models.ForecastView{Status: models.ForecastFailed, Message: msgForecastFailed}
	}
}

// RenderForecast runs only the filter and forecast stages.
func RenderForecast(ds *models.Dataset, spec models.FilterSpec) models.ForecastView {
	return forecastView(filter.Apply(ds, spec))
}
