// Package templates renders the dashboard page and the fragments patched
// into it over SSE.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/a-h/templ"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"superstore-dashboard/internal/export"
	"superstore-dashboard/internal/models"
)

const (
	Title    = "Superstore Sales Dashboard"
	Subtitle = "Sales, profit and a 30-day forecast for the selected orders"

	datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"
	plotlyScript   = "https://cdn.plot.ly/plotly-2.35.2.min.js"
)

// Element ids patched by the SSE handler.
const (
	MetricsID  = "metrics"
	ForecastID = "forecast"
	PreviewID  = "preview"
)

var printer = message.NewPrinter(language.English)

// FormatMoney renders a currency amount rounded to whole units with
// thousands separators.
func FormatMoney(v float64) string {
	return printer.Sprintf("$%.0f", v)
}

// FormatMargin renders a margin percentage, or n/a when it is undefined.
func FormatMargin(pct *float64) string {
	if pct == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *pct)
}

func formatCount(n int) string {
	return printer.Sprintf("%d", n)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func lastPoint(points []models.Point) models.Point {
	if len(points) == 0 {
		return models.Point{}
	}
	return points[len(points)-1]
}

// selectSize is the visible height of a multi-select.
func selectSize(values []string) int {
	return min(len(values), 8)
}

var funcs = template.FuncMap{
	"money":  FormatMoney,
	"margin": FormatMargin,
	"count":  formatCount,
	"date":   formatDate,
	"last":   lastPoint,
	"size":   selectSize,
}

var fragments = template.Must(template.New("fragments").Funcs(funcs).Parse(`
{{define "metrics"}}<div id="` + MetricsID + `" class="metrics">
<div class="metric"><span class="label">Total Sales</span><span class="value">{{money .TotalSales}}</span></div>
<div class="metric"><span class="label">Total Profit</span><span class="value">{{money .TotalProfit}}</span></div>
<div class="metric"><span class="label">Avg Profit Margin</span><span class="value">{{margin .AvgProfitMarginPct}}</span></div>
<div class="metric"><span class="label">Rows</span><span class="value">{{count .Rows}}</span></div>
</div>{{end}}

{{define "forecast"}}<div id="` + ForecastID + `" class="forecast {{.Status}}">
{{if .Result}}{{with last .Result.Forecast}}<p>Projected daily sales on {{date .Date}}: <strong>{{money .Value}}</strong>{{end}} (alpha {{printf "%.2f" .Result.Alpha}}, beta {{printf "%.2f" .Result.Beta}})</p>
{{else}}<p class="info">{{.Message}}</p>{{end}}
</div>{{end}}

{{define "preview"}}<div id="` + PreviewID + `">
<p class="muted">Showing {{count (len .Rows)}} of {{count .Total}} rows</p>
<div class="table-wrap"><table class="modern-table">
<thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table></div>
</div>{{end}}

{{define "options"}}{{range .}}<option value="{{.}}" selected>{{.}}</option>{{end}}{{end}}
`))

var page = template.Must(template.Must(fragments.Clone()).New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<script type="module" src="` + datastarScript + `"></script>
<script src="` + plotlyScript + `"></script>
<style>{{.Style}}</style>
</head>
<body data-signals="{{.Signals}}">
<div class="layout">
<aside class="sidebar" data-on-change="@get('/sse/dashboard')">
<h2>Filters</h2>
{{with .Options.Regions}}<label>Region</label>
<select multiple size="{{size .}}" data-bind-regions>{{template "options" .}}</select>{{end}}
{{with .Options.Categories}}<label>Category</label>
<select multiple size="{{size .}}" data-bind-categories>{{template "options" .}}</select>{{end}}
{{with .Options.SubCategories}}<label>Sub-Category</label>
<select multiple size="{{size .}}" data-bind-sub-categories>{{template "options" .}}</select>{{end}}
<label>Order date range</label>
<input type="date" data-bind-start-date min="{{date .Options.MinDate}}" max="{{date .Options.MaxDate}}">
<input type="date" data-bind-end-date min="{{date .Options.MinDate}}" max="{{date .Options.MaxDate}}">
</aside>
<main>
<header><h1>{{.Title}}</h1><p class="subtitle">{{.Subtitle}}</p></header>
{{template "metrics" .View.Metrics}}
<section class="panel"><h2>Summary Dashboard</h2>
<div id="summary-charts" class="chart-grid" data-effect="renderCharts('summary-charts', $_summary)"></div></section>
<section class="panel"><h2>Sales Over Time, Regions, Products and Profit</h2>
<div id="detail-charts" class="chart-stack" data-effect="renderCharts('detail-charts', $_charts)"></div></section>
<section class="panel"><h2>30-Day Sales Forecast (Exponential Smoothing)</h2>
<div id="forecast-chart" data-effect="renderForecast('forecast-chart', $_forecast)"></div>
{{template "forecast" .View.Forecast}}
</section>
<section class="panel"><h2>View Data</h2>
{{template "preview" .View.Preview}}
<p class="downloads"><a data-attr-href="'/api/export/csv?' + filterQuery($regions, $categories, $subCategories, $startDate, $endDate)" href="/api/export/csv" download="{{.CSVFilename}}">Download CSV</a>
<a data-attr-href="'/api/export/xlsx?' + filterQuery($regions, $categories, $subCategories, $startDate, $endDate)" href="/api/export/xlsx" download="{{.XLSXFilename}}">Download Excel</a></p>
</section>
</main>
</div>
<script>{{.Script}}</script>
</body>
</html>`))

// PageSignals is the initial datastar signal state of the page. The filter
// fields match the signals read back by the SSE handler. Chart data lives in
// local signals (leading underscore) so datastar never sends it back to the
// server. The date range starts open so rows without an order date stay
// selected.
type PageSignals struct {
	Regions       []string               `json:"regions"`
	Categories    []string               `json:"categories"`
	SubCategories []string               `json:"subCategories"`
	StartDate     string                 `json:"startDate"`
	EndDate       string                 `json:"endDate"`
	Summary       []models.Chart         `json:"_summary"`
	Charts        []models.Chart         `json:"_charts"`
	Forecast      *models.ForecastResult `json:"_forecast"`
}

type pageData struct {
	Title        string
	Subtitle     string
	Signals      string
	Options      models.FilterOptions
	View         *models.ViewModel
	CSVFilename  string
	XLSXFilename string
	Style        template.CSS
	Script       template.JS
}

// Dashboard renders the full page seeded with the default selection.
func Dashboard(opts models.FilterOptions, vm *models.ViewModel) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		signals, err := json.Marshal(PageSignals{
			Regions:       opts.Regions,
			Categories:    opts.Categories,
			SubCategories: opts.SubCategories,
			Summary:       vm.Summary,
			Charts:        vm.Charts,
			Forecast:      vm.Forecast.Result,
		})
		if err != nil {
			return fmt.Errorf("marshal signals: %w", err)
		}

		return page.Execute(w, pageData{
			Title:        Title,
			Subtitle:     Subtitle,
			Signals:      string(signals),
			Options:      opts,
			View:         vm,
			CSVFilename:  export.CSVFilename,
			XLSXFilename: export.XLSXFilename,
			Style:        template.CSS(stylesheet),
			Script:       template.JS(clientScript),
		})
	})
}

func fragment(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return fragments.ExecuteTemplate(w, name, data)
	})
}

// Metrics renders the headline metric cards.
func Metrics(m models.Metrics) templ.Component {
	return fragment("metrics", m)
}

// Forecast renders the forecast status line below the forecast chart.
func Forecast(fv models.ForecastView) templ.Component {
	return fragment("forecast", fv)
}

// Preview renders the first rows of the filtered data.
func Preview(t models.Table) templ.Component {
	return fragment("preview", t)
}
