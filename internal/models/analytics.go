package models

import "time"

type Group struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

type CrossGroup struct {
	Outer string  `json:"outer"`
	Inner string  `json:"inner"`
	Value float64 `json:"value"`
}

type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

type ForecastResult struct {
	Actual   []Point `json:"actual"`
	Forecast []Point `json:"forecast"`
	Alpha    float64 `json:"alpha"`
	Beta     float64 `json:"beta"`
	SSE      float64 `json:"sse"`
}

type Metrics struct {
	TotalSales  float64 `json:"total_sales"`
	TotalProfit float64 `json:"total_profit"`
	// AvgProfitMarginPct is nil when no row has a defined margin.
	AvgProfitMarginPct *float64 `json:"avg_profit_margin_pct"`
	Rows               int      `json:"rows"`
}

type ChartKind string

const (
	ChartLine    ChartKind = "line"
	ChartBar     ChartKind = "bar"
	ChartBarH    ChartKind = "barh"
	ChartScatter ChartKind = "scatter"
	ChartTreemap ChartKind = "treemap"
)

type ChartPoint struct {
	Label  string  `json:"label,omitempty"`
	Parent string  `json:"parent,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y"`
}

type Chart struct {
	ID     string       `json:"id"`
	Kind   ChartKind    `json:"kind"`
	Title  string       `json:"title"`
	Points []ChartPoint `json:"points"`
}

type ForecastStatus string

const (
	ForecastOK           ForecastStatus = "ok"
	ForecastInsufficient ForecastStatus = "insufficient_data"
	ForecastFailed       ForecastStatus = "failed"
	ForecastUnavailable  ForecastStatus = "unavailable"
)

// ForecastView carries either a fitted result or a message explaining why
// no forecast is shown.
type ForecastView struct {
	Status  ForecastStatus  `json:"status"`
	Result  *ForecastResult `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Table is a bounded preview of the filtered rows as displayed text.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
	// Total is the number of rows in the view, of which Rows is a prefix.
	Total int `json:"total"`
}

type ViewModel struct {
	Metrics  Metrics      `json:"metrics"`
	Summary  []Chart      `json:"summary"`
	Charts   []Chart      `json:"charts"`
	Forecast ForecastView `json:"forecast"`
	Preview  Table        `json:"preview"`
	Rows     int          `json:"rows"`
}
