package models

import (
	"math"
	"time"
)

// Column names recognised in the source file header.
const (
	ColOrderDate   = "Order Date"
	ColShipDate    = "Ship Date"
	ColRegion      = "Region"
	ColCategory    = "Category"
	ColSubCategory = "Sub-Category"
	ColProductName = "Product Name"
	ColSales       = "Sales"
	ColProfit      = "Profit"
	ColDiscount    = "Discount"

	// ColProfitMargin is derived at load time and appended on export.
	ColProfitMargin = "ProfitMargin"
)

type Record struct {
	OrderDate    time.Time
	ShipDate     time.Time
	Region       string
	Category     string
	SubCategory  string
	ProductName  string
	Sales        float64
	Profit       float64
	Discount     float64
	ProfitMargin float64

	// Values holds the raw cells aligned with Dataset.Header.
	Values []string
}

func (r Record) HasOrderDate() bool {
	return !r.OrderDate.IsZero()
}

func (r Record) HasMargin() bool {
	return !math.IsNaN(r.ProfitMargin)
}

// Dataset is the immutable table produced by the loader. Rows must not be
// modified after load; views and aggregations only read them.
type Dataset struct {
	Path     string
	Header   []string
	Columns  map[string]int
	Rows     []Record
	ModTime  time.Time
	LoadedAt time.Time
}

func (d *Dataset) HasColumn(name string) bool {
	if d == nil {
		return false
	}
	_, ok := d.Columns[name]
	return ok
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Active() bool {
	return !r.Start.IsZero() || !r.End.IsZero()
}

type FilterSpec struct {
	Regions       []string
	Categories    []string
	SubCategories []string
	Dates         DateRange

	// EmptySelectionMeansAll decides how an empty inclusion list behaves:
	// true keeps every row, false keeps none.
	EmptySelectionMeansAll bool
}

// FilteredView is a subset of a Dataset. Indices[i] is the position of
// Rows[i] in the source Dataset.
type FilteredView struct {
	Dataset *Dataset
	Indices []int
	Rows    []Record
}

func (v FilteredView) Len() int {
	return len(v.Rows)
}

func (v FilteredView) HasColumn(name string) bool {
	return v.Dataset.HasColumn(name)
}

type FilterOptions struct {
	Regions       []string  `json:"regions"`
	Categories    []string  `json:"categories"`
	SubCategories []string  `json:"sub_categories"`
	MinDate       time.Time `json:"min_date"`
	MaxDate       time.Time `json:"max_date"`
}
