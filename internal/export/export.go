// Package export serializes filtered views for download.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"superstore-dashboard/internal/models"
)

const (
	CSVFilename     = "Filtered_Superstore_Data.csv"
	CSVContentType  = "text/csv"
	XLSXFilename    = "Filtered_Superstore_Data.xlsx"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	SheetName = "Filtered Data"

	dateLayout = "2006-01-02"
)

type Options struct {
	// BOM prefixes CSV output with a UTF-8 byte order mark for Excel.
	BOM bool
}

// layout maps the dataset header to the exported columns. The derived
// margin column is appended unless the source already carries one.
type layout struct {
	header      []string
	marginIndex int
	dateIndex   map[int]func(models.Record) time.Time
	numberIndex map[int]func(models.Record) float64
}

func newLayout(ds *models.Dataset) layout {
	l := layout{
		dateIndex:   map[int]func(models.Record) time.Time{},
		numberIndex: map[int]func(models.Record) float64{},
	}
	if ds == nil {
		l.header = []string{models.ColProfitMargin}
		return l
	}

	l.header = append(l.header, ds.Header...)
	if idx, ok := ds.Columns[models.ColProfitMargin]; ok {
		l.marginIndex = idx
	} else {
		l.marginIndex = len(l.header)
		l.header = append(l.header, models.ColProfitMargin)
	}

	if idx, ok := ds.Columns[models.ColOrderDate]; ok {
		l.dateIndex[idx] = func(r models.Record) time.Time { return r.OrderDate }
	}
	if idx, ok := ds.Columns[models.ColShipDate]; ok {
		l.dateIndex[idx] = func(r models.Record) time.Time { return r.ShipDate }
	}
	if idx, ok := ds.Columns[models.ColSales]; ok {
		l.numberIndex[idx] = func(r models.Record) float64 { return r.Sales }
	}
	if idx, ok := ds.Columns[models.ColProfit]; ok {
		l.numberIndex[idx] = func(r models.Record) float64 { return r.Profit }
	}
	if idx, ok := ds.Columns[models.ColDiscount]; ok {
		l.numberIndex[idx] = func(r models.Record) float64 { return r.Discount }
	}
	l.numberIndex[l.marginIndex] = func(r models.Record) float64 { return r.ProfitMargin }
	return l
}

// text renders column i of rec as it appears in the CSV output.
func (l layout) text(rec models.Record, i int) string {
	if date, ok := l.dateIndex[i]; ok {
		if d := date(rec); !d.IsZero() {
			return d.Format(dateLayout)
		}
		return ""
	}
	if i == l.marginIndex {
		if !rec.HasMargin() {
			return ""
		}
		return strconv.FormatFloat(rec.ProfitMargin, 'g', -1, 64)
	}
	if i < len(rec.Values) {
		return rec.Values[i]
	}
	return ""
}

// cell renders column i of rec as a typed spreadsheet value.
func (l layout) cell(rec models.Record, i int) any {
	if number, ok := l.numberIndex[i]; ok {
		v := number(rec)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	}
	if s := l.text(rec, i); s != "" {
		return s
	}
	return nil
}

func CSV(view models.FilteredView) ([]byte, error) {
	return CSVWithOptions(view, Options{})
}

// CSVWithOptions writes the view as UTF-8 CSV with a header row and no index
// column, preserving row order.
func CSVWithOptions(view models.FilteredView, opts Options) ([]byte, error) {
	l := newLayout(view.Dataset)

	var buf bytes.Buffer
	if opts.BOM {
		buf.Write([]byte{0xEF, 0xBB, 0xBF})
	}

	w := csv.NewWriter(&buf)
	if err := w.Write(l.header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(l.header))
	for n, rec := range view.Rows {
		for i := range record {
			record[i] = l.text(rec, i)
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write row %d: %w", n, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// XLSX writes the view to a workbook with a single sheet named SheetName.
func XLSX(view models.FilteredView) ([]byte, error) {
	l := newLayout(view.Dataset)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return nil, fmt.Errorf("create stream writer: %w", err)
	}

	header := make([]any, len(l.header))
	for i, h := range l.header {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for n, rec := range view.Rows {
		row := make([]any, len(l.header))
		for i := range row {
			row[i] = l.cell(rec, i)
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", n, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
