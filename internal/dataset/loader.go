package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"

	"superstore-dashboard/internal/models"
)

const (
	batchSize  = 2000
	maxWorkers = 8
)

var requiredColumns = []string{models.ColSales, models.ColProfit}

var dateLayouts = []string{
	"1/2/2006",
	"2006-01-02",
	"2006/01/02",
	"1-2-2006",
	"2006-01-02 15:04:05",
	"1/2/2006 15:04",
	time.RFC3339,
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Loader struct {
	logger    *slog.Logger
	batchSize int
	workers   int
}

func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger:    logger,
		batchSize: batchSize,
		workers:   maxWorkers,
	}
}

// Load reads the delimited file at path into a Dataset.
func (l *Loader) Load(ctx context.Context, path string) (*models.Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Op: "stat", Path: path, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Op: "read", Path: path, Err: err}
	}

	start := time.Now()
	ds, err := l.Parse(ctx, data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, le
		}
		return nil, &LoadError{Op: "parse", Path: path, Err: err}
	}
	ds.Path = path
	ds.ModTime = info.ModTime()

	l.logger.Info("dataset loaded",
		"path", path,
		"rows", len(ds.Rows),
		"columns", len(ds.Header),
		"duration", time.Since(start),
	)
	return ds, nil
}

// Parse decodes raw file content into a Dataset.
func (l *Loader) Parse(ctx context.Context, data []byte) (*models.Dataset, error) {
	text, encoding, err := decode(data)
	if err != nil {
		return nil, &LoadError{Op: "decode", Err: err}
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, &LoadError{Op: "read csv", Err: err}
	}
	if len(records) == 0 {
		return nil, &LoadError{Op: "read csv", Err: ErrEmptyFile}
	}

	header := make([]string, len(records[0]))
	columns := make(map[string]int, len(header))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
		if _, dup := columns[header[i]]; !dup {
			columns[header[i]] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &LoadError{
			Op:  "validate header",
			Err: fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", ")),
		}
	}

	body := records[1:]
	rows := make([]models.Record, len(body))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for lo := 0; lo < len(body); lo += l.batchSize {
		hi := min(lo+l.batchSize, len(body))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				rows[i] = parseRecord(body[i], columns, len(header))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	badDates := 0
	for _, row := range rows {
		if !row.HasOrderDate() {
			badDates++
		}
	}
	if badDates > 0 {
		l.logger.Debug("rows without a usable order date", "count", badDates)
	}
	l.logger.Debug("dataset parsed", "encoding", encoding, "rows", len(rows))

	return &models.Dataset{
		Header:   header,
		Columns:  columns,
		Rows:     rows,
		LoadedAt: time.Now(),
	}, nil
}

func decode(data []byte) ([]byte, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, "utf-8", nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return out, "latin-1", nil
}

func parseRecord(fields []string, columns map[string]int, width int) models.Record {
	values := make([]string, width)
	copy(values, fields)

	get := func(name string) string {
		if idx, ok := columns[name]; ok {
			return strings.TrimSpace(values[idx])
		}
		return ""
	}

	rec := models.Record{
		OrderDate:   parseDate(get(models.ColOrderDate)),
		ShipDate:    parseDate(get(models.ColShipDate)),
		Region:      get(models.ColRegion),
		Category:    get(models.ColCategory),
		SubCategory: get(models.ColSubCategory),
		ProductName: get(models.ColProductName),
		Sales:       parseNumber(get(models.ColSales)),
		Profit:      parseNumber(get(models.ColProfit)),
		Discount:    parseNumber(get(models.ColDiscount)),
		Values:      values,
	}
	rec.ProfitMargin = margin(rec.Profit, rec.Sales)
	return rec
}

func margin(profit, sales float64) float64 {
	if sales == 0 || math.IsNaN(sales) || math.IsNaN(profit) {
		return math.NaN()
	}
	return profit / sales
}

// parseDate returns the zero time when s does not match any known layout.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

// parseNumber returns NaN for empty, malformed and non-finite cells.
func parseNumber(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
