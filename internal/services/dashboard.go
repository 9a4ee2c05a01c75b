package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"superstore-dashboard/internal/dataset"
	"superstore-dashboard/internal/export"
	"superstore-dashboard/internal/filter"
	"superstore-dashboard/internal/models"
)

// Render outcomes reported to a Recorder.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Recorder receives pipeline measurements. The observability package
// provides the Prometheus implementation.
type Recorder interface {
	ObserveRender(outcome string, duration time.Duration)
	ObserveForecast(status string)
	ObserveExport(format string, size int)
}

type noopRecorder struct{}

func (noopRecorder) ObserveRender(string, time.Duration) {}
func (noopRecorder) ObserveForecast(string)              {}
func (noopRecorder) ObserveExport(string, int)           {}

type Options struct {
	Path                   string
	EmptySelectionMeansAll bool
	// CSVWithBOM prefixes CSV exports with a UTF-8 byte order mark.
	CSVWithBOM bool
	Recorder   Recorder
	Logger     *slog.Logger

	// WarmUpRetries bounds the retries of the initial load. Zero disables retrying.
	WarmUpRetries  uint64
	WarmUpInterval time.Duration
}

// Dashboard serves view models and exports for the configured dataset.
type Dashboard struct {
	cache     *dataset.Cache
	path      string
	emptyAll  bool
	csv       export.Options
	recorder  Recorder
	logger    *slog.Logger
	retries   uint64
	interval  time.Duration
	renders   atomic.Int64
	exports   atomic.Int64
	lastFetch atomic.Pointer[models.Dataset]
}

func NewDashboard(cache *dataset.Cache, opts Options) *Dashboard {
	d := &Dashboard{
		cache:    cache,
		path:     opts.Path,
		emptyAll: opts.EmptySelectionMeansAll,
		csv:      export.Options{BOM: opts.CSVWithBOM},
		recorder: opts.Recorder,
		logger:   opts.Logger,
		retries:  opts.WarmUpRetries,
		interval: opts.WarmUpInterval,
	}
	if d.recorder == nil {
		d.recorder = noopRecorder{}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.interval <= 0 {
		d.interval = 500 * time.Millisecond
	}
	return d
}

// Spec builds a filter spec carrying the configured empty selection policy.
func (d *Dashboard) Spec(regions, categories, subCategories []string, dates models.DateRange) models.FilterSpec {
	return models.FilterSpec{
		Regions:                regions,
		Categories:             categories,
		SubCategories:          subCategories,
		Dates:                  dates,
		EmptySelectionMeansAll: d.emptyAll,
	}
}

// Dataset returns the cached dataset, loading it on first use or after the
// file changed.
func (d *Dashboard) Dataset(ctx context.Context) (*models.Dataset, error) {
	ds, err := d.cache.Get(ctx, d.path)
	if err != nil {
		return nil, err
	}
	d.lastFetch.Store(ds)
	return ds, nil
}

func (d *Dashboard) View(ctx context.Context, spec models.FilterSpec) (*models.ViewModel, error) {
	start := time.Now()

	ds, err := d.Dataset(ctx)
	if err != nil {
		d.recorder.ObserveRender(OutcomeError, time.Since(start))
		return nil, err
	}

	vm := Render(ctx, ds, spec)
	d.renders.Add(1)
	d.recorder.ObserveRender(OutcomeOK, time.Since(start))
	d.recorder.ObserveForecast(string(vm.Forecast.Status))

	d.logger.Debug("dashboard rendered",
		"rows", vm.Rows,
		"forecast", vm.Forecast.Status,
		"duration", time.Since(start))
	return vm, nil
}

// Forecast renders only the forecast part of the dashboard.
func (d *Dashboard) Forecast(ctx context.Context, spec models.FilterSpec) (models.ForecastView, error) {
	ds, err := d.Dataset(ctx)
	if err != nil {
		return models.ForecastView{}, err
	}

	fv := RenderForecast(ds, spec)
	d.recorder.ObserveForecast(string(fv.Status))
	return fv, nil
}

func (d *Dashboard) FilterOptions(ctx context.Context) (models.FilterOptions, error) {
	ds, err := d.Dataset(ctx)
	if err != nil {
		return models.FilterOptions{}, err
	}
	return filter.Options(ds), nil
}

// DefaultSpec selects every option, matching the dashboard's initial state.
func (d *Dashboard) DefaultSpec(ctx context.Context) (models.FilterSpec, error) {
	opts, err := d.FilterOptions(ctx)
	if err != nil {
		return models.FilterSpec{}, err
	}
	spec := filter.SelectAll(opts)
	spec.EmptySelectionMeansAll = d.emptyAll
	return spec, nil
}

func (d *Dashboard) ExportCSV(ctx context.Context, spec models.FilterSpec) ([]byte, error) {
	return d.export(ctx, spec, "csv", func(view models.FilteredView) ([]byte, error) {
		return export.CSVWithOptions(view, d.csv)
	})
}

func (d *Dashboard) ExportXLSX(ctx context.Context, spec models.FilterSpec) ([]byte, error) {
	return d.export(ctx, spec, "xlsx", export.XLSX)
}

func (d *Dashboard) export(ctx context.Context, spec models.FilterSpec, format string, encode func(models.FilteredView) ([]byte, error)) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "services.Export")
	defer span.End()
	span.SetAttributes(attribute.String("export.format", format))

	ds, err := d.Dataset(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	view := filter.Apply(ds, spec)
	data, err := encode(view)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("export %s: %w", format, err)
	}

	d.exports.Add(1)
	d.recorder.ObserveExport(format, len(data))
	d.logger.Info("export generated", "format", format, "rows", view.Len(), "bytes", len(data))
	return data, nil
}

// WarmUp loads the dataset before serving. Transient failures are retried
// with exponential backoff; malformed input fails immediately.
func (d *Dashboard) WarmUp(ctx context.Context) error {
	attempt := 0
	op := func() error {
		attempt++
		_, err := d.Dataset(ctx)
		if err == nil {
			return nil
		}

		var loadErr *dataset.LoadError
		if errors.As(err, &loadErr) && loadErr.Permanent() {
			return backoff.Permanent(err)
		}
		d.logger.Warn("dataset load failed", "attempt", attempt, "path", d.path, "error", err)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.interval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, d.retries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return err
	}

	ds := d.lastFetch.Load()
	d.logger.Info("dataset ready", "path", d.path, "rows", ds.Len(), "attempts", attempt)
	return nil
}

// Stats reports the state of the last dataset served.
func (d *Dashboard) Stats() map[string]any {
	stats := map[string]any{
		"path":            d.path,
		"cached_datasets": d.cache.Len(),
		"renders":         d.renders.Load(),
		"exports":         d.exports.Load(),
	}

	if ds := d.lastFetch.Load(); ds != nil {
		stats["record_count"] = ds.Len()
		stats["columns"] = len(ds.Header)
		stats["last_modified"] = ds.ModTime
		stats["loaded_at"] = ds.LoadedAt
	}
	return stats
}
