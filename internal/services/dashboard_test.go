package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superstore-dashboard/internal/dataset"
	"superstore-dashboard/internal/models"
)

type fakeRecorder struct {
	mu        sync.Mutex
	renders   map[string]int
	forecasts map[string]int
	exports   map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		renders:   map[string]int{},
		forecasts: map[string]int{},
		exports:   map[string]int{},
	}
}

func (r *fakeRecorder) ObserveRender(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders[outcome]++
}

func (r *fakeRecorder) ObserveForecast(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forecasts[status]++
}

func (r *fakeRecorder) ObserveExport(format string, size int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports[format] += size
}

func newTestDashboard(t *testing.T, path string, rec Recorder) *Dashboard {
	t.Helper()
	cache := dataset.NewCache(dataset.NewLoader(nil), dataset.CacheOptions{})
	return NewDashboard(cache, Options{
		Path:                   path,
		EmptySelectionMeansAll: true,
		Recorder:               rec,
		WarmUpRetries:          2,
		WarmUpInterval:         time.Millisecond,
	})
}

func TestDashboard_ViewReusesCachedDataset(t *testing.T) {
	rec := newFakeRecorder()
	d := newTestDashboard(t, createTempCSV(t, generateCSV(120, 30)), rec)
	ctx := context.Background()

	first, err := d.View(ctx, d.Spec(nil, nil, nil, models.DateRange{}))
	require.NoError(t, err)
	assert.Equal(t, 120, first.Rows)

	second, err := d.View(ctx, d.Spec([]string{"East"}, nil, nil, models.DateRange{}))
	require.NoError(t, err)
	assert.Equal(t, 40, second.Rows)

	assert.Equal(t, 1, d.cache.Len())
	assert.Equal(t, 2, rec.renders[OutcomeOK])

	forecasts := 0
	for _, n := range rec.forecasts {
		forecasts += n
	}
	assert.Equal(t, 2, forecasts)
}

func TestDashboard_ViewMissingFile(t *testing.T) {
	rec := newFakeRecorder()
	d := newTestDashboard(t, filepath.Join(t.TempDir(), "missing.csv"), rec)

	_, err := d.View(context.Background(), d.Spec(nil, nil, nil, models.DateRange{}))

	var loadErr *dataset.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, 1, rec.renders[OutcomeError])
}

func TestDashboard_ExportCSV(t *testing.T) {
	rec := newFakeRecorder()
	d := newTestDashboard(t, createTempCSV(t, generateCSV(90, 30)), rec)

	data, err := d.ExportCSV(context.Background(), d.Spec([]string{"West"}, nil, nil, models.DateRange{}))
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 31, "header plus one row per West order")
	assert.Equal(t, "ProfitMargin", records[0][len(records[0])-1])
	for _, r := range records[1:] {
		assert.Equal(t, "West", r[3])
	}
	assert.Equal(t, len(data), rec.exports["csv"])
}

func TestDashboard_ExportCSVWithBOM(t *testing.T) {
	cache := dataset.NewCache(dataset.NewLoader(nil), dataset.CacheOptions{})
	d := NewDashboard(cache, Options{
		Path:                   createTempCSV(t, generateCSV(10, 5)),
		EmptySelectionMeansAll: true,
		CSVWithBOM:             true,
	})

	data, err := d.ExportCSV(context.Background(), d.Spec(nil, nil, nil, models.DateRange{}))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\xef\xbb\xbf")))
}

func TestDashboard_ExportXLSX(t *testing.T) {
	rec := newFakeRecorder()
	d := newTestDashboard(t, createTempCSV(t, generateCSV(30, 30)), rec)

	data, err := d.ExportXLSX(context.Background(), d.Spec(nil, nil, nil, models.DateRange{}))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")), "xlsx is a zip archive")
	assert.Equal(t, len(data), rec.exports["xlsx"])
	assert.Equal(t, int64(1), d.Stats()["exports"])
}

func TestDashboard_DefaultSpecSelectsEverything(t *testing.T) {
	d := newTestDashboard(t, createTempCSV(t, generateCSV(60, 30)), nil)
	ctx := context.Background()

	spec, err := d.DefaultSpec(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, testRegions, spec.Regions)
	assert.ElementsMatch(t, testCategories, spec.Categories)
	assert.False(t, spec.Dates.Active(), "default selection leaves the date range open")

	vm, err := d.View(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, 60, vm.Rows)
}

func TestDashboard_WarmUp(t *testing.T) {
	d := newTestDashboard(t, createTempCSV(t, generateCSV(10, 10)), nil)

	require.NoError(t, d.WarmUp(context.Background()))

	stats := d.Stats()
	assert.Equal(t, 10, stats["record_count"])
	assert.Equal(t, 1, stats["cached_datasets"])
}

func TestDashboard_WarmUpMalformedFileFailsFast(t *testing.T) {
	path := createTempCSV(t, "Region,Category\nWest,Furniture\n")
	cache := dataset.NewCache(dataset.NewLoader(nil), dataset.CacheOptions{})
	d := NewDashboard(cache, Options{
		Path:           path,
		WarmUpRetries:  5,
		WarmUpInterval: time.Hour,
	})

	done := make(chan error, 1)
	go func() { done <- d.WarmUp(context.Background()) }()

	select {
	case err := <-done:
		var loadErr *dataset.LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.True(t, errors.Is(err, dataset.ErrMissingColumns))
	case <-time.After(5 * time.Second):
		t.Fatal("WarmUp retried a permanent error")
	}
}

func TestDashboard_WarmUpRetriesUntilFileAppears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.csv")
	cache := dataset.NewCache(dataset.NewLoader(nil), dataset.CacheOptions{})
	d := NewDashboard(cache, Options{
		Path:           path,
		WarmUpRetries:  50,
		WarmUpInterval: 5 * time.Millisecond,
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		tmp := path + ".tmp"
		_ = os.WriteFile(tmp, []byte(generateCSV(5, 5)), 0644)
		_ = os.Rename(tmp, path)
	}()

	require.NoError(t, d.WarmUp(context.Background()))
	assert.Equal(t, 5, d.Stats()["record_count"])
}

func TestDashboard_WarmUpGivesUp(t *testing.T) {
	d := newTestDashboard(t, filepath.Join(t.TempDir(), "never.csv"), nil)

	err := d.WarmUp(context.Background())

	var loadErr *dataset.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
