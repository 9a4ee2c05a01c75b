package handlers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"superstore-dashboard/internal/dataset"
	"superstore-dashboard/internal/errors"
	"superstore-dashboard/internal/export"
	"superstore-dashboard/internal/models"
	"superstore-dashboard/internal/observability"
)

// Dashboard is the service behind the HTTP handlers.
type Dashboard interface {
	specBuilder
	View(ctx context.Context, spec models.FilterSpec) (*models.ViewModel, error)
	Forecast(ctx context.Context, spec models.FilterSpec) (models.ForecastView, error)
	FilterOptions(ctx context.Context) (models.FilterOptions, error)
	DefaultSpec(ctx context.Context) (models.FilterSpec, error)
	ExportCSV(ctx context.Context, spec models.FilterSpec) ([]byte, error)
	ExportXLSX(ctx context.Context, spec models.FilterSpec) ([]byte, error)
	Stats() map[string]any
}

type APIHandlers struct {
	dashboard Dashboard
	logger    *slog.Logger
}

func NewAPIHandlers(dashboard Dashboard, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		dashboard: dashboard,
		logger:    logger,
	}
}

func (h *APIHandlers) HandleFilters(w http.ResponseWriter, r *http.Request) {
	opts, err := h.dashboard.FilterOptions(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	errors.WriteSuccess(w, opts)
}

func (h *APIHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	spec, err := filterFromQuery(r).spec(h.dashboard)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	vm, err := h.dashboard.View(r.Context(), spec)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	errors.WriteSuccess(w, vm)
}

// HandleForecast always succeeds once the dataset is available: a forecast
// that cannot be produced is reported through the status and message fields.
func (h *APIHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	spec, err := filterFromQuery(r).spec(h.dashboard)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	fv, err := h.dashboard.Forecast(r.Context(), spec)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	errors.WriteSuccess(w, fv)
}

func (h *APIHandlers) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	h.handleExport(w, r, h.dashboard.ExportCSV, export.CSVFilename, export.CSVContentType)
}

func (h *APIHandlers) HandleExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.handleExport(w, r, h.dashboard.ExportXLSX, export.XLSXFilename, export.XLSXContentType)
}

func (h *APIHandlers) handleExport(w http.ResponseWriter, r *http.Request,
	produce func(context.Context, models.FilterSpec) ([]byte, error), filename, contentType string) {

	spec, err := filterFromQuery(r).spec(h.dashboard)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	data, err := produce(r.Context(), spec)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	errors.WriteAttachment(w, filename, contentType, data)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.dashboard.Stats())
}

// writeError maps dataset load failures to DATA_UNAVAILABLE before writing
// the error envelope.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var loadErr *dataset.LoadError
	if stderrors.As(err, &loadErr) {
		err = errors.DataUnavailable(err)
	}
	errors.WriteError(w, observability.LoggerFor(r.Context(), logger), err, observability.GetRequestID(r.Context()))
}
