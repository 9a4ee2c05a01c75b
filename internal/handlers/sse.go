package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"superstore-dashboard/internal/errors"
	"superstore-dashboard/internal/models"
	"superstore-dashboard/internal/observability"
	"superstore-dashboard/internal/ui/templates"
)

type SSEHandlers struct {
	dashboard Dashboard
	logger    *slog.Logger
}

func NewSSEHandlers(dashboard Dashboard, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		dashboard: dashboard,
		logger:    logger,
	}
}

// chartSignals drive client-side chart drawing. They are local signals so
// the page does not send them back with the next filter change.
type chartSignals struct {
	Summary  []models.Chart         `json:"_summary"`
	Charts   []models.Chart         `json:"_charts"`
	Forecast *models.ForecastResult `json:"_forecast"`
	Rows     int                    `json:"_rows"`
}

// HandleDashboard re-renders the dashboard for the filter signals sent by
// the page: the metric, forecast and preview fragments are patched in place
// and the chart specifications are pushed as signals.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	var in filterInput
	if err := datastar.ReadSignals(r, &in); err != nil {
		writeError(w, r, h.logger, errors.BadRequestWrap(err, "Invalid signals"))
		return
	}

	spec, err := in.spec(h.dashboard)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	vm, err := h.dashboard.View(r.Context(), spec)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	logger := observability.LoggerFor(r.Context(), h.logger)
	sse := datastar.NewSSE(w, r)

	for _, c := range []templ.Component{
		templates.Metrics(vm.Metrics),
		templates.Forecast(vm.Forecast),
		templates.Preview(vm.Preview),
	} {
		html, err := renderFragment(r, c)
		if err != nil {
			logger.Error("render fragment", "error", err)
			return
		}
		if err := sse.PatchElements(html); err != nil {
			logger.Warn("patch elements", "error", err)
			return
		}
	}

	signals, err := json.Marshal(chartSignals{
		Summary:  vm.Summary,
		Charts:   vm.Charts,
		Forecast: vm.Forecast.Result,
		Rows:     vm.Rows,
	})
	if err != nil {
		logger.Error("marshal chart signals", "error", err)
		return
	}
	if err := sse.PatchSignals(signals); err != nil {
		logger.Warn("patch signals", "error", err)
	}
}

func renderFragment(r *http.Request, c templ.Component) (string, error) {
	var buf strings.Builder
	err := c.Render(r.Context(), &buf)
	return buf.String(), err
}
