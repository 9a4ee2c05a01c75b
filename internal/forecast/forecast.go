// Package forecast projects a daily sales series with additive-trend
// exponential smoothing (Holt's linear method, no seasonality).
package forecast

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"superstore-dashboard/internal/models"
)

const (
	DefaultHorizon = 30
	MinHistory     = 21
)

var (
	ErrInsufficientData = errors.New("not enough data for forecast")
	ErrDegenerateSeries = errors.New("series is constant or contains non-finite values")
	ErrNotConverged     = errors.New("smoothing parameters did not converge")
)

// Error is returned when a model cannot be fitted to a series that met the
// history precondition.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("forecast %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Forecaster struct {
	horizon    int
	minHistory int
}

func New(horizon, minHistory int) *Forecaster {
	return &Forecaster{horizon: horizon, minHistory: minHistory}
}

func Default() *Forecaster {
	return New(DefaultHorizon, MinHistory)
}

// Forecast fits the model to series and returns horizon daily predictions
// starting the day after the last observation.
func Forecast(series []models.Point) (*models.ForecastResult, error) {
	return Default().Forecast(series)
}

func (f *Forecaster) Forecast(series []models.Point) (*models.ForecastResult, error) {
	actual := normalize(series)
	if len(actual) < f.minHistory {
		return nil, fmt.Errorf("%w: %d distinct dates, need %d", ErrInsufficientData, len(actual), f.minHistory)
	}

	y := make([]float64, len(actual))
	for i, p := range actual {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, &Error{Op: "validate", Err: ErrDegenerateSeries}
		}
		y[i] = p.Value
	}
	if stat.Variance(y, nil) == 0 {
		return nil, &Error{Op: "validate", Err: ErrDegenerateSeries}
	}

	fit, err := fitHolt(y)
	if err != nil {
		return nil, &Error{Op: "fit", Err: err}
	}

	level, trend := fit.state(y)
	last := actual[len(actual)-1].Date
	predicted := make([]models.Point, f.horizon)
	for h := 1; h <= f.horizon; h++ {
		v := level + float64(h)*trend
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &Error{Op: "project", Err: fmt.Errorf("%w: non-finite prediction", ErrNotConverged)}
		}
		predicted[h-1] = models.Point{Date: last.AddDate(0, 0, h), Value: v}
	}

	return &models.ForecastResult{
		Actual:   actual,
		Forecast: predicted,
		Alpha:    fit.alpha,
		Beta:     fit.beta,
		SSE:      fit.sse,
	}, nil
}

// normalize orders the series by date and merges points sharing a day.
func normalize(series []models.Point) []models.Point {
	sorted := slices.Clone(series)
	slices.SortStableFunc(sorted, func(a, b models.Point) int {
		return a.Date.Compare(b.Date)
	})

	out := make([]models.Point, 0, len(sorted))
	for _, p := range sorted {
		p.Date = time.Date(p.Date.Year(), p.Date.Month(), p.Date.Day(), 0, 0, 0, 0, time.UTC)
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1].Value += p.Value
			continue
		}
		out = append(out, p)
	}
	return out
}

type holt struct {
	alpha float64
	beta  float64
	sse   float64
}

// state runs the smoothing recursions and returns the final level and trend.
func (h holt) state(y []float64) (level, trend float64) {
	level, trend = y[0], y[1]-y[0]
	for t := 1; t < len(y); t++ {
		prev := level
		level = h.alpha*y[t] + (1-h.alpha)*(level+trend)
		trend = h.beta*(level-prev) + (1-h.beta)*trend
	}
	return level, trend
}

func sse(y []float64, alpha, beta float64) float64 {
	level, trend := y[0], y[1]-y[0]
	var total float64
	for t := 1; t < len(y); t++ {
		e := y[t] - (level + trend)
		total += e * e
		prev := level
		level = alpha*y[t] + (1-alpha)*(level+trend)
		trend = beta*(level-prev) + (1-beta)*trend
	}
	return total
}

var gridSteps = []float64{0.05, 0.15, 0.3, 0.5, 0.7, 0.85, 0.95}

// fitHolt picks alpha and beta in (0,1) minimising the one-step-ahead SSE.
// A coarse grid provides the starting point for Nelder-Mead, which works on
// logit-transformed parameters so the search is unconstrained.
func fitHolt(y []float64) (holt, error) {
	best := holt{sse: math.Inf(1)}
	for _, a := range gridSteps {
		for _, b := range gridSteps {
			if s := sse(y, a, b); s < best.sse {
				best = holt{alpha: a, beta: b, sse: s}
			}
		}
	}
	if math.IsInf(best.sse, 0) || math.IsNaN(best.sse) {
		return holt{}, ErrDegenerateSeries
	}
	if best.sse == 0 {
		return best, nil
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return sse(y, sigmoid(x[0]), sigmoid(x[1]))
		},
	}
	settings := &optimize.Settings{FuncEvaluations: 5000}

	res, err := optimize.Minimize(problem, []float64{logit(best.alpha), logit(best.beta)}, settings, &optimize.NelderMead{})
	if err != nil {
		return holt{}, fmt.Errorf("%w: %v", ErrNotConverged, err)
	}
	switch res.Status {
	case optimize.Success, optimize.FunctionConvergence, optimize.MethodConverge:
	default:
		return holt{}, fmt.Errorf("%w: optimizer stopped with status %v", ErrNotConverged, res.Status)
	}

	if res.F < best.sse {
		best = holt{alpha: sigmoid(res.X[0]), beta: sigmoid(res.X[1]), sse: res.F}
	}
	return best, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
