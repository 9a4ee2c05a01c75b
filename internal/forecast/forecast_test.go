package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superstore-dashboard/internal/models"
)

var start = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

func series(n int, value func(i int) float64) []models.Point {
	points := make([]models.Point, n)
	for i := range points {
		points[i] = models.Point{Date: start.AddDate(0, 0, i), Value: value(i)}
	}
	return points
}

func TestForecast_InsufficientHistory(t *testing.T) {
	_, err := Forecast(series(20, func(i int) float64 { return float64(i) }))
	assert.ErrorIs(t, err, ErrInsufficientData)

	var fe *Error
	assert.False(t, errors.As(err, &fe), "insufficient data is not a fitting error")
}

func TestForecast_DuplicateDatesCountOnce(t *testing.T) {
	points := series(20, func(i int) float64 { return float64(i) })
	points = append(points, models.Point{Date: start, Value: 3})

	_, err := Forecast(points)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestForecast_LinearTrend(t *testing.T) {
	points := series(21, func(i int) float64 { return 100 + 5*float64(i) })

	res, err := Forecast(points)
	require.NoError(t, err)
	require.Len(t, res.Forecast, DefaultHorizon)
	assert.Equal(t, points, res.Actual)

	last := points[len(points)-1]
	for h, p := range res.Forecast {
		assert.Equal(t, last.Date.AddDate(0, 0, h+1), p.Date)
		assert.InDelta(t, last.Value+5*float64(h+1), p.Value, 1e-6)
	}
}

func TestForecast_NoisyUpwardTrendIsMonotone(t *testing.T) {
	points := series(60, func(i int) float64 {
		noise := 4.0
		if i%2 == 0 {
			noise = -4.0
		}
		return 50 + 3*float64(i) + noise
	})

	res, err := Forecast(points)
	require.NoError(t, err)
	require.Len(t, res.Forecast, DefaultHorizon)

	for i := 1; i < len(res.Forecast); i++ {
		assert.Greater(t, res.Forecast[i].Value, res.Forecast[i-1].Value)
	}
	assert.Greater(t, res.Alpha, 0.0)
	assert.Less(t, res.Alpha, 1.0)
	assert.Greater(t, res.Beta, 0.0)
	assert.Less(t, res.Beta, 1.0)
}

func TestForecast_DownwardTrend(t *testing.T) {
	points := series(40, func(i int) float64 { return 1000 - 7*float64(i) + float64(i%3) })

	res, err := Forecast(points)
	require.NoError(t, err)
	for i := 1; i < len(res.Forecast); i++ {
		assert.Less(t, res.Forecast[i].Value, res.Forecast[i-1].Value)
	}
}

func TestForecast_DegenerateSeries(t *testing.T) {
	tests := []struct {
		name   string
		points []models.Point
	}{
		{"constant", series(30, func(int) float64 { return 42 })},
		{"nan", series(30, func(i int) float64 {
			if i == 10 {
				return math.NaN()
			}
			return float64(i)
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Forecast(tt.points)
			assert.Nil(t, res)

			var fe *Error
			require.True(t, errors.As(err, &fe), "want *Error, got %v", err)
			assert.ErrorIs(t, err, ErrDegenerateSeries)
		})
	}
}

func TestForecast_UnsortedInput(t *testing.T) {
	points := series(25, func(i int) float64 { return 10 + 2*float64(i) })
	reversed := make([]models.Point, len(points))
	for i, p := range points {
		reversed[len(points)-1-i] = p
	}

	res, err := Forecast(reversed)
	require.NoError(t, err)
	assert.Equal(t, points, res.Actual)
	assert.Equal(t, points[len(points)-1].Date.AddDate(0, 0, 1), res.Forecast[0].Date)
}

func TestForecaster_CustomHorizon(t *testing.T) {
	res, err := New(7, 5).Forecast(series(5, func(i int) float64 { return float64(i * i) }))
	require.NoError(t, err)
	assert.Len(t, res.Forecast, 7)
}

func TestSSE_PerfectTrendIsZero(t *testing.T) {
	y := []float64{1, 3, 5, 7, 9}
	assert.Equal(t, 0.0, sse(y, 0.3, 0.6))
}
