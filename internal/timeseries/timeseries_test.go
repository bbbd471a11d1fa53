package timeseries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
}

func TestPopStdDev(t *testing.T) {
	assert.Equal(t, 0.0, PopStdDev(nil))
	assert.Equal(t, 0.0, PopStdDev([]float64{5}))
	assert.InDelta(t, 2.0, PopStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 0.01)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 3.0, Median([]float64{1, 2, 3, 4, 5}))
	assert.Equal(t, 2.5, Median([]float64{1, 2, 3, 4}))
}

func TestPercentile(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50}
	assert.Equal(t, 10.0, Percentile(values, 0))
	assert.Equal(t, 50.0, Percentile(values, 100))
	assert.Equal(t, 30.0, Percentile(values, 50))
}

func TestMinMax(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5}
	assert.Equal(t, 1.0, Min(values))
	assert.Equal(t, 5.0, Max(values))
	assert.Equal(t, 0.0, Min(nil))
	assert.Equal(t, 0.0, Max(nil))
}

func TestSortByDate(t *testing.T) {
	day := func(n int) time.Time { return time.Date(2025, 1, n, 0, 0, 0, 0, time.UTC) }
	points := []SeriesPoint{
		{Date: day(3), Value: 3},
		{Date: day(1), Value: 1},
		{Date: day(2), Value: 2},
	}
	SortByDate(points)
	assert.Equal(t, []float64{1, 2, 3}, Values(points))
}
