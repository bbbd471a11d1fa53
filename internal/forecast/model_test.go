package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/DimaJoyti/analytics-engine/internal/timeseries"
)

func TestFeatureCount(t *testing.T) {
	assert.Equal(t, 2, featureCount(false, false))
	assert.Equal(t, 2+2*weeklyHarmonics, featureCount(true, false))
	assert.Equal(t, 2+2*weeklyHarmonics+2*yearlyHarmonics, featureCount(true, true))
}

func TestFeaturize_Length(t *testing.T) {
	row := featurize(3.5, true, true)
	assert.Len(t, row, featureCount(true, true))
	assert.Equal(t, 1.0, row[0])
	assert.Equal(t, 3.5, row[1])
}

func TestDot(t *testing.T) {
	assert.Equal(t, 32.0, dot([]float64{1, 2, 3}, []float64{4, 5, 6}))
}

func TestGaussianSolve_Identity(t *testing.T) {
	a := [][]float64{{1, 0}, {0, 1}}
	b := []float64{3, 4}
	x, err := gaussianSolve(a, b)
	assert.NoError(t, err)
	assert.InDelta(t, 3, x[0], 1e-9)
	assert.InDelta(t, 4, x[1], 1e-9)
}

func TestGaussianSolve_SingularReturnsError(t *testing.T) {
	a := [][]float64{{0, 0}, {0, 0}}
	b := []float64{1, 1}
	_, err := gaussianSolve(a, b)
	assert.Error(t, err)
}

func TestFitSeasonalModel_EmptySeriesErrors(t *testing.T) {
	_, err := fitSeasonalModel(nil)
	assert.Error(t, err)
}

func TestFitSeasonalModel_FitsLinearTrend(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make([]timeseries.SeriesPoint, 10)
	for i := range series {
		series[i] = timeseries.SeriesPoint{Date: start.AddDate(0, 0, i), Value: float64(10 + i)}
	}

	m, err := fitSeasonalModel(series)
	assert.NoError(t, err)
	assert.False(t, m.WeeklyEnabled)
	assert.False(t, m.YearlyEnabled)

	got := m.predict(start.AddDate(0, 0, 9))
	assert.InDelta(t, 19, got, 0.5)
}

func TestFitSeasonalModel_EnablesWeeklyAtThreshold(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make([]timeseries.SeriesPoint, weeklyMinSeriesLength)
	for i := range series {
		series[i] = timeseries.SeriesPoint{Date: start.AddDate(0, 0, i), Value: float64(i % 7)}
	}

	m, err := fitSeasonalModel(series)
	assert.NoError(t, err)
	assert.True(t, m.WeeklyEnabled)
	assert.False(t, m.YearlyEnabled)
}

func TestPredictWithBand_ConstantResidualsCollapseBand(t *testing.T) {
	m := &seasonalModel{
		StartDate:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Coefficients: []float64{5, 0},
		Residuals:    []float64{0, 0, 0},
	}

	point, lower, upper := m.predictWithBand(m.StartDate, Scope("product:p1"))
	assert.Equal(t, 5.0, point)
	assert.Equal(t, 5.0, lower)
	assert.Equal(t, 5.0, upper)
}

func TestPredictWithBand_NoResidualsCollapsesToPoint(t *testing.T) {
	m := &seasonalModel{
		StartDate:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Coefficients: []float64{5, 0},
	}

	point, lower, upper := m.predictWithBand(m.StartDate, Scope("product:p1"))
	assert.Equal(t, point, lower)
	assert.Equal(t, point, upper)
}

func TestSeedFromScope_Deterministic(t *testing.T) {
	a := seedFromScope(Scope("product:p1"))
	b := seedFromScope(Scope("product:p1"))
	c := seedFromScope(Scope("product:p2"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestJitter_BoundedByEpsilon(t *testing.T) {
	for i := 0; i < 20; i++ {
		v := jitter(Scope("product:p1"), i, 0.01)
		assert.LessOrEqual(t, v, 0.01)
		assert.GreaterOrEqual(t, v, -0.01)
	}
}

func TestSplitmix64_Deterministic(t *testing.T) {
	assert.Equal(t, splitmix64(1), splitmix64(1))
	assert.NotEqual(t, splitmix64(1), splitmix64(2))
}
