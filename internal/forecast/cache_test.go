package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/DimaJoyti/analytics-engine/internal/timeseries"
)

func sampleSeries() []timeseries.SeriesPoint {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make([]timeseries.SeriesPoint, 5)
	for i := range series {
		series[i] = timeseries.SeriesPoint{Date: start.AddDate(0, 0, i), Value: float64(i)}
	}
	return series
}

func TestFingerprint_StableForSameSeries(t *testing.T) {
	a := fingerprint(sampleSeries())
	b := fingerprint(sampleSeries())
	assert.Equal(t, a, b)
}

func TestFingerprint_ChangesWithValues(t *testing.T) {
	series := sampleSeries()
	a := fingerprint(series)
	series[len(series)-1].Value += 1
	b := fingerprint(series)
	assert.NotEqual(t, a, b)
}

func TestSerializeDeserializeModel_RoundTrip(t *testing.T) {
	m := &seasonalModel{
		StartDate:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Coefficients:  []float64{1, 2, 3},
		WeeklyEnabled: true,
		Residuals:     []float64{0.1, -0.2},
	}
	fp := fingerprint(sampleSeries())
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	raw, err := serializeModel(m, fp, now)
	assert.NoError(t, err)

	got, ok, err := deserializeModel(raw, fp)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, m.Coefficients, got.Coefficients)
	assert.Equal(t, m.WeeklyEnabled, got.WeeklyEnabled)
}

func TestDeserializeModel_FingerprintMismatchMissesCache(t *testing.T) {
	m := &seasonalModel{StartDate: time.Now().UTC(), Coefficients: []float64{1}}
	raw, err := serializeModel(m, 111, time.Now())
	assert.NoError(t, err)

	_, ok, err := deserializeModel(raw, 222)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDeserializeModel_UnknownVersionMissesCache(t *testing.T) {
	_, ok, err := deserializeModel([]byte{0xFF, 1, 2, 3}, 1)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestEncodeDecodeFrames_RoundTrip(t *testing.T) {
	frames := []Frame{
		{Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Point: 10, Lower: 8, Upper: 12},
		{Date: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Point: 11, Lower: 9, Upper: 13},
	}

	raw, err := encodeFrames(frames)
	assert.NoError(t, err)

	got, err := decodeFrames(raw)
	assert.NoError(t, err)
	assert.Equal(t, frames, got)
}

func TestModelCacheKey_IncludesScope(t *testing.T) {
	assert.Equal(t, "model:product:p1", modelCacheKey(Scope("product:p1")))
}

func TestResultCacheKey_IncludesScopeAndPeriods(t *testing.T) {
	assert.Equal(t, "forecast:product:p1:30", resultCacheKey(Scope("product:p1"), 30))
}
