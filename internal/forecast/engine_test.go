package forecast

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/DimaJoyti/analytics-engine/internal/cache"
	"github.com/DimaJoyti/analytics-engine/internal/clock"
	"github.com/DimaJoyti/analytics-engine/internal/quality"
	"github.com/DimaJoyti/analytics-engine/internal/timeseries"
)

// fakeSource is a Source backed by a fixed series, ignoring the requested
// window; it exists to drive Engine.Forecast without a real repository.
type fakeSource struct {
	series []timeseries.SeriesPoint
}

func (f *fakeSource) Series(ctx context.Context, scope Scope, from, to time.Time) ([]timeseries.SeriesPoint, error) {
	return f.series, nil
}
func (f *fakeSource) ProductsInCategory(ctx context.Context, categoryID string) ([]string, error) {
	return nil, nil
}
func (f *fakeSource) ProductsInWarehouse(ctx context.Context, warehouseID string) ([]string, error) {
	return nil, nil
}
func (f *fakeSource) CategorySeries(ctx context.Context, categoryID string, from, to time.Time) ([]timeseries.SeriesPoint, error) {
	return nil, nil
}
func (f *fakeSource) WarehouseSeries(ctx context.Context, warehouseID string, from, to time.Time) ([]timeseries.SeriesPoint, error) {
	return nil, nil
}

// fakeCache is an in-memory stand-in for cache.Cache, good enough to exercise
// the model/result caching paths Engine relies on.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string][]byte)} }

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *fakeCache) DeletePattern(ctx context.Context, prefixGlob string) (int, error) {
	prefix := strings.TrimSuffix(prefixGlob, "*")
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}

func (c *fakeCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]byte)
	for _, k := range keys {
		if v, ok := c.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (c *fakeCache) SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range values {
		c.data[k] = v
	}
	return nil
}

func (c *fakeCache) Stats() cache.Stats { return cache.Stats{} }

func (c *fakeCache) Aside(ctx context.Context, key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, error) {
	if v, ok, _ := c.Get(ctx, key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}

func countingTrainer(count *int) func([]timeseries.SeriesPoint) (*seasonalModel, error) {
	return func(series []timeseries.SeriesPoint) (*seasonalModel, error) {
		*count++
		return fitSeasonalModel(series)
	}
}

func trendingSeries(days int) []timeseries.SeriesPoint {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make([]timeseries.SeriesPoint, days)
	for i := 0; i < days; i++ {
		series[i] = timeseries.SeriesPoint{Date: start.AddDate(0, 0, i), Value: 100 + float64(i)*0.5}
	}
	return series
}

func newTestEngine(source Source, c cache.Cache, clk clock.Clock) *Engine {
	return New(source, &quality.Validator{}, c, nil, nil, clk, zap.NewNop(), Config{
		ModelCacheTTL:     time.Hour,
		ForecastResultTTL: time.Hour,
	})
}

func TestForecast_ReusesTrainedModelAcrossCalls(t *testing.T) {
	series := trendingSeries(60)
	src := &fakeSource{series: series}
	clk := clock.NewFixed(series[len(series)-1].Date.AddDate(0, 0, 1))
	engine := newTestEngine(src, newFakeCache(), clk)

	var trainCount int
	engine.trainer = countingTrainer(&trainCount)

	scope := ProductScope("p1")
	ctx := context.Background()

	_, err := engine.Forecast(ctx, scope, 7, true)
	assert.NoError(t, err)
	assert.Equal(t, 1, trainCount)

	// Different periods misses the result cache but should still hit the
	// model cache, since the underlying series (and its fingerprint) is
	// unchanged.
	_, err = engine.Forecast(ctx, scope, 14, true)
	assert.NoError(t, err)
	assert.Equal(t, 1, trainCount)
}

func TestForecast_InvalidateForcesRetrain(t *testing.T) {
	series := trendingSeries(60)
	src := &fakeSource{series: series}
	clk := clock.NewFixed(series[len(series)-1].Date.AddDate(0, 0, 1))
	engine := newTestEngine(src, newFakeCache(), clk)

	var trainCount int
	engine.trainer = countingTrainer(&trainCount)

	scope := ProductScope("p1")
	ctx := context.Background()

	_, err := engine.Forecast(ctx, scope, 7, true)
	assert.NoError(t, err)
	assert.Equal(t, 1, trainCount)

	assert.NoError(t, engine.Invalidate(ctx, []string{"p1"}))

	_, err = engine.Forecast(ctx, scope, 7, true)
	assert.NoError(t, err)
	assert.Equal(t, 2, trainCount)
}

func TestForecast_TrainingFailureFallsBackToMovingAverage(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make([]timeseries.SeriesPoint, 40)
	for i := range series {
		series[i] = timeseries.SeriesPoint{Date: start.AddDate(0, 0, i), Value: 5}
	}
	src := &fakeSource{series: series}
	clk := clock.NewFixed(series[len(series)-1].Date.AddDate(0, 0, 1))
	engine := newTestEngine(src, newFakeCache(), clk)
	engine.trainer = func([]timeseries.SeriesPoint) (*seasonalModel, error) {
		return nil, errors.New("forced training failure")
	}

	frames, err := engine.Forecast(context.Background(), ProductScope("p1"), 30, true)
	assert.NoError(t, err)
	assert.Len(t, frames, 30)
	for _, f := range frames {
		assert.InDelta(t, 5.0, f.Point, 1e-3)
		assert.InDelta(t, 4.0, f.Lower, 1e-3)
		assert.InDelta(t, 6.0, f.Upper, 1e-3)
	}
}
