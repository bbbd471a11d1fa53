package forecast

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DimaJoyti/analytics-engine/internal/cache"
	"github.com/DimaJoyti/analytics-engine/internal/clock"
	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/quality"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
	"github.com/DimaJoyti/analytics-engine/internal/timeseries"
)

const modelName = "seasonal_additive_v1"

// Frame is one point of a forecast: the predicted value and its 95%
// confidence band for a given date.
type Frame struct {
	Date  time.Time
	Point float64
	Lower float64
	Upper float64
}

// Components is the decomposed contribution of each model term at every
// training date (one value per point of the series), used by diagnostic
// surfaces.
type Components struct {
	Trend  []float64
	Weekly []float64
	Yearly []float64
}

// Accuracy summarizes a scope's realized forecast error.
type Accuracy struct {
	MAPE       float64
	RMSE       float64
	MAE        float64
	SampleSize int
}

// Engine trains and serves forecasts. It owns the model and result caches for
// every scope and is safe for concurrent use.
type Engine struct {
	source   Source
	validator *quality.Validator
	cache    cache.Cache
	accuracy repository.ForecastAccuracyRepository
	category repository.CategoryPerformanceRepository
	clock    clock.Clock
	logger   *zap.Logger

	modelTTL  time.Duration
	resultTTL time.Duration

	// trainLocks is the best-effort, in-process singleflight-style dedup for
	// concurrent trainers of the same scope; it does not prevent duplicate
	// training across processes, only wasted CPU within one.
	trainLocks sync.Map // map[Scope]*sync.Mutex

	// trainer fits a model from a prepared series. Defaults to
	// fitSeasonalModel; overridable so tests can count invocations or force a
	// training failure without depending on real data degeneracy.
	trainer func([]timeseries.SeriesPoint) (*seasonalModel, error)
}

// Config configures an Engine's cache TTLs.
type Config struct {
	ModelCacheTTL     time.Duration
	ForecastResultTTL time.Duration
}

// New constructs an Engine.
func New(source Source, validator *quality.Validator, c cache.Cache, accuracy repository.ForecastAccuracyRepository, category repository.CategoryPerformanceRepository, clk clock.Clock, logger *zap.Logger, cfg Config) *Engine {
	return &Engine{
		source:    source,
		validator: validator,
		cache:     c,
		accuracy:  accuracy,
		category:  category,
		clock:     clk,
		logger:    logger,
		modelTTL:  cfg.ModelCacheTTL,
		resultTTL: cfg.ForecastResultTTL,
		trainer:   fitSeasonalModel,
	}
}

// Prepare pulls and cleans the historical series for scope over the last
// daysHistory days, dropping invalid rows and aggregating duplicate dates.
func (e *Engine) Prepare(ctx context.Context, scope Scope, daysHistory int) ([]timeseries.SeriesPoint, error) {
	to := e.clock.Today()
	from := to.AddDate(0, 0, -daysHistory)

	raw, err := e.source.Series(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}

	dropped := 0
	byDate := make(map[string]float64, len(raw))
	dateByKey := make(map[string]time.Time, len(raw))
	for _, p := range raw {
		if p.Date.IsZero() || math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			dropped++
			continue
		}
		v := p.Value
		if v < 0 {
			v = 0
		}
		key := p.Date.Format("2006-01-02")
		dateByKey[key] = p.Date
		byDate[key] += v
	}

	cleaned := make([]timeseries.SeriesPoint, 0, len(byDate))
	for key, sum := range byDate {
		cleaned = append(cleaned, timeseries.SeriesPoint{Date: dateByKey[key], Value: sum})
	}
	timeseries.SortByDate(cleaned)

	if dropped > 0 {
		e.logger.Debug("dropped invalid rows while preparing series",
			zap.String("scope", string(scope)), zap.Int("dropped", dropped))
	}

	if allEqual(cleaned) && len(cleaned) > 0 {
		mean := timeseries.Mean(timeseries.Values(cleaned))
		epsilon := math.Max(mean*1e-6, 1e-6)
		for i := range cleaned {
			cleaned[i].Value += jitter(scope, i, epsilon)
		}
	}

	return cleaned, nil
}

func allEqual(series []timeseries.SeriesPoint) bool {
	if len(series) < 2 {
		return false
	}
	first := series[0].Value
	for _, p := range series[1:] {
		if p.Value != first {
			return false
		}
	}
	return true
}

// Forecast produces periods future points for scope. useCache controls
// whether the model and result caches are consulted.
func (e *Engine) Forecast(ctx context.Context, scope Scope, periods int, useCache bool) ([]Frame, error) {
	if useCache && e.cache != nil {
		key := resultCacheKey(scope, periods)
		if raw, ok, err := e.cache.Get(ctx, key); err == nil && ok {
			frames, decodeErr := decodeFrames(raw)
			if decodeErr == nil {
				return frames, nil
			}
		}
	}

	series, err := e.Prepare(ctx, scope, 365)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, nil
	}

	report := e.validator.Validate(series)
	clean := series
	if !report.IsValid {
		clean = e.validator.AutoClean(series)
	}

	model, err := e.trainOrLoad(ctx, scope, clean, useCache)
	var frames []Frame
	if err != nil {
		e.logger.Warn("model training failed, falling back to moving average",
			zap.String("scope", string(scope)), zap.Error(err))
		frames = movingAverageFallback(clean, periods, e.clock.Today())
	} else {
		last := clean[len(clean)-1].Date
		frames = make([]Frame, periods)
		for i := 0; i < periods; i++ {
			date := last.AddDate(0, 0, i+1)
			point, lower, upper := model.predictWithBand(date, scope)
			frames[i] = Frame{Date: date, Point: point, Lower: lower, Upper: upper}
		}
	}

	if useCache && e.cache != nil {
		if encoded, encodeErr := encodeFrames(frames); encodeErr == nil {
			if setErr := e.cache.Set(ctx, resultCacheKey(scope, periods), encoded, e.resultTTL); setErr != nil {
				e.logger.Warn("failed to cache forecast result", zap.Error(setErr))
			}
		}
	}

	return frames, nil
}

// movingAverageFallback emits periods future points at a flat mean of the
// tail min(7, len) observations, with a fixed +/-20% band.
func movingAverageFallback(series []timeseries.SeriesPoint, periods int, today time.Time) []Frame {
	n := len(series)
	tailLen := n
	if tailLen > 7 {
		tailLen = 7
	}
	tail := series[n-tailLen:]
	mean := timeseries.Mean(timeseries.Values(tail))

	last := series[n-1].Date
	if last.Before(today) {
		last = today
	}

	frames := make([]Frame, periods)
	for i := 0; i < periods; i++ {
		frames[i] = Frame{
			Date:  last.AddDate(0, 0, i+1),
			Point: mean,
			Lower: mean * 0.8,
			Upper: mean * 1.2,
		}
	}
	return frames
}

// trainOrLoad loads a cached model for scope if fresh, otherwise trains and
// (if useCache) stores a new one. Concurrent trainers for the same scope are
// discouraged, not prevented, by a best-effort in-process lock.
func (e *Engine) trainOrLoad(ctx context.Context, scope Scope, series []timeseries.SeriesPoint, useCache bool) (*seasonalModel, error) {
	fp := fingerprint(series)

	if useCache && e.cache != nil {
		if raw, ok, err := e.cache.Get(ctx, modelCacheKey(scope)); err == nil && ok {
			if m, match, decodeErr := deserializeModel(raw, fp); decodeErr == nil && match {
				return m, nil
			}
		}
	}

	lockIface, _ := e.trainLocks.LoadOrStore(scope, &sync.Mutex{})
	lock := lockIface.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	model, err := e.trainer(series)
	if err != nil {
		return nil, err
	}

	if useCache && e.cache != nil {
		if encoded, encodeErr := serializeModel(model, fp, e.clock.Now()); encodeErr == nil {
			if setErr := e.cache.Set(ctx, modelCacheKey(scope), encoded, e.modelTTL); setErr != nil {
				e.logger.Warn("failed to cache trained model", zap.String("scope", string(scope)), zap.Error(setErr))
			}
		}
	}
	return model, nil
}

// Components returns the decomposed term values across the training series,
// for diagnostic display. Returns nil if no model can be trained.
func (e *Engine) Components(ctx context.Context, scope Scope) (*Components, error) {
	series, err := e.Prepare(ctx, scope, 365)
	if err != nil || len(series) == 0 {
		return nil, err
	}
	model, err := fitSeasonalModel(series)
	if err != nil {
		return nil, nil
	}

	trend := make([]float64, len(series))
	weekly := make([]float64, len(series))
	yearly := make([]float64, len(series))
	for i, p := range series {
		t := p.Date.Sub(model.StartDate).Hours() / 24
		trend[i] = model.Coefficients[0] + model.Coefficients[1]*t
		if model.WeeklyEnabled {
			weekly[i] = seasonalComponent(model, t, 2, weeklyHarmonics, 7)
		}
		if model.YearlyEnabled {
			offset := 2
			if model.WeeklyEnabled {
				offset += 2 * weeklyHarmonics
			}
			yearly[i] = seasonalComponent(model, t, offset, yearlyHarmonics, 365.25)
		}
	}
	return &Components{Trend: trend, Weekly: weekly, Yearly: yearly}, nil
}

func seasonalComponent(model *seasonalModel, t float64, offset, harmonics int, period float64) float64 {
	var sum float64
	for k := 1; k <= harmonics; k++ {
		angle := 2 * math.Pi * float64(k) * t / period
		idx := offset + (k-1)*2
		sum += model.Coefficients[idx]*math.Sin(angle) + model.Coefficients[idx+1]*math.Cos(angle)
	}
	return sum
}

// Accuracy reports MAPE/RMSE/MAE over the most recent 90 realized forecast
// points for scope, or nil if none have been recorded yet.
func (e *Engine) Accuracy(ctx context.Context, forecastType models.ForecastType, scopeID string) (*Accuracy, error) {
	records, err := e.accuracy.ListByScope(ctx, forecastType, scopeID, 90)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	var sumAPE, sumSE, sumAE float64
	n := 0
	for _, r := range records {
		if r.ActualValue == nil || *r.ActualValue == 0 {
			continue
		}
		actual := *r.ActualValue
		diff := actual - r.PredictedValue
		abs := math.Abs(diff)
		sumAPE += abs / math.Abs(actual) * 100
		sumSE += diff * diff
		sumAE += abs
		n++
	}
	if n == 0 {
		return nil, nil
	}
	return &Accuracy{
		MAPE:       sumAPE / float64(n),
		RMSE:       math.Sqrt(sumSE / float64(n)),
		MAE:        sumAE / float64(n),
		SampleSize: n,
	}, nil
}

// Invalidate removes the cached model and every forecast result for each
// product id, to be called by collaborators after inventory/product
// mutations.
func (e *Engine) Invalidate(ctx context.Context, productIDs []string) error {
	if e.cache == nil {
		return nil
	}
	for _, id := range productIDs {
		modelKey, forecastGlob := cache.ScopeProductKeys(id)
		if err := e.cache.Delete(ctx, modelKey); err != nil {
			return fmt.Errorf("failed to invalidate model cache for product %s: %w", id, err)
		}
		if _, err := e.cache.DeletePattern(ctx, forecastGlob); err != nil {
			return fmt.Errorf("failed to invalidate forecast cache for product %s: %w", id, err)
		}
	}
	return nil
}
