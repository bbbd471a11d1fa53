package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
	"github.com/DimaJoyti/analytics-engine/internal/timeseries"
)

// ProductEntry is one product's forecast within a Top-N batch.
type ProductEntry struct {
	ProductID string
	Frames    []Frame
	Err       error
}

// TopN forecasts the N products with the highest recent total revenue,
// sequentially to avoid saturating the forecasting CPU budget.
func (e *Engine) TopN(ctx context.Context, demand repository.ProductDemandRepository, periodStart, periodEnd time.Time, n, periods int) ([]ProductEntry, error) {
	top, err := demand.TopByRevenue(ctx, periodStart, periodEnd, n)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve top-N products: %w", err)
	}

	entries := make([]ProductEntry, len(top))
	for i, d := range top {
		frames, forecastErr := e.Forecast(ctx, ProductScope(d.ProductID), periods, true)
		entries[i] = ProductEntry{ProductID: d.ProductID, Frames: frames, Err: forecastErr}
		if forecastErr != nil {
			e.logger.Warn("top-N forecast failed", zap.String("product_id", d.ProductID), zap.Error(forecastErr))
		}
	}
	return entries, nil
}

// Category forecasts the summed series across every product in categoryID
// and upserts the group's CategoryPerformanceMetric rollup.
func (e *Engine) Category(ctx context.Context, categoryID string, periods int) ([]Frame, error) {
	to := e.clock.Today()
	from := to.AddDate(0, 0, -365)

	series, err := e.source.CategorySeries(ctx, categoryID, from, to)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, nil
	}

	clean := series
	if report := e.validator.Validate(series); !report.IsValid {
		clean = e.validator.AutoClean(series)
	}

	model, err := fitSeasonalModel(clean)
	var frames []Frame
	if err != nil {
		e.logger.Warn("category model training failed, falling back to moving average",
			zap.String("category_id", categoryID), zap.Error(err))
		frames = movingAverageFallback(clean, periods, e.clock.Today())
	} else {
		last := clean[len(clean)-1].Date
		frames = make([]Frame, periods)
		for i := 0; i < periods; i++ {
			date := last.AddDate(0, 0, i+1)
			point, lower, upper := model.predictWithBand(date, Scope("category:"+categoryID))
			frames[i] = Frame{Date: date, Point: point, Lower: lower, Upper: upper}
		}
	}

	if e.category != nil {
		if err := e.upsertCategoryRollup(ctx, categoryID, clean, from, to); err != nil {
			e.logger.Warn("failed to upsert category rollup", zap.String("category_id", categoryID), zap.Error(err))
		}
	}

	return frames, nil
}

func (e *Engine) upsertCategoryRollup(ctx context.Context, categoryID string, series []timeseries.SeriesPoint, from, to time.Time) error {
	var total float64
	for _, p := range series {
		total += p.Value
	}

	products, err := e.source.ProductsInCategory(ctx, categoryID)
	if err != nil {
		return err
	}

	metric := &models.CategoryPerformanceMetric{
		CategoryID:    categoryID,
		CategoryName:  categoryID,
		PeriodStart:   from,
		PeriodEnd:     to,
		TotalRevenue:  decimal.NewFromFloat(total),
		ProductCount:  len(products),
	}
	return e.category.Upsert(ctx, metric)
}

// Warehouse forecasts the summed series across every product stocked at
// warehouseID.
func (e *Engine) Warehouse(ctx context.Context, warehouseID string, periods int) ([]Frame, error) {
	to := e.clock.Today()
	from := to.AddDate(0, 0, -365)

	series, err := e.source.WarehouseSeries(ctx, warehouseID, from, to)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, nil
	}

	clean := series
	if report := e.validator.Validate(series); !report.IsValid {
		clean = e.validator.AutoClean(series)
	}

	model, err := fitSeasonalModel(clean)
	if err != nil {
		e.logger.Warn("warehouse model training failed, falling back to moving average",
			zap.String("warehouse_id", warehouseID), zap.Error(err))
		return movingAverageFallback(clean, periods, e.clock.Today()), nil
	}

	last := clean[len(clean)-1].Date
	frames := make([]Frame, periods)
	for i := 0; i < periods; i++ {
		date := last.AddDate(0, 0, i+1)
		point, lower, upper := model.predictWithBand(date, Scope("warehouse:"+warehouseID))
		frames[i] = Frame{Date: date, Point: point, Lower: lower, Upper: upper}
	}
	return frames, nil
}
