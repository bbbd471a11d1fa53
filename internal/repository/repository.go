// Package repository declares the persistence contracts the rest of the
// engine depends on; concrete implementations live in repository/postgres.
package repository

import (
	"context"
	"time"

	"github.com/DimaJoyti/analytics-engine/internal/models"
)

// DailySalesRepository persists DailySalesMetric rows, upserted by date.
type DailySalesRepository interface {
	Upsert(ctx context.Context, m *models.DailySalesMetric) error
	GetByDate(ctx context.Context, date time.Time) (*models.DailySalesMetric, error)
	ListRange(ctx context.Context, from, to time.Time) ([]models.DailySalesMetric, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ProductDemandRepository persists ProductDemandMetric rows, upserted by
// (product_id, period_start, period_end).
type ProductDemandRepository interface {
	Upsert(ctx context.Context, m *models.ProductDemandMetric) error
	ListByPeriod(ctx context.Context, periodStart, periodEnd time.Time) ([]models.ProductDemandMetric, error)
	TopByRevenue(ctx context.Context, periodStart, periodEnd time.Time, n int) ([]models.ProductDemandMetric, error)
}

// InventoryTurnoverRepository persists InventoryTurnoverMetric rows.
type InventoryTurnoverRepository interface {
	Upsert(ctx context.Context, m *models.InventoryTurnoverMetric) error
	ListByRisk(ctx context.Context, risks []models.RiskLevel) ([]models.InventoryTurnoverMetric, error)
}

// RecommendationRepository persists StockReorderRecommendation rows, upserted
// by (product_id, warehouse_id, created_day).
type RecommendationRepository interface {
	Upsert(ctx context.Context, r *models.StockReorderRecommendation) error
	ListPending(ctx context.Context) ([]models.StockReorderRecommendation, error)
	DeleteNonOrderedOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ForecastAccuracyRepository persists ForecastAccuracyRecord rows.
type ForecastAccuracyRepository interface {
	Insert(ctx context.Context, r *models.ForecastAccuracyRecord) error
	Update(ctx context.Context, r *models.ForecastAccuracyRecord) error
	ListAwaitingActual(ctx context.Context, asOf time.Time) ([]models.ForecastAccuracyRecord, error)
	// ListByScope retrieves the most recent limit records for
	// (forecastType, scopeID) that already have an actual recorded,
	// newest first, for accuracy reporting.
	ListByScope(ctx context.Context, forecastType models.ForecastType, scopeID string, limit int) ([]models.ForecastAccuracyRecord, error)
}

// CategoryPerformanceRepository persists CategoryPerformanceMetric rows.
type CategoryPerformanceRepository interface {
	Upsert(ctx context.Context, m *models.CategoryPerformanceMetric) error
}

// EventPositionRepository persists the durable (consumer_name, stream_name)
// -> last processed event id mapping.
type EventPositionRepository interface {
	Get(ctx context.Context, consumerName, streamName string) (string, error)
	Set(ctx context.Context, consumerName, streamName, lastEventID string) error
}

// ProductDailySalesRepository persists the per-product daily series the
// Forecast Engine trains on for a product scope.
type ProductDailySalesRepository interface {
	// IncrementDaily adds quantityDelta/revenueDelta to the row for
	// (productID, date), creating it with categoryID/warehouseID if absent.
	IncrementDaily(ctx context.Context, productID, categoryID, warehouseID string, date time.Time, quantityDelta int, revenueDelta float64) error
	ListByProduct(ctx context.Context, productID string, from, to time.Time) ([]models.ProductDailySales, error)
	ListByCategory(ctx context.Context, categoryID string, from, to time.Time) ([]models.ProductDailySales, error)
	ListByWarehouse(ctx context.Context, warehouseID string, from, to time.Time) ([]models.ProductDailySales, error)
	DistinctProductsInCategory(ctx context.Context, categoryID string) ([]string, error)
	DistinctProductsInWarehouse(ctx context.Context, warehouseID string) ([]string, error)
}

// TaskRunRepository persists TaskRun rows.
type TaskRunRepository interface {
	Create(ctx context.Context, t *models.TaskRun) error
	Finish(ctx context.Context, t *models.TaskRun) error
	ListByTask(ctx context.Context, taskName string, limit int) ([]models.TaskRun, error)
}
