package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
)

// ProductDemandRepository implements repository.ProductDemandRepository using
// Postgres.
type ProductDemandRepository struct {
	db *Database
}

// NewProductDemandRepository creates a new Postgres-backed product demand
// repository.
func NewProductDemandRepository(db *Database) repository.ProductDemandRepository {
	return &ProductDemandRepository{db: db}
}

// Upsert inserts or updates the metric row keyed by (product_id,
// period_start, period_end).
func (r *ProductDemandRepository) Upsert(ctx context.Context, m *models.ProductDemandMetric) error {
	query := `
		INSERT INTO product_demand_metrics (
			product_id, product_name, sku, period_start, period_end, period_days,
			total_quantity_sold, total_orders, average_daily_demand, max_daily_demand,
			min_daily_demand, total_revenue, average_price, trend, trend_percentage
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (product_id, period_start, period_end) DO UPDATE SET
			product_name = EXCLUDED.product_name,
			sku = EXCLUDED.sku,
			period_days = EXCLUDED.period_days,
			total_quantity_sold = EXCLUDED.total_quantity_sold,
			total_orders = EXCLUDED.total_orders,
			average_daily_demand = EXCLUDED.average_daily_demand,
			max_daily_demand = EXCLUDED.max_daily_demand,
			min_daily_demand = EXCLUDED.min_daily_demand,
			total_revenue = EXCLUDED.total_revenue,
			average_price = EXCLUDED.average_price,
			trend = EXCLUDED.trend,
			trend_percentage = EXCLUDED.trend_percentage
		RETURNING id
	`

	return r.db.GetDB().QueryRowxContext(
		ctx, query,
		m.ProductID, m.ProductName, m.SKU, m.PeriodStart, m.PeriodEnd, m.PeriodDays,
		m.TotalQuantitySold, m.TotalOrders, m.AverageDailyDemand, m.MaxDailyDemand,
		m.MinDailyDemand, m.TotalRevenue, m.AveragePrice, m.Trend, m.TrendPercentage,
	).Scan(&m.ID)
}

// ListByPeriod retrieves demand metrics whose period exactly matches
// [periodStart, periodEnd].
func (r *ProductDemandRepository) ListByPeriod(ctx context.Context, periodStart, periodEnd time.Time) ([]models.ProductDemandMetric, error) {
	query := `
		SELECT id, product_id, product_name, sku, period_start, period_end, period_days,
			total_quantity_sold, total_orders, average_daily_demand, max_daily_demand,
			min_daily_demand, total_revenue, average_price, trend, trend_percentage
		FROM product_demand_metrics
		WHERE period_start = $1 AND period_end = $2
	`
	var rows []models.ProductDemandMetric
	if err := r.db.GetDB().SelectContext(ctx, &rows, query, periodStart, periodEnd); err != nil {
		return nil, fmt.Errorf("failed to list product demand metrics: %w", err)
	}
	return rows, nil
}

// TopByRevenue retrieves the n products with the highest total_revenue for
// the given period, used by the Forecast Engine's top-N batch variant.
func (r *ProductDemandRepository) TopByRevenue(ctx context.Context, periodStart, periodEnd time.Time, n int) ([]models.ProductDemandMetric, error) {
	query := `
		SELECT id, product_id, product_name, sku, period_start, period_end, period_days,
			total_quantity_sold, total_orders, average_daily_demand, max_daily_demand,
			min_daily_demand, total_revenue, average_price, trend, trend_percentage
		FROM product_demand_metrics
		WHERE period_start = $1 AND period_end = $2
		ORDER BY total_revenue DESC
		LIMIT $3
	`
	var rows []models.ProductDemandMetric
	if err := r.db.GetDB().SelectContext(ctx, &rows, query, periodStart, periodEnd, n); err != nil {
		return nil, fmt.Errorf("failed to list top product demand metrics: %w", err)
	}
	return rows, nil
}
