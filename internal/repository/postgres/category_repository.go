package postgres

import (
	"context"

	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
)

// CategoryPerformanceRepository implements
// repository.CategoryPerformanceRepository using Postgres.
type CategoryPerformanceRepository struct {
	db *Database
}

// NewCategoryPerformanceRepository creates a new Postgres-backed category
// performance repository.
func NewCategoryPerformanceRepository(db *Database) repository.CategoryPerformanceRepository {
	return &CategoryPerformanceRepository{db: db}
}

// Upsert inserts or updates a rollup keyed by (category_id, period_start,
// period_end).
func (r *CategoryPerformanceRepository) Upsert(ctx context.Context, m *models.CategoryPerformanceMetric) error {
	query := `
		INSERT INTO category_performance_metrics (
			category_id, category_name, period_start, period_end, total_revenue,
			total_units_sold, product_count, average_order_value, top_product_id, growth_percentage
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (category_id, period_start, period_end) DO UPDATE SET
			category_name = EXCLUDED.category_name,
			total_revenue = EXCLUDED.total_revenue,
			total_units_sold = EXCLUDED.total_units_sold,
			product_count = EXCLUDED.product_count,
			average_order_value = EXCLUDED.average_order_value,
			top_product_id = EXCLUDED.top_product_id,
			growth_percentage = EXCLUDED.growth_percentage
		RETURNING id
	`
	return r.db.GetDB().QueryRowxContext(
		ctx, query,
		m.CategoryID, m.CategoryName, m.PeriodStart, m.PeriodEnd, m.TotalRevenue,
		m.TotalUnitsSold, m.ProductCount, m.AverageOrderValue, m.TopProductID, m.GrowthPercentage,
	).Scan(&m.ID)
}
