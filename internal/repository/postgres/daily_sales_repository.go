package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
)

// DailySalesRepository implements repository.DailySalesRepository using
// Postgres.
type DailySalesRepository struct {
	db *Database
}

// NewDailySalesRepository creates a new Postgres-backed daily sales
// repository.
func NewDailySalesRepository(db *Database) repository.DailySalesRepository {
	return &DailySalesRepository{db: db}
}

// Upsert inserts or updates the metric row for m.Date, keyed by date.
func (r *DailySalesRepository) Upsert(ctx context.Context, m *models.DailySalesMetric) error {
	query := `
		INSERT INTO daily_sales_metrics (
			date, total_sales, total_orders, average_order_value,
			products_sold, unique_products, unique_customers, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (date) DO UPDATE SET
			total_sales = EXCLUDED.total_sales,
			total_orders = EXCLUDED.total_orders,
			average_order_value = EXCLUDED.average_order_value,
			products_sold = EXCLUDED.products_sold,
			unique_products = EXCLUDED.unique_products,
			unique_customers = EXCLUDED.unique_customers,
			calculated_at = EXCLUDED.calculated_at
		RETURNING id
	`

	return r.db.GetDB().QueryRowxContext(
		ctx, query,
		m.Date, m.TotalSales, m.TotalOrders, m.AverageOrderValue,
		m.ProductsSold, m.UniqueProducts, m.UniqueCustomers, m.CalculatedAt,
	).Scan(&m.ID)
}

// GetByDate retrieves the metric row for date, or nil if none exists.
func (r *DailySalesRepository) GetByDate(ctx context.Context, date time.Time) (*models.DailySalesMetric, error) {
	query := `
		SELECT id, date, total_sales, total_orders, average_order_value,
			products_sold, unique_products, unique_customers, calculated_at
		FROM daily_sales_metrics
		WHERE date = $1
	`

	var m models.DailySalesMetric
	err := r.db.GetDB().GetContext(ctx, &m, query, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get daily sales metric: %w", err)
	}
	return &m, nil
}

// ListRange retrieves metric rows with date in [from, to], ordered ascending.
func (r *DailySalesRepository) ListRange(ctx context.Context, from, to time.Time) ([]models.DailySalesMetric, error) {
	query := `
		SELECT id, date, total_sales, total_orders, average_order_value,
			products_sold, unique_products, unique_customers, calculated_at
		FROM daily_sales_metrics
		WHERE date BETWEEN $1 AND $2
		ORDER BY date ASC
	`

	var rows []models.DailySalesMetric
	if err := r.db.GetDB().SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to list daily sales metrics: %w", err)
	}
	return rows, nil
}

// DeleteOlderThan applies retention, removing rows strictly older than
// cutoff, and returns the number of rows removed.
func (r *DailySalesRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.GetDB().ExecContext(ctx, `DELETE FROM daily_sales_metrics WHERE date < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old daily sales metrics: %w", err)
	}
	return res.RowsAffected()
}
