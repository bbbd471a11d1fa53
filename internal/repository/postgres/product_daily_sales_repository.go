package postgres

import (
	"fmt"
	"time"

	"context"

	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
)

// ProductDailySalesRepository implements repository.ProductDailySalesRepository
// using Postgres.
type ProductDailySalesRepository struct {
	db *Database
}

// NewProductDailySalesRepository creates a new Postgres-backed product daily
// sales repository.
func NewProductDailySalesRepository(db *Database) repository.ProductDailySalesRepository {
	return &ProductDailySalesRepository{db: db}
}

// IncrementDaily adds the given deltas to the (productID, date) row, creating
// it on first write; categoryID/warehouseID are only set on insert so a later
// event with an empty value never overwrites a known classification.
func (r *ProductDailySalesRepository) IncrementDaily(ctx context.Context, productID, categoryID, warehouseID string, date time.Time, quantityDelta int, revenueDelta float64) error {
	query := `
		INSERT INTO product_daily_sales (product_id, category_id, warehouse_id, date, quantity, revenue)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_id, date) DO UPDATE SET
			quantity = product_daily_sales.quantity + EXCLUDED.quantity,
			revenue = product_daily_sales.revenue + EXCLUDED.revenue
	`
	_, err := r.db.GetDB().ExecContext(ctx, query, productID, categoryID, warehouseID, date, quantityDelta, revenueDelta)
	if err != nil {
		return fmt.Errorf("failed to increment product daily sales: %w", err)
	}
	return nil
}

// ListByProduct retrieves a product's daily rows in [from, to], ascending.
func (r *ProductDailySalesRepository) ListByProduct(ctx context.Context, productID string, from, to time.Time) ([]models.ProductDailySales, error) {
	query := `
		SELECT product_id, category_id, warehouse_id, date, quantity, revenue
		FROM product_daily_sales
		WHERE product_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC
	`
	var rows []models.ProductDailySales
	if err := r.db.GetDB().SelectContext(ctx, &rows, query, productID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list product daily sales: %w", err)
	}
	return rows, nil
}

// ListByCategory retrieves every product's daily rows for categoryID in
// [from, to], ascending by date.
func (r *ProductDailySalesRepository) ListByCategory(ctx context.Context, categoryID string, from, to time.Time) ([]models.ProductDailySales, error) {
	query := `
		SELECT product_id, category_id, warehouse_id, date, quantity, revenue
		FROM product_daily_sales
		WHERE category_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC
	`
	var rows []models.ProductDailySales
	if err := r.db.GetDB().SelectContext(ctx, &rows, query, categoryID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list category daily sales: %w", err)
	}
	return rows, nil
}

// ListByWarehouse retrieves every product's daily rows for warehouseID in
// [from, to], ascending by date.
func (r *ProductDailySalesRepository) ListByWarehouse(ctx context.Context, warehouseID string, from, to time.Time) ([]models.ProductDailySales, error) {
	query := `
		SELECT product_id, category_id, warehouse_id, date, quantity, revenue
		FROM product_daily_sales
		WHERE warehouse_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC
	`
	var rows []models.ProductDailySales
	if err := r.db.GetDB().SelectContext(ctx, &rows, query, warehouseID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list warehouse daily sales: %w", err)
	}
	return rows, nil
}

// DistinctProductsInCategory lists the distinct product ids observed under
// categoryID.
func (r *ProductDailySalesRepository) DistinctProductsInCategory(ctx context.Context, categoryID string) ([]string, error) {
	var ids []string
	query := `SELECT DISTINCT product_id FROM product_daily_sales WHERE category_id = $1`
	if err := r.db.GetDB().SelectContext(ctx, &ids, query, categoryID); err != nil {
		return nil, fmt.Errorf("failed to list category products: %w", err)
	}
	return ids, nil
}

// DistinctProductsInWarehouse lists the distinct product ids observed under
// warehouseID.
func (r *ProductDailySalesRepository) DistinctProductsInWarehouse(ctx context.Context, warehouseID string) ([]string, error) {
	var ids []string
	query := `SELECT DISTINCT product_id FROM product_daily_sales WHERE warehouse_id = $1`
	if err := r.db.GetDB().SelectContext(ctx, &ids, query, warehouseID); err != nil {
		return nil, fmt.Errorf("failed to list warehouse products: %w", err)
	}
	return ids, nil
}
