package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
)

// RecommendationRepository implements repository.RecommendationRepository
// using Postgres.
type RecommendationRepository struct {
	db *Database
}

// NewRecommendationRepository creates a new Postgres-backed recommendation
// repository.
func NewRecommendationRepository(db *Database) repository.RecommendationRepository {
	return &RecommendationRepository{db: db}
}

// Upsert inserts or updates a recommendation keyed by (product_id,
// warehouse_id, created_day); last writer wins on mutable fields.
func (r *RecommendationRepository) Upsert(ctx context.Context, rec *models.StockReorderRecommendation) error {
	query := `
		INSERT INTO stock_reorder_recommendations (
			product_id, warehouse_id, created_day, current_stock, min_stock_level,
			average_daily_demand, predicted_demand_7d, predicted_demand_30d,
			recommended_order_quantity, reorder_priority, safety_stock, reorder_point,
			stockout_date_estimate, recommended_order_date, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (product_id, warehouse_id, created_day) DO UPDATE SET
			current_stock = EXCLUDED.current_stock,
			min_stock_level = EXCLUDED.min_stock_level,
			average_daily_demand = EXCLUDED.average_daily_demand,
			predicted_demand_7d = EXCLUDED.predicted_demand_7d,
			predicted_demand_30d = EXCLUDED.predicted_demand_30d,
			recommended_order_quantity = EXCLUDED.recommended_order_quantity,
			reorder_priority = EXCLUDED.reorder_priority,
			safety_stock = EXCLUDED.safety_stock,
			reorder_point = EXCLUDED.reorder_point,
			stockout_date_estimate = EXCLUDED.stockout_date_estimate,
			recommended_order_date = EXCLUDED.recommended_order_date,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	return r.db.GetDB().QueryRowxContext(
		ctx, query,
		rec.ProductID, rec.WarehouseID, rec.CreatedDay, rec.CurrentStock, rec.MinStockLevel,
		rec.AverageDailyDemand, rec.PredictedDemand7d, rec.PredictedDemand30d,
		rec.RecommendedOrderQuantity, rec.ReorderPriority, rec.SafetyStock, rec.ReorderPoint,
		rec.StockoutDateEstimate, rec.RecommendedOrderDate, rec.Status, rec.CreatedAt, rec.UpdatedAt,
	).Scan(&rec.ID)
}

// ListPending retrieves recommendations still in pending status.
func (r *RecommendationRepository) ListPending(ctx context.Context) ([]models.StockReorderRecommendation, error) {
	query := `
		SELECT id, product_id, warehouse_id, created_day, current_stock, min_stock_level,
			average_daily_demand, predicted_demand_7d, predicted_demand_30d,
			recommended_order_quantity, reorder_priority, safety_stock, reorder_point,
			stockout_date_estimate, recommended_order_date, status, created_at, updated_at
		FROM stock_reorder_recommendations
		WHERE status = 'pending'
		ORDER BY created_at DESC
	`
	var rows []models.StockReorderRecommendation
	if err := r.db.GetDB().SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list pending recommendations: %w", err)
	}
	return rows, nil
}

// DeleteNonOrderedOlderThan applies retention: rows not in 'ordered' status
// older than cutoff are removed.
func (r *RecommendationRepository) DeleteNonOrderedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.GetDB().ExecContext(ctx, `
		DELETE FROM stock_reorder_recommendations
		WHERE created_day < $1 AND status != 'ordered'
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old recommendations: %w", err)
	}
	return res.RowsAffected()
}
