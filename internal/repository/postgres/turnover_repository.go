package postgres

import (
	"context"
	"fmt"

	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
)

// InventoryTurnoverRepository implements repository.InventoryTurnoverRepository
// using Postgres.
type InventoryTurnoverRepository struct {
	db *Database
}

// NewInventoryTurnoverRepository creates a new Postgres-backed turnover
// repository.
func NewInventoryTurnoverRepository(db *Database) repository.InventoryTurnoverRepository {
	return &InventoryTurnoverRepository{db: db}
}

// Upsert inserts or updates the metric row keyed by (product_id,
// warehouse_id, period_start, period_end).
func (r *InventoryTurnoverRepository) Upsert(ctx context.Context, m *models.InventoryTurnoverMetric) error {
	query := `
		INSERT INTO inventory_turnover_metrics (
			product_id, warehouse_id, period_start, period_end, average_inventory,
			starting_inventory, ending_inventory, units_sold, cost_of_goods_sold,
			turnover_rate, days_of_inventory, classification, stockout_risk, overstock_risk
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (product_id, warehouse_id, period_start, period_end) DO UPDATE SET
			average_inventory = EXCLUDED.average_inventory,
			starting_inventory = EXCLUDED.starting_inventory,
			ending_inventory = EXCLUDED.ending_inventory,
			units_sold = EXCLUDED.units_sold,
			cost_of_goods_sold = EXCLUDED.cost_of_goods_sold,
			turnover_rate = EXCLUDED.turnover_rate,
			days_of_inventory = EXCLUDED.days_of_inventory,
			classification = EXCLUDED.classification,
			stockout_risk = EXCLUDED.stockout_risk,
			overstock_risk = EXCLUDED.overstock_risk
		RETURNING id
	`

	return r.db.GetDB().QueryRowxContext(
		ctx, query,
		m.ProductID, m.WarehouseID, m.PeriodStart, m.PeriodEnd, m.AverageInventory,
		m.StartingInventory, m.EndingInventory, m.UnitsSold, m.CostOfGoodsSold,
		m.TurnoverRate, m.DaysOfInventory, m.Classification, m.StockoutRisk, m.OverstockRisk,
	).Scan(&m.ID)
}

// ListByRisk retrieves the most recent turnover row per product whose
// stockout_risk is one of risks, used by the coarse recommendation job.
func (r *InventoryTurnoverRepository) ListByRisk(ctx context.Context, risks []models.RiskLevel) ([]models.InventoryTurnoverMetric, error) {
	query := `
		SELECT DISTINCT ON (product_id, warehouse_id)
			id, product_id, warehouse_id, period_start, period_end, average_inventory,
			starting_inventory, ending_inventory, units_sold, cost_of_goods_sold,
			turnover_rate, days_of_inventory, classification, stockout_risk, overstock_risk
		FROM inventory_turnover_metrics
		WHERE stockout_risk = ANY($1)
		ORDER BY product_id, warehouse_id, period_end DESC
	`
	var rows []models.InventoryTurnoverMetric
	if err := r.db.GetDB().SelectContext(ctx, &rows, query, risksToStrings(risks)); err != nil {
		return nil, fmt.Errorf("failed to list turnover metrics by risk: %w", err)
	}
	return rows, nil
}

func risksToStrings(risks []models.RiskLevel) []string {
	out := make([]string, len(risks))
	for i, r := range risks {
		out[i] = string(r)
	}
	return out
}
