package aggregator

import (
	"context"
	"fmt"

	"github.com/DimaJoyti/analytics-engine/internal/models"
)

const defaultLeadTimeDays = 7

// GenerateRecommendations is the coarse scheduled-job recommendation path: it
// joins recent turnover rows at medium/high stockout risk against recent
// demand and emits a StockReorderRecommendation wherever the resulting
// recommended quantity is positive. This runs independently of the
// restock package's on-demand analyzer, which uses a different reorder-point
// formula (z-score safety stock over forecast demand) against live stock
// levels rather than a scheduled rollup.
func (a *Aggregator) GenerateRecommendations(ctx context.Context) ([]models.StockReorderRecommendation, error) {
	risky, err := a.turnover.ListByRisk(ctx, []models.RiskLevel{models.RiskMedium, models.RiskHigh})
	if err != nil {
		return nil, fmt.Errorf("failed to load at-risk turnover rows: %w", err)
	}
	if len(risky) == 0 {
		return nil, nil
	}

	demandByProduct := make(map[string]models.ProductDemandMetric, len(risky))
	for _, t := range risky {
		if _, ok := demandByProduct[t.ProductID]; ok {
			continue
		}
		demand, err := a.productDemand.ListByPeriod(ctx, t.PeriodStart, t.PeriodEnd)
		if err != nil {
			return nil, fmt.Errorf("failed to load demand for recommendation window: %w", err)
		}
		for _, d := range demand {
			demandByProduct[d.ProductID] = d
		}
	}

	today := a.clock.Today()
	now := a.clock.Now()

	var recommendations []models.StockReorderRecommendation
	for _, t := range risky {
		demand, ok := demandByProduct[t.ProductID]
		if !ok || demand.AverageDailyDemand <= 0 {
			continue
		}
		dailyDemand := demand.AverageDailyDemand

		safetyStock := dailyDemand * 14
		reorderPoint := dailyDemand*7 + safetyStock
		recommendedQty := dailyDemand*30 + safetyStock - t.EndingInventory
		if recommendedQty <= 0 {
			continue
		}

		priority := classifyRecommendationPriority(t.StockoutRisk, t.EndingInventory, reorderPoint)

		daysUntilStockout := t.EndingInventory / dailyDemand
		stockoutDate := today.AddDate(0, 0, int(daysUntilStockout))
		orderDate := stockoutDate.AddDate(0, 0, -defaultLeadTimeDays)

		rec := models.StockReorderRecommendation{
			ProductID:                t.ProductID,
			WarehouseID:              t.WarehouseID,
			CreatedDay:               today,
			CurrentStock:             t.EndingInventory,
			MinStockLevel:            safetyStock,
			AverageDailyDemand:       dailyDemand,
			PredictedDemand7d:        dailyDemand * 7,
			PredictedDemand30d:       dailyDemand * 30,
			RecommendedOrderQuantity: recommendedQty,
			ReorderPriority:          priority,
			SafetyStock:              safetyStock,
			ReorderPoint:             reorderPoint,
			StockoutDateEstimate:     &stockoutDate,
			RecommendedOrderDate:     &orderDate,
			Status:                   models.RecommendationPending,
			CreatedAt:                now,
			UpdatedAt:                now,
		}
		if err := a.recommendations.Upsert(ctx, &rec); err != nil {
			return nil, fmt.Errorf("failed to upsert stock reorder recommendation: %w", err)
		}
		recommendations = append(recommendations, rec)
	}
	return recommendations, nil
}

func classifyRecommendationPriority(risk models.RiskLevel, current, reorderPoint float64) models.Priority {
	switch {
	case current <= 0:
		return models.PriorityCritical
	case risk == models.RiskHigh:
		return models.PriorityUrgent
	case current <= reorderPoint:
		return models.PriorityHigh
	default:
		return models.PriorityMedium
	}
}
