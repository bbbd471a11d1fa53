package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DimaJoyti/analytics-engine/internal/models"
)

func TestClassifyTrend_Increasing(t *testing.T) {
	trend, pct := classifyTrend([]float64{10, 10, 20, 20})
	assert.Equal(t, models.TrendIncreasing, trend)
	assert.InDelta(t, 100.0, pct, 0.01)
}

func TestClassifyTrend_Decreasing(t *testing.T) {
	trend, pct := classifyTrend([]float64{20, 20, 5, 5})
	assert.Equal(t, models.TrendDecreasing, trend)
	assert.Less(t, pct, -10.0)
}

func TestClassifyTrend_Stable(t *testing.T) {
	trend, _ := classifyTrend([]float64{10, 10, 11, 9})
	assert.Equal(t, models.TrendStable, trend)
}

func TestClassifyTrend_TooShort(t *testing.T) {
	trend, pct := classifyTrend([]float64{5})
	assert.Equal(t, models.TrendStable, trend)
	assert.Equal(t, 0.0, pct)
}

func TestClassifyTurnover(t *testing.T) {
	assert.Equal(t, models.TurnoverFastMoving, classifyTurnover(5))
	assert.Equal(t, models.TurnoverMedium, classifyTurnover(2))
	assert.Equal(t, models.TurnoverSlow, classifyTurnover(0.5))
	assert.Equal(t, models.TurnoverObsolete, classifyTurnover(0.1))
}

func TestClassifyStockoutRisk(t *testing.T) {
	assert.Equal(t, models.RiskLow, classifyStockoutRisk(100, 0))
	assert.Equal(t, models.RiskHigh, classifyStockoutRisk(10, 5))
	assert.Equal(t, models.RiskMedium, classifyStockoutRisk(20, 2))
	assert.Equal(t, models.RiskLow, classifyStockoutRisk(100, 2))
}

func TestClassifyOverstockRisk(t *testing.T) {
	assert.Equal(t, models.RiskHigh, classifyOverstockRisk(120))
	assert.Equal(t, models.RiskMedium, classifyOverstockRisk(70))
	assert.Equal(t, models.RiskLow, classifyOverstockRisk(30))
}

func TestAccumulateAndFinalizeDemand(t *testing.T) {
	day := mustDate(t, "2025-01-01")
	orders := []salesOrder{
		{
			Date: day,
			Lines: []struct {
				ProductID string  `json:"product_id"`
				Quantity  int     `json:"quantity"`
				Price     float64 `json:"price"`
			}{
				{ProductID: "p1", Quantity: 2, Price: 10},
			},
		},
		{
			Date: day.AddDate(0, 0, 1),
			Lines: []struct {
				ProductID string  `json:"product_id"`
				Quantity  int     `json:"quantity"`
				Price     float64 `json:"price"`
			}{
				{ProductID: "p1", Quantity: 4, Price: 10},
			},
		},
	}

	accumulators := make(map[string]*productAccumulator)
	accumulate(accumulators, orders)

	acc, ok := accumulators["p1"]
	assert.True(t, ok)
	assert.Equal(t, 6, acc.quantity)
	assert.Equal(t, 2, acc.orders)

	metric := finalizeDemand(acc, day, day.AddDate(0, 0, 2), 2)
	assert.Equal(t, 6, metric.TotalQuantitySold)
	assert.Equal(t, models.TrendIncreasing, metric.Trend)
}
