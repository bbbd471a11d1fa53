// Package restock turns forecasts into inventory reorder decisions: reorder
// points, stockout risk, single recommendations, and a bounded-concurrency
// bulk variant.
package restock

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/DimaJoyti/analytics-engine/internal/clock"
	"github.com/DimaJoyti/analytics-engine/internal/forecast"
	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/timeseries"
)

// serviceLevelZ maps the handful of common service levels to their standard
// normal z-score. Values between table entries are linearly interpolated.
var serviceLevelZ = []struct {
	level float64
	z     float64
}{
	{0.50, 0.0000},
	{0.80, 0.8416},
	{0.85, 1.0364},
	{0.90, 1.2816},
	{0.95, 1.6449},
	{0.975, 1.9600},
	{0.98, 2.0537},
	{0.99, 2.3263},
	{0.995, 2.5758},
	{0.999, 3.0902},
}

func zScore(serviceLevel float64) float64 {
	if serviceLevel <= serviceLevelZ[0].level {
		return serviceLevelZ[0].z
	}
	last := serviceLevelZ[len(serviceLevelZ)-1]
	if serviceLevel >= last.level {
		return last.z
	}
	for i := 1; i < len(serviceLevelZ); i++ {
		if serviceLevel <= serviceLevelZ[i].level {
			lo, hi := serviceLevelZ[i-1], serviceLevelZ[i]
			frac := (serviceLevel - lo.level) / (hi.level - lo.level)
			return lo.z + frac*(hi.z-lo.z)
		}
	}
	return last.z
}

// ReorderPointResult is the output of ReorderPoint.
type ReorderPointResult struct {
	ReorderPoint    float64
	SafetyStock     float64
	LeadTimeDemand  float64
	EOQ             float64
	DailyDemandMean float64
	DailyDemandStd  float64
	Forecast7d      float64
	Forecast30d     float64
	Status          string
}

// StockoutRiskResult is the output of StockoutRisk.
type StockoutRiskResult struct {
	Priority                 models.Priority
	PriorityScore            int
	DaysUntilStockout        *int
	StockoutDate             *time.Time
	RecommendedOrderQuantity float64
	ShouldReorder            bool
}

// Analyzer computes reorder points, stockout risk, and recommendations.
type Analyzer struct {
	engine *forecast.Engine
	clock  clock.Clock
	logger *zap.Logger
}

// New constructs an Analyzer.
func New(engine *forecast.Engine, clk clock.Clock, logger *zap.Logger) *Analyzer {
	return &Analyzer{engine: engine, clock: clk, logger: logger}
}

// ReorderPoint computes the reorder point for product using the trailing
// 90-day demand history.
func (a *Analyzer) ReorderPoint(ctx context.Context, productID string, leadTimeDays int, serviceLevel float64, periods int) (*ReorderPointResult, error) {
	scope := forecast.ProductScope(productID)
	history, err := a.engine.Prepare(ctx, scope, 90)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return &ReorderPointResult{Status: "no_data"}, nil
	}

	values := timeseries.Values(history)
	mean := timeseries.Mean(values)
	std := timeseries.PopStdDev(values)

	z := zScore(serviceLevel)
	leadTimeDemand := mean * float64(leadTimeDays)
	safetyStock := z * std * math.Sqrt(float64(leadTimeDays))
	reorderPoint := leadTimeDemand + safetyStock
	eoq := mean * 30

	frames, err := a.engine.Forecast(ctx, scope, periods, true)
	forecast7, forecast30 := sumFrames(frames, 7), sumFrames(frames, 30)
	if err != nil {
		a.logger.Warn("forecast unavailable for reorder point, using history mean", zap.String("product_id", productID), zap.Error(err))
		forecast7, forecast30 = mean*7, mean*30
	}

	return &ReorderPointResult{
		ReorderPoint:    reorderPoint,
		SafetyStock:     safetyStock,
		LeadTimeDemand:  leadTimeDemand,
		EOQ:              eoq,
		DailyDemandMean: mean,
		DailyDemandStd:  std,
		Forecast7d:      forecast7,
		Forecast30d:     forecast30,
		Status:          "success",
	}, nil
}

func sumFrames(frames []forecast.Frame, n int) float64 {
	var sum float64
	for i := 0; i < n && i < len(frames); i++ {
		sum += frames[i].Point
	}
	return sum
}

// StockoutRisk simulates the forecast frame day-by-day against currentStock
// and classifies the resulting priority.
func (a *Analyzer) StockoutRisk(ctx context.Context, productID string, currentStock float64, leadTimeDays, periods int) (*StockoutRiskResult, error) {
	scope := forecast.ProductScope(productID)
	rp, err := a.ReorderPoint(ctx, productID, leadTimeDays, 0.95, periods)
	if err != nil {
		return nil, err
	}

	frames, err := a.engine.Forecast(ctx, scope, periods, true)
	if err != nil {
		return nil, err
	}

	var daysUntilStockout *int
	var stockoutDate *time.Time
	remaining := currentStock
	for i, f := range frames {
		remaining -= f.Point
		if remaining <= 0 {
			day := i
			date := f.Date
			daysUntilStockout = &day
			stockoutDate = &date
			break
		}
	}

	priority, score := classifyPriority(currentStock, rp.ReorderPoint, daysUntilStockout, leadTimeDays)

	quantity := 0.0
	if currentStock < rp.ReorderPoint {
		quantity = math.Max(rp.EOQ, rp.ReorderPoint-currentStock+rp.SafetyStock)
	}

	return &StockoutRiskResult{
		Priority:                 priority,
		PriorityScore:            score,
		DaysUntilStockout:        daysUntilStockout,
		StockoutDate:             stockoutDate,
		RecommendedOrderQuantity: quantity,
		ShouldReorder:            quantity > 0,
	}, nil
}

// classifyPriority applies the first-match-wins decision table.
func classifyPriority(currentStock, reorderPoint float64, daysUntilStockout *int, leadTimeDays int) (models.Priority, int) {
	switch {
	case currentStock <= 0:
		return models.PriorityCritical, 100
	case currentStock <= 0.5*reorderPoint:
		return models.PriorityUrgent, 80
	case currentStock <= reorderPoint:
		return models.PriorityHigh, 60
	case daysUntilStockout != nil && *daysUntilStockout < leadTimeDays:
		return models.PriorityUrgent, 75
	case daysUntilStockout != nil && *daysUntilStockout < 2*leadTimeDays:
		return models.PriorityHigh, 55
	case daysUntilStockout != nil && *daysUntilStockout < 30:
		return models.PriorityMedium, 40
	default:
		return models.PriorityLow, 20
	}
}

// GenerateRecommendation produces a single StockReorderRecommendation for
// (productID, warehouseID), or nil when no reorder quantity is recommended.
func (a *Analyzer) GenerateRecommendation(ctx context.Context, productID, warehouseID string, currentStock, minStock float64, leadTimeDays int) (*models.StockReorderRecommendation, error) {
	rp, err := a.ReorderPoint(ctx, productID, leadTimeDays, 0.95, 30)
	if err != nil {
		return nil, err
	}
	risk, err := a.StockoutRisk(ctx, productID, currentStock, leadTimeDays, 30)
	if err != nil {
		return nil, err
	}
	if risk.RecommendedOrderQuantity <= 0 {
		return nil, nil
	}

	today := a.clock.Today()
	var stockoutEstimate, recommendedOrderDate *time.Time
	if risk.StockoutDate != nil {
		stockoutEstimate = risk.StockoutDate
		orderDate := risk.StockoutDate.AddDate(0, 0, -leadTimeDays)
		recommendedOrderDate = &orderDate
	}

	return &models.StockReorderRecommendation{
		ProductID:                productID,
		WarehouseID:              warehouseID,
		CreatedDay:               today,
		CurrentStock:             currentStock,
		MinStockLevel:            minStock,
		AverageDailyDemand:       rp.DailyDemandMean,
		PredictedDemand7d:        rp.Forecast7d,
		PredictedDemand30d:       rp.Forecast30d,
		RecommendedOrderQuantity: risk.RecommendedOrderQuantity,
		ReorderPriority:          risk.Priority,
		SafetyStock:              rp.SafetyStock,
		ReorderPoint:             rp.ReorderPoint,
		StockoutDateEstimate:     stockoutEstimate,
		RecommendedOrderDate:     recommendedOrderDate,
		Status:                   models.RecommendationPending,
		CreatedAt:                a.clock.Now(),
		UpdatedAt:                a.clock.Now(),
	}, nil
}

