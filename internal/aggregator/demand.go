package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/DimaJoyti/analytics-engine/internal/models"
)

type productAccumulator struct {
	productID   string
	productName string
	sku         string
	quantity    int
	orders      int
	revenue     decimal.Decimal
	priceSum    decimal.Decimal
	priceCount  int
	byDate      map[string]float64
	dates       []string
}

// ComputeDemand recomputes ProductDemandMetric over the trailing periodDays,
// fetching completed orders in weekly chunks and classifying each product's
// trend from the midpoint split of its daily time series.
func (a *Aggregator) ComputeDemand(ctx context.Context, periodDays int) ([]models.ProductDemandMetric, error) {
	to := a.clock.Today()
	from := to.AddDate(0, 0, -periodDays)

	accumulators := make(map[string]*productAccumulator)

	chunkStart := from
	for chunkStart.Before(to) {
		chunkEnd := chunkStart.AddDate(0, 0, 7)
		if chunkEnd.After(to) {
			chunkEnd = to
		}

		orders, err := a.fetchCompletedOrders(ctx, chunkStart, chunkEnd)
		if err != nil {
			if !isTransient(err) {
				return nil, err
			}
			a.logger.Warn("sales upstream unavailable for demand window, skipping chunk")
		} else {
			accumulate(accumulators, orders)
		}
		chunkStart = chunkEnd
	}

	metrics := make([]models.ProductDemandMetric, 0, len(accumulators))
	for _, acc := range accumulators {
		metric := finalizeDemand(acc, from, to, periodDays)
		if err := a.productDemand.Upsert(ctx, &metric); err != nil {
			return nil, fmt.Errorf("failed to upsert product demand metric: %w", err)
		}
		metrics = append(metrics, metric)
	}
	return metrics, nil
}

func accumulate(accumulators map[string]*productAccumulator, orders []salesOrder) {
	for _, o := range orders {
		dateKey := o.Date.Format("2006-01-02")
		for _, line := range o.Lines {
			acc, ok := accumulators[line.ProductID]
			if !ok {
				acc = &productAccumulator{productID: line.ProductID, byDate: make(map[string]float64)}
				accumulators[line.ProductID] = acc
			}
			acc.quantity += line.Quantity
			acc.orders++
			lineRevenue := decimal.NewFromFloat(line.Price * float64(line.Quantity))
			acc.revenue = acc.revenue.Add(lineRevenue)
			acc.priceSum = acc.priceSum.Add(decimal.NewFromFloat(line.Price))
			acc.priceCount++
			if _, seen := acc.byDate[dateKey]; !seen {
				acc.dates = append(acc.dates, dateKey)
			}
			acc.byDate[dateKey] += float64(line.Quantity)
		}
	}
}

func finalizeDemand(acc *productAccumulator, from, to time.Time, periodDays int) models.ProductDemandMetric {
	daily := make([]float64, len(acc.dates))
	for i, d := range acc.dates {
		daily[i] = acc.byDate[d]
	}

	var avgPrice decimal.Decimal
	if acc.priceCount > 0 {
		avgPrice = acc.priceSum.Div(decimal.NewFromInt(int64(acc.priceCount)))
	}

	trend, trendPct := classifyTrend(daily)

	var maxDaily, minDaily, sum float64
	for i, v := range daily {
		if i == 0 || v > maxDaily {
			maxDaily = v
		}
		if i == 0 || v < minDaily {
			minDaily = v
		}
		sum += v
	}
	avgDaily := 0.0
	if periodDays > 0 {
		avgDaily = sum / float64(periodDays)
	}

	return models.ProductDemandMetric{
		ProductID:          acc.productID,
		ProductName:        acc.productName,
		SKU:                acc.sku,
		PeriodStart:        from,
		PeriodEnd:          to,
		PeriodDays:         periodDays,
		TotalQuantitySold:  acc.quantity,
		TotalOrders:        acc.orders,
		AverageDailyDemand: avgDaily,
		MaxDailyDemand:     maxDaily,
		MinDailyDemand:     minDaily,
		TotalRevenue:       acc.revenue,
		AveragePrice:       avgPrice,
		Trend:              trend,
		TrendPercentage:    trendPct,
	}
}

// classifyTrend splits daily at the midpoint and classifies the direction of
// change between halves.
func classifyTrend(daily []float64) (models.Trend, float64) {
	if len(daily) < 2 {
		return models.TrendStable, 0
	}
	mid := len(daily) / 2
	firstHalf, secondHalf := daily[:mid], daily[mid:]

	firstSum, secondSum := sum(firstHalf), sum(secondHalf)
	if firstSum == 0 {
		if secondSum == 0 {
			return models.TrendStable, 0
		}
		return models.TrendIncreasing, 100
	}

	pct := (secondSum - firstSum) / firstSum * 100
	switch {
	case pct > 10:
		return models.TrendIncreasing, pct
	case pct < -10:
		return models.TrendDecreasing, pct
	default:
		return models.TrendStable, pct
	}
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// inventorySnapshot is one product's current inventory as the inventory
// service reports it.
type inventorySnapshot struct {
	ProductID        string `json:"product_id"`
	WarehouseID      string `json:"warehouse_id"`
	CurrentInventory float64 `json:"current_inventory"`
	UnitCost         float64 `json:"unit_cost"`
}

// ComputeTurnover recomputes InventoryTurnoverMetric over the trailing
// periodDays for every product with recorded sales activity in that window.
func (a *Aggregator) ComputeTurnover(ctx context.Context, periodDays int) ([]models.InventoryTurnoverMetric, error) {
	to := a.clock.Today()
	from := to.AddDate(0, 0, -periodDays)

	demand, err := a.productDemand.ListByPeriod(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load demand for turnover window: %w", err)
	}

	metrics := make([]models.InventoryTurnoverMetric, 0, len(demand))
	for _, d := range demand {
		snapshot, err := a.fetchInventory(ctx, d.ProductID)
		if err != nil {
			a.logger.Warn("inventory upstream unavailable, skipping product", zap.String("product_id", d.ProductID))
			continue
		}

		metric := computeTurnoverMetric(d, snapshot, periodDays)
		if err := a.turnover.Upsert(ctx, &metric); err != nil {
			return nil, fmt.Errorf("failed to upsert turnover metric: %w", err)
		}
		metrics = append(metrics, metric)
	}
	return metrics, nil
}

func (a *Aggregator) fetchInventory(ctx context.Context, productID string) (*inventorySnapshot, error) {
	resp, err := a.upstream.Request(ctx, "inventory", http.MethodGet, "/inventory/"+productID, url.Values{}, nil, 0, false)
	if err != nil {
		return nil, err
	}
	var snapshot inventorySnapshot
	if err := decodeJSON(resp.Body, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func computeTurnoverMetric(d models.ProductDemandMetric, snapshot *inventorySnapshot, periodDays int) models.InventoryTurnoverMetric {
	current := snapshot.CurrentInventory
	starting := current + float64(d.TotalQuantitySold)
	average := (starting + current) / 2

	var turnoverRate float64
	if average > 0 {
		turnoverRate = float64(d.TotalQuantitySold) / average
	}

	daysOfInventory := models.InfiniteDaysOfInventory
	if turnoverRate > 0 {
		daysOfInventory = float64(periodDays) / turnoverRate
	}

	classification := classifyTurnover(turnoverRate)
	stockoutRisk := classifyStockoutRisk(current, d.AverageDailyDemand)
	overstockRisk := classifyOverstockRisk(daysOfInventory)

	return models.InventoryTurnoverMetric{
		ProductID:          d.ProductID,
		WarehouseID:        snapshot.WarehouseID,
		PeriodStart:        d.PeriodStart,
		PeriodEnd:          d.PeriodEnd,
		AverageInventory:   average,
		StartingInventory:  starting,
		EndingInventory:    current,
		UnitsSold:          d.TotalQuantitySold,
		CostOfGoodsSold:    decimal.NewFromFloat(snapshot.UnitCost * float64(d.TotalQuantitySold)),
		TurnoverRate:       turnoverRate,
		DaysOfInventory:    daysOfInventory,
		Classification:     classification,
		StockoutRisk:       stockoutRisk,
		OverstockRisk:      overstockRisk,
	}
}

func classifyTurnover(rate float64) models.TurnoverClass {
	switch {
	case rate >= 4:
		return models.TurnoverFastMoving
	case rate >= 2:
		return models.TurnoverMedium
	case rate >= 0.5:
		return models.TurnoverSlow
	default:
		return models.TurnoverObsolete
	}
}

func classifyStockoutRisk(currentStock, dailyDemand float64) models.RiskLevel {
	if dailyDemand <= 0 {
		return models.RiskLow
	}
	daysOfStock := currentStock / dailyDemand
	switch {
	case daysOfStock < 7:
		return models.RiskHigh
	case daysOfStock < 14:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func classifyOverstockRisk(daysOfInventory float64) models.RiskLevel {
	switch {
	case daysOfInventory > 90:
		return models.RiskHigh
	case daysOfInventory > 60:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}
