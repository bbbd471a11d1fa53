// Package models holds the plain data records shared across the analytics
// engine. Entities carry foreign-key id fields rather than navigation
// properties; joins happen explicitly at the repository layer.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trend classifies the direction of product demand between two halves of a
// period.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendStable     Trend = "stable"
	TrendDecreasing Trend = "decreasing"
)

// TurnoverClass classifies how quickly inventory moves.
type TurnoverClass string

const (
	TurnoverFastMoving TurnoverClass = "fast_moving"
	TurnoverMedium     TurnoverClass = "medium_moving"
	TurnoverSlow       TurnoverClass = "slow_moving"
	TurnoverObsolete   TurnoverClass = "obsolete"
)

// RiskLevel is a low/medium/high risk classification.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Priority is the reorder priority, strictly ordered low < medium < high <
// urgent < critical.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

// priorityRank gives the strict ordering used for sorting and the
// min_priority filter; higher ranks are more severe.
var priorityRank = map[Priority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityUrgent:   3,
	PriorityCritical: 4,
}

// Rank returns the severity rank of p, or -1 if p is not a recognized
// priority.
func (p Priority) Rank() int {
	r, ok := priorityRank[p]
	if !ok {
		return -1
	}
	return r
}

// RecommendationStatus is the lifecycle state of a StockReorderRecommendation.
type RecommendationStatus string

const (
	RecommendationPending  RecommendationStatus = "pending"
	RecommendationReviewed RecommendationStatus = "reviewed"
	RecommendationOrdered  RecommendationStatus = "ordered"
	RecommendationDismissed RecommendationStatus = "dismissed"
)

// ForecastType names which series family a ForecastAccuracyRecord belongs to.
type ForecastType string

const (
	ForecastSales            ForecastType = "sales"
	ForecastProductDemand    ForecastType = "product_demand"
	ForecastCategorySales    ForecastType = "category_sales"
	ForecastWarehouseInv     ForecastType = "warehouse_inventory"
)

// TaskStatus is the lifecycle state of a TaskRun.
type TaskStatus string

const (
	TaskRunning TaskStatus = "running"
	TaskSuccess TaskStatus = "success"
	TaskError   TaskStatus = "error"
)

// DailySalesMetric is the one-per-day sales rollup. Created/updated
// idempotently by the aggregator and by the event consumer.
type DailySalesMetric struct {
	ID              int64           `db:"id"`
	Date            time.Time       `db:"date"`
	TotalSales      decimal.Decimal `db:"total_sales"`
	TotalOrders     int             `db:"total_orders"`
	AverageOrderValue decimal.Decimal `db:"average_order_value"`
	ProductsSold    int             `db:"products_sold"`
	UniqueProducts  int             `db:"unique_products"`
	UniqueCustomers int             `db:"unique_customers"`
	CalculatedAt    time.Time       `db:"calculated_at"`
}

// RecalculateAverage keeps AverageOrderValue consistent with TotalSales and
// TotalOrders, per the invariant in the data model.
func (m *DailySalesMetric) RecalculateAverage() {
	if m.TotalOrders > 0 {
		m.AverageOrderValue = m.TotalSales.Div(decimal.NewFromInt(int64(m.TotalOrders)))
		return
	}
	m.AverageOrderValue = decimal.Zero
}

// ProductDemandMetric is unique by (ProductID, PeriodStart, PeriodEnd).
type ProductDemandMetric struct {
	ID                  int64           `db:"id"`
	ProductID           string          `db:"product_id"`
	ProductName         string          `db:"product_name"`
	SKU                 string          `db:"sku"`
	PeriodStart         time.Time       `db:"period_start"`
	PeriodEnd           time.Time       `db:"period_end"`
	PeriodDays          int             `db:"period_days"`
	TotalQuantitySold   int             `db:"total_quantity_sold"`
	TotalOrders         int             `db:"total_orders"`
	AverageDailyDemand  float64         `db:"average_daily_demand"`
	MaxDailyDemand      float64         `db:"max_daily_demand"`
	MinDailyDemand      float64         `db:"min_daily_demand"`
	TotalRevenue        decimal.Decimal `db:"total_revenue"`
	AveragePrice        decimal.Decimal `db:"average_price"`
	Trend               Trend           `db:"trend"`
	TrendPercentage     float64         `db:"trend_percentage"`
}

// InventoryTurnoverMetric is unique by (ProductID, WarehouseID, PeriodStart,
// PeriodEnd).
type InventoryTurnoverMetric struct {
	ID                 int64           `db:"id"`
	ProductID          string          `db:"product_id"`
	WarehouseID        string          `db:"warehouse_id"`
	PeriodStart        time.Time       `db:"period_start"`
	PeriodEnd          time.Time       `db:"period_end"`
	AverageInventory   float64         `db:"average_inventory"`
	StartingInventory  float64         `db:"starting_inventory"`
	EndingInventory    float64         `db:"ending_inventory"`
	UnitsSold          int             `db:"units_sold"`
	CostOfGoodsSold    decimal.Decimal `db:"cost_of_goods_sold"`
	TurnoverRate       float64         `db:"turnover_rate"`
	DaysOfInventory    float64         `db:"days_of_inventory"`
	Classification     TurnoverClass   `db:"classification"`
	StockoutRisk       RiskLevel       `db:"stockout_risk"`
	OverstockRisk      RiskLevel       `db:"overstock_risk"`
}

// InfiniteDaysOfInventory is the capped sentinel used when TurnoverRate is 0.
const InfiniteDaysOfInventory = 999999.0

// StockReorderRecommendation is unique by (ProductID, WarehouseID, CreatedDay).
type StockReorderRecommendation struct {
	ID                       int64                `db:"id"`
	ProductID                string               `db:"product_id"`
	WarehouseID              string               `db:"warehouse_id"`
	CreatedDay               time.Time            `db:"created_day"`
	CurrentStock             float64              `db:"current_stock"`
	MinStockLevel            float64              `db:"min_stock_level"`
	AverageDailyDemand       float64              `db:"average_daily_demand"`
	PredictedDemand7d        float64              `db:"predicted_demand_7d"`
	PredictedDemand30d       float64              `db:"predicted_demand_30d"`
	RecommendedOrderQuantity float64              `db:"recommended_order_quantity"`
	ReorderPriority          Priority             `db:"reorder_priority"`
	SafetyStock              float64              `db:"safety_stock"`
	ReorderPoint             float64              `db:"reorder_point"`
	StockoutDateEstimate     *time.Time           `db:"stockout_date_estimate"`
	RecommendedOrderDate     *time.Time           `db:"recommended_order_date"`
	Status                   RecommendationStatus `db:"status"`
	CreatedAt                time.Time            `db:"created_at"`
	UpdatedAt                time.Time            `db:"updated_at"`
}

// ForecastAccuracyRecord tracks one predicted point and, once its horizon has
// elapsed, the realized actual. ModelName/ModelVersion/ModelParams are
// supplemented fields carried over from the original ForecastAccuracyHistory
// entity so an operator can tell which model family produced a prediction.
type ForecastAccuracyRecord struct {
	ID                int64        `db:"id"`
	ForecastType      ForecastType `db:"forecast_type"`
	ScopeID           *string      `db:"scope_id"`
	ForecastDate      time.Time    `db:"forecast_date"`
	PredictedDate     time.Time    `db:"predicted_date"`
	HorizonDays       int          `db:"horizon_days"`
	PredictedValue    float64      `db:"predicted_value"`
	ActualValue       *float64     `db:"actual_value"`
	ConfidenceLower   *float64     `db:"confidence_lower"`
	ConfidenceUpper   *float64     `db:"confidence_upper"`
	AbsoluteError     *float64     `db:"absolute_error"`
	PercentageError   *float64     `db:"percentage_error"`
	WithinConfidence  *bool        `db:"within_confidence"`
	ModelName         string       `db:"model_name"`
	ModelVersion      string       `db:"model_version"`
	ModelParams       string       `db:"model_params"` // opaque JSON blob
}

// ApplyActual fills in ActualValue and derives the error fields, per the
// invariant that error fields are computed only once an actual is known.
func (r *ForecastAccuracyRecord) ApplyActual(actual float64) {
	r.ActualValue = &actual
	abs := actual - r.PredictedValue
	if abs < 0 {
		abs = -abs
	}
	r.AbsoluteError = &abs
	if actual != 0 {
		pct := abs / actual * 100
		r.PercentageError = &pct
	}
	within := true
	if r.ConfidenceLower != nil && actual < *r.ConfidenceLower {
		within = false
	}
	if r.ConfidenceUpper != nil && actual > *r.ConfidenceUpper {
		within = false
	}
	r.WithinConfidence = &within
}

// CategoryPerformanceMetric is a supplemented entity (present in the original
// source, dropped from the distillation) backing the Forecast Engine's
// per-category batch variant.
type CategoryPerformanceMetric struct {
	ID                int64           `db:"id"`
	CategoryID        string          `db:"category_id"`
	CategoryName      string          `db:"category_name"`
	PeriodStart       time.Time       `db:"period_start"`
	PeriodEnd         time.Time       `db:"period_end"`
	TotalRevenue      decimal.Decimal `db:"total_revenue"`
	TotalUnitsSold    int             `db:"total_units_sold"`
	ProductCount      int             `db:"product_count"`
	AverageOrderValue decimal.Decimal `db:"average_order_value"`
	TopProductID      *string         `db:"top_product_id"`
	GrowthPercentage  float64         `db:"growth_percentage"`
}

// ProductDailySales is one product's sales on one calendar day, the series
// the Forecast Engine trains on for a product: {id} scope.
type ProductDailySales struct {
	ProductID   string    `db:"product_id"`
	CategoryID  string    `db:"category_id"`
	WarehouseID string    `db:"warehouse_id"`
	Date        time.Time `db:"date"`
	Quantity    int       `db:"quantity"`
	Revenue     decimal.Decimal `db:"revenue"`
}

// EventStreamPosition is the durable (consumer_name, stream_name) -> last
// processed event id mapping that makes the event consumer's position
// survive restarts.
type EventStreamPosition struct {
	ConsumerName string `db:"consumer_name"`
	StreamName   string `db:"stream_name"`
	LastEventID  string `db:"last_event_id"`
}

// TaskRun records one execution of a scheduled task.
type TaskRun struct {
	ID         int64      `db:"id"`
	RunID      string     `db:"run_id"`
	TaskName   string     `db:"task_name"`
	Status     TaskStatus `db:"status"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
	DurationMS *int64     `db:"duration_ms"`
	Details    string     `db:"details"` // opaque JSON blob
	Error      *string    `db:"error"`
}

// MarkFinished transitions a running TaskRun into a terminal state, recording
// duration and any error/details payload.
func (t *TaskRun) MarkFinished(now time.Time, status TaskStatus, details string, err error) {
	t.FinishedAt = &now
	t.Status = status
	t.Details = details
	durMS := now.Sub(t.StartedAt).Milliseconds()
	t.DurationMS = &durMS
	if err != nil {
		msg := err.Error()
		t.Error = &msg
	}
}
