package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DimaJoyti/analytics-engine/internal/clock"
	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
)

// OrderLine is one line item on an order.created event.
type OrderLine struct {
	ProductID   string  `json:"product_id"`
	CategoryID  string  `json:"category_id"`
	WarehouseID string  `json:"warehouse_id"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// OrderCreatedPayload is the order.created event payload.
type OrderCreatedPayload struct {
	OrderID    string      `json:"order_id"`
	OrderDate  time.Time   `json:"order_date"`
	Total      float64     `json:"total"`
	CustomerID string      `json:"customer_id"`
	Lines      []OrderLine `json:"lines"`
}

// OrderCancelledPayload is the order.cancelled event payload. OrderDate is
// optional; when absent the handler falls back to today, per the
// deliberately-preserved historical quirk below.
type OrderCancelledPayload struct {
	OrderID   string     `json:"order_id"`
	Total     float64    `json:"total"`
	OrderDate *time.Time `json:"order_date"`
}

// Handlers bundles the repositories the order/payment handler catalog needs.
type Handlers struct {
	dailySales   repository.DailySalesRepository
	productDaily repository.ProductDailySalesRepository
	clock        clock.Clock
}

// NewHandlers constructs a Handlers set and is the source of every handler
// registered against a Consumer via Register.
func NewHandlers(dailySales repository.DailySalesRepository, productDaily repository.ProductDailySalesRepository, clk clock.Clock) *Handlers {
	return &Handlers{dailySales: dailySales, productDaily: productDaily, clock: clk}
}

// OrderCreated upserts the day's DailySalesMetric and each line's
// product_daily_sales row. Safe under replay: the position only advances
// past this event after both writes succeed, so a retry reapplies the same
// event at most once.
func (h *Handlers) OrderCreated(ctx context.Context, evt Event) error {
	var payload OrderCreatedPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode order.created payload: %w", err)
	}

	day := truncateToDay(payload.OrderDate)
	metric, err := h.dailySales.GetByDate(ctx, day)
	if err != nil {
		return err
	}
	if metric == nil {
		metric = &models.DailySalesMetric{Date: day}
	}

	var productsSold int
	for _, line := range payload.Lines {
		productsSold += line.Quantity
	}

	metric.TotalSales = metric.TotalSales.Add(decimal.NewFromFloat(payload.Total))
	metric.TotalOrders++
	metric.ProductsSold += productsSold
	metric.RecalculateAverage()
	metric.CalculatedAt = h.clock.Now()
	if err := h.dailySales.Upsert(ctx, metric); err != nil {
		return fmt.Errorf("failed to upsert daily sales metric: %w", err)
	}

	for _, line := range payload.Lines {
		revenue := line.Price * float64(line.Quantity)
		if err := h.productDaily.IncrementDaily(ctx, line.ProductID, line.CategoryID, line.WarehouseID, day, line.Quantity, revenue); err != nil {
			return fmt.Errorf("failed to increment product daily sales: %w", err)
		}
	}
	return nil
}

// OrderUpdated is a no-op on metrics: only the order's status changes.
func (h *Handlers) OrderUpdated(ctx context.Context, evt Event) error {
	return nil
}

// OrderCancelled decrements total_orders and subtracts the order's total
// from that day's metric, floored at zero.
//
// The day subtracted from is the cancellation event's own order_date when
// present; when absent, it falls back to today regardless of when the order
// was originally placed — preserved from the historical behavior rather than
// fixed, since downstream consumers already expect it.
func (h *Handlers) OrderCancelled(ctx context.Context, evt Event) error {
	var payload OrderCancelledPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode order.cancelled payload: %w", err)
	}

	day := h.clock.Today()
	if payload.OrderDate != nil {
		day = truncateToDay(*payload.OrderDate)
	}

	metric, err := h.dailySales.GetByDate(ctx, day)
	if err != nil {
		return err
	}
	if metric == nil {
		return nil
	}

	metric.TotalSales = metric.TotalSales.Sub(decimal.NewFromFloat(payload.Total))
	if metric.TotalSales.IsNegative() {
		metric.TotalSales = decimal.Zero
	}
	if metric.TotalOrders > 0 {
		metric.TotalOrders--
	}
	metric.RecalculateAverage()
	metric.CalculatedAt = h.clock.Now()
	return h.dailySales.Upsert(ctx, metric)
}

// PaymentCreated is currently informational only.
func (h *Handlers) PaymentCreated(ctx context.Context, evt Event) error {
	return nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
