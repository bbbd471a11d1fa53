package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/DimaJoyti/analytics-engine/internal/clock"
	"github.com/DimaJoyti/analytics-engine/internal/models"
)

type fakeDailySales struct {
	byDate map[time.Time]*models.DailySalesMetric
}

func newFakeDailySales() *fakeDailySales {
	return &fakeDailySales{byDate: make(map[time.Time]*models.DailySalesMetric)}
}

func (f *fakeDailySales) Upsert(ctx context.Context, m *models.DailySalesMetric) error {
	cp := *m
	f.byDate[m.Date] = &cp
	return nil
}

func (f *fakeDailySales) GetByDate(ctx context.Context, date time.Time) (*models.DailySalesMetric, error) {
	m, ok := f.byDate[date]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeDailySales) ListRange(ctx context.Context, from, to time.Time) ([]models.DailySalesMetric, error) {
	return nil, nil
}

func (f *fakeDailySales) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type productDailyIncrement struct {
	productID, categoryID, warehouseID string
	date                                time.Time
	quantityDelta                       int
	revenueDelta                        float64
}

type fakeProductDaily struct {
	increments []productDailyIncrement
}

func (f *fakeProductDaily) IncrementDaily(ctx context.Context, productID, categoryID, warehouseID string, date time.Time, quantityDelta int, revenueDelta float64) error {
	f.increments = append(f.increments, productDailyIncrement{productID, categoryID, warehouseID, date, quantityDelta, revenueDelta})
	return nil
}

func (f *fakeProductDaily) ListByProduct(ctx context.Context, productID string, from, to time.Time) ([]models.ProductDailySales, error) {
	return nil, nil
}

func (f *fakeProductDaily) ListByCategory(ctx context.Context, categoryID string, from, to time.Time) ([]models.ProductDailySales, error) {
	return nil, nil
}

func (f *fakeProductDaily) ListByWarehouse(ctx context.Context, warehouseID string, from, to time.Time) ([]models.ProductDailySales, error) {
	return nil, nil
}

func (f *fakeProductDaily) DistinctProductsInCategory(ctx context.Context, categoryID string) ([]string, error) {
	return nil, nil
}

func (f *fakeProductDaily) DistinctProductsInWarehouse(ctx context.Context, warehouseID string) ([]string, error) {
	return nil, nil
}

func orderCreatedEvent(t *testing.T, payload OrderCreatedPayload) Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	assert.NoError(t, err)
	return Event{EventType: "order.created", EventID: payload.OrderID, Payload: raw}
}

func orderCancelledEvent(t *testing.T, payload OrderCancelledPayload) Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	assert.NoError(t, err)
	return Event{EventType: "order.cancelled", EventID: payload.OrderID, Payload: raw}
}

func TestOrderCreated_UpsertsDailyMetricAndProductLines(t *testing.T) {
	sales := newFakeDailySales()
	products := &fakeProductDaily{}
	clk := clock.NewFixed(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	h := NewHandlers(sales, products, clk)

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	evt := orderCreatedEvent(t, OrderCreatedPayload{
		OrderID:   "o1",
		OrderDate: day,
		Total:     50,
		Lines: []OrderLine{
			{ProductID: "p1", CategoryID: "c1", WarehouseID: "w1", Quantity: 2, Price: 10},
			{ProductID: "p2", CategoryID: "c2", WarehouseID: "w1", Quantity: 3, Price: 10},
		},
	})

	err := h.OrderCreated(context.Background(), evt)
	assert.NoError(t, err)

	metric, err := sales.GetByDate(context.Background(), day)
	assert.NoError(t, err)
	assert.NotNil(t, metric)
	assert.True(t, metric.TotalSales.Equal(decimal.NewFromFloat(50)))
	assert.Equal(t, 1, metric.TotalOrders)
	assert.Equal(t, 5, metric.ProductsSold)

	assert.Len(t, products.increments, 2)
	assert.Equal(t, "p1", products.increments[0].productID)
	assert.Equal(t, 2, products.increments[0].quantityDelta)
	assert.Equal(t, 20.0, products.increments[0].revenueDelta)
}

func TestOrderCreated_AccumulatesAcrossMultipleOrdersSameDay(t *testing.T) {
	sales := newFakeDailySales()
	products := &fakeProductDaily{}
	clk := clock.NewFixed(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	h := NewHandlers(sales, products, clk)

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	first := orderCreatedEvent(t, OrderCreatedPayload{OrderID: "o1", OrderDate: day, Total: 30, Lines: []OrderLine{{ProductID: "p1", Quantity: 1, Price: 30}}})
	second := orderCreatedEvent(t, OrderCreatedPayload{OrderID: "o2", OrderDate: day, Total: 20, Lines: []OrderLine{{ProductID: "p1", Quantity: 1, Price: 20}}})

	assert.NoError(t, h.OrderCreated(context.Background(), first))
	assert.NoError(t, h.OrderCreated(context.Background(), second))

	metric, err := sales.GetByDate(context.Background(), day)
	assert.NoError(t, err)
	assert.Equal(t, 2, metric.TotalOrders)
	assert.True(t, metric.TotalSales.Equal(decimal.NewFromFloat(50)))
	assert.True(t, metric.AverageOrderValue.Equal(decimal.NewFromFloat(25)))
}

func TestOrderCreated_InvalidPayloadErrors(t *testing.T) {
	h := NewHandlers(newFakeDailySales(), &fakeProductDaily{}, clock.NewReal())
	err := h.OrderCreated(context.Background(), Event{EventType: "order.created", Payload: []byte("not-json")})
	assert.Error(t, err)
}

func TestOrderCancelled_SubtractsFromExistingMetric(t *testing.T) {
	sales := newFakeDailySales()
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sales.byDate[day] = &models.DailySalesMetric{Date: day, TotalSales: decimal.NewFromFloat(100), TotalOrders: 2}

	h := NewHandlers(sales, &fakeProductDaily{}, clock.NewFixed(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))
	evt := orderCancelledEvent(t, OrderCancelledPayload{OrderID: "o1", Total: 40, OrderDate: &day})

	err := h.OrderCancelled(context.Background(), evt)
	assert.NoError(t, err)

	metric, err := sales.GetByDate(context.Background(), day)
	assert.NoError(t, err)
	assert.True(t, metric.TotalSales.Equal(decimal.NewFromFloat(60)))
	assert.Equal(t, 1, metric.TotalOrders)
}

func TestOrderCancelled_FloorsAtZeroRatherThanGoingNegative(t *testing.T) {
	sales := newFakeDailySales()
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sales.byDate[day] = &models.DailySalesMetric{Date: day, TotalSales: decimal.NewFromFloat(10), TotalOrders: 1}

	h := NewHandlers(sales, &fakeProductDaily{}, clock.NewFixed(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))
	evt := orderCancelledEvent(t, OrderCancelledPayload{OrderID: "o1", Total: 40, OrderDate: &day})

	assert.NoError(t, h.OrderCancelled(context.Background(), evt))

	metric, _ := sales.GetByDate(context.Background(), day)
	assert.True(t, metric.TotalSales.IsZero())
	assert.Equal(t, 0, metric.TotalOrders)
}

func TestOrderCancelled_MissingOrderDateFallsBackToToday(t *testing.T) {
	sales := newFakeDailySales()
	today := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	sales.byDate[today] = &models.DailySalesMetric{Date: today, TotalSales: decimal.NewFromFloat(10), TotalOrders: 1}

	h := NewHandlers(sales, &fakeProductDaily{}, clock.NewFixed(today))
	evt := orderCancelledEvent(t, OrderCancelledPayload{OrderID: "o1", Total: 5})

	assert.NoError(t, h.OrderCancelled(context.Background(), evt))

	metric, _ := sales.GetByDate(context.Background(), today)
	assert.True(t, metric.TotalSales.Equal(decimal.NewFromFloat(5)))
}

func TestOrderCancelled_NoExistingMetricIsNoop(t *testing.T) {
	sales := newFakeDailySales()
	h := NewHandlers(sales, &fakeProductDaily{}, clock.NewReal())
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	evt := orderCancelledEvent(t, OrderCancelledPayload{OrderID: "o1", Total: 5, OrderDate: &day})

	assert.NoError(t, h.OrderCancelled(context.Background(), evt))
	assert.Empty(t, sales.byDate)
}

func TestOrderUpdated_IsNoop(t *testing.T) {
	h := NewHandlers(newFakeDailySales(), &fakeProductDaily{}, clock.NewReal())
	assert.NoError(t, h.OrderUpdated(context.Background(), Event{}))
}

func TestPaymentCreated_IsNoop(t *testing.T) {
	h := NewHandlers(newFakeDailySales(), &fakeProductDaily{}, clock.NewReal())
	assert.NoError(t, h.PaymentCreated(context.Background(), Event{}))
}
