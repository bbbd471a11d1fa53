// Package aggregator computes the rollup metrics the rest of the engine
// reads: daily sales, per-product demand, and inventory turnover, each
// sourced from the sales/inventory upstreams. Only ComputeDaily falls back to
// the local datastore when an upstream call cannot complete; ComputeDemand
// skips a weekly chunk whose fetch fails transiently, and ComputeTurnover
// skips a product whose inventory fetch fails.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/DimaJoyti/analytics-engine/internal/clock"
	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
	"github.com/DimaJoyti/analytics-engine/internal/upstream"
)

// Status reports how a metric was produced.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFallback Status = "fallback"
	StatusNoData   Status = "no_data"
	StatusError    Status = "error"
)

// DailyResult is the output of ComputeDaily.
type DailyResult struct {
	Metric *models.DailySalesMetric
	Status Status
}

// Aggregator computes DailySalesMetric, ProductDemandMetric, and
// InventoryTurnoverMetric for a given window.
type Aggregator struct {
	upstream        *upstream.Client
	dailySales      repository.DailySalesRepository
	productDemand   repository.ProductDemandRepository
	turnover        repository.InventoryTurnoverRepository
	productDaily    repository.ProductDailySalesRepository
	recommendations repository.RecommendationRepository
	clock           clock.Clock
	logger          *zap.Logger

	pageSize int
}

// New constructs an Aggregator.
func New(
	client *upstream.Client,
	dailySales repository.DailySalesRepository,
	productDemand repository.ProductDemandRepository,
	turnover repository.InventoryTurnoverRepository,
	productDaily repository.ProductDailySalesRepository,
	recommendations repository.RecommendationRepository,
	clk clock.Clock,
	logger *zap.Logger,
	pageSize int,
) *Aggregator {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Aggregator{
		upstream:        client,
		dailySales:      dailySales,
		productDemand:   productDemand,
		turnover:        turnover,
		productDaily:    productDaily,
		recommendations: recommendations,
		clock:           clk,
		logger:          logger,
		pageSize:        pageSize,
	}
}

// salesOrder is the shape of one completed order as the sales upstream
// reports it.
type salesOrder struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Total      float64   `json:"total"`
	Date       time.Time `json:"date"`
	Lines      []struct {
		ProductID string  `json:"product_id"`
		Quantity  int     `json:"quantity"`
		Price     float64 `json:"price"`
	} `json:"lines"`
}

type ordersPage struct {
	Orders     []salesOrder `json:"orders"`
	NextOffset int          `json:"next_offset"`
	HasMore    bool         `json:"has_more"`
}

// fetchCompletedOrders pages through the sales service's completed orders in
// [from, to] and returns all of them once the last page is read; any request
// or decode error aborts the whole fetch.
func (a *Aggregator) fetchCompletedOrders(ctx context.Context, from, to time.Time) ([]salesOrder, error) {
	var all []salesOrder
	offset := 0
	for {
		query := url.Values{
			"from":   {from.Format("2006-01-02")},
			"to":     {to.Format("2006-01-02")},
			"status": {"completed"},
			"limit":  {strconv.Itoa(a.pageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		resp, err := a.upstream.Request(ctx, "sales", http.MethodGet, "/orders", query, nil, 0, false)
		if err != nil {
			return nil, err
		}

		var page ordersPage
		if err := decodeJSON(resp.Body, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Orders...)

		if !page.HasMore || len(page.Orders) == 0 {
			break
		}
		offset = page.NextOffset
	}
	return all, nil
}

// isTransient reports whether err is an upstream failure that should trigger
// the local-datastore fallback rather than propagate.
func isTransient(err error) bool {
	var clientErr *upstream.ClientError
	if !errors.As(err, &clientErr) {
		return false
	}
	switch clientErr.Kind {
	case upstream.ErrKindTimeout, upstream.ErrKindConnectionRefused, upstream.ErrKindHTTP5xx:
		return true
	default:
		return false
	}
}

// ComputeDaily produces the DailySalesMetric for date, preferring the sales
// upstream and falling back to the day's already-stored daily_sales_metrics
// row (as maintained by the event consumer) when the upstream call cannot
// complete.
func (a *Aggregator) ComputeDaily(ctx context.Context, date time.Time) (*DailyResult, error) {
	day := truncateToDay(date)

	orders, err := a.fetchCompletedOrders(ctx, day, day.AddDate(0, 0, 1))
	if err == nil {
		metric := summarizeOrders(day, orders)
		metric.CalculatedAt = a.clock.Now()
		if upsertErr := a.dailySales.Upsert(ctx, metric); upsertErr != nil {
			return nil, fmt.Errorf("failed to upsert daily sales metric: %w", upsertErr)
		}
		return &DailyResult{Metric: metric, Status: StatusSuccess}, nil
	}

	if !isTransient(err) {
		return nil, err
	}

	a.logger.Warn("sales upstream unavailable, falling back to local datastore", zap.Error(err))
	metric, fallbackErr := a.computeDailyFromLocal(ctx, day)
	if fallbackErr != nil {
		return nil, fallbackErr
	}
	if metric == nil {
		return &DailyResult{Status: StatusNoData}, nil
	}
	if upsertErr := a.dailySales.Upsert(ctx, metric); upsertErr != nil {
		return nil, fmt.Errorf("failed to upsert fallback daily sales metric: %w", upsertErr)
	}
	return &DailyResult{Metric: metric, Status: StatusFallback}, nil
}

func (a *Aggregator) computeDailyFromLocal(ctx context.Context, day time.Time) (*models.DailySalesMetric, error) {
	existing, err := a.dailySales.GetByDate(ctx, day)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	existing.CalculatedAt = a.clock.Now()
	return existing, nil
}

func summarizeOrders(day time.Time, orders []salesOrder) *models.DailySalesMetric {
	metric := &models.DailySalesMetric{Date: day}
	products := make(map[string]bool)
	customers := make(map[string]bool)

	var total decimal.Decimal
	var productsSold int
	for _, o := range orders {
		total = total.Add(decimal.NewFromFloat(o.Total))
		customers[o.CustomerID] = true
		for _, line := range o.Lines {
			products[line.ProductID] = true
			productsSold += line.Quantity
		}
	}

	metric.TotalSales = total
	metric.TotalOrders = len(orders)
	metric.ProductsSold = productsSold
	metric.UniqueProducts = len(products)
	metric.UniqueCustomers = len(customers)
	metric.RecalculateAverage()
	return metric
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
