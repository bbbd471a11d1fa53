// Package forecast trains and serves per-scope demand forecasts: total
// company-wide sales, a single product, or an aggregate over a category or
// warehouse's products.
package forecast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DimaJoyti/analytics-engine/internal/repository"
	"github.com/DimaJoyti/analytics-engine/internal/timeseries"
	"github.com/DimaJoyti/analytics-engine/internal/upstream"
)

// Scope identifies what a forecast is for: "total_sales" or "product:{id}".
type Scope string

const totalSalesScope Scope = "total_sales"

// ProductScope builds the scope identifier for a single product.
func ProductScope(productID string) Scope { return Scope("product:" + productID) }

// ProductID returns the product id encoded in a product scope, and false if
// s is not a product scope.
func (s Scope) ProductID() (string, bool) {
	const prefix = "product:"
	if !strings.HasPrefix(string(s), prefix) {
		return "", false
	}
	return string(s)[len(prefix):], true
}

// Source pulls the historical daily series for a scope and resolves group
// membership for the category/warehouse batch variants.
type Source interface {
	Series(ctx context.Context, scope Scope, from, to time.Time) ([]timeseries.SeriesPoint, error)
	ProductsInCategory(ctx context.Context, categoryID string) ([]string, error)
	ProductsInWarehouse(ctx context.Context, warehouseID string) ([]string, error)
	CategorySeries(ctx context.Context, categoryID string, from, to time.Time) ([]timeseries.SeriesPoint, error)
	WarehouseSeries(ctx context.Context, warehouseID string, from, to time.Time) ([]timeseries.SeriesPoint, error)
}

// RepositorySource is the Postgres-backed Source: total sales comes from
// daily_sales_metrics, product series from the event-consumer-fed
// product_daily_sales rollup. Category/warehouse product membership first
// checks the local rollup (fast path once data has flowed through the event
// consumer) and falls back to the product catalog upstream.
type RepositorySource struct {
	dailySales   repository.DailySalesRepository
	productDaily repository.ProductDailySalesRepository
	catalog      *upstream.Client
}

// NewRepositorySource constructs a RepositorySource.
func NewRepositorySource(dailySales repository.DailySalesRepository, productDaily repository.ProductDailySalesRepository, catalog *upstream.Client) *RepositorySource {
	return &RepositorySource{dailySales: dailySales, productDaily: productDaily, catalog: catalog}
}

// Series returns the daily series for scope in [from, to].
func (s *RepositorySource) Series(ctx context.Context, scope Scope, from, to time.Time) ([]timeseries.SeriesPoint, error) {
	if scope == totalSalesScope {
		rows, err := s.dailySales.ListRange(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to load total sales series: %w", err)
		}
		points := make([]timeseries.SeriesPoint, len(rows))
		for i, r := range rows {
			v, _ := r.TotalSales.Float64()
			points[i] = timeseries.SeriesPoint{Date: r.Date, Value: v}
		}
		return points, nil
	}

	productID, ok := scope.ProductID()
	if !ok {
		return nil, fmt.Errorf("unrecognized scope %q", scope)
	}
	rows, err := s.productDaily.ListByProduct(ctx, productID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load product series: %w", err)
	}
	points := make([]timeseries.SeriesPoint, len(rows))
	for i, r := range rows {
		v, _ := r.Revenue.Float64()
		points[i] = timeseries.SeriesPoint{Date: r.Date, Value: v}
	}
	return points, nil
}

// ProductsInCategory resolves the product ids belonging to categoryID,
// preferring the local rollup and falling back to the sales upstream's
// product catalog when the rollup has no data yet.
func (s *RepositorySource) ProductsInCategory(ctx context.Context, categoryID string) ([]string, error) {
	ids, err := s.productDaily.DistinctProductsInCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		return ids, nil
	}
	return s.catalogProducts(ctx, "/categories/"+categoryID+"/products")
}

// ProductsInWarehouse resolves the product ids stocked at warehouseID.
func (s *RepositorySource) ProductsInWarehouse(ctx context.Context, warehouseID string) ([]string, error) {
	ids, err := s.productDaily.DistinctProductsInWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		return ids, nil
	}
	return s.catalogProducts(ctx, "/warehouses/"+warehouseID+"/products")
}

type catalogResponse struct {
	ProductIDs []string `json:"product_ids"`
}

func (s *RepositorySource) catalogProducts(ctx context.Context, path string) ([]string, error) {
	resp, err := s.catalog.Request(ctx, "sales", "GET", path, nil, nil, 0, false)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve product catalog: %w", err)
	}
	var decoded catalogResponse
	if err := decodeJSON(resp.Body, &decoded); err != nil {
		return nil, err
	}
	return decoded.ProductIDs, nil
}

// CategorySeries returns the date-summed series across every product in
// categoryID.
func (s *RepositorySource) CategorySeries(ctx context.Context, categoryID string, from, to time.Time) ([]timeseries.SeriesPoint, error) {
	rows, err := s.productDaily.ListByCategory(ctx, categoryID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load category series: %w", err)
	}
	return sumByDate(rows), nil
}

// WarehouseSeries returns the date-summed series across every product in
// warehouseID.
func (s *RepositorySource) WarehouseSeries(ctx context.Context, warehouseID string, from, to time.Time) ([]timeseries.SeriesPoint, error) {
	rows, err := s.productDaily.ListByWarehouse(ctx, warehouseID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load warehouse series: %w", err)
	}
	return sumByDate(rows), nil
}
