package restock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DimaJoyti/analytics-engine/internal/models"
)

// ItemResult is one product's outcome within a Bulk run. Status is "ok",
// "no_action" or "error"; on per-item failure, which never aborts the batch,
// Message holds the error text.
type ItemResult struct {
	ProductID      string
	Recommendation *models.StockReorderRecommendation
	Status         string
	Message        string
}

// BulkResult is the aggregated output of Bulk.
type BulkResult struct {
	Recommendations  []ItemResult
	PriorityCounts   map[models.Priority]int
	ProcessingTimeMS int64
}

// ProductStock is one product's current on-hand stock, as supplied by the
// caller (the bulk endpoint's request body or the scheduled job's inventory
// snapshot) since the analyzer has no inventory source of its own.
type ProductStock struct {
	ProductID    string  `json:"product_id"`
	CurrentStock float64 `json:"current_stock"`
	MinStock     float64 `json:"min_stock"`
}

// job is one unit of work dispatched to the worker pool.
type job struct {
	index   int
	product ProductStock
}

// Bulk analyzes products concurrently with a bounded worker pool (the same
// fixed-size-pool-over-a-shared-channel shape as a partition consumer fan-out,
// adapted from one goroutine per partition to a capped pool here), isolating
// per-item failures and filtering by minPriority before sorting.
func (a *Analyzer) Bulk(ctx context.Context, products []ProductStock, warehouseID string, leadTimeDays, maxProducts, workerPoolSize int, minPriority models.Priority) (*BulkResult, error) {
	start := time.Now()

	if len(products) > maxProducts {
		products = products[:maxProducts]
	}

	jobs := make(chan job, len(products))
	results := make([]ItemResult, len(products))

	if workerPoolSize <= 0 {
		workerPoolSize = 8
	}
	if workerPoolSize > len(products) {
		workerPoolSize = len(products)
	}

	var wg sync.WaitGroup
	for w := 0; w < workerPoolSize; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = a.analyzeOne(ctx, j.product, warehouseID, leadTimeDays)
			}
		}()
	}

	for i, p := range products {
		jobs <- job{index: i, product: p}
	}
	close(jobs)
	wg.Wait()

	filtered := make([]ItemResult, 0, len(results))
	counts := make(map[models.Priority]int)
	for _, r := range results {
		if r.Recommendation != nil {
			if r.Recommendation.ReorderPriority.Rank() < minPriority.Rank() {
				continue
			}
			counts[r.Recommendation.ReorderPriority]++
		}
		filtered = append(filtered, r)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return lessByPriorityThenStockout(filtered[i], filtered[j])
	})

	return &BulkResult{
		Recommendations:  filtered,
		PriorityCounts:   counts,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

func (a *Analyzer) analyzeOne(ctx context.Context, product ProductStock, warehouseID string, leadTimeDays int) ItemResult {
	rec, err := a.GenerateRecommendation(ctx, product.ProductID, warehouseID, product.CurrentStock, product.MinStock, leadTimeDays)
	if err != nil {
		return ItemResult{ProductID: product.ProductID, Status: "error", Message: err.Error()}
	}
	if rec == nil {
		return ItemResult{ProductID: product.ProductID, Status: "no_action"}
	}
	return ItemResult{ProductID: product.ProductID, Recommendation: rec, Status: "ok"}
}

// lessByPriorityThenStockout sorts by (-priority_score, days_until_stockout
// ascending, infinity for null).
func lessByPriorityThenStockout(a, b ItemResult) bool {
	aScore, bScore := priorityScoreOf(a), priorityScoreOf(b)
	if aScore != bScore {
		return aScore > bScore
	}
	aDays, bDays := daysUntilStockoutOf(a), daysUntilStockoutOf(b)
	return aDays < bDays
}

func priorityScoreOf(r ItemResult) int {
	if r.Recommendation == nil {
		return -1
	}
	return r.Recommendation.ReorderPriority.Rank()
}

func daysUntilStockoutOf(r ItemResult) int {
	if r.Recommendation == nil || r.Recommendation.StockoutDateEstimate == nil {
		return int(^uint(0) >> 1) // +infinity sentinel
	}
	return int(r.Recommendation.StockoutDateEstimate.Sub(r.Recommendation.CreatedDay).Hours() / 24)
}
