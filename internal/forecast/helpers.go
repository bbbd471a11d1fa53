package forecast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/timeseries"
)

func decodeJSON(body []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode upstream response: %w", err)
	}
	return nil
}

// sumByDate aggregates rows by calendar date, producing one point per day
// present with the sum of revenue across products.
func sumByDate(rows []models.ProductDailySales) []timeseries.SeriesPoint {
	sums := make(map[string]float64, len(rows))
	dates := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		key := r.Date.Format("2006-01-02")
		v, _ := r.Revenue.Float64()
		sums[key] += v
		dates[key] = r.Date
	}

	points := make([]timeseries.SeriesPoint, 0, len(sums))
	for key, sum := range sums {
		points = append(points, timeseries.SeriesPoint{Date: dates[key], Value: sum})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}
