// Package quality inspects a time series before it is handed to the forecast
// engine, reporting issues with severities and a composite quality score.
package quality

import (
	"fmt"
	"math"
	"time"

	"github.com/DimaJoyti/analytics-engine/internal/timeseries"
)

// Severity is how serious a data quality Issue is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is one data quality finding.
type Issue struct {
	Kind        string
	Severity    Severity
	Description string
	Examples    []string
}

// Report is the result of Validate.
type Report struct {
	IsValid      bool
	QualityScore int
	Issues       []Issue
}

// DataSummary is a compact description of a series, used by operator
// diagnostics when a forecast degrades.
type DataSummary struct {
	Count   int
	MinDate time.Time
	MaxDate time.Time
	Mean    float64
	Median  float64
	StdDev  float64
	Min     float64
	Max     float64
}

const (
	minSeriesLength      = 30
	missingDatesErrorPct = 0.30
	nullValuesErrorPct   = 0.10
	iqrMultiplier        = 3.0
	maxGapDays           = 2
	plausibilityBound    = 1_000_000.0
)

// Validator checks series quality and optionally auto-cleans it.
type Validator struct{}

// New constructs a Validator.
func New() *Validator { return &Validator{} }

// Validate runs every quality check against series and returns a Report.
func (v *Validator) Validate(series []timeseries.SeriesPoint) Report {
	var issues []Issue

	if len(series) == 0 {
		issues = append(issues, Issue{
			Kind:        "empty_series",
			Severity:    SeverityError,
			Description: "series has no data points",
		})
		return finalize(issues)
	}

	if len(series) < minSeriesLength {
		issues = append(issues, Issue{
			Kind:        "insufficient_length",
			Severity:    SeverityError,
			Description: fmt.Sprintf("series has %d points, fewer than the minimum %d", len(series), minSeriesLength),
		})
	}

	issues = append(issues, checkMissingDates(series)...)
	issues = append(issues, checkNegativeValues(series)...)
	issues = append(issues, checkNullValues(series)...)
	issues = append(issues, checkOutliers(series)...)
	issues = append(issues, checkDuplicateDates(series)...)
	issues = append(issues, checkGaps(series)...)
	issues = append(issues, checkPlausibility(series)...)

	return finalize(issues)
}

func finalize(issues []Issue) Report {
	score := 100
	isValid := true
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityError:
			score -= 20
			isValid = false
		case SeverityWarning:
			score -= 5
		case SeverityInfo:
			score -= 1
		}
	}
	if score < 0 {
		score = 0
	}
	return Report{IsValid: isValid, QualityScore: score, Issues: issues}
}

func checkMissingDates(series []timeseries.SeriesPoint) []Issue {
	if len(series) < 2 {
		return nil
	}
	min, max := series[0].Date, series[0].Date
	seen := make(map[string]bool, len(series))
	for _, p := range series {
		if p.Date.Before(min) {
			min = p.Date
		}
		if p.Date.After(max) {
			max = p.Date
		}
		seen[p.Date.Format("2006-01-02")] = true
	}

	totalDays := int(max.Sub(min).Hours()/24) + 1
	if totalDays <= 0 {
		return nil
	}
	missing := totalDays - len(seen)
	if missing <= 0 {
		return nil
	}

	pct := float64(missing) / float64(totalDays)
	sev := SeverityWarning
	if pct >= missingDatesErrorPct {
		sev = SeverityError
	}
	return []Issue{{
		Kind:        "missing_dates",
		Severity:    sev,
		Description: fmt.Sprintf("%d of %d calendar days missing (%.1f%%)", missing, totalDays, pct*100),
	}}
}

func checkNegativeValues(series []timeseries.SeriesPoint) []Issue {
	var count int
	var examples []string
	for _, p := range series {
		if p.Value < 0 {
			count++
			examples = appendExample(examples, p)
		}
	}
	if count == 0 {
		return nil
	}
	return []Issue{{
		Kind:        "negative_values",
		Severity:    SeverityError,
		Description: fmt.Sprintf("%d negative values found", count),
		Examples:    examples,
	}}
}

func checkNullValues(series []timeseries.SeriesPoint) []Issue {
	var count int
	var examples []string
	for _, p := range series {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			count++
			examples = appendExample(examples, p)
		}
	}
	if count == 0 {
		return nil
	}
	pct := float64(count) / float64(len(series))
	sev := SeverityWarning
	if pct >= nullValuesErrorPct {
		sev = SeverityError
	}
	return []Issue{{
		Kind:        "null_values",
		Severity:    sev,
		Description: fmt.Sprintf("%d null/NaN values (%.1f%%)", count, pct*100),
		Examples:    examples,
	}}
}

func checkOutliers(series []timeseries.SeriesPoint) []Issue {
	values := timeseries.Values(series)
	q1 := timeseries.Percentile(values, 25)
	q3 := timeseries.Percentile(values, 75)
	iqr := q3 - q1
	if iqr == 0 {
		return nil
	}
	lower := q1 - iqrMultiplier*iqr
	upper := q3 + iqrMultiplier*iqr

	var count int
	var examples []string
	for _, p := range series {
		if p.Value < lower || p.Value > upper {
			count++
			examples = appendExample(examples, p)
		}
	}
	if count == 0 {
		return nil
	}
	return []Issue{{
		Kind:        "outliers",
		Severity:    SeverityWarning,
		Description: fmt.Sprintf("%d outlier values outside [%.2f, %.2f]", count, lower, upper),
		Examples:    examples,
	}}
}

func checkDuplicateDates(series []timeseries.SeriesPoint) []Issue {
	seen := make(map[string]int, len(series))
	var count int
	var examples []string
	for _, p := range series {
		key := p.Date.Format("2006-01-02")
		seen[key]++
		if seen[key] == 2 {
			count++
			if len(examples) < 5 {
				examples = append(examples, key)
			}
		}
	}
	if count == 0 {
		return nil
	}
	return []Issue{{
		Kind:        "duplicate_dates",
		Severity:    SeverityError,
		Description: fmt.Sprintf("%d duplicate dates found", count),
		Examples:    examples,
	}}
}

func checkGaps(series []timeseries.SeriesPoint) []Issue {
	sorted := append([]timeseries.SeriesPoint(nil), series...)
	timeseries.SortByDate(sorted)

	var examples []string
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Date.Sub(sorted[i-1].Date).Hours() / 24
		if gap > maxGapDays {
			examples = append(examples, fmt.Sprintf("%s -> %s",
				sorted[i-1].Date.Format("2006-01-02"), sorted[i].Date.Format("2006-01-02")))
		}
	}
	if len(examples) == 0 {
		return nil
	}
	count := len(examples)
	if len(examples) > 5 {
		examples = examples[:5]
	}
	return []Issue{{
		Kind:        "gaps",
		Severity:    SeverityWarning,
		Description: fmt.Sprintf("%d gaps of more than %d days found", count, maxGapDays),
		Examples:    examples,
	}}
}

func checkPlausibility(series []timeseries.SeriesPoint) []Issue {
	var count int
	var examples []string
	for _, p := range series {
		if p.Value > plausibilityBound {
			count++
			examples = appendExample(examples, p)
		}
	}
	if count == 0 {
		return nil
	}
	return []Issue{{
		Kind:        "implausible_values",
		Severity:    SeverityWarning,
		Description: fmt.Sprintf("%d values exceed the plausibility bound of %.0f", count, plausibilityBound),
		Examples:    examples,
	}}
}

func appendExample(examples []string, p timeseries.SeriesPoint) []string {
	if len(examples) >= 5 {
		return examples
	}
	return append(examples, fmt.Sprintf("%s=%.2f", p.Date.Format("2006-01-02"), p.Value))
}

// GetDataSummary describes series for operator diagnostics.
func (v *Validator) GetDataSummary(series []timeseries.SeriesPoint) DataSummary {
	if len(series) == 0 {
		return DataSummary{}
	}
	sorted := append([]timeseries.SeriesPoint(nil), series...)
	timeseries.SortByDate(sorted)
	values := timeseries.Values(sorted)

	return DataSummary{
		Count:   len(sorted),
		MinDate: sorted[0].Date,
		MaxDate: sorted[len(sorted)-1].Date,
		Mean:    timeseries.Mean(values),
		Median:  timeseries.Median(values),
		StdDev:  timeseries.PopStdDev(values),
		Min:     timeseries.Min(values),
		Max:     timeseries.Max(values),
	}
}

// AutoClean winsorizes outliers to [5th, 95th] percentile, fills missing
// calendar dates by linear interpolation, and clamps negative values to 0.
// It does not change the position or ordering of existing valid points.
func (v *Validator) AutoClean(series []timeseries.SeriesPoint) []timeseries.SeriesPoint {
	if len(series) == 0 {
		return series
	}

	sorted := append([]timeseries.SeriesPoint(nil), series...)
	timeseries.SortByDate(sorted)

	values := timeseries.Values(sorted)
	p5 := timeseries.Percentile(values, 5)
	p95 := timeseries.Percentile(values, 95)

	cleaned := make([]timeseries.SeriesPoint, len(sorted))
	for i, p := range sorted {
		v := p.Value
		if v < 0 {
			v = 0
		}
		if v < p5 {
			v = p5
		}
		if v > p95 {
			v = p95
		}
		cleaned[i] = timeseries.SeriesPoint{Date: p.Date, Value: v}
	}

	return fillGaps(cleaned)
}

// fillGaps inserts linearly-interpolated points for any missing calendar day
// between consecutive observations.
func fillGaps(points []timeseries.SeriesPoint) []timeseries.SeriesPoint {
	if len(points) < 2 {
		return points
	}

	out := make([]timeseries.SeriesPoint, 0, len(points))
	out = append(out, points[0])

	for i := 1; i < len(points); i++ {
		prev := points[i-1]
		curr := points[i]
		days := int(curr.Date.Sub(prev.Date).Hours() / 24)
		for d := 1; d < days; d++ {
			frac := float64(d) / float64(days)
			interpolated := prev.Value + frac*(curr.Value-prev.Value)
			out = append(out, timeseries.SeriesPoint{
				Date:  prev.Date.AddDate(0, 0, d),
				Value: interpolated,
			})
		}
		out = append(out, curr)
	}
	return out
}
