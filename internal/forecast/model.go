package forecast

import (
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/DimaJoyti/analytics-engine/internal/timeseries"
)

const (
	weeklyHarmonics        = 3
	yearlyHarmonics         = 5
	weeklyMinSeriesLength   = 14
	yearlyMinSeriesLength   = 90
	changepointPriorScale   = 0.05
	bootstrapDraws          = 200
)

// seasonalModel is a linear-trend + Fourier-basis seasonal additive model,
// fit by least squares. It is the from-scratch stand-in for a production
// Prophet-style fit: one intercept/trend term plus sin/cos harmonic pairs
// for weekly and (once enough history exists) yearly seasonality.
type seasonalModel struct {
	StartDate       time.Time
	Coefficients    []float64
	WeeklyEnabled   bool
	YearlyEnabled   bool
	TrendRegWeight  float64
	Residuals       []float64
}

// featureCount returns the width of the design matrix for the given
// seasonality flags: intercept + trend + 2*weeklyHarmonics + 2*yearlyHarmonics.
func featureCount(weekly, yearly bool) int {
	n := 2
	if weekly {
		n += 2 * weeklyHarmonics
	}
	if yearly {
		n += 2 * yearlyHarmonics
	}
	return n
}

func featurize(t float64, weekly, yearly bool) []float64 {
	features := make([]float64, 0, featureCount(weekly, yearly))
	features = append(features, 1, t)
	if weekly {
		for k := 1; k <= weeklyHarmonics; k++ {
			angle := 2 * math.Pi * float64(k) * t / 7
			features = append(features, math.Sin(angle), math.Cos(angle))
		}
	}
	if yearly {
		for k := 1; k <= yearlyHarmonics; k++ {
			angle := 2 * math.Pi * float64(k) * t / 365.25
			features = append(features, math.Sin(angle), math.Cos(angle))
		}
	}
	return features
}

// fitSeasonalModel trains a new model on series. series must be sorted
// ascending by date and contain at least one point.
func fitSeasonalModel(series []timeseries.SeriesPoint) (*seasonalModel, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("cannot fit a model on an empty series")
	}

	start := series[0].Date
	weekly := len(series) >= weeklyMinSeriesLength
	yearly := len(series) >= yearlyMinSeriesLength

	width := featureCount(weekly, yearly)
	rows := make([][]float64, len(series))
	targets := make([]float64, len(series))
	for i, p := range series {
		t := p.Date.Sub(start).Hours() / 24
		rows[i] = featurize(t, weekly, yearly)
		targets[i] = p.Value
	}

	coeffs, err := leastSquares(rows, targets, width)
	if err != nil {
		return nil, err
	}

	residuals := make([]float64, len(series))
	for i, row := range rows {
		residuals[i] = targets[i] - dot(row, coeffs)
	}

	return &seasonalModel{
		StartDate:      start,
		Coefficients:   coeffs,
		WeeklyEnabled:  weekly,
		YearlyEnabled:  yearly,
		TrendRegWeight: changepointPriorScale,
		Residuals:      residuals,
	}, nil
}

// predict returns the point estimate for date.
func (m *seasonalModel) predict(date time.Time) float64 {
	t := date.Sub(m.StartDate).Hours() / 24
	row := featurize(t, m.WeeklyEnabled, m.YearlyEnabled)
	return dot(row, m.Coefficients)
}

// predictWithBand returns the point estimate plus a 95% confidence band,
// built from a residual bootstrap: draw bootstrapDraws samples (with
// replacement, deterministically seeded from the scope) from the training
// residuals, add each to the point estimate, and take the 2.5th/97.5th
// percentile of the resulting distribution.
func (m *seasonalModel) predictWithBand(date time.Time, scope Scope) (point, lower, upper float64) {
	point = m.predict(date)
	if len(m.Residuals) == 0 {
		return point, point, point
	}

	seed := seedFromScope(scope)
	samples := make([]float64, bootstrapDraws)
	for i := 0; i < bootstrapDraws; i++ {
		seed = splitmix64(seed)
		idx := int(seed % uint64(len(m.Residuals)))
		samples[i] = point + m.Residuals[idx]
	}

	lower = timeseries.Percentile(samples, 2.5)
	upper = timeseries.Percentile(samples, 97.5)
	return point, lower, upper
}

// seedFromScope derives a deterministic 64-bit seed from scope (FNV-1a of the
// scope string), so jitter and bootstrap draws are reproducible across calls
// and processes without depending on math/rand's global source.
func seedFromScope(scope Scope) uint64 {
	h := fnv.New64a()
	h.Write([]byte(scope))
	return h.Sum64()
}

// splitmix64 advances a deterministic PRNG state, used for both the bootstrap
// index draws and the near-zero jitter added to constant series.
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	z := x
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// jitter returns a deterministic near-zero value in [-epsilon, epsilon],
// used to perturb a perfectly flat series so the least-squares fit does not
// degenerate.
func jitter(scope Scope, index int, epsilon float64) float64 {
	seed := seedFromScope(scope)
	for i := 0; i <= index; i++ {
		seed = splitmix64(seed)
	}
	frac := float64(seed%1_000_000) / 1_000_000
	return (frac*2 - 1) * epsilon
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// leastSquares solves the normal equations (AᵀA + Λ)x = Aᵀb for the
// regularized least-squares coefficients, where Λ is diagonal: a 1e-6 ridge
// on every term, plus changepointPriorScale on the trend term (index 1) to
// keep the trend segment from overfitting short series. gaussianSolve still
// returns an error if a pivot falls below its singularity threshold.
func leastSquares(rows [][]float64, targets []float64, width int) ([]float64, error) {
	ata := make([][]float64, width)
	atb := make([]float64, width)
	for i := range ata {
		ata[i] = make([]float64, width)
	}

	for r, row := range rows {
		for i := 0; i < width; i++ {
			atb[i] += row[i] * targets[r]
			for j := 0; j < width; j++ {
				ata[i][j] += row[i] * row[j]
			}
		}
	}

	for i := 0; i < width; i++ {
		reg := 1e-6
		if i == 1 {
			reg += changepointPriorScale
		}
		ata[i][i] += reg
	}

	return gaussianSolve(ata, atb)
}

// gaussianSolve solves a x = b via Gaussian elimination with partial
// pivoting. a is square of size n; b has length n.
func gaussianSolve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	aug := make([][]float64, n)
	for i := range a {
		aug[i] = append(append([]float64(nil), a[i]...), b[i])
	}

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(aug[row][col]) > math.Abs(aug[pivot][col]) {
				pivot = row
			}
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		if math.Abs(aug[col][col]) < 1e-12 {
			return nil, fmt.Errorf("least-squares system is singular at column %d", col)
		}

		for row := col + 1; row < n; row++ {
			factor := aug[row][col] / aug[col][col]
			for k := col; k <= n; k++ {
				aug[row][k] -= factor * aug[col][k]
			}
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := aug[row][n]
		for k := row + 1; k < n; k++ {
			sum -= aug[row][k] * x[k]
		}
		x[row] = sum / aug[row][row]
	}
	return x, nil
}
