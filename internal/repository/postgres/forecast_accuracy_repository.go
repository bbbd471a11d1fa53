package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
)

// ForecastAccuracyRepository implements repository.ForecastAccuracyRepository
// using Postgres.
type ForecastAccuracyRepository struct {
	db *Database
}

// NewForecastAccuracyRepository creates a new Postgres-backed forecast
// accuracy repository.
func NewForecastAccuracyRepository(db *Database) repository.ForecastAccuracyRepository {
	return &ForecastAccuracyRepository{db: db}
}

// Insert persists a newly-produced forecast awaiting its actual.
func (r *ForecastAccuracyRepository) Insert(ctx context.Context, rec *models.ForecastAccuracyRecord) error {
	query := `
		INSERT INTO forecast_accuracy_records (
			forecast_type, scope_id, forecast_date, predicted_date, horizon_days,
			predicted_value, actual_value, confidence_lower, confidence_upper,
			absolute_error, percentage_error, within_confidence,
			model_name, model_version, model_params
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id
	`
	return r.db.GetDB().QueryRowxContext(
		ctx, query,
		rec.ForecastType, rec.ScopeID, rec.ForecastDate, rec.PredictedDate, rec.HorizonDays,
		rec.PredictedValue, rec.ActualValue, rec.ConfidenceLower, rec.ConfidenceUpper,
		rec.AbsoluteError, rec.PercentageError, rec.WithinConfidence,
		rec.ModelName, rec.ModelVersion, rec.ModelParams,
	).Scan(&rec.ID)
}

// Update persists the actual/error fields filled in on an existing record.
func (r *ForecastAccuracyRepository) Update(ctx context.Context, rec *models.ForecastAccuracyRecord) error {
	query := `
		UPDATE forecast_accuracy_records SET
			actual_value = $1, absolute_error = $2, percentage_error = $3, within_confidence = $4
		WHERE id = $5
	`
	_, err := r.db.GetDB().ExecContext(ctx, query,
		rec.ActualValue, rec.AbsoluteError, rec.PercentageError, rec.WithinConfidence, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update forecast accuracy record: %w", err)
	}
	return nil
}

// ListAwaitingActual retrieves records whose predicted_date has elapsed but
// which have no actual recorded yet.
func (r *ForecastAccuracyRepository) ListAwaitingActual(ctx context.Context, asOf time.Time) ([]models.ForecastAccuracyRecord, error) {
	query := `
		SELECT id, forecast_type, scope_id, forecast_date, predicted_date, horizon_days,
			predicted_value, actual_value, confidence_lower, confidence_upper,
			absolute_error, percentage_error, within_confidence,
			model_name, model_version, model_params
		FROM forecast_accuracy_records
		WHERE predicted_date <= $1 AND actual_value IS NULL
	`
	var rows []models.ForecastAccuracyRecord
	if err := r.db.GetDB().SelectContext(ctx, &rows, query, asOf); err != nil {
		return nil, fmt.Errorf("failed to list forecast accuracy records awaiting actual: %w", err)
	}
	return rows, nil
}

// ListByScope retrieves the most recent limit records with actuals recorded.
func (r *ForecastAccuracyRepository) ListByScope(ctx context.Context, forecastType models.ForecastType, scopeID string, limit int) ([]models.ForecastAccuracyRecord, error) {
	query := `
		SELECT id, forecast_type, scope_id, forecast_date, predicted_date, horizon_days,
			predicted_value, actual_value, confidence_lower, confidence_upper,
			absolute_error, percentage_error, within_confidence,
			model_name, model_version, model_params
		FROM forecast_accuracy_records
		WHERE forecast_type = $1 AND scope_id = $2 AND actual_value IS NOT NULL
		ORDER BY predicted_date DESC
		LIMIT $3
	`
	var rows []models.ForecastAccuracyRecord
	if err := r.db.GetDB().SelectContext(ctx, &rows, query, forecastType, scopeID, limit); err != nil {
		return nil, fmt.Errorf("failed to list forecast accuracy records by scope: %w", err)
	}
	return rows, nil
}
