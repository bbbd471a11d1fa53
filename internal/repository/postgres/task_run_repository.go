package postgres

import (
	"context"
	"fmt"

	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
)

// TaskRunRepository implements repository.TaskRunRepository using Postgres.
type TaskRunRepository struct {
	db *Database
}

// NewTaskRunRepository creates a new Postgres-backed task run repository.
func NewTaskRunRepository(db *Database) repository.TaskRunRepository {
	return &TaskRunRepository{db: db}
}

// Create inserts a new running TaskRun.
func (r *TaskRunRepository) Create(ctx context.Context, t *models.TaskRun) error {
	query := `
		INSERT INTO task_runs (run_id, task_name, status, started_at, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return r.db.GetDB().QueryRowxContext(ctx, query, t.RunID, t.TaskName, t.Status, t.StartedAt, t.Details).Scan(&t.ID)
}

// Finish updates a TaskRun with its terminal status, finished_at, duration,
// details, and error.
func (r *TaskRunRepository) Finish(ctx context.Context, t *models.TaskRun) error {
	query := `
		UPDATE task_runs SET
			status = $1, finished_at = $2, duration_ms = $3, details = $4, error = $5
		WHERE run_id = $6
	`
	_, err := r.db.GetDB().ExecContext(ctx, query, t.Status, t.FinishedAt, t.DurationMS, t.Details, t.Error, t.RunID)
	if err != nil {
		return fmt.Errorf("failed to finish task run: %w", err)
	}
	return nil
}

// ListByTask retrieves the most recent runs of taskName, newest first.
func (r *TaskRunRepository) ListByTask(ctx context.Context, taskName string, limit int) ([]models.TaskRun, error) {
	query := `
		SELECT id, run_id, task_name, status, started_at, finished_at, duration_ms, details, error
		FROM task_runs
		WHERE task_name = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	var rows []models.TaskRun
	if err := r.db.GetDB().SelectContext(ctx, &rows, query, taskName, limit); err != nil {
		return nil, fmt.Errorf("failed to list task runs: %w", err)
	}
	return rows, nil
}
