// Package scheduler is a small hand-rolled cron-equivalent: a fixed set of
// named tasks, each ticking on its own cadence in its own goroutine, with
// every execution recorded as a TaskRun and any failed attempt retried with
// jittered exponential backoff (errors are not classified as transient or
// permanent).
package scheduler

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DimaJoyti/analytics-engine/internal/clock"
	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
)

const (
	retryBase       = 1 * time.Second
	retryFactor     = 2.0
	maxRetries      = 5
	retryCap        = 10 * time.Minute
	longRunWarning  = 5 * time.Minute
)

// TaskFunc is one task's body. A non-nil error triggers the retry policy;
// details is an opaque string (typically JSON) recorded on the TaskRun.
type TaskFunc func(ctx context.Context) (details string, err error)

// Task is one registered scheduled job.
type Task struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Fn       TaskFunc
}

// Scheduler runs registered tasks on their configured cadence.
type Scheduler struct {
	tasks  []Task
	runs   repository.TaskRunRepository
	clock  clock.Clock
	logger *zap.Logger
}

// New constructs a Scheduler with no tasks registered yet.
func New(runs repository.TaskRunRepository, clk clock.Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{runs: runs, clock: clk, logger: logger}
}

// Register adds t to the schedule. Must be called before Run.
func (s *Scheduler) Register(t Task) {
	s.tasks = append(s.tasks, t)
}

// Run starts one ticker goroutine per registered task and blocks until ctx
// is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for _, t := range s.tasks {
		go s.runLoop(ctx, t)
	}
	<-ctx.Done()
}

func (s *Scheduler) runLoop(ctx context.Context, t Task) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx, t)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, t Task) {
	runCtx := ctx
	var cancel context.CancelFunc
	if t.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	run := &models.TaskRun{
		RunID:     uuid.NewString(),
		TaskName:  t.Name,
		Status:    models.TaskRunning,
		StartedAt: s.clock.Now(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		s.logger.Error("failed to record task start", zap.String("task", t.Name), zap.Error(err))
		return
	}

	details, err := s.runWithRetry(runCtx, t)

	status := models.TaskSuccess
	if err != nil {
		status = models.TaskError
	}
	run.MarkFinished(s.clock.Now(), status, details, err)
	if finErr := s.runs.Finish(ctx, run); finErr != nil {
		s.logger.Error("failed to record task finish", zap.String("task", t.Name), zap.Error(finErr))
	}

	if duration := run.FinishedAt.Sub(run.StartedAt); duration > longRunWarning {
		s.logger.Warn("task exceeded the long-run warning threshold",
			zap.String("task", t.Name), zap.Duration("duration", duration))
	}
}

// runWithRetry runs t.Fn, retrying any non-nil error with jittered
// exponential backoff up to maxRetries times.
func (s *Scheduler) runWithRetry(ctx context.Context, t Task) (string, error) {
	var lastDetails string
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitBackoff(ctx, attempt); err != nil {
				return lastDetails, err
			}
			s.logger.Warn("retrying scheduled task", zap.String("task", t.Name), zap.Int("attempt", attempt))
		}

		details, err := t.Fn(ctx)
		if err == nil {
			return details, nil
		}
		lastDetails, lastErr = details, err
	}
	return lastDetails, lastErr
}

// waitBackoff sleeps base*factor^(attempt-1), capped, plus jitter.
func waitBackoff(ctx context.Context, attempt int) error {
	backoff := time.Duration(float64(retryBase) * math.Pow(retryFactor, float64(attempt-1)))
	if backoff > retryCap {
		backoff = retryCap
	}
	jitter := time.Duration(rand.Int63n(int64(backoff)/2 + 1))

	select {
	case <-time.After(backoff + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
