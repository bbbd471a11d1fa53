package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/DimaJoyti/analytics-engine/internal/clock"
)

func TestWaitBackoff_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := waitBackoff(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitBackoff_FirstAttemptWaitsAtLeastBase(t *testing.T) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := waitBackoff(ctx, 1)
	elapsed := time.Since(start)

	if err == nil {
		assert.GreaterOrEqual(t, elapsed, retryBase)
	} else {
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
}

func TestRunWithRetry_SucceedsWithoutRetryingOnFirstSuccess(t *testing.T) {
	s := &Scheduler{clock: clock.NewReal(), logger: zap.NewNop()}

	attempts := 0
	task := Task{
		Name: "immediate-success",
		Fn: func(ctx context.Context) (string, error) {
			attempts++
			return "done", nil
		},
	}

	details, err := s.runWithRetry(context.Background(), task)
	assert.NoError(t, err)
	assert.Equal(t, "done", details)
	assert.Equal(t, 1, attempts)
}

func TestRunWithRetry_StopsOnContextCancellation(t *testing.T) {
	s := &Scheduler{clock: clock.NewReal(), logger: zap.NewNop()}
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	task := Task{
		Name: "always-fails",
		Fn: func(ctx context.Context) (string, error) {
			attempts++
			if attempts == 1 {
				cancel()
			}
			return "", errors.New("transient")
		},
	}

	_, err := s.runWithRetry(ctx, task)
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}
