package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DimaJoyti/analytics-engine/internal/repository"
)

// EventPositionRepository implements repository.EventPositionRepository using
// Postgres, backing the event consumer's durable read position.
type EventPositionRepository struct {
	db *Database
}

// NewEventPositionRepository creates a new Postgres-backed event position
// repository.
func NewEventPositionRepository(db *Database) repository.EventPositionRepository {
	return &EventPositionRepository{db: db}
}

// Get returns the last processed event id for (consumerName, streamName), or
// "" if the pair has never been recorded.
func (r *EventPositionRepository) Get(ctx context.Context, consumerName, streamName string) (string, error) {
	var lastEventID string
	err := r.db.GetDB().GetContext(ctx, &lastEventID, `
		SELECT last_event_id FROM event_stream_positions
		WHERE consumer_name = $1 AND stream_name = $2
	`, consumerName, streamName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get event stream position: %w", err)
	}
	return lastEventID, nil
}

// Set advances the position for (consumerName, streamName) to lastEventID.
func (r *EventPositionRepository) Set(ctx context.Context, consumerName, streamName, lastEventID string) error {
	_, err := r.db.GetDB().ExecContext(ctx, `
		INSERT INTO event_stream_positions (consumer_name, stream_name, last_event_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (consumer_name, stream_name) DO UPDATE SET
			last_event_id = EXCLUDED.last_event_id
	`, consumerName, streamName, lastEventID)
	if err != nil {
		return fmt.Errorf("failed to set event stream position: %w", err)
	}
	return nil
}
