// Package events drains the append-only order/payment streams and applies
// them to aggregate sales state with at-least-once, idempotent handling.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/DimaJoyti/analytics-engine/internal/clock"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
)

// Event is the decoded envelope every stream message carries.
type Event struct {
	EventType string          `json:"event_type"`
	EventID   string          `json:"event_id"`
	Payload   json.RawMessage `json:"payload"`
}

// Handler applies one decoded event to aggregate state. Handlers must be
// idempotent: the position advances only after a successful return, but a
// crash between the handler return and the position write can replay the
// same event.
type Handler func(ctx context.Context, evt Event) error

// Consumer drains one named stream for one consumer name, tracking its
// position in Postgres rather than relying on Kafka's own offset commit.
type Consumer struct {
	consumerName string
	positions    repository.EventPositionRepository
	handlers     map[string]Handler
	logger       *zap.Logger
	clk          clock.Clock

	group  sarama.ConsumerGroup
	topics []string
}

// NewConsumer constructs a Consumer. brokers/groupID configure the
// underlying sarama consumer group; consumerName is the logical name stored
// alongside the stream position (distinct from the Kafka group id so
// multiple logical consumers can share a Kafka consumer group if needed).
func NewConsumer(brokers []string, groupID, consumerName string, positions repository.EventPositionRepository, clk clock.Clock, logger *zap.Logger) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	// Position tracking is owned by the Postgres event_stream_positions
	// table, not Kafka's own commit log, so autocommit must stay off and
	// offsets are marked manually in lockstep with the Postgres write.
	cfg.Consumer.Offsets.AutoCommit.Enable = false

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	return &Consumer{
		consumerName: consumerName,
		positions:    positions,
		handlers:     make(map[string]Handler),
		logger:       logger,
		clk:          clk,
		group:        group,
	}, nil
}

// Register adds a handler for eventType.
func (c *Consumer) Register(eventType string, h Handler) {
	c.handlers[eventType] = h
}

// Run joins the consumer group for stream (the Kafka topic name) and
// processes messages until ctx is cancelled, rejoining after each group
// session ends. It returns when ctx is cancelled or Consume fails.
func (c *Consumer) Run(ctx context.Context, stream string) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("kafka consumer group error", zap.String("stream", stream), zap.Error(err))
		}
	}()

	handler := &groupHandler{consumer: c, stream: stream}
	for {
		if err := c.group.Consume(ctx, []string{stream}, handler); err != nil {
			return fmt.Errorf("consumer group session for stream %s ended: %w", stream, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close releases the underlying consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

// dispatch decodes and applies one event, then — only on success — persists
// the new position and marks the Kafka offset so the two never diverge.
func (c *Consumer) dispatch(ctx context.Context, session sarama.ConsumerGroupSession, stream string, msg *sarama.ConsumerMessage) {
	var evt Event
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		c.logger.Error("failed to decode event, skipping", zap.String("stream", stream), zap.Error(err))
		return
	}

	handler, ok := c.handlers[evt.EventType]
	if !ok {
		c.logger.Debug("no handler registered for event type, skipping", zap.String("event_type", evt.EventType))
		session.MarkMessage(msg, "")
		return
	}

	if err := handler(ctx, evt); err != nil {
		// Intentionally does not mark the message: position stays behind
		// this event so a restart replays it.
		c.logger.Error("handler failed, position will not advance past this event",
			zap.String("stream", stream), zap.String("event_id", evt.EventID), zap.Error(err))
		return
	}

	if err := c.positions.Set(ctx, c.consumerName, stream, evt.EventID); err != nil {
		c.logger.Error("failed to persist stream position", zap.Error(err))
		return
	}
	session.MarkMessage(msg, "")
}

// groupHandler adapts Consumer to sarama.ConsumerGroupHandler, dispatching
// inline inside ConsumeClaim instead of forwarding to an external message
// channel, since this consumer applies events directly rather than
// buffering them for a separate worker pool.
type groupHandler struct {
	consumer *Consumer
	stream   string
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		select {
		case <-session.Context().Done():
			return nil
		default:
		}
		h.consumer.dispatch(session.Context(), session, h.stream, msg)
	}
	return nil
}
