package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/curbfleet/dispatch/internal/dispatch"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliverySource starts a consume stream on the agent's courier-scoped queue.
// shared/rabbitmq.Client satisfies it.
type DeliverySource interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Reconciler refetches the authoritative queue. The qualifying flag marks a
// live insert or recruitment-moving update as the trigger.
type Reconciler interface {
	Refresh(ctx context.Context, pushQualifying bool) ([]dispatch.Job, error)
}

// MessageSink receives inbound-message notifications.
type MessageSink interface {
	NotifyMessage(authorID string)
}

// Consumer drains the courier's change feed and turns every event into a
// queue reconciliation or a message notification.
type Consumer struct {
	source   DeliverySource
	queue    Reconciler
	messages MessageSink
	logger   *slog.Logger
}

func NewConsumer(source DeliverySource, queue Reconciler, messages MessageSink, logger *slog.Logger) *Consumer {
	return &Consumer{
		source:   source,
		queue:    queue,
		messages: messages,
		logger:   logger,
	}
}

// Run consumes until the context is canceled or the channel closes.
func (c *Consumer) Run(ctx context.Context, consumerTag string) error {
	deliveries, err := c.source.Consume(consumerTag)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.Info("Change feed consumer started",
		slog.String("consumer_tag", consumerTag),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Change feed consumer stopped - context canceled")
			return ctx.Err()

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("Change feed delivery channel closed")
				return nil
			}
			c.handle(ctx, delivery)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		c.logger.Error("Failed to parse feed event",
			slog.String("error", err.Error()),
			slog.String("body", string(delivery.Body)),
		)
		// NACK without requeue - malformed events should go to DLQ
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to NACK malformed event",
				slog.String("error", nackErr.Error()),
			)
		}
		return
	}

	switch event.Table {
	case TableJobs:
		// Events are triggers only; the refetch is the source of truth.
		if _, err := c.queue.Refresh(ctx, event.Qualifying()); err != nil {
			c.logger.Error("Queue refetch after feed event failed",
				slog.String("job_id", event.JobID),
				slog.String("error", err.Error()),
			)
			// Requeue so the refetch is retried on redelivery.
			if nackErr := delivery.Nack(false, true); nackErr != nil {
				c.logger.Error("Failed to NACK event after refetch failure",
					slog.String("error", nackErr.Error()),
				)
			}
			return
		}

	case TableMessages:
		c.messages.NotifyMessage(event.AuthorID)

	default:
		c.logger.Warn("Unknown feed event table",
			slog.String("table", string(event.Table)),
		)
	}

	if ackErr := delivery.Ack(false); ackErr != nil {
		c.logger.Error("Failed to ACK feed event",
			slog.String("error", ackErr.Error()),
		)
	}
}
