// Package feed is the realtime change feed between the tracking service and
// courier agents: job INSERT/UPDATE events and inbound-message INSERT events,
// published per courier over a topic exchange.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/curbfleet/dispatch/internal/dispatch"
	"github.com/google/uuid"
)

// Table names a change-feed source table.
type Table string

const (
	TableJobs     Table = "jobs"
	TableMessages Table = "messages"
)

// Op is the row operation carried by an event.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
)

// Event is one change notification. Events are triggers, never state: every
// consumer refetches the authoritative queue instead of applying the payload.
type Event struct {
	EventID   string          `json:"event_id"`
	Table     Table           `json:"table"`
	Op        Op              `json:"op"`
	CourierID string          `json:"courier_id"`
	JobID     string          `json:"job_id,omitempty"`
	Status    dispatch.Status `json:"status,omitempty"`
	AuthorID  string          `json:"author_id,omitempty"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// Qualifying reports whether the event should wake the recruitment alert
// path: a new job row, or an update that moved a job into the recruitable
// pool.
func (e Event) Qualifying() bool {
	if e.Table != TableJobs {
		return false
	}
	if e.Op == OpInsert {
		return true
	}
	return e.Op == OpUpdate && e.Status.Recruitment()
}

// JobRoutingKey scopes a job event to one courier's binding.
func JobRoutingKey(courierID string) string {
	return fmt.Sprintf("jobs.%s", courierID)
}

// MessageRoutingKey scopes a message event to one courier's binding.
func MessageRoutingKey(courierID string) string {
	return fmt.Sprintf("messages.%s", courierID)
}

// BindingKeys returns the patterns a courier agent binds its queue with.
func BindingKeys(courierID string) []string {
	return []string{
		JobRoutingKey(courierID),
		MessageRoutingKey(courierID),
	}
}

// Broker is the publish capability of the message client.
type Broker interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// Publisher emits change events from the tracking service.
type Publisher struct {
	broker Broker
	logger *slog.Logger
}

func NewPublisher(broker Broker, logger *slog.Logger) *Publisher {
	return &Publisher{broker: broker, logger: logger}
}

// JobChanged publishes a job INSERT/UPDATE event to the courier's binding.
func (p *Publisher) JobChanged(ctx context.Context, courierID, jobID string, op Op, status dispatch.Status) error {
	event := Event{
		EventID:   uuid.NewString(),
		Table:     TableJobs,
		Op:        op,
		CourierID: courierID,
		JobID:     jobID,
		Status:    status,
		EmittedAt: time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode job event: %w", err)
	}

	if err := p.broker.PublishWithRetry(ctx, JobRoutingKey(courierID), body, "application/json"); err != nil {
		return fmt.Errorf("publish job event: %w", err)
	}

	p.logger.Debug("Job event published",
		slog.String("courier_id", courierID),
		slog.String("job_id", jobID),
		slog.String("op", string(op)),
	)
	return nil
}

// MessageReceived publishes an inbound-message event to the courier's binding.
func (p *Publisher) MessageReceived(ctx context.Context, courierID, authorID string) error {
	event := Event{
		EventID:   uuid.NewString(),
		Table:     TableMessages,
		Op:        OpInsert,
		CourierID: courierID,
		AuthorID:  authorID,
		EmittedAt: time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode message event: %w", err)
	}

	if err := p.broker.PublishWithRetry(ctx, MessageRoutingKey(courierID), body, "application/json"); err != nil {
		return fmt.Errorf("publish message event: %w", err)
	}

	return nil
}
