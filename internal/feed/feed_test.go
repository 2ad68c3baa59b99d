package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/curbfleet/dispatch/internal/dispatch"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (f *fakeBroker) PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error {
	f.keys = append(f.keys, routingKey)
	f.bodies = append(f.bodies, body)
	return f.err
}

type fakeAcker struct {
	acks    int
	nacks   int
	requeue bool
}

func (f *fakeAcker) Ack(tag uint64, multiple bool) error { f.acks++; return nil }
func (f *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	f.nacks++
	f.requeue = requeue
	return nil
}
func (f *fakeAcker) Reject(tag uint64, requeue bool) error { return nil }

type fakeReconciler struct {
	calls      int
	qualifying []bool
	err        error
}

func (f *fakeReconciler) Refresh(ctx context.Context, pushQualifying bool) ([]dispatch.Job, error) {
	f.calls++
	f.qualifying = append(f.qualifying, pushQualifying)
	return nil, f.err
}

type fakeSink struct {
	authors []string
}

func (f *fakeSink) NotifyMessage(authorID string) {
	f.authors = append(f.authors, authorID)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func delivery(t *testing.T, event Event, acker amqp.Acknowledger) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: acker, Body: body}
}

func TestQualifying(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{"job insert", Event{Table: TableJobs, Op: OpInsert}, true},
		{"job update into recruitable pool", Event{Table: TableJobs, Op: OpUpdate, Status: dispatch.StatusAwaitingCourier}, true},
		{"job update mid-delivery", Event{Table: TableJobs, Op: OpUpdate, Status: dispatch.StatusEnRoute}, false},
		{"message insert", Event{Table: TableMessages, Op: OpInsert}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Qualifying())
		})
	}
}

func TestBindingKeysAreCourierScoped(t *testing.T) {
	keys := BindingKeys("c1")
	assert.Equal(t, []string{"jobs.c1", "messages.c1"}, keys)
}

func TestPublisherJobChanged(t *testing.T) {
	broker := &fakeBroker{}
	p := NewPublisher(broker, discardLogger())

	err := p.JobChanged(context.Background(), "c1", "j1", OpUpdate, dispatch.StatusAccepted)
	require.NoError(t, err)

	require.Len(t, broker.keys, 1)
	assert.Equal(t, "jobs.c1", broker.keys[0])

	var event Event
	require.NoError(t, json.Unmarshal(broker.bodies[0], &event))
	assert.Equal(t, TableJobs, event.Table)
	assert.Equal(t, "j1", event.JobID)
	assert.Equal(t, dispatch.StatusAccepted, event.Status)
}

func TestPublisherMessageReceived(t *testing.T) {
	broker := &fakeBroker{}
	p := NewPublisher(broker, discardLogger())

	require.NoError(t, p.MessageReceived(context.Background(), "c1", "merchant-7"))
	require.Len(t, broker.keys, 1)
	assert.Equal(t, "messages.c1", broker.keys[0])
}

func TestConsumerJobEventTriggersRefetch(t *testing.T) {
	rec := &fakeReconciler{}
	acker := &fakeAcker{}
	c := NewConsumer(nil, rec, &fakeSink{}, discardLogger())

	c.handle(context.Background(), delivery(t, Event{
		Table: TableJobs, Op: OpInsert, CourierID: "c1", JobID: "j1",
	}, acker))

	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, []bool{true}, rec.qualifying)
	assert.Equal(t, 1, acker.acks)
}

func TestConsumerNonQualifyingUpdateStillRefetches(t *testing.T) {
	rec := &fakeReconciler{}
	acker := &fakeAcker{}
	c := NewConsumer(nil, rec, &fakeSink{}, discardLogger())

	c.handle(context.Background(), delivery(t, Event{
		Table: TableJobs, Op: OpUpdate, Status: dispatch.StatusEnRoute,
	}, acker))

	assert.Equal(t, []bool{false}, rec.qualifying,
		"every job event reconciles, only qualifying ones may alert")
}

func TestConsumerMessageEventNotifiesSink(t *testing.T) {
	sink := &fakeSink{}
	acker := &fakeAcker{}
	c := NewConsumer(nil, &fakeReconciler{}, sink, discardLogger())

	c.handle(context.Background(), delivery(t, Event{
		Table: TableMessages, Op: OpInsert, AuthorID: "merchant-7",
	}, acker))

	assert.Equal(t, []string{"merchant-7"}, sink.authors)
	assert.Equal(t, 1, acker.acks)
}

func TestConsumerNacksMalformedEvent(t *testing.T) {
	acker := &fakeAcker{}
	rec := &fakeReconciler{}
	c := NewConsumer(nil, rec, &fakeSink{}, discardLogger())

	c.handle(context.Background(), amqp.Delivery{Acknowledger: acker, Body: []byte("{not json")})

	assert.Equal(t, 1, acker.nacks)
	assert.False(t, acker.requeue, "malformed events must not requeue")
	assert.Zero(t, rec.calls)
}

func TestConsumerRequeuesOnRefetchFailure(t *testing.T) {
	acker := &fakeAcker{}
	rec := &fakeReconciler{err: errors.New("db down")}
	c := NewConsumer(nil, rec, &fakeSink{}, discardLogger())

	c.handle(context.Background(), delivery(t, Event{Table: TableJobs, Op: OpInsert}, acker))

	assert.Equal(t, 1, acker.nacks)
	assert.True(t, acker.requeue, "a failed refetch retries on redelivery")
	assert.Zero(t, acker.acks)
}
