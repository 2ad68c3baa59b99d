package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/curbfleet/dispatch/internal/dispatch"
	"github.com/curbfleet/dispatch/internal/feed"
	"github.com/curbfleet/dispatch/internal/storage"
)

// Store is the persistence surface the handlers need. *storage.Store
// satisfies it.
type Store interface {
	ActiveQueue(ctx context.Context, courierID string) ([]dispatch.Job, error)
	GetJob(ctx context.Context, jobID string) (*dispatch.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status dispatch.Status, recipientName string) error
	AssignCourier(ctx context.Context, jobID, courierID string) error
	BatchPickup(ctx context.Context, courierID, merchantID string) ([]string, error)
	UpdateSequence(ctx context.Context, jobID string, sequence int) error
	MarkNearDestination(ctx context.Context, jobID string) error
	UpdateCourierPosition(ctx context.Context, courierID string, lat, lng float64, tel storage.Telemetry) error
	SetCourierOnline(ctx context.Context, courierID string, online bool) error
	AppendHistory(ctx context.Context, courierID string, jobID *string, lat, lng float64) error
	ListHistory(ctx context.Context, filter storage.HistoryFilter) ([]dispatch.PositionRecord, error)
	DailyStats(ctx context.Context, courierID string, since time.Time) (dispatch.DailyStats, error)
}

// EventPublisher pushes change events onto the courier feed.
type EventPublisher interface {
	JobChanged(ctx context.Context, courierID, jobID string, op feed.Op, status dispatch.Status) error
}

// Dependencies holds all dependencies needed by handlers.
type Dependencies struct {
	Logger    *slog.Logger
	Store     Store
	Publisher EventPublisher
}

// TrackingHandler serves the position ingestion endpoint.
type TrackingHandler struct {
	logger *slog.Logger
	store  Store
}

func NewTrackingHandler(deps *Dependencies) *TrackingHandler {
	return &TrackingHandler{
		logger: deps.Logger,
		store:  deps.Store,
	}
}

// JobHandler serves the queue, transition, reorder, history and profile
// endpoints.
type JobHandler struct {
	logger    *slog.Logger
	store     Store
	publisher EventPublisher
}

func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		store:     deps.Store,
		publisher: deps.Publisher,
	}
}
