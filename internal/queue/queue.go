package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/curbfleet/dispatch/internal/dispatch"
	"github.com/curbfleet/dispatch/internal/geo"
	"github.com/curbfleet/dispatch/internal/session"
)

var (
	// ErrIndexOutOfRange is returned when a reorder targets a position
	// outside the queue. No write is attempted.
	ErrIndexOutOfRange = errors.New("reorder index out of range")

	// ErrNotHeadOfQueue is returned when the courier acts on any entry but
	// the first.
	ErrNotHeadOfQueue = errors.New("only the first job in the queue can be acted on")
)

// Direction is the reorder direction of MoveJob.
type Direction int

const (
	MoveUp Direction = iota
	MoveDown
)

// JobStore is the persistence contract the manager needs. *storage.Store
// satisfies it.
type JobStore interface {
	ActiveQueue(ctx context.Context, courierID string) ([]dispatch.Job, error)
	GetJob(ctx context.Context, jobID string) (*dispatch.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status dispatch.Status, recipientName string) error
	AssignCourier(ctx context.Context, jobID, courierID string) error
	BatchPickup(ctx context.Context, courierID, merchantID string) ([]string, error)
	UpdateSequence(ctx context.Context, jobID string, sequence int) error
	DailyStats(ctx context.Context, courierID string, since time.Time) (dispatch.DailyStats, error)
}

// Alerter receives the recruitment cue when genuinely new work appears.
type Alerter interface {
	NotifyNewJobs(count int)
}

// Waker toggles the display lock around the en-route phase.
type Waker interface {
	SetEnabled(enabled bool)
}

// Config wires a Manager.
type Config struct {
	CourierID string
	Store     JobStore
	Session   *session.Context
	Alerter   Alerter
	Waker     Waker
	Logger    *slog.Logger
}

// Manager maintains a courier's ordered set of active jobs: the jobs already
// assigned to them plus the recruitable pool. It diffs each fetch against the
// previous snapshot so reconnects and refetches never re-alert for jobs the
// courier already knows about.
type Manager struct {
	courierID string
	store     JobStore
	session   *session.Context
	alerter   Alerter
	waker     Waker
	logger    *slog.Logger

	mu    sync.Mutex
	jobs  []dispatch.Job
	known map[string]struct{}
}

func NewManager(cfg Config) *Manager {
	return &Manager{
		courierID: cfg.CourierID,
		store:     cfg.Store,
		session:   cfg.Session,
		alerter:   cfg.Alerter,
		waker:     cfg.Waker,
		logger:    cfg.Logger,
		known:     make(map[string]struct{}),
	}
}

// Refresh is the single reconciliation path: every trigger (timer, manual
// pull, push event) fetches the authoritative queue and diffs it against the
// previous snapshot. pushQualifying marks a live INSERT or qualifying UPDATE
// event as the trigger, which alerts even when the id set already converged.
func (m *Manager) Refresh(ctx context.Context, pushQualifying bool) ([]dispatch.Job, error) {
	jobs, err := m.store.ActiveQueue(ctx, m.courierID)
	if err != nil {
		return nil, fmt.Errorf("fetch queue: %w", err)
	}

	m.mu.Lock()
	fresh := 0
	next := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		next[j.ID] = struct{}{}
		if _, ok := m.known[j.ID]; !ok {
			fresh++
		}
	}
	m.jobs = jobs
	m.known = next
	m.mu.Unlock()

	loaded := m.session.Loaded()
	m.session.MarkLoaded()

	shouldAlert := loaded &&
		!m.session.Guard.Active() &&
		(fresh > 0 || pushQualifying) &&
		len(jobs) > 0

	if shouldAlert {
		m.logger.Info("New dispatch work detected",
			slog.String("courier_id", m.courierID),
			slog.Int("new_jobs", fresh),
			slog.Int("queue_size", len(jobs)),
		)
		m.alerter.NotifyNewJobs(len(jobs))
	}

	return jobs, nil
}

// Jobs returns the current snapshot in queue order.
func (m *Manager) Jobs() []dispatch.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]dispatch.Job, len(m.jobs))
	copy(out, m.jobs)
	return out
}

// Head returns the first queue entry, the only one the courier may act on.
func (m *Manager) Head() (*dispatch.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.jobs) == 0 {
		return nil, false
	}
	j := m.jobs[0]
	return &j, true
}

// MoveJob swaps the entry at index with its neighbor in the given direction.
// The in-memory order updates immediately; every job then gets its fresh
// 1-based sequence persisted row by row. Any write failure discards the
// optimistic order and refetches the authoritative queue.
func (m *Manager) MoveJob(ctx context.Context, index int, dir Direction) error {
	m.mu.Lock()

	target := index - 1
	if dir == MoveDown {
		target = index + 1
	}
	if index < 0 || index >= len(m.jobs) || target < 0 || target >= len(m.jobs) {
		m.mu.Unlock()
		return ErrIndexOutOfRange
	}

	m.jobs[index], m.jobs[target] = m.jobs[target], m.jobs[index]
	reordered := make([]dispatch.Job, len(m.jobs))
	copy(reordered, m.jobs)
	m.mu.Unlock()

	for pos, job := range reordered {
		if err := m.store.UpdateSequence(ctx, job.ID, pos+1); err != nil {
			m.logger.Error("Sequence write failed, discarding optimistic order",
				slog.String("job_id", job.ID),
				slog.Any("error", err),
			)
			if _, refetchErr := m.Refresh(ctx, false); refetchErr != nil {
				m.logger.Error("Queue refetch after failed reorder failed",
					slog.Any("error", refetchErr),
				)
			}
			return fmt.Errorf("persist sequence for job %s: %w", job.ID, err)
		}
	}

	return nil
}

// Accept binds the head-of-queue job to this courier. Accepting any other
// entry is rejected before touching the store.
func (m *Manager) Accept(ctx context.Context, jobID string) error {
	m.mu.Lock()
	if len(m.jobs) == 0 || m.jobs[0].ID != jobID {
		m.mu.Unlock()
		return ErrNotHeadOfQueue
	}
	from := m.jobs[0].Status
	m.mu.Unlock()

	if err := dispatch.CanTransition(from, dispatch.StatusAccepted, dispatch.ActorCourier); err != nil {
		return err
	}

	m.session.Guard.Set()

	if err := m.store.AssignCourier(ctx, jobID, m.courierID); err != nil {
		return fmt.Errorf("assign courier: %w", err)
	}
	if err := m.store.UpdateJobStatus(ctx, jobID, dispatch.StatusAccepted, ""); err != nil {
		return fmt.Errorf("accept job %s: %w", jobID, err)
	}

	_, err := m.Refresh(ctx, false)
	return err
}

// ConfirmPickup marks the job picked up, batching across all of this
// courier's ready jobs from the same merchant. Returns the affected ids.
func (m *Manager) ConfirmPickup(ctx context.Context, jobID string) ([]string, error) {
	job, err := m.findJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := dispatch.CanTransition(job.Status, dispatch.StatusPickedUp, dispatch.ActorCourier); err != nil {
		return nil, err
	}

	m.session.Guard.Set()

	ids, err := m.store.BatchPickup(ctx, m.courierID, job.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("confirm pickup for job %s: %w", jobID, err)
	}

	if _, err := m.Refresh(ctx, false); err != nil {
		return ids, err
	}
	return ids, nil
}

// StartRoute moves the job to EN_ROUTE and keeps the display awake for the
// ride.
func (m *Manager) StartRoute(ctx context.Context, jobID string) error {
	job, err := m.findJob(ctx, jobID)
	if err != nil {
		return err
	}

	if err := dispatch.CanTransition(job.Status, dispatch.StatusEnRoute, dispatch.ActorCourier); err != nil {
		return err
	}

	m.session.Guard.Set()

	if err := m.store.UpdateJobStatus(ctx, jobID, dispatch.StatusEnRoute, ""); err != nil {
		return fmt.Errorf("start route for job %s: %w", jobID, err)
	}

	if m.waker != nil {
		m.waker.SetEnabled(true)
	}

	_, err = m.Refresh(ctx, false)
	return err
}

// ConfirmDelivery completes the job. A recipient name is required; when the
// dropoff has coordinates the courier must be within delivery proximity.
func (m *Manager) ConfirmDelivery(ctx context.Context, jobID, recipientName string, courierPos *geo.Point) error {
	job, err := m.findJob(ctx, jobID)
	if err != nil {
		return err
	}

	if err := dispatch.CanTransition(job.Status, dispatch.StatusDelivered, dispatch.ActorCourier); err != nil {
		return err
	}
	if err := dispatch.ValidateDelivery(job, recipientName, courierPos); err != nil {
		return err
	}

	m.session.Guard.Set()

	if err := m.store.UpdateJobStatus(ctx, jobID, dispatch.StatusDelivered, recipientName); err != nil {
		return fmt.Errorf("confirm delivery for job %s: %w", jobID, err)
	}

	if m.waker != nil {
		m.waker.SetEnabled(false)
	}

	_, err = m.Refresh(ctx, false)
	return err
}

// DailyStats returns today's earnings and delivery count.
func (m *Manager) DailyStats(ctx context.Context) (dispatch.DailyStats, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return m.store.DailyStats(ctx, m.courierID, midnight)
}

// findJob resolves the job from the snapshot, falling back to the store.
func (m *Manager) findJob(ctx context.Context, jobID string) (*dispatch.Job, error) {
	m.mu.Lock()
	for i := range m.jobs {
		if m.jobs[i].ID == jobID {
			j := m.jobs[i]
			m.mu.Unlock()
			return &j, nil
		}
	}
	m.mu.Unlock()

	return m.store.GetJob(ctx, jobID)
}
