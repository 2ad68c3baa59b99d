// Package agent is the long-running courier-side core: it runs the telemetry
// reporter, the change-feed consumer, the queue refetch loop, and the route
// frame scheduler as one unit with a shared lifecycle.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/curbfleet/dispatch/internal/alert"
	"github.com/curbfleet/dispatch/internal/dispatch"
	"github.com/curbfleet/dispatch/internal/feed"
	"github.com/curbfleet/dispatch/internal/geo"
	"github.com/curbfleet/dispatch/internal/queue"
	"github.com/curbfleet/dispatch/internal/routesync"
	"github.com/curbfleet/dispatch/internal/telemetry"
	"github.com/curbfleet/dispatch/internal/wake"
)

const (
	// DefaultRefetchInterval is the periodic queue reconciliation interval;
	// the change feed usually gets there first.
	DefaultRefetchInterval = 30 * time.Second

	// DefaultFrameInterval drives the marker animation scheduler.
	DefaultFrameInterval = 33 * time.Millisecond

	// syncTimeout bounds one route sync, retries included.
	syncTimeout = 15 * time.Second
)

// syncRequest is one pending route sync. Only the latest request per fix
// matters; a newer one supersedes whatever is still queued.
type syncRequest struct {
	job *dispatch.Job
	pos geo.Point
}

// Config holds agent configuration.
type Config struct {
	CourierID       string
	Logger          *slog.Logger
	Queue           *queue.Manager
	Reporter        *telemetry.Reporter
	Sync            *routesync.Synchronizer
	Consumer        *feed.Consumer
	Alerts          *alert.Coordinator
	Wake            *wake.Controller
	RefetchInterval time.Duration
	FrameInterval   time.Duration
}

// Agent ties the courier-side components to one lifecycle.
type Agent struct {
	courierID string
	logger    *slog.Logger
	queue     *queue.Manager
	reporter  *telemetry.Reporter
	sync      *routesync.Synchronizer
	consumer  *feed.Consumer
	alerts    *alert.Coordinator
	wake      *wake.Controller
	refetch   time.Duration
	frame     time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	syncCh   chan syncRequest
}

// New creates a new agent instance.
func New(cfg *Config) *Agent {
	refetch := cfg.RefetchInterval
	if refetch <= 0 {
		refetch = DefaultRefetchInterval
	}
	frame := cfg.FrameInterval
	if frame <= 0 {
		frame = DefaultFrameInterval
	}

	return &Agent{
		courierID: cfg.CourierID,
		logger:    cfg.Logger,
		queue:     cfg.Queue,
		reporter:  cfg.Reporter,
		sync:      cfg.Sync,
		consumer:  cfg.Consumer,
		alerts:    cfg.Alerts,
		wake:      cfg.Wake,
		refetch:   refetch,
		frame:     frame,
		stopChan:  make(chan struct{}),
		syncCh:    make(chan syncRequest, 1),
	}
}

// Start runs the agent until the context is canceled.
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting courier agent",
		slog.String("courier_id", a.courierID),
		slog.Duration("refetch_interval", a.refetch),
	)

	// First load fills the snapshot; it never alerts.
	if _, err := a.queue.Refresh(ctx, false); err != nil {
		a.logger.Error("Initial queue load failed",
			slog.Any("error", err),
		)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.reporter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			if errors.Is(err, telemetry.ErrPermissionDenied) {
				return // surfaced already, tracking stays off
			}
			a.logger.Error("Telemetry reporter stopped",
				slog.Any("error", err),
			)
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.consumer.Run(ctx, a.courierID); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("Change feed consumer stopped",
				slog.Any("error", err),
			)
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sync.Run(ctx, a.frame)
	}()

	a.wg.Add(1)
	go a.syncLoop(ctx)

	a.wg.Add(1)
	go a.refetchLoop(ctx)

	a.logger.Info("Courier agent started")

	<-ctx.Done()
	a.logger.Info("Agent context canceled, stopping...")
	return nil
}

// refetchLoop reconciles the queue on a timer as a safety net behind the
// change feed.
func (a *Agent) refetchLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.refetch)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.queue.Refresh(ctx, false); err != nil {
				a.logger.Error("Periodic queue refetch failed",
					slog.Any("error", err),
				)
			}
		}
	}
}

// OnSample is the reporter's unthrottled position hook: the marker animates
// toward every fix, and the route resyncs against the head job. The hook
// itself only touches in-memory state; the network-bound sync runs on its
// own worker so it never delays the next fix.
func (a *Agent) OnSample(sample telemetry.Sample) {
	a.sync.UpdatePosition(sample.Position)

	job, ok := a.queue.Head()
	if !ok {
		return
	}
	if job.Status.Terminal() {
		return
	}

	a.reporter.SetJob(activeJobID(job))
	a.enqueueSync(syncRequest{job: job, pos: sample.Position})
}

// enqueueSync hands a request to the sync worker, displacing any request it
// has not picked up yet.
func (a *Agent) enqueueSync(req syncRequest) {
	for {
		select {
		case a.syncCh <- req:
			return
		case <-a.syncCh:
		}
	}
}

// syncLoop serializes route syncs off the sample path. The synchronizer's
// dedupe key keeps repeat requests for the same leg from refetching.
func (a *Agent) syncLoop(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ctx.Done():
			return
		case req := <-a.syncCh:
			syncCtx, cancel := context.WithTimeout(ctx, syncTimeout)
			err := a.sync.Sync(syncCtx, req.job, req.pos)
			cancel()
			if err != nil {
				a.logger.Debug("Route sync skipped",
					slog.String("job_id", req.job.ID),
					slog.Any("error", err),
				)
			}
		}
	}
}

// activeJobID only tags telemetry with jobs the courier actually carries.
func activeJobID(job *dispatch.Job) *string {
	if job.CourierID == nil {
		return nil
	}
	id := job.ID
	return &id
}

// Position returns the freshest reported fix, for delivery confirmation.
func (a *Agent) Position() (geo.Point, bool) {
	sample, ok := a.reporter.Current()
	if !ok {
		return geo.Point{}, false
	}
	return sample.Position, true
}

// Stop gracefully stops the agent.
func (a *Agent) Stop() {
	a.logger.Info("Stopping courier agent...")
	close(a.stopChan)
	a.wg.Wait()
	a.sync.Reset()
	a.wake.Close()
	a.alerts.Close()
	a.logger.Info("Courier agent stopped")
}
