package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/curbfleet/dispatch/internal/geo"
	"github.com/curbfleet/dispatch/internal/storage"
)

const (
	// DefaultPersistInterval is the time threshold of the persistence gate.
	DefaultPersistInterval = 30 * time.Second

	// DefaultPersistDistanceM is the displacement threshold of the
	// persistence gate, in meters.
	DefaultPersistDistanceM = 20.0
)

// ErrPermissionDenied is returned by a PositionSource when the platform
// refuses location access. Tracking stays off; the condition is not fatal for
// the rest of the agent.
var ErrPermissionDenied = errors.New("location permission denied")

// Sample is one raw position fix. Samples are ephemeral; only gate-opening
// samples reach the history store.
type Sample struct {
	Position geo.Point `json:"position"`
	Accuracy float64   `json:"accuracy"`
	Observed time.Time `json:"observed"`
}

// Snapshot is the optional device state collected when a sample is persisted.
type Snapshot struct {
	BatteryLevel int
	Charging     bool
	Connectivity string
}

// PositionSource delivers raw position fixes. Watch returns
// ErrPermissionDenied when the platform refuses access; the returned channel
// is closed when the source ends or the context is canceled.
type PositionSource interface {
	Watch(ctx context.Context) (<-chan Sample, error)
}

// Probe collects a device snapshot. Failures are tolerated; a persist never
// waits on or fails because of the probe.
type Probe interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Report is one authenticated write to the tracking ingestion endpoint.
type Report struct {
	CourierID    string
	Lat          float64
	Lng          float64
	JobID        *string
	BatteryLevel *int
	Charging     *bool
}

// IngestClient is the primary persistence path. A nil client on the Reporter
// means no auth context is available and the direct path is used instead.
type IngestClient interface {
	Report(ctx context.Context, r Report) error
}

// ProfileStore is the direct data-store path: the unconditional profile write
// and the fallback history append. *storage.Store satisfies it.
type ProfileStore interface {
	UpdateCourierPosition(ctx context.Context, courierID string, lat, lng float64, tel storage.Telemetry) error
	AppendHistory(ctx context.Context, courierID string, jobID *string, lat, lng float64) error
}

// Config wires a Reporter.
type Config struct {
	CourierID        string
	Source           PositionSource
	Probe            Probe
	Ingest           IngestClient
	Store            ProfileStore
	Logger           *slog.Logger
	PersistInterval  time.Duration
	PersistDistanceM float64

	// OnSample receives every fix, before and regardless of the gate.
	OnSample func(Sample)
}

// Reporter consumes a position watch and persists samples behind a throttle
// gate: a sample is written when no prior sample was persisted, or when the
// elapsed time or traveled distance since the last persisted sample exceeds
// the configured thresholds. Display state is fed on every fix.
type Reporter struct {
	courierID string
	source    PositionSource
	probe     Probe
	ingest    IngestClient
	store     ProfileStore
	logger    *slog.Logger
	interval  time.Duration
	distanceM float64

	now func() time.Time

	writes sync.WaitGroup

	mu            sync.Mutex
	onSample      func(Sample)
	jobID         *string
	lastPersisted *Sample
	lastSample    *Sample
}

func NewReporter(cfg Config) *Reporter {
	interval := cfg.PersistInterval
	if interval <= 0 {
		interval = DefaultPersistInterval
	}
	distance := cfg.PersistDistanceM
	if distance <= 0 {
		distance = DefaultPersistDistanceM
	}

	return &Reporter{
		courierID: cfg.CourierID,
		source:    cfg.Source,
		probe:     cfg.Probe,
		ingest:    cfg.Ingest,
		store:     cfg.Store,
		logger:    cfg.Logger,
		interval:  interval,
		distanceM: distance,
		onSample:  cfg.OnSample,
		now:       time.Now,
	}
}

// SetOnSample installs the unthrottled per-fix hook. Components built after
// the reporter register themselves here.
func (r *Reporter) SetOnSample(fn func(Sample)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSample = fn
}

// SetJob attaches or detaches the active job id carried on persisted samples.
func (r *Reporter) SetJob(jobID *string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobID = jobID
}

// Current returns the freshest fix seen, persisted or not.
func (r *Reporter) Current() (Sample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastSample == nil {
		return Sample{}, false
	}
	return *r.lastSample, true
}

// Run consumes the watch until the context is canceled or the source ends.
// It waits for in-flight writes before returning; the throttle gate is reset
// on return, so a later Run starts with an immediate persist.
func (r *Reporter) Run(ctx context.Context) error {
	samples, err := r.source.Watch(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			r.logger.Warn("Location permission denied, tracking stays off",
				slog.String("courier_id", r.courierID),
			)
			return err
		}
		return fmt.Errorf("start position watch: %w", err)
	}

	defer r.resetGate()
	defer r.writes.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, ok := <-samples:
			if !ok {
				return nil
			}
			r.handle(ctx, sample)
		}
	}
}

func (r *Reporter) handle(ctx context.Context, sample Sample) {
	s := sample
	if s.Observed.IsZero() {
		s.Observed = r.now()
	}

	r.mu.Lock()
	r.lastSample = &s
	persist := r.gateOpenLocked(s)
	if persist {
		// Advance the gate before the write, not after: following samples
		// gate against this one even while the write is still in flight.
		r.lastPersisted = &s
	}
	jobID := r.jobID
	onSample := r.onSample
	r.mu.Unlock()

	// Display state always gets the freshest fix.
	if onSample != nil {
		onSample(s)
	}

	if !persist {
		return
	}

	// The write runs off the sample loop so a slow endpoint or store never
	// holds up the next fix.
	r.writes.Add(1)
	go func() {
		defer r.writes.Done()
		r.persist(ctx, s, jobID)
	}()
}

// gateOpenLocked evaluates the throttle gate against the last persisted
// sample. Caller holds r.mu; the sample carries a non-zero Observed.
func (r *Reporter) gateOpenLocked(sample Sample) bool {
	if r.lastPersisted == nil {
		return true
	}
	if sample.Observed.Sub(r.lastPersisted.Observed) > r.interval {
		return true
	}
	return geo.Haversine(r.lastPersisted.Position, sample.Position) > r.distanceM
}

func (r *Reporter) persist(ctx context.Context, sample Sample, jobID *string) {
	var tel storage.Telemetry
	if r.probe != nil {
		snap, err := r.probe.Snapshot(ctx)
		if err != nil {
			// Telemetry is best-effort; the write proceeds without it.
			r.logger.Warn("Device snapshot failed",
				slog.String("courier_id", r.courierID),
				slog.Any("error", err),
			)
		} else {
			tel = storage.Telemetry{
				BatteryLevel: &snap.BatteryLevel,
				Charging:     &snap.Charging,
				Connectivity: &snap.Connectivity,
			}
		}
	}

	if err := r.store.UpdateCourierPosition(ctx, r.courierID, sample.Position.Lat, sample.Position.Lng, tel); err != nil {
		r.logger.Error("Profile position write failed",
			slog.String("courier_id", r.courierID),
			slog.Any("error", err),
		)
	}

	if r.ingest != nil {
		report := Report{
			CourierID:    r.courierID,
			Lat:          sample.Position.Lat,
			Lng:          sample.Position.Lng,
			JobID:        jobID,
			BatteryLevel: tel.BatteryLevel,
			Charging:     tel.Charging,
		}
		err := r.ingest.Report(ctx, report)
		if err == nil {
			return
		}
		r.logger.Warn("Ingest endpoint write failed, falling back to direct write",
			slog.String("courier_id", r.courierID),
			slog.Any("error", err),
		)
	}

	if err := r.store.AppendHistory(ctx, r.courierID, jobID, sample.Position.Lat, sample.Position.Lng); err != nil {
		r.logger.Error("History fallback write failed",
			slog.String("courier_id", r.courierID),
			slog.Any("error", err),
		)
	}
}

func (r *Reporter) resetGate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastPersisted = nil
}
