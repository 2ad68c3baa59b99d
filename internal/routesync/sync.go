package routesync

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/curbfleet/dispatch/internal/dispatch"
	"github.com/curbfleet/dispatch/internal/geo"
)

const (
	// headingEpsilon is the minimal per-axis displacement (degrees) below
	// which heading is left unchanged, to avoid jitter at rest.
	headingEpsilon = 0.00001

	// DefaultSettleDelay is how long the viewport is given to settle after a
	// bounds fit before the minimum zoom is enforced.
	DefaultSettleDelay = 500 * time.Millisecond

	minZoomLevel  = 16
	lockZoomLevel = 17
	followTiltDeg = 45
)

// Config wires a Synchronizer.
type Config struct {
	Directions  DirectionsProvider
	Geocoder    Geocoder
	Surface     MapSurface
	Store       PlanStore
	Logger      *slog.Logger
	FollowMode  bool
	SettleDelay time.Duration
}

// Synchronizer keeps the map in sync with the courier's active job: it
// resolves the current target, fetches and caches the route plan, and
// animates the courier marker between confirmed positions.
type Synchronizer struct {
	directions  DirectionsProvider
	geocoder    Geocoder
	surface     MapSurface
	store       PlanStore
	logger      *slog.Logger
	followMode  bool
	settleDelay time.Duration

	mu          sync.Mutex
	lastKey     string
	inflightKey string
	fitKey      string
	plan        *Plan
	distanceM   int
	eta         string
	marker      geo.Point
	heading     float64
	hasMarker   bool
	anim        *animation
}

func New(cfg Config) *Synchronizer {
	settle := cfg.SettleDelay
	if settle <= 0 {
		settle = DefaultSettleDelay
	}

	return &Synchronizer{
		directions:  cfg.Directions,
		geocoder:    cfg.Geocoder,
		surface:     cfg.Surface,
		store:       cfg.Store,
		logger:      cfg.Logger,
		followMode:  cfg.FollowMode,
		settleDelay: settle,
	}
}

// resolveTarget picks the active destination for the job: the merchant while
// the job is still in the pickup phase, the customer afterwards. Geocoding is
// attempted only when direct coordinates are absent.
func (s *Synchronizer) resolveTarget(ctx context.Context, job *dispatch.Job) (geo.Point, error) {
	var (
		target  geo.Point
		ok      bool
		address string
	)

	if job.Status.PickupPhase() {
		target, ok = job.Pickup()
		address = job.PickupAddress
	} else {
		target, ok = job.Dropoff()
		address = job.DropoffAddress
	}

	if ok {
		return target, nil
	}

	if address == "" {
		return geo.Point{}, fmt.Errorf("job %s has no target coordinates or address", job.ID)
	}

	resolved, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		return geo.Point{}, fmt.Errorf("geocode %q: %w", address, err)
	}

	return resolved, nil
}

func dedupeKey(jobID string, status dispatch.Status, target geo.Point) string {
	return fmt.Sprintf("%s|%s|%.6f|%.6f", jobID, status, target.Lat, target.Lng)
}

// Sync reconciles the route display for the job from the current position.
// It fetches at most one route per distinct (job, status, target) key; repeat
// calls with an unchanged key are free.
func (s *Synchronizer) Sync(ctx context.Context, job *dispatch.Job, pos geo.Point) error {
	target, err := s.resolveTarget(ctx, job)
	if err != nil {
		s.logger.Warn("Route target unresolved",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return err
	}

	key := dedupeKey(job.ID, job.Status, target)

	s.mu.Lock()
	if key == s.lastKey || key == s.inflightKey {
		s.mu.Unlock()
		return nil
	}
	s.inflightKey = key
	s.mu.Unlock()

	plan, err := s.directions.Route(ctx, pos, target)
	if err != nil {
		s.mu.Lock()
		if s.inflightKey == key {
			s.inflightKey = ""
		}
		s.mu.Unlock()

		// Keep showing the last good plan.
		s.logger.Warn("Route fetch failed",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return err
	}

	s.mu.Lock()
	if s.inflightKey != key {
		// The target moved on while the fetch was in flight.
		s.mu.Unlock()
		return nil
	}
	s.inflightKey = ""
	s.lastKey = key
	s.plan = &plan
	s.distanceM = plan.DistanceMeters
	s.eta = plan.DurationText
	needsFit := s.fitKey != key
	s.fitKey = key
	s.mu.Unlock()

	// Write-back is a read optimization for other viewers of the job.
	if err := s.store.CacheRoutePlan(ctx, job.ID, plan.EncodedPath, plan.DistanceText, plan.DurationText); err != nil {
		s.logger.Warn("Route cache write failed",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}

	s.surface.DrawPath(plan.EncodedPath)

	if needsFit {
		s.surface.FitBounds(pos, target)
		time.AfterFunc(s.settleDelay, func() {
			// Bounds fitting can zoom out too far; lock the minimum.
			if s.surface.Zoom() < minZoomLevel {
				s.surface.SetZoom(lockZoomLevel)
				s.surface.PanTo(pos)
			}
		})
	}

	return nil
}

// UpdatePosition feeds a confirmed position fix. The marker is not moved
// instantly: a fixed-length interpolation is started from the last rendered
// position, replacing any animation already in flight.
func (s *Synchronizer) UpdatePosition(pos geo.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasMarker {
		s.marker = pos
		s.hasMarker = true
		s.surface.SetMarker(pos, s.heading)
		return
	}

	latMoved := math.Abs(pos.Lat-s.marker.Lat) > headingEpsilon
	lngMoved := math.Abs(pos.Lng-s.marker.Lng) > headingEpsilon
	if latMoved || lngMoved {
		s.heading = geo.Bearing(s.marker, pos)
	}

	s.anim = newAnimation(s.marker, pos)
}

// Step advances the marker animation by one frame and reports whether more
// frames remain. Callers drive it from a single frame scheduler.
func (s *Synchronizer) Step() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.anim == nil {
		return false
	}

	pos, more := s.anim.advance()
	s.marker = pos
	s.surface.SetMarker(pos, s.heading)

	if s.followMode {
		s.surface.PanTo(pos)
		s.surface.SetTilt(followTiltDeg)
	}

	if !more {
		s.anim = nil
	}
	return more
}

// Run drives the frame scheduler until the context is canceled.
func (s *Synchronizer) Run(ctx context.Context, frameInterval time.Duration) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step()
		}
	}
}

// Distance returns the last computed route distance in meters.
func (s *Synchronizer) Distance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.distanceM
}

// ETA returns the last computed duration text.
func (s *Synchronizer) ETA() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eta
}

// Plan returns the last successfully fetched plan, or nil.
func (s *Synchronizer) Plan() *Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

// Marker returns the current rendered marker position and heading.
func (s *Synchronizer) Marker() (geo.Point, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marker, s.heading
}

// Reset clears the dedupe and viewport state, forcing the next Sync to fetch.
// Used when the active job terminates.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKey = ""
	s.inflightKey = ""
	s.fitKey = ""
	s.plan = nil
	s.distanceM = 0
	s.eta = ""
	s.anim = nil
}
