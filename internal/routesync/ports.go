package routesync

import (
	"context"
	"time"

	"github.com/curbfleet/dispatch/internal/geo"
)

// Plan is a computed route between an origin and a destination. It is cached
// data, never authoritative; recomputing is always safe.
type Plan struct {
	EncodedPath     string
	DistanceMeters  int
	DistanceText    string
	DurationSeconds int
	DurationText    string
	ComputedAt      time.Time
}

// DirectionsProvider retrieves a driving route between two points.
type DirectionsProvider interface {
	Route(ctx context.Context, origin, destination geo.Point) (Plan, error)
}

// Geocoder resolves a free-text address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Point, error)
}

// PlanStore persists the route cache onto the job record. Writes are a read
// optimization and always best-effort.
type PlanStore interface {
	CacheRoutePlan(ctx context.Context, jobID, encodedPath, distanceText, durationText string) error
}

// MapSurface is the mapping capability the synchronizer renders against. A
// no-op or logging implementation keeps the synchronizer testable without a
// real map.
type MapSurface interface {
	DrawPath(encoded string)
	FitBounds(a, b geo.Point)
	Zoom() int
	SetZoom(level int)
	PanTo(p geo.Point)
	SetTilt(deg float64)
	SetMarker(p geo.Point, headingDeg float64)
}
