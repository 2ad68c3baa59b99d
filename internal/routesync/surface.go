package routesync

import (
	"log/slog"
	"sync"

	"github.com/curbfleet/dispatch/internal/geo"
)

// LogSurface is a MapSurface that records viewport state and logs render
// calls at debug level. It stands in for a real map on headless agents.
type LogSurface struct {
	logger *slog.Logger

	mu   sync.Mutex
	zoom int
}

func NewLogSurface(logger *slog.Logger) *LogSurface {
	return &LogSurface{logger: logger, zoom: lockZoomLevel}
}

func (l *LogSurface) DrawPath(encoded string) {
	l.logger.Debug("Map path drawn", slog.Int("encoded_len", len(encoded)))
}

func (l *LogSurface) FitBounds(a, b geo.Point) {
	l.logger.Debug("Map bounds fit",
		slog.Float64("a_lat", a.Lat), slog.Float64("a_lng", a.Lng),
		slog.Float64("b_lat", b.Lat), slog.Float64("b_lng", b.Lng),
	)
}

func (l *LogSurface) Zoom() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zoom
}

func (l *LogSurface) SetZoom(level int) {
	l.mu.Lock()
	l.zoom = level
	l.mu.Unlock()
	l.logger.Debug("Map zoom set", slog.Int("level", level))
}

func (l *LogSurface) PanTo(p geo.Point) {
	l.logger.Debug("Map pan", slog.Float64("lat", p.Lat), slog.Float64("lng", p.Lng))
}

func (l *LogSurface) SetTilt(deg float64) {
	l.logger.Debug("Map tilt set", slog.Float64("deg", deg))
}

func (l *LogSurface) SetMarker(p geo.Point, headingDeg float64) {
	l.logger.Debug("Courier marker moved",
		slog.Float64("lat", p.Lat),
		slog.Float64("lng", p.Lng),
		slog.Float64("heading", headingDeg),
	)
}
