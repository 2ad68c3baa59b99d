package routesync

import "github.com/curbfleet/dispatch/internal/geo"

// markerFrames is the fixed length of one marker movement animation.
const markerFrames = 30

// animation interpolates the courier marker from one confirmed position to
// the next over a fixed number of frames. Starting a new animation replaces
// the previous state; there is no external cancellation flag.
type animation struct {
	from   geo.Point
	to     geo.Point
	frames int
	step   int
}

func newAnimation(from, to geo.Point) *animation {
	return &animation{from: from, to: to, frames: markerFrames}
}

// advance moves one frame forward and returns the interpolated position plus
// whether more frames remain.
func (a *animation) advance() (geo.Point, bool) {
	if a.step >= a.frames {
		return a.to, false
	}

	a.step++
	t := float64(a.step) / float64(a.frames)
	return geo.LerpPoint(a.from, a.to, t), a.step < a.frames
}
