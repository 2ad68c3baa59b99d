package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name      string
		a         Point
		b         Point
		wantMin   float64
		wantMax   float64
	}{
		{
			name:    "zero displacement",
			a:       Point{Lat: -22.9, Lng: -43.1},
			b:       Point{Lat: -22.9, Lng: -43.1},
			wantMin: 0,
			wantMax: 0.001,
		},
		{
			name:    "small hop stays under the 20m persistence threshold",
			a:       Point{Lat: -22.900000, Lng: -43.100000},
			b:       Point{Lat: -22.900050, Lng: -43.100050},
			wantMin: 5,
			wantMax: 10,
		},
		{
			name:    "one degree of latitude",
			a:       Point{Lat: 0, Lng: 0},
			b:       Point{Lat: 1, Lng: 0},
			wantMin: 111000,
			wantMax: 111500,
		},
		{
			name:    "rio to sao paulo ballpark",
			a:       Point{Lat: -22.9068, Lng: -43.1729},
			b:       Point{Lat: -23.5505, Lng: -46.6333},
			wantMin: 350000,
			wantMax: 370000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.wantMin)
			assert.LessOrEqual(t, got, tt.wantMax)
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	a := Point{Lat: -22.91, Lng: -43.17}
	b := Point{Lat: -22.95, Lng: -43.21}
	assert.InDelta(t, Haversine(a, b), Haversine(b, a), 1e-9)
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name  string
		start Point
		end   Point
		want  float64
	}{
		{"due north", Point{0, 0}, Point{1, 0}, 0},
		{"due east", Point{0, 0}, Point{0, 1}, 90},
		{"due south", Point{1, 0}, Point{0, 0}, 180},
		{"due west", Point{0, 1}, Point{0, 0}, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Bearing(tt.start, tt.end), 0.01)
		})
	}
}

func TestBearingRange(t *testing.T) {
	got := Bearing(Point{Lat: 10, Lng: 10}, Point{Lat: 9, Lng: 9})
	assert.GreaterOrEqual(t, got, 0.0)
	assert.Less(t, got, 360.0)
}

func TestLerp(t *testing.T) {
	assert.Equal(t, 0.0, Lerp(0, 10, 0))
	assert.Equal(t, 10.0, Lerp(0, 10, 1))
	assert.Equal(t, 5.0, Lerp(0, 10, 0.5))
	assert.Equal(t, -2.5, Lerp(-5, 0, 0.5))
}

func TestLerpPoint(t *testing.T) {
	start := Point{Lat: -22.9, Lng: -43.1}
	end := Point{Lat: -22.8, Lng: -43.0}

	mid := LerpPoint(start, end, 0.5)
	assert.InDelta(t, -22.85, mid.Lat, 1e-9)
	assert.InDelta(t, -43.05, mid.Lng, 1e-9)

	assert.Equal(t, start, LerpPoint(start, end, 0))
	assert.Equal(t, end, LerpPoint(start, end, 1))
}
