package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle math.
const EarthRadiusKm = 6371.0

// Point is an immutable geographic coordinate (latitude, longitude) in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c * 1000
}

// Bearing returns the initial bearing from start to end, in degrees [0, 360).
func Bearing(start, end Point) float64 {
	dLng := radians(end.Lng - start.Lng)
	y := math.Sin(dLng) * math.Cos(radians(end.Lat))
	x := math.Cos(radians(start.Lat))*math.Sin(radians(end.Lat)) -
		math.Sin(radians(start.Lat))*math.Cos(radians(end.Lat))*math.Cos(dLng)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// Lerp linearly interpolates between start and end by t in [0, 1].
func Lerp(start, end, t float64) float64 {
	return (1-t)*start + t*end
}

// LerpPoint interpolates both coordinates of a point pair by t in [0, 1].
func LerpPoint(start, end Point, t float64) Point {
	return Point{
		Lat: Lerp(start.Lat, end.Lat, t),
		Lng: Lerp(start.Lng, end.Lng, t),
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
