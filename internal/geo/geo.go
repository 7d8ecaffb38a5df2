// Package geo decides whether a player is close enough to a target.
package geo

import "math"

// earthRadius is the mean Earth radius in meters.
const earthRadius = 6371008.8

// Slack is added to every radius check. Spherical distance differs from
// the ellipsoidal distance a phone reports by well under a meter at the
// ranges clues use.
const Slack = 1.0

type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

// WithinRadius reports whether b lies within radiusMeters of a.
// A non-positive radius is never satisfied.
func WithinRadius(a, b Point, radiusMeters float64) bool {
	if radiusMeters <= 0 {
		return false
	}
	return Distance(a, b) <= radiusMeters+Slack
}
