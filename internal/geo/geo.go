// Package geo provides great-circle distance and bounding-box helpers for
// itinerary coordinates.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used by the Haversine formula.
const EarthRadiusKm = 6371.0

// DefaultDistanceKm is returned when either endpoint has no coordinates.
const DefaultDistanceKm = 5.0

// ErrInvalidCoordinates is returned for latitudes or longitudes out of range.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Point is a WGS84 position. It is encoded in JSON as [lat, lng].
type Point struct {
	Lat float64
	Lng float64
}

// MarshalJSON encodes the point as a two-element array.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lat, p.Lng})
}

// UnmarshalJSON accepts either [lat, lng] or {"lat": .., "lng": ..}.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("%w: expected [lat, lng], got %d values", ErrInvalidCoordinates, len(pair))
		}
		p.Lat, p.Lng = pair[0], pair[1]
		return nil
	}

	var obj struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decoding point: %w", err)
	}
	if obj.Lat == nil || obj.Lng == nil {
		return fmt.Errorf("%w: lat and lng are required", ErrInvalidCoordinates)
	}
	p.Lat, p.Lng = *obj.Lat, *obj.Lng
	return nil
}

// Validate checks that the point is within WGS84 bounds.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidCoordinates, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidCoordinates, p.Lng)
	}
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return fmt.Errorf("%w: NaN coordinate", ErrInvalidCoordinates)
	}
	return nil
}

// Distance returns the Haversine distance in kilometres between a and b.
// A nil endpoint yields DefaultDistanceKm.
func Distance(a, b *Point) float64 {
	if a == nil || b == nil {
		return DefaultDistanceKm
	}

	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// BoundingBox is the smallest lat/lng rectangle containing a set of points.
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Bounds returns the bounding box of points. The second value is false when
// points is empty.
func Bounds(points []Point) (BoundingBox, bool) {
	rect := s2.EmptyRect()
	for _, p := range points {
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Lat, p.Lng))
	}
	if rect.IsEmpty() {
		return BoundingBox{}, false
	}

	lo, hi := rect.Lo(), rect.Hi()
	return BoundingBox{
		South: lo.Lat.Degrees(),
		West:  lo.Lng.Degrees(),
		North: hi.Lat.Degrees(),
		East:  hi.Lng.Degrees(),
	}, true
}
