// README: Common geographic value objects shared by routing and planning modules.
package types

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// ErrInvalidCoordinate is returned when a latitude or longitude is out of range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// GeoPoint is an immutable WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks the point against the standard latitude/longitude ranges.
func (p GeoPoint) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %f outside [-90, 90]", ErrInvalidCoordinate, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %f outside [-180, 180]", ErrInvalidCoordinate, p.Lng)
	}
	return nil
}

// Orb returns the point in orb's [lng, lat] order.
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// String renders "lat,lng", the form accepted by the Google Maps web services.
func (p GeoPoint) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

// FromOrb converts an orb point back to a GeoPoint.
func FromOrb(pt orb.Point) GeoPoint {
	return GeoPoint{Lat: pt.Lat(), Lng: pt.Lon()}
}

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(a, b GeoPoint) float64 {
	return geo.DistanceHaversine(a.Orb(), b.Orb())
}

// ValidatePoints validates every point and reports the first failing index.
func ValidatePoints(points []GeoPoint) error {
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	return nil
}
