package maps

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// MaxMatrixDimension is the provider limit for origins or destinations per matrix call.
const MaxMatrixDimension = 25

var (
	// ErrNoRouteFound is returned when the provider answers with zero routes.
	ErrNoRouteFound = errors.New("no route found")
	// ErrEmptyMatrix is returned when the provider answers a matrix call with no rows.
	ErrEmptyMatrix = errors.New("route matrix is empty")
	// ErrMatrixTooLarge is returned when origins or destinations exceed MaxMatrixDimension.
	ErrMatrixTooLarge = errors.New("route matrix exceeds provider limit")
	// ErrMissingAPIKey is returned by constructors when no routing key is configured.
	ErrMissingAPIKey = errors.New("routing api key is not configured")
)

// ProviderError reports a non-2xx response from the routing provider, or a
// request-level status other than "OK" from the Distance Matrix service.
type ProviderError struct {
	StatusCode int
	// Status is the web service status (REQUEST_DENIED, OVER_QUERY_LIMIT, ...); empty for HTTP failures.
	Status string
	Body   string
}

func (e *ProviderError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("routing provider returned %s: %s", e.Status, e.Body)
	}
	if e.Body == "" {
		return fmt.Sprintf("routing provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("routing provider returned status %d: %s", e.StatusCode, e.Body)
}

// TravelMode follows the Routes API enum.
type TravelMode string

const (
	TravelModeDrive      TravelMode = "DRIVE"
	TravelModeWalk       TravelMode = "WALK"
	TravelModeBicycle    TravelMode = "BICYCLE"
	TravelModeTransit    TravelMode = "TRANSIT"
	TravelModeTwoWheeler TravelMode = "TWO_WHEELER"
)

// ParseTravelMode accepts both Routes API names and the lowercase web-service names.
// Empty input defaults to driving.
func ParseTravelMode(s string) (TravelMode, error) {
	switch s {
	case "", "DRIVE", "driving", "drive":
		return TravelModeDrive, nil
	case "WALK", "walking", "walk":
		return TravelModeWalk, nil
	case "BICYCLE", "bicycling", "bicycle":
		return TravelModeBicycle, nil
	case "TRANSIT", "transit":
		return TravelModeTransit, nil
	case "TWO_WHEELER", "two_wheeler":
		return TravelModeTwoWheeler, nil
	default:
		return "", fmt.Errorf("unsupported travel mode %q", s)
	}
}

// RouteOptions are the per-call routing modifiers.
type RouteOptions struct {
	Mode          TravelMode
	AvoidTolls    bool
	AvoidHighways bool
}

func (o RouteOptions) mode() TravelMode {
	if o.Mode == "" {
		return TravelModeDrive
	}
	return o.Mode
}

// RouteResult is the outcome of one pairwise route computation.
type RouteResult struct {
	DistanceMeters  int        `json:"distance_meters"`
	DurationSeconds int        `json:"duration_seconds"`
	DistanceText    string     `json:"distance_text"`
	DurationText    string     `json:"duration_text"`
	EncodedPolyline string     `json:"encoded_polyline,omitempty"`
	BoundingBox     *orb.Bound `json:"bounding_box,omitempty"`
}

func newRouteResult(distanceMeters, durationSeconds int) *RouteResult {
	if distanceMeters < 0 {
		distanceMeters = 0
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	return &RouteResult{
		DistanceMeters:  distanceMeters,
		DurationSeconds: durationSeconds,
		DistanceText:    FormatDistance(distanceMeters),
		DurationText:    FormatDuration(durationSeconds),
	}
}

// RouteMatrix is indexed [origin][destination]; a nil cell marks an unreachable or failed pair.
type RouteMatrix [][]*RouteResult

// At returns the cell or nil when the indices are out of range.
func (m RouteMatrix) At(origin, destination int) *RouteResult {
	if origin < 0 || origin >= len(m) {
		return nil
	}
	row := m[origin]
	if destination < 0 || destination >= len(row) {
		return nil
	}
	return row[destination]
}
