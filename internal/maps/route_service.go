package maps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
	gmaps "googlemaps.github.io/maps"

	"wayfare/internal/metrics"
	"wayfare/internal/types"
)

const (
	defaultRoutesEndpoint = "https://routes.googleapis.com/directions/v2:computeRoutes"
	routesFieldMask       = "routes.duration,routes.distanceMeters,routes.polyline.encodedPolyline,routes.viewport"

	// maxMatrixElements is the per-request origins×destinations cap of the Distance Matrix service.
	maxMatrixElements = 100
)

// RouteClient computes routes and distance matrices against Google's routing services.
// Single routes use the Routes API; matrices use the Distance Matrix web service.
type RouteClient struct {
	apiKey         string
	routesEndpoint string
	mapsBaseURL    string
	language       string
	httpClient     *http.Client
	matrix         *gmaps.Client
	logger         *slog.Logger
}

// Option customises a RouteClient.
type Option func(*RouteClient)

// WithHTTPClient replaces the HTTP client used for both services.
func WithHTTPClient(c *http.Client) Option {
	return func(rc *RouteClient) { rc.httpClient = c }
}

// WithRoutesEndpoint points computeRoutes at another URL (tests, proxies).
func WithRoutesEndpoint(url string) Option {
	return func(rc *RouteClient) { rc.routesEndpoint = url }
}

// WithMapsBaseURL points the Distance Matrix client at another host.
func WithMapsBaseURL(url string) Option {
	return func(rc *RouteClient) { rc.mapsBaseURL = url }
}

// WithLanguage sets the response language (default "en-US").
func WithLanguage(lang string) Option {
	return func(rc *RouteClient) { rc.language = lang }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(rc *RouteClient) { rc.logger = l }
}

// NewRouteClient creates a RouteClient with the given API Key.
func NewRouteClient(apiKey string, opts ...Option) (*RouteClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	rc := &RouteClient{
		apiKey:         apiKey,
		routesEndpoint: defaultRoutesEndpoint,
		language:       "en-US",
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(rc)
	}

	// Non-2xx answers surface as *ProviderError instead of an opaque JSON decode failure.
	statusClient := &http.Client{
		Timeout:   rc.httpClient.Timeout,
		Transport: statusTransport{base: rc.httpClient.Transport},
	}
	mapsOpts := []gmaps.ClientOption{gmaps.WithAPIKey(apiKey), gmaps.WithHTTPClient(statusClient)}
	if rc.mapsBaseURL != "" {
		mapsOpts = append(mapsOpts, gmaps.WithBaseURL(rc.mapsBaseURL))
	}
	client, err := gmaps.NewClient(mapsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	rc.matrix = client
	return rc, nil
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type waypoint struct {
	Location struct {
		LatLng latLng `json:"latLng"`
	} `json:"location"`
}

func newWaypoint(p types.GeoPoint) waypoint {
	var w waypoint
	w.Location.LatLng = latLng{Latitude: p.Lat, Longitude: p.Lng}
	return w
}

type computeRoutesRequest struct {
	Origin            waypoint `json:"origin"`
	Destination       waypoint `json:"destination"`
	TravelMode        string   `json:"travelMode"`
	RoutingPreference string   `json:"routingPreference,omitempty"`
	RouteModifiers    struct {
		AvoidTolls    bool `json:"avoidTolls"`
		AvoidHighways bool `json:"avoidHighways"`
	} `json:"routeModifiers"`
	LanguageCode string `json:"languageCode"`
	Units        string `json:"units"`
}

type computeRoutesResponse struct {
	Routes []struct {
		DistanceMeters int    `json:"distanceMeters"`
		Duration       string `json:"duration"`
		Polyline       struct {
			EncodedPolyline string `json:"encodedPolyline"`
		} `json:"polyline"`
		Viewport *struct {
			Low  latLng `json:"low"`
			High latLng `json:"high"`
		} `json:"viewport"`
	} `json:"routes"`
}

// ComputeRoute returns distance and duration for a single origin→destination leg.
func (c *RouteClient) ComputeRoute(ctx context.Context, origin, destination types.GeoPoint, opts RouteOptions) (*RouteResult, error) {
	if err := types.ValidatePoints([]types.GeoPoint{origin, destination}); err != nil {
		return nil, err
	}

	mode := opts.mode()
	body := computeRoutesRequest{
		Origin:       newWaypoint(origin),
		Destination:  newWaypoint(destination),
		TravelMode:   string(mode),
		LanguageCode: c.language,
		Units:        "IMPERIAL",
	}
	// The API rejects a routing preference for modes without traffic data.
	if mode == TravelModeDrive || mode == TravelModeTwoWheeler {
		body.RoutingPreference = "TRAFFIC_AWARE"
	}
	body.RouteModifiers.AvoidTolls = opts.AvoidTolls
	body.RouteModifiers.AvoidHighways = opts.AvoidHighways

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("routes: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.routesEndpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("routes: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", routesFieldMask)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RouteRequests.WithLabelValues("route", "transport_error").Inc()
		return nil, fmt.Errorf("routes: do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("routes: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RouteRequests.WithLabelValues("route", "provider_error").Inc()
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}

	var parsed computeRoutesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("routes: unmarshal response: %w", err)
	}
	if len(parsed.Routes) == 0 {
		metrics.RouteRequests.WithLabelValues("route", "no_route").Inc()
		return nil, ErrNoRouteFound
	}

	route := parsed.Routes[0]
	seconds, err := parseProtoDuration(route.Duration)
	if err != nil {
		return nil, fmt.Errorf("routes: %w", err)
	}

	result := newRouteResult(route.DistanceMeters, seconds)
	result.EncodedPolyline = route.Polyline.EncodedPolyline
	if vp := route.Viewport; vp != nil {
		bound := orb.Bound{
			Min: orb.Point{vp.Low.Longitude, vp.Low.Latitude},
			Max: orb.Point{vp.Low.Longitude, vp.Low.Latitude},
		}.Extend(orb.Point{vp.High.Longitude, vp.High.Latitude})
		result.BoundingBox = &bound
	}
	metrics.RouteRequests.WithLabelValues("route", "ok").Inc()
	return result, nil
}

// ComputeMatrix returns the origin×destination matrix. Cells whose element status is not
// "OK" are nil; only a transport/provider failure or an empty answer fails the whole call.
// Matrices above maxMatrixElements are split into several requests.
func (c *RouteClient) ComputeMatrix(ctx context.Context, origins, destinations []types.GeoPoint, opts RouteOptions) (RouteMatrix, error) {
	if len(origins) == 0 || len(destinations) == 0 {
		return nil, fmt.Errorf("matrix: origins and destinations must be non-empty")
	}
	if len(origins) > MaxMatrixDimension || len(destinations) > MaxMatrixDimension {
		return nil, fmt.Errorf("%w: %d origins x %d destinations (max %d each)",
			ErrMatrixTooLarge, len(origins), len(destinations), MaxMatrixDimension)
	}
	if err := types.ValidatePoints(origins); err != nil {
		return nil, fmt.Errorf("origins: %w", err)
	}
	if err := types.ValidatePoints(destinations); err != nil {
		return nil, fmt.Errorf("destinations: %w", err)
	}

	// The web service caps a single request at maxMatrixElements, so larger
	// matrices are fetched as bands of origin rows and stitched back together.
	band := maxMatrixElements / len(destinations)
	matrix := make(RouteMatrix, len(origins))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for start := 0; start < len(origins); start += band {
		end := min(start+band, len(origins))
		g.Go(func() error {
			rows, err := c.matrixBand(gctx, origins[start:end], destinations, opts)
			if err != nil {
				return err
			}
			copy(matrix[start:end], rows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	unreachable := 0
	for _, row := range matrix {
		for _, cell := range row {
			if cell == nil {
				unreachable++
			}
		}
	}
	if unreachable > 0 {
		c.logger.DebugContext(ctx, "matrix contains unreachable pairs",
			slog.Int("unreachable", unreachable),
			slog.Int("origins", len(origins)),
			slog.Int("destinations", len(destinations)))
	}
	metrics.RouteRequests.WithLabelValues("matrix", "ok").Inc()
	return matrix, nil
}

// matrixBand issues one Distance Matrix request and returns exactly len(origins) rows.
func (c *RouteClient) matrixBand(ctx context.Context, origins, destinations []types.GeoPoint, opts RouteOptions) (RouteMatrix, error) {
	r := &gmaps.DistanceMatrixRequest{
		Origins:      pointStrings(origins),
		Destinations: pointStrings(destinations),
		Mode:         webServiceMode(opts.mode()),
		Avoid:        avoidParam(opts),
		Units:        gmaps.UnitsImperial,
		Language:     c.language,
	}

	resp, err := c.matrix.DistanceMatrix(ctx, r)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) {
			metrics.RouteRequests.WithLabelValues("matrix", "provider_error").Inc()
			if perr.Status == "MAX_ELEMENTS_EXCEEDED" || perr.Status == "MAX_DIMENSIONS_EXCEEDED" {
				return nil, fmt.Errorf("%w: %s", ErrMatrixTooLarge, perr.Error())
			}
			return nil, perr
		}
		metrics.RouteRequests.WithLabelValues("matrix", "error").Inc()
		return nil, fmt.Errorf("maps api error: %w", err)
	}
	if resp == nil || len(resp.Rows) == 0 {
		metrics.RouteRequests.WithLabelValues("matrix", "empty").Inc()
		return nil, ErrEmptyMatrix
	}

	rows := make(RouteMatrix, len(origins))
	for i := range rows {
		rows[i] = make([]*RouteResult, len(destinations))
		if i >= len(resp.Rows) {
			continue
		}
		for j, el := range resp.Rows[i].Elements {
			if j >= len(destinations) || el == nil || el.Status != "OK" {
				continue
			}
			rows[i][j] = newRouteResult(el.Distance.Meters, int(math.Round(el.Duration.Seconds())))
		}
	}
	return rows, nil
}

// parseProtoDuration converts the Routes API "<N>s" duration string to whole seconds.
func parseProtoDuration(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return int(math.Round(d.Seconds())), nil
}

func pointStrings(points []types.GeoPoint) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.String()
	}
	return out
}

func webServiceMode(m TravelMode) gmaps.Mode {
	switch m {
	case TravelModeWalk:
		return gmaps.TravelModeWalking
	case TravelModeBicycle:
		return gmaps.TravelModeBicycling
	case TravelModeTransit:
		return gmaps.TravelModeTransit
	default:
		return gmaps.TravelModeDriving
	}
}

func avoidParam(opts RouteOptions) gmaps.Avoid {
	switch {
	case opts.AvoidTolls && opts.AvoidHighways:
		return gmaps.Avoid(string(gmaps.AvoidTolls) + "|" + string(gmaps.AvoidHighways))
	case opts.AvoidTolls:
		return gmaps.AvoidTolls
	case opts.AvoidHighways:
		return gmaps.AvoidHighways
	default:
		return ""
	}
}

// statusTransport turns non-2xx responses into *ProviderError before the
// maps client tries to decode them.
type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	// The web service reports request-level failures as a 200 with a top-level status.
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Status != "" && envelope.Status != "OK" {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Status: envelope.Status, Body: envelope.ErrorMessage}
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	return resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
