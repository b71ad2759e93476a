package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"wayfare/internal/maps"
	"wayfare/internal/metrics"
	"wayfare/internal/types"
)

// OriginIndex marks the tour origin in Leg.From / Leg.To.
const OriginIndex = -1

// MaxMatrixWaypoints is the largest tour OptimizeRouteWithMatrix can handle;
// the origin takes one row and column of the provider's matrix.
const MaxMatrixWaypoints = maps.MaxMatrixDimension - 1

var errUnreachable = errors.New("pair is unreachable")

// DistanceOracle answers single-leg queries.
type DistanceOracle interface {
	ComputeRoute(ctx context.Context, origin, destination types.GeoPoint, opts maps.RouteOptions) (*maps.RouteResult, error)
}

// MatrixOracle answers full matrix queries.
type MatrixOracle interface {
	ComputeMatrix(ctx context.Context, origins, destinations []types.GeoPoint, opts maps.RouteOptions) (maps.RouteMatrix, error)
}

// Leg is one travelled segment of a tour. Indices refer to waypoints; OriginIndex is the start.
type Leg struct {
	From            int `json:"from"`
	To              int `json:"to"`
	DistanceMeters  int `json:"distance_meters"`
	DurationSeconds int `json:"duration_seconds"`
}

// TourPlan is the optimizer output. VisitOrder is always a permutation of the waypoint indices.
type TourPlan struct {
	VisitOrder           []int  `json:"visit_order"`
	TotalDistanceMeters  int    `json:"total_distance_meters"`
	TotalDurationSeconds int    `json:"total_duration_seconds"`
	TotalDistanceText    string `json:"total_distance_text"`
	TotalDurationText    string `json:"total_duration_text"`
	Legs                 []Leg  `json:"legs"`
	// Degraded is set when every candidate failed in some step and the rest of
	// the waypoints were appended in input order.
	Degraded bool `json:"degraded"`
}

func (p *TourPlan) addLeg(from, to int, r *maps.RouteResult) {
	p.Legs = append(p.Legs, Leg{From: from, To: to, DistanceMeters: r.DistanceMeters, DurationSeconds: r.DurationSeconds})
	p.TotalDistanceMeters += r.DistanceMeters
	p.TotalDurationSeconds += r.DurationSeconds
}

// RouteOptimizer orders waypoints with a greedy nearest-neighbour heuristic.
//
// This is O(N²) oracle calls and not an optimal TSP solution. Every candidate
// distance is a paid, rate-limited provider call, so a cheap heuristic is the
// right trade. Candidate calls within a step run sequentially.
type RouteOptimizer struct {
	oracle DistanceOracle
	matrix MatrixOracle
	opts   maps.RouteOptions
	logger *slog.Logger
}

// NewRouteOptimizer creates an optimizer. matrix may be nil when only
// OptimizeRoute is used.
func NewRouteOptimizer(oracle DistanceOracle, matrix MatrixOracle, logger *slog.Logger) *RouteOptimizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteOptimizer{oracle: oracle, matrix: matrix, logger: logger}
}

// WithOptions returns a copy that routes with opts.
func (o *RouteOptimizer) WithOptions(opts maps.RouteOptions) *RouteOptimizer {
	cp := *o
	cp.opts = opts
	return &cp
}

// legFunc returns the cost of travelling between two indices (OriginIndex allowed).
type legFunc func(ctx context.Context, from, to int) (*maps.RouteResult, error)

// OptimizeRoute builds a tour from origin through every waypoint, querying the oracle per leg.
func (o *RouteOptimizer) OptimizeRoute(ctx context.Context, origin types.GeoPoint, waypoints []types.GeoPoint, returnToOrigin bool) (*TourPlan, error) {
	ctx, span := otel.Tracer("wayfare/service").Start(ctx, "route.optimize")
	defer span.End()
	span.SetAttributes(attribute.Int("route.waypoints", len(waypoints)), attribute.String("route.strategy", "pairwise"))

	if err := validateTour(origin, waypoints); err != nil {
		return nil, err
	}
	point := pointLookup(origin, waypoints)
	leg := func(ctx context.Context, from, to int) (*maps.RouteResult, error) {
		return o.oracle.ComputeRoute(ctx, point(from), point(to), o.opts)
	}
	return o.greedy(ctx, len(waypoints), leg, returnToOrigin)
}

// OptimizeRouteWithMatrix applies the same policy but fetches every leg in a
// single matrix call. Nil matrix cells count as unreachable.
func (o *RouteOptimizer) OptimizeRouteWithMatrix(ctx context.Context, origin types.GeoPoint, waypoints []types.GeoPoint, returnToOrigin bool) (*TourPlan, error) {
	ctx, span := otel.Tracer("wayfare/service").Start(ctx, "route.optimize")
	defer span.End()
	span.SetAttributes(attribute.Int("route.waypoints", len(waypoints)), attribute.String("route.strategy", "matrix"))

	if o.matrix == nil {
		return nil, errors.New("matrix oracle is not configured")
	}
	if len(waypoints) > MaxMatrixWaypoints {
		return nil, fmt.Errorf("%w: %d waypoints (max %d)", maps.ErrMatrixTooLarge, len(waypoints), MaxMatrixWaypoints)
	}
	if err := validateTour(origin, waypoints); err != nil {
		return nil, err
	}
	if len(waypoints) < 2 {
		return o.greedy(ctx, len(waypoints), nil, returnToOrigin)
	}

	points := append([]types.GeoPoint{origin}, waypoints...)
	m, err := o.matrix.ComputeMatrix(ctx, points, points, o.opts)
	if err != nil {
		return nil, fmt.Errorf("compute matrix: %w", err)
	}
	leg := func(_ context.Context, from, to int) (*maps.RouteResult, error) {
		if cell := m.At(from+1, to+1); cell != nil {
			return cell, nil
		}
		return nil, errUnreachable
	}
	return o.greedy(ctx, len(waypoints), leg, returnToOrigin)
}

func (o *RouteOptimizer) greedy(ctx context.Context, n int, leg legFunc, returnToOrigin bool) (*TourPlan, error) {
	plan := &TourPlan{VisitOrder: make([]int, 0, n), Legs: []Leg{}}
	defer func() {
		plan.TotalDistanceText = maps.FormatDistance(plan.TotalDistanceMeters)
		plan.TotalDurationText = maps.FormatDuration(plan.TotalDurationSeconds)
	}()

	switch n {
	case 0:
		return plan, nil
	case 1:
		// a single stop has nothing to order against
		plan.VisitOrder = append(plan.VisitOrder, 0)
		return plan, nil
	}

	visited := make([]bool, n)
	current := OriginIndex
	for len(plan.VisitOrder) < n {
		best := -1
		var bestLeg *maps.RouteResult
		for i := 0; i < n; i++ {
			if visited[i] {
				continue
			}
			r, err := leg(ctx, current, i)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				metrics.OptimizerSkippedCandidates.Inc()
				o.logger.WarnContext(ctx, "skipping unreachable candidate",
					slog.Int("from", current), slog.Int("to", i), slog.Any("error", err))
				continue
			}
			// strict < keeps the lowest index on ties
			if best == -1 || r.DistanceMeters < bestLeg.DistanceMeters {
				best, bestLeg = i, r
			}
		}

		if best == -1 {
			o.logger.WarnContext(ctx, "no reachable candidate, appending remaining waypoints in input order",
				slog.Int("from", current), slog.Int("remaining", n-len(plan.VisitOrder)))
			for i := 0; i < n; i++ {
				if !visited[i] {
					visited[i] = true
					plan.VisitOrder = append(plan.VisitOrder, i)
				}
			}
			plan.Degraded = true
			break
		}

		visited[best] = true
		plan.VisitOrder = append(plan.VisitOrder, best)
		plan.addLeg(current, best, bestLeg)
		current = best
	}

	if returnToOrigin {
		last := plan.VisitOrder[len(plan.VisitOrder)-1]
		r, err := leg(ctx, last, OriginIndex)
		if err != nil {
			o.logger.WarnContext(ctx, "return leg failed, totals exclude it", slog.Int("from", last), slog.Any("error", err))
		} else {
			plan.addLeg(last, OriginIndex, r)
		}
	}
	return plan, nil
}

func validateTour(origin types.GeoPoint, waypoints []types.GeoPoint) error {
	if err := origin.Validate(); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if err := types.ValidatePoints(waypoints); err != nil {
		return fmt.Errorf("waypoints: %w", err)
	}
	return nil
}

func pointLookup(origin types.GeoPoint, waypoints []types.GeoPoint) func(int) types.GeoPoint {
	return func(i int) types.GeoPoint {
		if i == OriginIndex {
			return origin
		}
		return waypoints[i]
	}
}
