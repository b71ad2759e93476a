// README: Routing handlers: single route, matrix and tour optimisation.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfare/internal/maps"
	"wayfare/internal/service"
	"wayfare/internal/types"
)

type RouteHandler struct {
	router    maps.Router
	optimizer *service.RouteOptimizer
}

func NewRouteHandler(router maps.Router, optimizer *service.RouteOptimizer) *RouteHandler {
	return &RouteHandler{router: router, optimizer: optimizer}
}

type routeOptionsReq struct {
	Mode          string `json:"mode"`
	AvoidTolls    bool   `json:"avoid_tolls"`
	AvoidHighways bool   `json:"avoid_highways"`
}

func (r routeOptionsReq) options() (maps.RouteOptions, error) {
	mode, err := maps.ParseTravelMode(r.Mode)
	if err != nil {
		return maps.RouteOptions{}, err
	}
	return maps.RouteOptions{Mode: mode, AvoidTolls: r.AvoidTolls, AvoidHighways: r.AvoidHighways}, nil
}

type computeRouteReq struct {
	Origin      *types.GeoPoint `json:"origin"`
	Destination *types.GeoPoint `json:"destination"`
	routeOptionsReq
}

// Compute handles POST /api/routes/compute.
func (h *RouteHandler) Compute(c *gin.Context) {
	var req computeRouteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Origin == nil || req.Destination == nil {
		writeError(c, http.StatusBadRequest, "missing origin or destination")
		return
	}
	opts, err := req.options()
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.router.ComputeRoute(c.Request.Context(), *req.Origin, *req.Destination, opts)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

type computeMatrixReq struct {
	Origins      []types.GeoPoint `json:"origins"`
	Destinations []types.GeoPoint `json:"destinations"`
	routeOptionsReq
}

// Matrix handles POST /api/routes/matrix. Unreachable cells are null.
func (h *RouteHandler) Matrix(c *gin.Context) {
	var req computeMatrixReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Origins) == 0 || len(req.Destinations) == 0 {
		writeError(c, http.StatusBadRequest, "origins and destinations are required")
		return
	}
	opts, err := req.options()
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.router.ComputeMatrix(c.Request.Context(), req.Origins, req.Destinations, opts)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rows": m})
}

type optimizeReq struct {
	Origin         *types.GeoPoint  `json:"origin"`
	Waypoints      []types.GeoPoint `json:"waypoints"`
	ReturnToOrigin bool             `json:"return_to_origin"`
	UseMatrix      bool             `json:"use_matrix"`
	routeOptionsReq
}

// Optimize handles POST /api/routes/optimize.
func (h *RouteHandler) Optimize(c *gin.Context) {
	var req optimizeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Origin == nil {
		writeError(c, http.StatusBadRequest, "missing origin")
		return
	}
	opts, err := req.options()
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	opt := h.optimizer.WithOptions(opts)
	var plan *service.TourPlan
	if req.UseMatrix {
		plan, err = opt.OptimizeRouteWithMatrix(c.Request.Context(), *req.Origin, req.Waypoints, req.ReturnToOrigin)
	} else {
		plan, err = opt.OptimizeRoute(c.Request.Context(), *req.Origin, req.Waypoints, req.ReturnToOrigin)
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, plan)
}
