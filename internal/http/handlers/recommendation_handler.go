// README: Destination suggestions, itineraries and requirement extraction.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wayfare/internal/service"
)

type RecommendationHandler struct {
	recs       *service.RecommendationService
	extractors service.ExtractorRegistry
}

func NewRecommendationHandler(recs *service.RecommendationService, extractors service.ExtractorRegistry) *RecommendationHandler {
	return &RecommendationHandler{recs: recs, extractors: extractors}
}

// Destinations handles POST /api/recommendations/destinations.
func (h *RecommendationHandler) Destinations(c *gin.Context) {
	var profile service.TravelerProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	dests, err := h.recs.SuggestDestinations(c.Request.Context(), profile)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"destinations": dests})
}

// Itinerary handles POST /api/recommendations/itinerary. Failed sections
// still produce a 200 with placeholder text.
func (h *RecommendationHandler) Itinerary(c *gin.Context) {
	var req service.ItineraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, h.recs.GenerateItinerary(c.Request.Context(), req))
}

type extractReq struct {
	Method string `json:"method"`
	Input  string `json:"input"`
}

// Extract handles POST /api/requirements/extract.
func (h *RecommendationHandler) Extract(c *gin.Context) {
	var req extractReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	if req.Method == "" || strings.TrimSpace(req.Input) == "" {
		writeError(c, http.StatusBadRequest, "missing method or input")
		return
	}

	profile, err := h.extractors.Extract(c.Request.Context(), req.Method, req.Input)
	if err != nil {
		if req.Method == "form" {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"method": req.Method, "profile": profile})
}
