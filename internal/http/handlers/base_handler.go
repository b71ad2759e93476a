// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfare/internal/ai"
	"wayfare/internal/maps"
	"wayfare/internal/modules/usage"
	"wayfare/internal/service"
	"wayfare/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	resp := errorResponse{Error: err.Error()}
	var aiErr *ai.Error
	if errors.As(err, &aiErr) {
		resp.Kind = string(aiErr.Kind)
	}
	if status == http.StatusInternalServerError {
		resp.Error = "internal error"
	}
	writeJSON(c, status, resp)
}

func statusFor(err error) int {
	var provErr *maps.ProviderError
	switch {
	case errors.Is(err, ai.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ai.ErrRateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, ai.ErrQuotaExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, ai.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ai.ErrServer):
		return http.StatusBadGateway
	case errors.Is(err, maps.ErrNoRouteFound):
		return http.StatusNotFound
	case errors.Is(err, maps.ErrMatrixTooLarge),
		errors.Is(err, types.ErrInvalidCoordinate),
		errors.Is(err, usage.ErrInvalidMonth),
		errors.Is(err, service.ErrUnknownExtractor):
		return http.StatusBadRequest
	case errors.Is(err, maps.ErrEmptyMatrix), errors.As(err, &provErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
