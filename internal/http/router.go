// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfare/internal/ai"
	"wayfare/internal/http/handlers"
	"wayfare/internal/http/middleware"
	"wayfare/internal/maps"
	"wayfare/internal/metrics"
	"wayfare/internal/service"
)

type RouterDeps struct {
	Router          maps.Router
	Optimizer       *service.RouteOptimizer
	Recommendations *service.RecommendationService
	Extractors      service.ExtractorRegistry
	LLM             *ai.Client
	// Usage is nil when the ledger is disabled.
	Usage  handlers.UsageReporter
	Logger *slog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(middleware.Recovery(logger), middleware.Logging(logger), metrics.Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")

	routeHandler := handlers.NewRouteHandler(deps.Router, deps.Optimizer)
	api.POST("/routes/compute", routeHandler.Compute)
	api.POST("/routes/matrix", routeHandler.Matrix)
	api.POST("/routes/optimize", routeHandler.Optimize)

	recHandler := handlers.NewRecommendationHandler(deps.Recommendations, deps.Extractors)
	api.POST("/recommendations/destinations", recHandler.Destinations)
	api.POST("/recommendations/itinerary", recHandler.Itinerary)
	api.POST("/requirements/extract", recHandler.Extract)

	llmHandler := handlers.NewLLMHandler(deps.LLM, deps.Usage)
	api.POST("/llm/chat", llmHandler.Chat)
	api.GET("/llm/providers", llmHandler.Providers)
	api.GET("/llm/usage", llmHandler.Usage)

	return r
}
