// README: Entry point; loads config, wires providers, routing and services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"wayfare/internal/ai"
	"wayfare/internal/config"
	httptransport "wayfare/internal/http"
	"wayfare/internal/http/handlers"
	"wayfare/internal/infra"
	"wayfare/internal/maps"
	"wayfare/internal/modules/usage"
	"wayfare/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := infra.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	if cfg.Log.Format == "json" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("wayfare-api stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Telemetry.Enabled {
		shutdown, err := infra.InitTracing(cfg.Telemetry.ServiceName)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	// LLM providers + optional usage ledger
	providers, closeProviders, err := ai.NewProviders(ctx, ai.Keys{
		Anthropic: cfg.AI.AnthropicKey,
		OpenAI:    cfg.AI.OpenAIKey,
		Gemini:    cfg.AI.GeminiKey,
	})
	defer closeProviders()
	if err != nil {
		return err
	}

	clientOpts := []ai.ClientOption{ai.WithClientLogger(logger)}
	var usageReporter handlers.UsageReporter
	if cfg.DB.Enabled {
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		usageSvc := usage.NewService(usage.NewStore(pool))
		clientOpts = append(clientOpts, ai.WithUsageRecorder(usageSvc))
		usageReporter = usageSvc
	}

	llm, err := ai.NewClient(providers, clientOpts...)
	if err != nil {
		return err
	}
	logger.Info("llm providers configured", slog.Any("providers", llm.AvailableProviders()))

	// Routing
	routeClient, err := maps.NewRouteClient(cfg.Maps.APIKey, maps.WithLogger(logger))
	if err != nil {
		return err
	}
	var router maps.Router = routeClient
	switch cfg.Maps.CacheBackend {
	case "memory":
		router = maps.NewCachedRouteClient(routeClient, maps.NewMemoryCache(cfg.Maps.CacheTTL(), 10*time.Minute), cfg.Maps.CacheTTL(), logger)
	case "redis":
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		router = maps.NewCachedRouteClient(routeClient, maps.NewRedisCache(rdb, ""), cfg.Maps.CacheTTL(), logger)
	}
	optimizer := service.NewRouteOptimizer(router, router, logger)

	// Recommendations
	models, err := service.ParseModelChoices(cfg.Recommendations.FallbackModels)
	if err != nil {
		return err
	}
	recs, err := service.NewRecommendationService(llm, models, logger)
	if err != nil {
		return err
	}
	logger.Info("recommendation fallback chain", slog.Any("models", recs.Models()))

	engine := httptransport.NewRouter(httptransport.RouterDeps{
		Router:          router,
		Optimizer:       optimizer,
		Recommendations: recs,
		Extractors:      service.NewExtractorRegistry(llm),
		LLM:             llm,
		Usage:           usageReporter,
		Logger:          logger,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("http server stopped")
	return nil
}
