// @title Price Compliance Service API
// @version 1.0
// @description Compliance evaluations of sale prices against Norwegian marketing-of-sales rules, scan scheduling and the storefront price widget.
// @BasePath /
// @securityDefinitions.apikey InternalAPIKey
// @in header
// @name X-Internal-API-Key
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/prisvakt/compliance-service/config"
	"github.com/prisvakt/compliance-service/internal/app"
	"github.com/prisvakt/compliance-service/internal/handlers"
	"github.com/prisvakt/compliance-service/internal/middleware"
	"github.com/prisvakt/compliance-service/internal/sweepers"
	"github.com/prisvakt/compliance-service/internal/telemetry"
	"github.com/prisvakt/compliance-service/internal/workers"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting compliance service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Telemetry.Environment,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	svc, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize services")
	}

	logger.Info().
		Str("country", svc.Rules.CountryCode).
		Int("rules", len(svc.Rules.Rules)).
		Msg("Database connected, rule set loaded")

	hostname, _ := os.Hostname()
	worker := workers.New(svc.Queue, workers.WorkerConfig{
		WorkerID:   fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8]),
		NumWorkers: cfg.Scan.Workers,
		PollDelay:  cfg.Scan.WorkerPoll,
	}, logger)
	workers.Register(worker, svc.Scanner, svc.Retention)
	worker.Start(ctx)

	taskSweeper := sweepers.NewTaskQueueSweeper(svc.Queue, logger, 5*time.Minute, cfg.Scan.Timeout+5*time.Minute)
	go taskSweeper.Start(ctx)

	var scheduler *sweepers.ScanScheduler
	if cfg.Scan.SweeperEnabled {
		scheduler = sweepers.NewScanScheduler(svc.Store, svc.Queue, sweepers.ScanSchedulerConfig{
			ScanInterval:    cfg.Scan.Interval,
			Tick:            time.Minute,
			CleanupInterval: 24 * time.Hour,
		}, logger)
		go scheduler.Start(ctx)
	}

	widgetLimiter := middleware.NewIPRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.Server.WidgetRPS,
		BurstSize:         cfg.Server.WidgetBurst,
		IdleTTL:           10 * time.Minute,
	})
	go widgetLimiter.RunCleanup(ctx, time.Minute)

	handlers.Init(handlers.Dependencies{
		Store:     svc.Store,
		Rechecker: svc.Scanner,
		Queue:     svc.Queue,
		Cache:     svc.Cache,
		Rules:     svc.RulesFor,
		Metrics:   svc.Metrics,
		Logger:    logger,
		RedisPing: svc.RedisPing(),
	})

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	handlers.RegisterRoutes(router, handlers.RouteConfig{
		InternalAPIKey: cfg.Server.InternalAPIKey,
		WidgetLimiter:  widgetLimiter,
	})
	handlers.RegisterDocs(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	taskSweeper.Stop()
	worker.Stop()
	cancel()

	svc.Close(5 * time.Second)
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Failed to flush telemetry")
	}

	logger.Info().Msg("Server exited")
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "compliance-service").Logger()
	return &logger
}
