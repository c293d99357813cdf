package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/admin-activity-hub/internal/api"
	"github.com/Priya8975/admin-activity-hub/internal/broadcast"
	"github.com/Priya8975/admin-activity-hub/internal/config"
	"github.com/Priya8975/admin-activity-hub/internal/engine"
	"github.com/Priya8975/admin-activity-hub/internal/metrics"
	"github.com/Priya8975/admin-activity-hub/internal/store"
	"github.com/Priya8975/admin-activity-hub/internal/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Environment, os.Stdout)

	// Initialize PostgreSQL
	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := pgStore.RunMigrations(ctx, cfg.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	clock := clockwork.NewRealClock()

	// Persistence behind a shared circuit breaker
	cb := engine.NewCircuitBreaker(redisStore.Client(), cfg.PersistFailureThreshold, cfg.PersistCooldown, logger)
	gateway := engine.NewGuardedGateway(pgStore, cb, "event-store", logger)

	// Real-time distribution
	registry := websocket.NewRegistry(logger, m)
	router := broadcast.NewRouter(gateway, registry, clock, logger, m)
	limiter := engine.NewRateLimiter(redisStore.Client(), logger)
	ingest := websocket.NewIngest(registry, router, limiter, cfg.MessageRateLimit, logger, m)

	// Connections outlive their upgrade request; cancelling connCtx ends them.
	connCtx, cancelConns := context.WithCancel(context.Background())
	defer cancelConns()

	endpoint := websocket.NewEndpoint(connCtx, ingest,
		websocket.NewAdmission(cfg.MaxConnections, cfg.HandshakeRate, cfg.HandshakeBurst),
		websocket.ClientOptions{
			SendBuffer:   cfg.SendBuffer,
			WriteTimeout: cfg.WriteTimeout,
			ReadLimit:    cfg.ReadLimit,
			PongWait:     cfg.PongWait,
			PingPeriod:   cfg.PingPeriod,
		},
		logger, m,
	)

	// Setup router
	handler := api.NewRouter(api.Handlers{
		WebSocket:     endpoint,
		Activity:      api.NewActivityHandler(pgStore, router, clock),
		Notifications: api.NewNotificationHandler(router),
		Connections:   api.NewConnectionsHandler(registry, gateway),
		Health: api.HealthHandler(map[string]api.Pinger{
			"postgres": pgStore,
			"redis":    redisStore,
		}),
		Metrics: metrics.Handler(reg),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown; close
	// them explicitly so clients see a close frame.
	cancelConns()
	registry.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
