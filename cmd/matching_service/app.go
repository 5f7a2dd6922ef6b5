package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"campus-rides/internal/general/config"
	"campus-rides/internal/general/logger"
	"campus-rides/internal/general/postgres"
	"campus-rides/internal/general/rabbitmq"
	"campus-rides/internal/general/redisstore"
	"campus-rides/internal/ports"
	"campus-rides/internal/software/matching/service"
)

// Run wires the matching service and blocks until ctx is cancelled.
func Run(ctx context.Context, configPath string) error {
	// set up a new logger and context for the matching service with a static request ID for startup logs
	logger := logger.New("matching-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

	// load a config from file
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	// set up a Postgres connection pool for the audit trail
	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	// connect to Redis (session store)
	redisClient, err := redisstore.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "redis_connection_failed", "Failed to connect to Redis", err, nil)
		return err
	}
	defer redisClient.Close()

	// connect to RabbitMQ (command channel, delay queues, notifications)
	rmq, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()

	// set up the repositories and message adapters
	sessionRepo := redisstore.NewSessionRepo(redisClient)
	eventRepo := postgres.NewMatchEventRepo(pool)
	bus := rabbitmq.NewCommandBus(rmq)
	notifier := rabbitmq.NewNotifier(rmq)

	// construct either the real orchestrator or the disabled-mode stub at
	// process start; nothing downstream checks the flag again
	var svc ports.MatchingService
	if cfg.Matching.Enabled {
		svc = service.NewMatchingService(logger, sessionRepo, eventRepo, bus, notifier, rmq, cfg)
	} else {
		svc = service.NewNoopMatchingService(logger)
	}

	// run the background consumers for commands, seeds, and dead letters
	svc.StartBackgroundConsumers(ctx)

	// minimal HTTP surface: health probe only
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	// set up the server configurations
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.MatchingServicePort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// log service start
	logger.Info(ctx, "service_started",
		fmt.Sprintf("Matching Service started on port %d", cfg.Services.MatchingServicePort),
		map[string]any{"port": cfg.Services.MatchingServicePort, "matching_enabled": cfg.Matching.Enabled},
	)

	// start the server in a background goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	// wait for context cancellation or server error
	select {
	case <-ctx.Done():
		// graceful HTTP shutdown on context cancel
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info(ctx, "shutdown_started", "Matching Service shutting down", nil)
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		// server returned a terminal error at startup or during run
		if err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"port": cfg.Services.MatchingServicePort})
			return err
		}
		return nil
	}

	return nil
}
