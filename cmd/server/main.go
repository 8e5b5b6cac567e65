package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/behzodk/shortlink/internal/analytics"
	"github.com/behzodk/shortlink/internal/config"
	"github.com/behzodk/shortlink/internal/infra"
	"github.com/behzodk/shortlink/internal/observability"
	"github.com/behzodk/shortlink/internal/server"
	"github.com/behzodk/shortlink/internal/service"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	obs, err := observability.Setup(ctx, observability.Config{
		ServiceName:  "shortlink",
		Environment:  cfg.App.Environment,
		OTLPEndpoint: cfg.App.OTLPEndpoint,
	})
	if err != nil {
		log.Fatalf("Failed to setup observability: %v", err)
	}
	logger := obs.Logger

	// Connect to database
	db, err := infra.NewPostgresPool(ctx, cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("database connected")

	// Connect to cache
	cache, err := infra.NewCacheClient(ctx, cfg.Cache.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to cache: %v", err)
	}
	defer cache.Close()
	logger.Info("cache connected")

	// Visit sink: direct database inserts by default, or the RabbitMQ
	// pipeline consumed by cmd/worker.
	var recorder service.VisitRecorder
	if cfg.App.VisitSink == config.VisitSinkAMQP {
		conn, ch, err := infra.NewAMQPChannel(cfg.Broker.ConnectionString())
		if err != nil {
			log.Fatalf("Failed to connect to broker: %v", err)
		}
		defer conn.Close()

		recorder, err = analytics.NewPublisher(ch, cfg.Broker.Queue)
		if err != nil {
			log.Fatalf("Failed to setup visit publisher: %v", err)
		}
		logger.Info("visit sink: amqp", slog.String("queue", cfg.Broker.Queue))
	} else {
		logger.Info("visit sink: database")
	}

	srv := server.NewServer(cfg, db, cache, obs, recorder)

	// Start server in a goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Server.Port),
			slog.String("base_url", cfg.App.BaseURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	// Wait for interrupt signal (Ctrl+C or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Create shutdown context with 10 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	obs.Shutdown(shutdownCtx)
	logger.Info("server exited gracefully")
}
