// The worker drains the visit queue and persists each record. It exists
// so the server can hand visit recording to the broker and stay fast on
// the redirect path; running it is only required with VISIT_SINK=amqp.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/behzodk/shortlink/internal/analytics"
	"github.com/behzodk/shortlink/internal/config"
	"github.com/behzodk/shortlink/internal/infra"
	"github.com/behzodk/shortlink/internal/observability"
	"github.com/behzodk/shortlink/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := observability.NewLogger(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := infra.NewPostgresPool(ctx, cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	conn, ch, err := infra.NewAMQPChannel(cfg.Broker.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	defer conn.Close()

	consumer, err := analytics.NewConsumer(ch, cfg.Broker.Queue, repository.NewVisitRepository(db), logger)
	if err != nil {
		log.Fatalf("Failed to setup consumer: %v", err)
	}

	logger.Info("worker started", slog.String("queue", cfg.Broker.Queue))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Worker stopped: %v", err)
	}
	logger.Info("worker exited gracefully")
}
