package analytics

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/behzodk/shortlink/internal/model"
)

// VisitWriter persists consumed visit records.
type VisitWriter interface {
	Record(ctx context.Context, visit *model.Visit) error
}

// Consumer drains the visit queue and writes each record to the store.
// Malformed messages are dropped; failed writes are requeued once by
// the broker (redelivered messages that fail again are dropped, since
// a lost visit is acceptable and a poison message must not wedge the
// queue).
type Consumer struct {
	ch     *amqp.Channel
	queue  string
	writer VisitWriter
	logger *slog.Logger
}

// NewConsumer declares the durable visit queue and returns a consumer.
func NewConsumer(ch *amqp.Channel, queue string, writer VisitWriter, logger *slog.Logger) (*Consumer, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, err
	}
	return &Consumer{ch: ch, queue: queue, writer: writer, logger: logger}, nil
}

// Run consumes until the context is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(
		c.queue,
		"",    // consumer tag
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var visit model.Visit
	if err := json.Unmarshal(d.Body, &visit); err != nil {
		c.logger.WarnContext(ctx, "dropping malformed visit message",
			slog.String("error", err.Error()))
		_ = d.Nack(false, false)
		return
	}

	if err := c.writer.Record(ctx, &visit); err != nil {
		c.logger.WarnContext(ctx, "failed to persist visit",
			slog.String("short_link_id", visit.ShortLinkID.String()),
			slog.String("error", err.Error()),
			slog.Bool("redelivered", d.Redelivered))
		_ = d.Nack(false, !d.Redelivered)
		return
	}

	_ = d.Ack(false)
}
