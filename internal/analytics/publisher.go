// Package analytics implements the visit-recording pipeline: a direct
// database sink lives in the repository layer, while this package adds a
// RabbitMQ publisher consumed by cmd/worker and a circuit breaker shared
// by both sinks. Visit recording is best-effort end to end; a lost
// record is acceptable and never blocks a redirect.
package analytics

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/behzodk/shortlink/internal/model"
)

// VisitQueue is the queue visits travel on between server and worker.
const VisitQueue = "shortlink.visits"

// Publisher sends visit records to RabbitMQ as persistent JSON messages.
type Publisher struct {
	ch    *amqp.Channel
	queue string
}

// NewPublisher declares the durable visit queue on the given channel
// and returns a publisher bound to it.
func NewPublisher(ch *amqp.Channel, queue string) (*Publisher, error) {
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return nil, err
	}
	return &Publisher{ch: ch, queue: queue}, nil
}

// Record publishes one visit. Implements service.VisitRecorder.
func (p *Publisher) Record(ctx context.Context, visit *model.Visit) error {
	body, err := json.Marshal(visit)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
