package relay

import (
	"context"

	"school-ride/internal/general/logger"
	"school-ride/internal/general/metrics"
	"school-ride/internal/general/rabbitmq"

	"github.com/google/uuid"
)

// AMQP carries the relay over RabbitMQ fanout exchanges. The shared
// rabbitmq.Client opens an independent channel per direction, so the
// publish handle and each subscription never block one another.
type AMQP struct {
	client *rabbitmq.Client
	logger *logger.Logger
}

var (
	_ Publisher  = (*AMQP)(nil)
	_ Subscriber = (*AMQP)(nil)
)

// NewAMQP wraps an already-connected broker client.
func NewAMQP(client *rabbitmq.Client, log *logger.Logger) *AMQP {
	return &AMQP{client: client, logger: log}
}

// Publish sends one envelope to the topic's fanout exchange.
func (r *AMQP) Publish(ctx context.Context, topic string, payload []byte) error {
	exchange, err := exchangeFor(topic)
	if err != nil {
		return err
	}

	if err := r.client.PublishFanout(ctx, exchange, payload); err != nil {
		return err
	}

	metrics.EnvelopesPublished.WithLabelValues(topic).Inc()
	return nil
}

// Subscribe binds an exclusive queue to the topic's exchange and feeds
// every delivery to h on a dedicated goroutine.
func (r *AMQP) Subscribe(ctx context.Context, topic string, h Handler) (*Subscription, error) {
	exchange, err := exchangeFor(topic)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}
	tag := "tracking-" + uuid.NewString()[:8]

	go func() {
		defer close(sub.done)
		if err := r.client.ConsumeFanout(subCtx, exchange, tag, h); err != nil {
			r.logger.Error(subCtx, "relay_subscription_ended", "Relay subscription terminated", err,
				map[string]any{"topic": topic})
		}
	}()

	return sub, nil
}
