package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// newFanoutChannel opens a fresh channel, declares an exclusive
// auto-delete queue, and binds it to the exchange. The broker names the
// queue; it disappears with the channel, so a restarted instance starts
// from a clean slate instead of draining a backlog of stale positions.
func (client *Client) newFanoutChannel(exchange string) (*amqp.Channel, string, error) {
	client.mu.RLock()
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, "", errors.New("rabbitmq: connection is not ready")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, "", fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	q, err := ch.QueueDeclare("", false /* durable */, true /* autoDelete */, true /* exclusive */, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, "", fmt.Errorf("rabbitmq: declare fanout queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, "", fmt.Errorf("rabbitmq: bind %s to %s: %w", q.Name, exchange, err)
	}

	return ch, q.Name, nil
}

// ConsumeFanout consumes a fanout exchange until ctx is cancelled or the
// client is closed. Deliveries are auto-acked: the stream is best-effort
// and a redelivered position would be stale by the time it arrived. When
// the channel dies the loop re-subscribes, waiting out reconnects with
// the same pacing the connection watcher uses.
func (client *Client) ConsumeFanout(
	ctx context.Context,
	exchange string,
	consumerTag string,
	handler func(ctx context.Context, body []byte),
) error {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-client.closed:
			return nil
		default:
		}

		ch, queue, err := client.newFanoutChannel(exchange)
		if err != nil {
			attempt++
			delay, retry := client.policy.NextDelay(attempt)
			if !retry {
				return fmt.Errorf("rabbitmq: subscribe to %s abandoned: %w", exchange, err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		attempt = 0

		if err := client.consumeLoop(ctx, ch, queue, consumerTag, handler); err != nil {
			client.logger.Error(client.logCtx, "rabbitmq_consume_interrupted",
				"Fanout consumer interrupted; will re-subscribe", err,
				map[string]any{"exchange": exchange})
		}
		_ = ch.Close()
	}
}

// consumeLoop drains deliveries from one channel until it closes.
func (client *Client) consumeLoop(
	ctx context.Context,
	ch *amqp.Channel,
	queue string,
	consumerTag string,
	handler func(ctx context.Context, body []byte),
) error {
	deliveries, err := ch.Consume(
		queue,
		consumerTag,
		true,  // autoAck
		true,  // exclusive
		false, // noLocal (ignored by RabbitMQ)
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume(%s): %w", queue, err)
	}

	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			if consumerTag != "" {
				_ = ch.Cancel(consumerTag, false)
			}
			return nil

		case cerr := <-chClosed:
			if cerr != nil {
				return fmt.Errorf("rabbitmq: channel closed while consuming %s: %w", queue, cerr)
			}
			return nil

		case d, ok := <-deliveries:
			if !ok {
				// deliveries stream ended
				return nil
			}

			hCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			handler(hCtx, d.Body)
			cancel()
		}
	}
}
