package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PublishFanout publishes a JSON body to a fanout exchange and waits for
// the broker confirm. Fan-out messages are transient: a position sample
// that survives a broker restart is already stale, so there is no point
// persisting it.
func (client *Client) PublishFanout(ctx context.Context, exchange string, body []byte) error {
	client.mu.RLock()
	ch := client.pubChan
	conn := client.conn
	client.mu.RUnlock()

	// quick fail if no channel
	if conn == nil || conn.IsClosed() {
		return errors.New("rabbitmq: connection is not open")
	}
	if ch == nil || ch.IsClosed() {
		return errors.New("rabbitmq: publish channel is not open")
	}

	// serialize publishers so confirms stay aligned with publishes
	client.pubMu.Lock()
	defer client.pubMu.Unlock()
	confirms := client.pubConfirms

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := ch.PublishWithContext(pubCtx, exchange, "", false /* mandatory */, false, /* immediate */
		amqp.Publishing{
			DeliveryMode: amqp.Transient,
			ContentType:  "application/json",
			Body:         body,
		},
	); err != nil {
		return err
	}

	select {
	case c := <-confirms:
		if !c.Ack {
			return fmt.Errorf("rabbitmq: publish not acknowledged")
		}
	case <-pubCtx.Done():
		// keep the confirm stream aligned: try to consume exactly one
		// confirm even if we return a timeout to the caller
		select {
		case c := <-confirms:
			if !c.Ack {
				return fmt.Errorf("rabbitmq: publish not acknowledged after timeout")
			}
		case <-time.After(2 * time.Second):
			// give up trying to read from the confirms channel
		}

		return pubCtx.Err()
	}

	return nil
}
