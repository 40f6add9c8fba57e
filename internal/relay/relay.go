// Package relay is the cross-instance fan-out bus. Every subscribing
// instance receives every message published on a topic it subscribed to
// (broadcast, not competing-consumer). Delivery is best-effort and
// unordered across publishers; per-publisher FIFO comes from the
// underlying transport connection only.
package relay

import (
	"context"
	"errors"
	"fmt"

	"school-ride/internal/general/contracts"
)

// Handler processes one relayed payload. Handlers must never fail the
// subscription: a malformed payload is the handler's problem to log and
// drop.
type Handler func(ctx context.Context, payload []byte)

// Publisher is the producer-side handle of the relay.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Subscriber is the consumer-side handle of the relay.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, h Handler) (*Subscription, error)
}

// Subscription is a live topic subscription. Close stops delivery.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Close stops the subscription and waits for its delivery loop to exit.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// ErrUnknownTopic rejects topics outside the closed set declared in
// contracts. New topics are added there, not invented at call sites.
var ErrUnknownTopic = errors.New("relay: unknown topic")

// exchangeFor maps a topic to its backing exchange. The switch is the
// single place the topic set is enumerated.
func exchangeFor(topic string) (string, error) {
	switch topic {
	case contracts.TopicDriverLocation:
		return contracts.ExchangeDriverLocation, nil
	case contracts.TopicRideNotify:
		return contracts.ExchangeRideNotify, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
}
