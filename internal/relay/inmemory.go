package relay

import (
	"context"
	"sync"

	"school-ride/internal/general/metrics"
)

// InMemory is a process-local relay with the same broadcast semantics as
// the AMQP one. Used by tests and single-node dev runs; it obviously
// cannot cross instances.
type InMemory struct {
	mu   sync.RWMutex
	subs map[string][]*memSub
}

type memSub struct {
	handler Handler
	closed  bool
}

var (
	_ Publisher  = (*InMemory)(nil)
	_ Subscriber = (*InMemory)(nil)
)

func NewInMemory() *InMemory {
	return &InMemory{subs: make(map[string][]*memSub)}
}

// Publish delivers the payload synchronously to every live subscriber of
// the topic. Synchronous delivery keeps tests deterministic.
func (r *InMemory) Publish(ctx context.Context, topic string, payload []byte) error {
	if _, err := exchangeFor(topic); err != nil {
		return err
	}

	r.mu.RLock()
	subs := make([]*memSub, len(r.subs[topic]))
	copy(subs, r.subs[topic])
	r.mu.RUnlock()

	for _, s := range subs {
		if !s.closed {
			s.handler(ctx, payload)
		}
	}

	metrics.EnvelopesPublished.WithLabelValues(topic).Inc()
	return nil
}

func (r *InMemory) Subscribe(ctx context.Context, topic string, h Handler) (*Subscription, error) {
	if _, err := exchangeFor(topic); err != nil {
		return nil, err
	}

	s := &memSub{handler: h}
	r.mu.Lock()
	r.subs[topic] = append(r.subs[topic], s)
	r.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		<-subCtx.Done()
		r.mu.Lock()
		s.closed = true
		r.mu.Unlock()
		close(sub.done)
	}()

	return sub, nil
}
