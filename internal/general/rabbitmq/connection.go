package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"school-ride/internal/general/config"
	"school-ride/internal/general/logger"
	"school-ride/internal/general/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Client is a resilient RabbitMQ connector with policy-driven reconnect
// and topology setup. It is the one broker resource shared by the whole
// instance: the publish side and every subscription get their own AMQP
// channel off the same connection, so blocking on one side cannot stall
// the other.
type Client struct {
	url    string
	policy ReconnectPolicy
	logger *logger.Logger
	logCtx context.Context // context for logging (without cancel)

	mu      sync.RWMutex
	conn    *amqp.Connection
	pubChan *amqp.Channel

	pubMu       sync.Mutex
	pubConfirms chan amqp.Confirmation

	closed    chan struct{}
	reconnect chan struct{}
}

// Connect establishes the connection and starts a background watcher
// that reconnects on failures according to the given policy (nil means
// AlwaysReconnect with 1s step and a 30s cap).
func Connect(ctx context.Context, cfg *config.Config, policy ReconnectPolicy, log *logger.Logger) (*Client, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)

	if policy == nil {
		policy = AlwaysReconnect{Step: time.Second, Cap: 30 * time.Second}
	}

	client := &Client{
		url:       url,
		policy:    policy,
		logger:    log,
		logCtx:    context.WithoutCancel(ctx), // avoid ctx cancel on reconnects
		closed:    make(chan struct{}),
		reconnect: make(chan struct{}, 1),
	}

	// initial connect (single attempt; further retries happen in the watcher)
	if err := client.connectOnce(); err != nil {
		return nil, err
	}

	go client.watch()

	return client, nil
}

// Close gracefully stops the watcher and closes AMQP resources.
func (client *Client) Close() {
	select {
	case <-client.closed:
		// already closed
	default:
		close(client.closed)
	}

	client.mu.Lock()
	if client.pubChan != nil {
		_ = client.pubChan.Close()
		client.pubChan = nil
	}
	if client.conn != nil {
		_ = client.conn.Close()
		client.conn = nil
	}
	client.mu.Unlock()

	// close the confirms channel so any waiters exit cleanly
	client.pubMu.Lock()
	if client.pubConfirms != nil {
		close(client.pubConfirms)
		client.pubConfirms = nil
	}
	client.pubMu.Unlock()
}

// --- internals ---

// connectOnce tries to connect and set up topology once.
func (client *Client) connectOnce() error {
	conn, err := amqp.DialConfig(client.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_dial_failed", "Failed to dial RabbitMQ", err, nil)
		return fmt.Errorf("rabbitmq dial failed: %w", err)
	}

	defer func() {
		if err != nil && conn != nil {
			_ = conn.Close()
		}
	}()

	// channel dedicated to publishing
	ch, err := conn.Channel()
	if err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_open_channel_failed", "Failed to open RabbitMQ channel", err, nil)
		return fmt.Errorf("rabbitmq: failed to open channel: %w", err)
	}

	defer func() {
		if err != nil && ch != nil {
			_ = ch.Close()
		}
	}()

	if err = declareTopology(ch); err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_declare_topology_failed", "Failed to declare RabbitMQ topology", err, nil)
		return fmt.Errorf("rabbitmq: failed to declare topology: %w", err)
	}

	// enable publisher confirms on the publishing channel
	if err = ch.Confirm(false); err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_enable_confirms_failed", "Failed to enable publisher confirms", err, nil)
		return fmt.Errorf("rabbitmq: failed to enable confirms: %w", err)
	}

	client.pubMu.Lock()
	oldConfirms := client.pubConfirms
	client.pubConfirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	client.pubMu.Unlock()

	if oldConfirms != nil {
		close(oldConfirms)
	}

	// atomically install the new connection + publishing channel
	client.mu.Lock()
	if client.pubChan != nil && !client.pubChan.IsClosed() {
		_ = client.pubChan.Close()
	}
	client.conn = conn
	client.pubChan = ch
	client.mu.Unlock()

	// watch for connection/channel closures and trigger reconnect
	go func(conn *amqp.Connection, ch *amqp.Channel) {
		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-client.closed:
			return
		case <-connClosed:
		case <-chClosed:
		}

		select {
		case client.reconnect <- struct{}{}:
		default:
			// already enqueued; no-op
		}
	}(conn, ch)

	client.logger.Info(client.logCtx, "rabbitmq_connected", "RabbitMQ connection established successfully", nil)

	return nil
}

// watch runs in background and reconnects according to the policy.
// State machine: Connected → Disconnected → Connecting → Connected.
func (client *Client) watch() {
	for {
		select {
		case <-client.closed:
			return
		case <-client.reconnect:
			attempt := 0
			for {
				select {
				case <-client.closed:
					return
				default:
				}

				attempt++
				delay, retry := client.policy.NextDelay(attempt)
				if !retry {
					client.logger.Error(client.logCtx, "rabbitmq_reconnect_abandoned",
						"Reconnect policy gave up; broker connection stays down", nil,
						map[string]any{"attempts": attempt - 1})
					return
				}

				if err := client.connectOnce(); err == nil {
					metrics.RelayReconnects.Inc()
					client.logger.Info(client.logCtx, "rabbitmq_reconnected", "Reconnected to RabbitMQ and re-declared topology", nil)
					break
				} else {
					client.logger.Error(client.logCtx, "rabbitmq_retry_attempted", "Failed to reconnect to RabbitMQ", err,
						map[string]any{"attempt": attempt, "next_delay": delay.String()})
				}

				select {
				case <-client.closed:
					return
				case <-time.After(delay):
				}
			}
		}
	}
}
