// Package router re-emits relayed events to the live connections local
// to this instance. It holds no cross-instance knowledge: "every
// interested client eventually sees the event" relies on every instance
// running an identical router subscribed to the same topics.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"school-ride/internal/general/contracts"
	"school-ride/internal/general/logger"
	"school-ride/internal/general/metrics"
	"school-ride/internal/relay"
)

// ErrAlreadyStarted guards the Bind-before-Start precondition.
var ErrAlreadyStarted = errors.New("router: already started")

// Router parses relayed payloads, decides the target rooms, and hands
// the event to the bound sink. Unparseable payloads are logged and
// dropped; a malformed message never tears down the subscription.
type Router struct {
	logger *logger.Logger

	mu      sync.Mutex
	sink    Sink
	started bool

	// lastSeen tracks the freshest sample timestamp emitted per driver.
	// Envelopes strictly older than it are dropped, so out-of-order
	// delivery across relay hops cannot show a stale position after a
	// fresher one. Identical timestamps still pass: the router performs
	// no deduplication.
	lastSeen map[int64]time.Time
}

func New(log *logger.Logger) *Router {
	return &Router{
		logger:   log,
		sink:     noopSink{},
		lastSeen: make(map[int64]time.Time),
	}
}

// Bind installs the real sink. Must be called before Start; events
// arriving earlier vanish into the no-op sink.
func (r *Router) Bind(sink Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrAlreadyStarted
	}
	r.sink = sink
	return nil
}

// Start subscribes the router to the relay topics. The returned
// subscriptions stay live until closed or ctx is cancelled.
func (r *Router) Start(ctx context.Context, sub relay.Subscriber) ([]*relay.Subscription, error) {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	locSub, err := sub.Subscribe(ctx, contracts.TopicDriverLocation, r.HandleLocation)
	if err != nil {
		return nil, err
	}

	notifySub, err := sub.Subscribe(ctx, contracts.TopicRideNotify, r.HandleNotification)
	if err != nil {
		locSub.Close()
		return nil, err
	}

	return []*relay.Subscription{locSub, notifySub}, nil
}

// HandleLocation routes one driver location envelope. Every location
// event reaches admin:panel; the driver's own room is addressed because
// the payload names the driver.
func (r *Router) HandleLocation(ctx context.Context, payload []byte) {
	var msg contracts.DriverLocationMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.DriverID == 0 {
		if err == nil {
			err = errors.New("missing driverId")
		}
		metrics.RoutingAnomalies.Inc()
		r.logger.Error(ctx, "routing_anomaly", "Dropping unparseable location payload", err,
			map[string]any{"raw": string(payload)})
		return
	}

	if r.dropStale(msg.DriverID, msg.Location.Timestamp) {
		metrics.StaleDropped.Inc()
		r.logger.Debug(ctx, "stale_location_dropped", "Dropping location older than last emitted", map[string]any{
			"driver_id": msg.DriverID,
			"timestamp": msg.Location.Timestamp,
		})
		return
	}

	event := contracts.WSLocationUpdate{
		RideID:      msg.RideID,
		DriverID:    msg.DriverID,
		Location:    msg.Location,
		TimestampMS: time.Now().UnixMilli(),
	}

	sink := r.currentSink()
	sink.Emit(ctx, contracts.RoomAdminPanel, contracts.EventLocationUpdate, event)
	sink.Emit(ctx, contracts.RoomDriver(msg.DriverID), contracts.EventLocationUpdate, event)
}

// HandleNotification routes one ride notification envelope to the
// parent rooms it explicitly names.
func (r *Router) HandleNotification(ctx context.Context, payload []byte) {
	var msg contracts.RideNotificationMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Kind == "" {
		if err == nil {
			err = errors.New("missing kind")
		}
		metrics.RoutingAnomalies.Inc()
		r.logger.Error(ctx, "routing_anomaly", "Dropping unparseable notification payload", err,
			map[string]any{"raw": string(payload)})
		return
	}

	event := contracts.WSNotification{
		Kind:     msg.Kind,
		DriverID: msg.DriverID,
		ChildID:  msg.ChildID,
		RideID:   msg.RideID,
		Title:    msg.Title,
		Body:     msg.Body,
	}

	sink := r.currentSink()
	for _, parentID := range msg.ParentIDs {
		sink.Emit(ctx, contracts.RoomParent(parentID), contracts.EventNotification, event)
	}
}

// dropStale reports whether ts is strictly older than the freshest
// emitted sample for the driver, updating the watermark otherwise.
func (r *Router) dropStale(driverID int64, ts time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if last, ok := r.lastSeen[driverID]; ok && ts.Before(last) {
		return true
	}
	r.lastSeen[driverID] = ts
	return false
}

func (r *Router) currentSink() Sink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sink
}
