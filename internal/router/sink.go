package router

import (
	"context"

	"school-ride/internal/general/logger"
	"school-ride/internal/general/metrics"
)

// Sink receives routed events for a room. The router is constructed with
// a no-op sink and bound to the real one once the connection layer is
// ready (Bind must happen before the relay subscription starts).
type Sink interface {
	Emit(ctx context.Context, room, event string, payload any)
}

type noopSink struct{}

func (noopSink) Emit(context.Context, string, string, any) {}

// RoomSink emits an event to every live local connection in a room.
// A failed write affects only that connection; the gateway's read loop
// notices the dead socket and tears it down.
type RoomSink struct {
	rooms  *Rooms
	logger *logger.Logger
}

func NewRoomSink(rooms *Rooms, log *logger.Logger) *RoomSink {
	return &RoomSink{rooms: rooms, logger: log}
}

func (s *RoomSink) Emit(ctx context.Context, room, event string, payload any) {
	for _, c := range s.rooms.Members(room) {
		if err := c.SendEvent(event, payload); err != nil {
			s.logger.Error(ctx, "room_emit_failed", "Failed to write event to connection", err,
				map[string]any{"room": room, "event": event, "conn_id": c.ID()})
			continue
		}
		metrics.EventsRouted.WithLabelValues(event).Inc()
	}
}
