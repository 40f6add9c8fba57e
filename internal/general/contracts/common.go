package contracts

import (
	"fmt"
	"time"
)

// Envelope adds cross-cutting headers all relayed messages may carry.
type Envelope struct {
	CorrelationID string    `json:"correlation_id,omitempty"` // correlation for tracing across instances
	Producer      string    `json:"producer,omitempty"`       // producer service name, e.g. "tracking-service"
	SentAt        time.Time `json:"sent_at,omitempty"`        // ISO-8601 send time (UTC)
}

// GeoSample is a single GPS sample as carried on the bus.
type GeoSample struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomDriver is the room a driver's own app listens on.
func RoomDriver(driverID int64) string {
	return fmt.Sprintf("driver:%d", driverID)
}

// RoomParent is the room a riding student's parent listens on.
func RoomParent(parentID int64) string {
	return fmt.Sprintf("parent:%d", parentID)
}
