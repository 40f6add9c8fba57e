// Package ingest validates incoming location updates and feeds the
// fan-out pipeline. The producer only ever sees validation failures;
// everything downstream (persistence, relay, routing, push) is
// best-effort and observable through logs and metrics only.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"school-ride/internal/general/contracts"
	"school-ride/internal/general/logger"
	"school-ride/internal/general/metrics"
	"school-ride/internal/relay"

	"github.com/google/uuid"
)

// RawUpdate is the untrusted inbound shape. Pointers distinguish absent
// coordinates from a legitimate 0.0.
type RawUpdate struct {
	DriverID    int64    `json:"driverId"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Timestamp   string   `json:"timestamp"` // ISO-8601
	DailyRideID int64    `json:"dailyRideId,omitempty"`
}

// LocationUpdate is one validated GPS sample. Immutable once
// constructed; discarded after the publish call.
type LocationUpdate struct {
	DriverID   int64
	Latitude   float64
	Longitude  float64
	ObservedAt time.Time
	RideID     int64 // 0 when the sample is not tied to a ride
}

// ValidationError enumerates the offending fields of a rejected update.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid location update: " + strings.Join(e.Fields, "; ")
}

// LocationStore persists the canonical last-known position. Write-only
// from the ingestor's perspective.
type LocationStore interface {
	SaveLastKnown(ctx context.Context, upd LocationUpdate) error
}

// Service is the update ingestor.
type Service struct {
	store     LocationStore
	publisher relay.Publisher
	logger    *logger.Logger
	producer  string // Envelope.Producer value
}

func NewService(store LocationStore, pub relay.Publisher, log *logger.Logger, producer string) *Service {
	return &Service{store: store, publisher: pub, logger: log, producer: producer}
}

// Submit validates the raw update and, on success, persists the
// canonical copy and publishes exactly one envelope on the driver
// location topic. Rejection has no side effects. Persistence failure is
// logged but does not block delivery. Duplicate samples are relayed as
// distinct events; consumers handle idempotency.
func (s *Service) Submit(ctx context.Context, raw RawUpdate) error {
	upd, verr := validate(raw)
	if verr != nil {
		metrics.UpdatesRejected.Inc()
		return verr
	}
	metrics.UpdatesAccepted.Inc()

	// canonical record write is fire-and-forget relative to fan-out
	if err := s.store.SaveLastKnown(ctx, upd); err != nil {
		s.logger.Error(ctx, "location_persist_failed", "Failed to persist canonical location; continuing with relay", err,
			map[string]any{"driver_id": upd.DriverID})
	}

	msg := contracts.DriverLocationMessage{
		DriverID: upd.DriverID,
		Location: contracts.GeoSample{
			Latitude:  upd.Latitude,
			Longitude: upd.Longitude,
			Timestamp: upd.ObservedAt,
		},
		RideID: upd.RideID,
		Envelope: contracts.Envelope{
			CorrelationID: uuid.NewString(),
			Producer:      s.producer,
			SentAt:        time.Now().UTC(),
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		// contracts structs always marshal; treat as a programming error
		return fmt.Errorf("marshal location envelope: %w", err)
	}

	if err := s.publisher.Publish(ctx, contracts.TopicDriverLocation, body); err != nil {
		// transport errors are recovered at the relay; from the
		// producer's point of view the update was accepted
		s.logger.Error(ctx, "location_publish_failed", "Failed to publish location envelope", err,
			map[string]any{"driver_id": upd.DriverID})
	}

	return nil
}

// validate checks field presence and numeric ranges without touching
// any state.
func validate(raw RawUpdate) (LocationUpdate, *ValidationError) {
	var fields []string

	if raw.DriverID <= 0 {
		fields = append(fields, "driverId must be a positive number")
	}
	if raw.Latitude == nil {
		fields = append(fields, "latitude is required")
	} else if *raw.Latitude < -90 || *raw.Latitude > 90 {
		fields = append(fields, "latitude must be within [-90, 90]")
	}
	if raw.Longitude == nil {
		fields = append(fields, "longitude is required")
	} else if *raw.Longitude < -180 || *raw.Longitude > 180 {
		fields = append(fields, "longitude must be within [-180, 180]")
	}

	var observedAt time.Time
	if strings.TrimSpace(raw.Timestamp) == "" {
		fields = append(fields, "timestamp is required")
	} else {
		t, err := time.Parse(time.RFC3339, raw.Timestamp)
		if err != nil {
			fields = append(fields, "timestamp must be an ISO-8601 datetime")
		} else {
			observedAt = t.UTC()
		}
	}

	if raw.DailyRideID < 0 {
		fields = append(fields, "dailyRideId must not be negative")
	}

	if len(fields) > 0 {
		return LocationUpdate{}, &ValidationError{Fields: fields}
	}

	return LocationUpdate{
		DriverID:   raw.DriverID,
		Latitude:   *raw.Latitude,
		Longitude:  *raw.Longitude,
		ObservedAt: observedAt,
		RideID:     raw.DailyRideID,
	}, nil
}
