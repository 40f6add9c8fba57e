package postgres

import (
	"context"
	"fmt"

	"school-ride/internal/ingest"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LocationStore persists the canonical driver position with pgx and
// plain SQL. One upsert keeps the last-known row current; one insert
// appends to the history table for later offline inspection.
type LocationStore struct {
	pool *pgxpool.Pool
}

var _ ingest.LocationStore = (*LocationStore)(nil)

func NewLocationStore(pool *pgxpool.Pool) *LocationStore {
	return &LocationStore{pool: pool}
}

// SaveLastKnown records the sample as the driver's current position.
func (s *LocationStore) SaveLastKnown(ctx context.Context, upd ingest.LocationUpdate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO driver_locations (driver_id, latitude, longitude, observed_at, ride_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0))
		ON CONFLICT (driver_id) DO UPDATE SET
			latitude    = EXCLUDED.latitude,
			longitude   = EXCLUDED.longitude,
			observed_at = EXCLUDED.observed_at,
			ride_id     = EXCLUDED.ride_id
	`, upd.DriverID, upd.Latitude, upd.Longitude, upd.ObservedAt, upd.RideID)
	if err != nil {
		return fmt.Errorf("upsert driver_locations: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO location_history (driver_id, latitude, longitude, observed_at, ride_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0))
	`, upd.DriverID, upd.Latitude, upd.Longitude, upd.ObservedAt, upd.RideID)
	if err != nil {
		return fmt.Errorf("insert location_history: %w", err)
	}

	return tx.Commit(ctx)
}
