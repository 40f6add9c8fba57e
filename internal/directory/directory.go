// Package directory is the redis-backed recipient directory: it maps a
// logical recipient identity to registered device push tokens and to a
// cross-instance presence flag. The directory is read-mostly from the
// core's perspective; token registration and removal belong to the
// surrounding system.
package directory

import (
	"context"
	"fmt"
	"time"

	"school-ride/internal/general/logger"

	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyFmt      = "push_tokens:%s:%d"  // e.g. push_tokens:parent:42
	rideParentKeyFmt = "ride_parents:%d"    // set of parent ids riding ride N
	presenceKeyFmt   = "presence:%s"        // room-style key, e.g. presence:parent:42
	presenceTTL      = 12 * time.Hour       // safety net against crashed instances leaving flags behind
)

type Directory struct {
	rdb    *redis.Client
	logger *logger.Logger
}

// Connect dials redis and verifies the connection.
func Connect(ctx context.Context, addr string, db int, log *logger.Logger) (*Directory, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info(ctx, "redis_connected", "Connected to redis directory", map[string]any{"addr": addr})
	return &Directory{rdb: rdb, logger: log}, nil
}

// New wraps an existing client (tests).
func New(rdb *redis.Client, log *logger.Logger) *Directory {
	return &Directory{rdb: rdb, logger: log}
}

func (d *Directory) Close() error {
	return d.rdb.Close()
}

// TokensFor returns the device push tokens registered for a recipient,
// e.g. role "parent" and id 42.
func (d *Directory) TokensFor(ctx context.Context, role string, id int64) ([]string, error) {
	tokens, err := d.rdb.SMembers(ctx, fmt.Sprintf(tokenKeyFmt, role, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("directory: tokens for %s:%d: %w", role, id, err)
	}
	return tokens, nil
}

// ParentsForRide returns the ids of the parents whose children ride the
// given daily ride. Maintained by the ride CRUD layer, read-only here.
func (d *Directory) ParentsForRide(ctx context.Context, rideID int64) ([]int64, error) {
	raw, err := d.rdb.SMembers(ctx, fmt.Sprintf(rideParentKeyFmt, rideID)).Result()
	if err != nil {
		return nil, fmt.Errorf("directory: parents for ride %d: %w", rideID, err)
	}

	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		var id int64
		if _, err := fmt.Sscanf(s, "%d", &id); err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// SetOnline marks a recipient key (room-style, e.g. "parent:42") as
// holding a live connection somewhere in the fleet.
func (d *Directory) SetOnline(ctx context.Context, key, connID string) {
	if err := d.rdb.Set(ctx, fmt.Sprintf(presenceKeyFmt, key), connID, presenceTTL).Err(); err != nil {
		d.logger.Error(ctx, "presence_set_failed", "Failed to set presence flag", err, map[string]any{"key": key})
	}
}

// SetOffline clears the presence flag, but only if this connection still
// owns it (a reconnect on another instance may have overwritten it).
func (d *Directory) SetOffline(ctx context.Context, key, connID string) {
	rkey := fmt.Sprintf(presenceKeyFmt, key)
	owner, err := d.rdb.Get(ctx, rkey).Result()
	if err == nil && owner != connID {
		return
	}
	if err := d.rdb.Del(ctx, rkey).Err(); err != nil {
		d.logger.Error(ctx, "presence_clear_failed", "Failed to clear presence flag", err, map[string]any{"key": key})
	}
}

// IsOnline reports whether any instance currently holds a live
// connection for the recipient key.
func (d *Directory) IsOnline(ctx context.Context, key string) bool {
	n, err := d.rdb.Exists(ctx, fmt.Sprintf(presenceKeyFmt, key)).Result()
	if err != nil {
		d.logger.Error(ctx, "presence_check_failed", "Failed to check presence flag; assuming offline", err,
			map[string]any{"key": key})
		return false
	}
	return n > 0
}
