package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"school-ride/internal/domain/user"
	"school-ride/internal/general/contracts"
	"school-ride/internal/ingest"

	"github.com/google/uuid"
)

// handleLocation feeds a driver's GPS frame into the ingestor. Only
// validation failures travel back to the producer; everything past the
// ingestor is best-effort by design.
func (g *Gateway) handleLocation(ctx context.Context, c *client, data json.RawMessage) {
	if c.role != user.RoleDriver {
		c.writeError("forbidden", "only drivers submit locations")
		return
	}

	var raw ingest.RawUpdate
	if err := json.Unmarshal(data, &raw); err != nil {
		c.writeError("bad_payload", "location payload must be JSON")
		return
	}
	// the socket identity is authoritative, not the payload
	raw.DriverID = c.userID

	if err := g.ingestor.Submit(ctx, raw); err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			c.writeError("invalid_location", verr.Error())
			return
		}
		g.logger.Error(ctx, "location_submit_failed", "Ingestor rejected update for a non-validation reason", err, nil)
		c.writeError("internal", "could not accept location update")
	}
}

// pickupAction mirrors the gateway-level "pickup" payload.
type pickupAction struct {
	DriverID       string `json:"driverId"`
	ChildID        string `json:"childId"`
	ParentSocketID string `json:"parentSocketId"` // parent recipient key, e.g. "parent:42"
}

// pickupAllAction mirrors the gateway-level "pickup-all" payload.
type pickupAllAction struct {
	DriverID string `json:"driverId"`
	RideID   string `json:"rideId"`
}

// handlePickup notifies one parent that their child was picked up.
func (g *Gateway) handlePickup(ctx context.Context, c *client, data json.RawMessage) {
	if c.role != user.RoleDriver {
		c.writeError("forbidden", "only drivers confirm pickups")
		return
	}

	var action pickupAction
	if err := json.Unmarshal(data, &action); err != nil {
		c.writeError("bad_payload", "pickup payload must be JSON")
		return
	}

	parentID, err := parseRecipientID(action.ParentSocketID)
	if err != nil {
		c.writeError("bad_payload", "parentSocketId must name a parent")
		return
	}
	childID, _ := strconv.ParseInt(action.ChildID, 10, 64)

	msg := contracts.RideNotificationMessage{
		Kind:      contracts.NotifyPickup,
		DriverID:  c.userID,
		ChildID:   childID,
		ParentIDs: []int64{parentID},
		Title:     "Pickup confirmed",
		Body:      "Your child has been picked up and is on the way.",
	}
	g.notifyParents(ctx, msg)
}

// handlePickupAll notifies every parent on the ride at once.
func (g *Gateway) handlePickupAll(ctx context.Context, c *client, data json.RawMessage) {
	if c.role != user.RoleDriver {
		c.writeError("forbidden", "only drivers confirm pickups")
		return
	}

	var action pickupAllAction
	if err := json.Unmarshal(data, &action); err != nil {
		c.writeError("bad_payload", "pickup-all payload must be JSON")
		return
	}

	rideID, err := strconv.ParseInt(action.RideID, 10, 64)
	if err != nil || rideID <= 0 {
		c.writeError("bad_payload", "rideId must be a positive number")
		return
	}

	parents, err := g.directory.ParentsForRide(ctx, rideID)
	if err != nil {
		g.logger.Error(ctx, "ride_parents_lookup_failed", "Could not resolve parents for ride", err,
			map[string]any{"ride_id": rideID})
		c.writeError("internal", "could not resolve ride recipients")
		return
	}
	if len(parents) == 0 {
		return
	}

	msg := contracts.RideNotificationMessage{
		Kind:      contracts.NotifyPickupAll,
		DriverID:  c.userID,
		RideID:    rideID,
		ParentIDs: parents,
		Title:     "Bus on the way",
		Body:      "All children are picked up; the ride has started.",
	}
	g.notifyParents(ctx, msg)
}

// notifyParents publishes the notification on the relay for every
// instance's router, then pushes to each parent who has no live
// connection anywhere in the fleet.
func (g *Gateway) notifyParents(ctx context.Context, msg contracts.RideNotificationMessage) {
	msg.Envelope = contracts.Envelope{
		CorrelationID: uuid.NewString(),
		Producer:      g.producer,
		SentAt:        time.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		g.logger.Error(ctx, "notify_marshal_failed", "Failed to marshal notification envelope", err, nil)
		return
	}

	if err := g.publisher.Publish(ctx, contracts.TopicRideNotify, body); err != nil {
		g.logger.Error(ctx, "notify_publish_failed", "Failed to publish notification envelope", err,
			map[string]any{"kind": msg.Kind})
	}

	data := map[string]string{
		"kind":     msg.Kind,
		"driverId": strconv.FormatInt(msg.DriverID, 10),
	}
	if msg.RideID != 0 {
		data["rideId"] = strconv.FormatInt(msg.RideID, 10)
	}

	for _, parentID := range msg.ParentIDs {
		if g.directory.IsOnline(ctx, contracts.RoomParent(parentID)) {
			continue
		}

		tokens, err := g.directory.TokensFor(ctx, "parent", parentID)
		if err != nil {
			g.logger.Error(ctx, "token_lookup_failed", "Could not load push tokens; parent unreachable", err,
				map[string]any{"parent_id": parentID})
			continue
		}
		if len(tokens) == 0 {
			g.logger.Info(ctx, "parent_unreachable", "Parent offline with no registered tokens", map[string]any{
				"parent_id": parentID,
			})
			continue
		}

		report := g.dispatcher.Send(ctx, tokens, msg.Title, msg.Body, data)
		g.logger.Info(ctx, "push_fallback_sent", "Dispatched push fallback for offline parent", map[string]any{
			"parent_id":      parentID,
			"sent":           report.Sent,
			"invalid_tokens": len(report.InvalidTokens),
		})
	}
}

// subscribeAction names one extra room to join or leave.
type subscribeAction struct {
	Room string `json:"room"`
}

// handleSubscribe lets a client follow rooms beyond its defaults, e.g.
// a parent watching the assigned driver during an active ride.
func (g *Gateway) handleSubscribe(ctx context.Context, c *client, data json.RawMessage, join bool) {
	var action subscribeAction
	if err := json.Unmarshal(data, &action); err != nil || action.Room == "" {
		c.writeError("bad_payload", "subscribe payload must name a room")
		return
	}

	if !g.roomAllowed(c, action.Room) {
		c.writeError("forbidden", "room not allowed for this role")
		return
	}

	if join {
		g.rooms.Join(action.Room, c)
	} else {
		g.rooms.Leave(action.Room, c)
	}
	g.logger.Debug(ctx, "room_subscription_changed", "Room membership updated", map[string]any{
		"room": action.Room, "join": join, "user_id": c.userID,
	})
}

// roomAllowed is the membership policy: admins go anywhere, parents may
// watch driver rooms (ride assignment is enforced upstream), everyone
// owns their identity room.
func (g *Gateway) roomAllowed(c *client, room string) bool {
	switch c.role {
	case user.RoleAdmin:
		return true
	case user.RoleParent:
		return room == contracts.RoomParent(c.userID) || strings.HasPrefix(room, "driver:")
	case user.RoleDriver:
		return room == contracts.RoomDriver(c.userID)
	default:
		return false
	}
}

// parseRecipientID extracts the numeric id from a recipient key that
// may carry a "parent:" prefix.
func parseRecipientID(s string) (int64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "parent:")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("not a recipient id")
	}
	return id, nil
}
