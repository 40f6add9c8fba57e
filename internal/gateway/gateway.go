// Package gateway owns the websocket connection lifecycle: upgrade,
// first-frame JWT auth, room membership, presence flags, and the action
// frames clients send. The fan-out core never touches sockets directly;
// it reaches them through the rooms this package maintains.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"school-ride/internal/domain/user"
	"school-ride/internal/general/contracts"
	"school-ride/internal/general/jwt"
	"school-ride/internal/general/logger"
	"school-ride/internal/ingest"
	"school-ride/internal/push"
	"school-ride/internal/relay"
	"school-ride/internal/router"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const authTimeout = 10 * time.Second

// Ingestor accepts validated location updates into the pipeline.
type Ingestor interface {
	Submit(ctx context.Context, raw ingest.RawUpdate) error
}

// Dispatcher is the push fallback for offline recipients.
type Dispatcher interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]string) push.Report
}

// Directory resolves recipient identities to push tokens and
// fleet-wide presence.
type Directory interface {
	TokensFor(ctx context.Context, role string, id int64) ([]string, error)
	ParentsForRide(ctx context.Context, rideID int64) ([]int64, error)
	SetOnline(ctx context.Context, key, connID string)
	SetOffline(ctx context.Context, key, connID string)
	IsOnline(ctx context.Context, key string) bool
}

// Gateway serves the /ws endpoint and drives each connection.
type Gateway struct {
	logger     *logger.Logger
	jwtManager *jwt.Manager
	rooms      *router.Rooms
	ingestor   Ingestor
	dispatcher Dispatcher
	directory  Directory
	publisher  relay.Publisher
	producer   string
	upgrader   websocket.Upgrader
}

func New(
	log *logger.Logger,
	jwtManager *jwt.Manager,
	rooms *router.Rooms,
	ing Ingestor,
	disp Dispatcher,
	dir Directory,
	pub relay.Publisher,
	producer string,
) *Gateway {
	return &Gateway{
		logger:     log,
		jwtManager: jwtManager,
		rooms:      rooms,
		ingestor:   ing,
		dispatcher: disp,
		directory:  dir,
		publisher:  pub,
		producer:   producer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the service sits behind the platform load balancer; origin
			// checks happen at the edge
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Register mounts the websocket endpoint.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws", g.handleWS)
}

// handleWS upgrades the request and drives the connection until the
// client goes away.
func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error(ctx, "ws_upgrade_failed", "Failed to upgrade connection", err, nil)
		return
	}
	defer conn.Close()

	c, err := g.authenticate(ctx, conn)
	if err != nil {
		g.logger.Info(ctx, "ws_auth_rejected", "Connection rejected at auth", map[string]any{"reason": err.Error()})
		_ = conn.WriteJSON(map[string]any{"type": "error", "code": "auth_failed", "message": err.Error()})
		return
	}

	ctx = g.logger.WithRequestID(ctx, c.id)
	g.join(ctx, c)
	defer g.leave(ctx, c)

	_ = c.write(map[string]any{"type": "auth_ok", "connId": c.id})
	g.logger.Info(ctx, "ws_connected", "Client connected", map[string]any{
		"role": c.role, "user_id": c.userID,
	})

	g.readLoop(ctx, c)
}

// authenticate reads the first frame and validates the JWT inside it.
func (g *Gateway) authenticate(ctx context.Context, conn *websocket.Conn) (*client, error) {
	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, frame, err := conn.ReadMessage()
	if err != nil {
		return nil, errors.New("no auth frame received")
	}

	claims, err := jwt.ValidateWSAuth(frame, g.jwtManager, user.RoleDriver, user.RoleParent, user.RoleAdmin)
	if err != nil {
		return nil, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, errors.New("token subject is not a user id")
	}

	return &client{
		id:     uuid.NewString(),
		userID: userID,
		role:   claims.Role,
		conn:   conn,
	}, nil
}

// join places the connection in its default rooms and raises the
// fleet-wide presence flag for addressable recipients.
func (g *Gateway) join(ctx context.Context, c *client) {
	switch c.role {
	case user.RoleAdmin:
		g.rooms.Join(contracts.RoomAdminPanel, c)
	case user.RoleDriver:
		g.rooms.Join(contracts.RoomDriver(c.userID), c)
		g.directory.SetOnline(ctx, contracts.RoomDriver(c.userID), c.id)
	case user.RoleParent:
		g.rooms.Join(contracts.RoomParent(c.userID), c)
		g.directory.SetOnline(ctx, contracts.RoomParent(c.userID), c.id)
	}
}

// leave tears down every membership before the socket closes; a room
// entry must never outlive its connection.
func (g *Gateway) leave(ctx context.Context, c *client) {
	g.rooms.LeaveAll(c)
	switch c.role {
	case user.RoleDriver:
		g.directory.SetOffline(ctx, contracts.RoomDriver(c.userID), c.id)
	case user.RoleParent:
		g.directory.SetOffline(ctx, contracts.RoomParent(c.userID), c.id)
	}
	g.logger.Info(ctx, "ws_disconnected", "Client disconnected", map[string]any{
		"role": c.role, "user_id": c.userID,
	})
}

// clientFrame is the shape of every inbound action frame.
type clientFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readLoop dispatches inbound frames until the client disconnects.
func (g *Gateway) readLoop(ctx context.Context, c *client) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.writeError("bad_frame", "frame must be JSON with a type field")
			continue
		}

		switch frame.Type {
		case "location":
			g.handleLocation(ctx, c, frame.Data)
		case "pickup":
			g.handlePickup(ctx, c, frame.Data)
		case "pickup-all":
			g.handlePickupAll(ctx, c, frame.Data)
		case "subscribe":
			g.handleSubscribe(ctx, c, frame.Data, true)
		case "unsubscribe":
			g.handleSubscribe(ctx, c, frame.Data, false)
		default:
			c.writeError("unknown_type", "unsupported frame type: "+frame.Type)
		}
	}
}
