package gateway

import (
	"sync"
	"time"

	"school-ride/internal/domain/user"
	"school-ride/internal/general/contracts"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// client wraps one live websocket connection. It satisfies router.Conn
// so the room sink can write to it; the write mutex keeps the router's
// emit goroutines and the read loop's replies from interleaving frames.
type client struct {
	id     string
	userID int64
	role   user.Role

	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) ID() string {
	return c.id
}

// SendEvent writes one routed event frame.
func (c *client) SendEvent(event string, payload any) error {
	return c.write(contracts.WSEvent{Event: event, Data: payload})
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// writeError sends a typed error frame without closing the connection.
func (c *client) writeError(code, msg string) {
	_ = c.write(map[string]any{"type": "error", "code": code, "message": msg})
}
