package router

import "sync"

// Conn is a live local connection capable of receiving events. The
// gateway's websocket client satisfies it.
type Conn interface {
	ID() string
	SendEvent(event string, payload any) error
}

// Rooms is the per-instance registry of room memberships. Membership is
// mutated only by the connection-lifecycle layer (join on connect or
// subscribe, leave on disconnect) and read by the emit path. A room
// entry never outlives its connection: LeaveAll runs before the socket
// closes.
type Rooms struct {
	mu     sync.RWMutex
	byRoom map[string]map[string]Conn
}

func NewRooms() *Rooms {
	return &Rooms{byRoom: make(map[string]map[string]Conn)}
}

// Join adds the connection to a room. Re-joining is a no-op.
func (r *Rooms) Join(room string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.byRoom[room]
	if !ok {
		members = make(map[string]Conn)
		r.byRoom[room] = members
	}
	members[c.ID()] = c
}

// Leave removes the connection from one room.
func (r *Rooms) Leave(room string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.byRoom[room]; ok {
		delete(members, c.ID())
		if len(members) == 0 {
			delete(r.byRoom, room)
		}
	}
}

// LeaveAll removes the connection from every room it joined.
func (r *Rooms) LeaveAll(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room, members := range r.byRoom {
		delete(members, c.ID())
		if len(members) == 0 {
			delete(r.byRoom, room)
		}
	}
}

// Members returns a snapshot of the room's connections.
func (r *Rooms) Members(room string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.byRoom[room]
	out := make([]Conn, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}
