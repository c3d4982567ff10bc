package meshtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/signaling"
)

// Hub is an in-memory relay server with room semantics: joiners get the
// current members, members get user-joined/user-left, and signals are
// forwarded with fromId set.
type Hub struct {
	MaxRoomSize int

	mu     sync.Mutex
	nextID int
	rooms  map[string][]*hubConn
}

func NewHub() *Hub {
	return &Hub{MaxRoomSize: 4, rooms: make(map[string][]*hubConn)}
}

// Dial connects a new user; use it as a mesh.DialFunc.
func (h *Hub) Dial(context.Context) (mesh.Relay, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	return &hubConn{
		hub: h,
		id:  fmt.Sprintf("user-%d", h.nextID),
		in:  make(chan signaling.Envelope, 1024),
	}, nil
}

// Members returns the user ids in a room, in join order.
func (h *Hub) Members(roomID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var ids []string
	for _, m := range h.rooms[roomID] {
		ids = append(ids, m.id)
	}
	return ids
}

type hubConn struct {
	hub    *Hub
	id     string
	name   string
	room   string
	in     chan signaling.Envelope
	closed bool
}

func (c *hubConn) Incoming() <-chan signaling.Envelope {
	return c.in
}

func (c *hubConn) Send(env signaling.Envelope) bool {
	h := c.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return false
	}

	switch e := env.(type) {
	case signaling.Join:
		h.join(c, e)
	case signaling.Leave:
		h.leave(c)
	case signaling.Signal:
		for _, m := range h.rooms[c.room] {
			if m.id == e.TargetID {
				m.in <- signaling.Signal{FromID: c.id, Payload: e.Payload}
			}
		}
	}
	return true
}

func (c *hubConn) Close() error {
	h := c.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return nil
	}
	h.leave(c)
	c.closed = true
	close(c.in)
	return nil
}

func (h *Hub) join(c *hubConn, e signaling.Join) {
	if c.room != "" {
		h.leave(c)
	}
	members := h.rooms[e.RoomID]
	if len(members) >= h.MaxRoomSize {
		c.in <- signaling.Error{Message: "Room is full"}
		return
	}

	users := make([]signaling.User, 0, len(members))
	for _, m := range members {
		users = append(users, signaling.User{UserID: m.id, Username: m.name})
		m.in <- signaling.UserJoined{UserID: c.id, Username: e.Username}
	}

	c.name = e.Username
	c.room = e.RoomID
	h.rooms[e.RoomID] = append(members, c)
	c.in <- signaling.RoomJoined{RoomID: e.RoomID, UserID: c.id, Users: users}
}

func (h *Hub) leave(c *hubConn) {
	if c.room == "" {
		return
	}
	members := h.rooms[c.room]
	kept := members[:0]
	for _, m := range members {
		if m != c {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		delete(h.rooms, c.room)
	} else {
		h.rooms[c.room] = kept
	}
	for _, m := range kept {
		m.in <- signaling.UserLeft{UserID: c.id, Username: c.name}
	}
	c.room = ""
}
