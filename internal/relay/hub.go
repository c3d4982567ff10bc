package relay

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/signaling"
	"github.com/google/uuid"
)

// Error messages sent to clients.
const (
	errRoomFull      = "Room is full"
	errMissingRoom   = "Room ID is required"
	errAlreadyInRoom = "Already in a room"
	errNotInRoom     = "You must join a room first"
	errUnknownTarget = "Target user is not in this room"
)

const anonymous = "Anonymous"

type inbound struct {
	client *Client
	env    signaling.Envelope
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Clients int64 `json:"clients"`
	Rooms   int64 `json:"rooms"`
}

// Hub owns every room and client. All state changes happen on the Run
// goroutine.
type Hub struct {
	maxRoomSize int
	logger      *slog.Logger

	rooms   map[string]*Room
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	done       chan struct{}

	clientCount atomic.Int64
	roomCount   atomic.Int64
}

func NewHub(maxRoomSize int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		maxRoomSize: maxRoomSize,
		logger:      logger.With("component", "relay"),
		rooms:       make(map[string]*Room),
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		inbound:     make(chan inbound, 256),
		done:        make(chan struct{}),
	}
}

// Stats is safe to call from any goroutine.
func (h *Hub) Stats() Stats {
	return Stats{Clients: h.clientCount.Load(), Rooms: h.roomCount.Load()}
}

// Run processes registrations and envelopes until ctx ends, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.clientCount.Store(int64(len(h.clients)))
			c.logger.Debug("client registered")

		case c := <-h.unregister:
			if h.clients[c] {
				h.leaveRoom(c)
				h.drop(c)
				c.logger.Debug("client unregistered")
			}

		case in := <-h.inbound:
			if h.clients[in.client] {
				h.handle(in.client, in.env)
			}
		}
	}
}

func (h *Hub) registerClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) dispatch(c *Client, env signaling.Envelope) bool {
	select {
	case h.inbound <- inbound{client: c, env: env}:
		return true
	case <-h.done:
		return false
	}
}

// drop forgets a client and ends its write pump.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	h.clientCount.Store(int64(len(h.clients)))
	close(c.send)
}

// deliver never blocks the hub: a client that cannot keep up is dropped.
func (h *Hub) deliver(c *Client, env signaling.Envelope) {
	select {
	case c.send <- env:
	default:
		c.logger.Warn("send buffer full, dropping client", "user", c.id)
		h.leaveRoom(c)
		h.drop(c)
	}
}

func (h *Hub) broadcast(room *Room, env signaling.Envelope, skip *Client) {
	for _, m := range append([]*Client(nil), room.Members...) {
		if m != skip && h.clients[m] {
			h.deliver(m, env)
		}
	}
}

func (h *Hub) handle(c *Client, env signaling.Envelope) {
	switch e := env.(type) {
	case signaling.Join:
		h.join(c, e)
	case signaling.Leave:
		if c.room == nil {
			h.deliver(c, signaling.Error{Message: errNotInRoom})
			return
		}
		h.leaveRoom(c)
	case signaling.Signal:
		h.forward(c, e)
	default:
		c.logger.Debug("ignoring envelope", "type", env.MessageType())
	}
}

func (h *Hub) join(c *Client, e signaling.Join) {
	if c.room != nil {
		h.deliver(c, signaling.Error{Message: errAlreadyInRoom})
		return
	}
	if e.RoomID == "" {
		h.deliver(c, signaling.Error{Message: errMissingRoom})
		return
	}

	room, ok := h.rooms[e.RoomID]
	if !ok {
		room = &Room{ID: e.RoomID}
	}
	if len(room.Members) >= h.maxRoomSize {
		h.logger.Info("room full", "room", e.RoomID)
		h.deliver(c, signaling.Error{Message: errRoomFull})
		return
	}
	if !ok {
		h.rooms[e.RoomID] = room
		h.roomCount.Store(int64(len(h.rooms)))
	}

	c.id = uuid.NewString()
	c.username = e.Username
	if c.username == "" {
		c.username = anonymous
	}
	c.room = room

	existing := room.users(nil)
	room.add(c)
	h.logger.Info("user joined", "room", room.ID, "user", c.id, "members", len(room.Members))

	h.deliver(c, signaling.RoomJoined{RoomID: room.ID, UserID: c.id, Users: existing})
	h.broadcast(room, signaling.UserJoined{UserID: c.id, Username: c.username}, c)
	h.broadcast(room, signaling.UserList{Users: room.users(nil)}, nil)
}

// leaveRoom removes c from its room and tells whoever remains.
func (h *Hub) leaveRoom(c *Client) {
	room := c.room
	if room == nil {
		return
	}
	c.room = nil
	if !room.remove(c) {
		return
	}
	h.logger.Info("user left", "room", room.ID, "user", c.id, "members", len(room.Members))

	if room.empty() {
		delete(h.rooms, room.ID)
		h.roomCount.Store(int64(len(h.rooms)))
		return
	}
	h.broadcast(room, signaling.UserLeft{UserID: c.id, Username: c.username}, nil)
	h.broadcast(room, signaling.UserList{Users: room.users(nil)}, nil)
}

func (h *Hub) forward(c *Client, e signaling.Signal) {
	if c.room == nil {
		h.deliver(c, signaling.Error{Message: errNotInRoom})
		return
	}
	target := c.room.find(e.TargetID)
	if target == nil || target == c {
		h.deliver(c, signaling.Error{Message: errUnknownTarget})
		return
	}
	e.FromID = c.id
	h.deliver(target, e)
}
