package relay

import (
	"log/slog"
	"time"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/signaling"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Enough for SDP with a full candidate list.
	maxMessageSize = 64 * 1024

	sendBuffer = 256
)

// Client is one websocket connection to the relay. Its identity and room
// are owned by the hub goroutine.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan signaling.Envelope
	logger *slog.Logger

	// set by the hub on join
	id       string
	username string
	room     *Room
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan signaling.Envelope, sendBuffer),
		logger: hub.logger.With("remote", conn.RemoteAddr().String()),
	}
}

// readPump decodes envelopes and hands them to the hub. It is the only
// reader of the connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read failed", "error", err)
			}
			return
		}

		env, err := signaling.Decode(data)
		if err != nil {
			c.logger.Warn("dropping malformed envelope", "error", err)
			continue
		}
		if !c.hub.dispatch(c, env) {
			return
		}
	}
}

// writePump writes queued envelopes and pings. It is the only writer of the
// connection and exits when the hub closes send.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := signaling.Encode(env)
			if err != nil {
				c.logger.Error("encoding envelope", "type", env.MessageType(), "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
