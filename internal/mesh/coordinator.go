package mesh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/signaling"
)

const inboxSize = 256

// Coordinator keeps one peer link per other room member and relays
// negotiation traffic through the signaling relay.
//
// All state is owned by a single actor goroutine. Public methods and
// transport callbacks enqueue work on its inbox, so no two handlers ever
// interleave and a stale callback can always tell that its link is gone.
type Coordinator struct {
	cfg       Config
	transport Transport
	dial      DialFunc
	logger    *slog.Logger

	inbox    chan func()
	stopped  chan struct{}
	stopOnce sync.Once
	events   *eventQueue

	// actor-owned
	session *session
	closed  bool
}

// New starts a coordinator. It does not connect; call Connect.
func New(transport Transport, dial DialFunc, cfg Config) *Coordinator {
	cfg = cfg.withDefaults()
	c := &Coordinator{
		cfg:       cfg,
		transport: transport,
		dial:      dial,
		logger:    cfg.Logger.With("component", "mesh"),
		inbox:     make(chan func(), inboxSize),
		stopped:   make(chan struct{}),
		events:    newEventQueue(),
	}
	go c.run()
	return c
}

func (c *Coordinator) run() {
	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-c.stopped:
			return
		}
	}
}

// do runs fn on the actor and waits for it.
func (c *Coordinator) do(fn func()) error {
	done := make(chan struct{})
	task := func() {
		fn()
		close(done)
	}

	select {
	case c.inbox <- task:
	case <-c.stopped:
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-c.stopped:
		return ErrClosed
	}
}

// post enqueues fn without waiting. Used by transport callbacks.
func (c *Coordinator) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.stopped:
	}
}

func (c *Coordinator) emit(e Event) {
	c.events.push(e)
}

// Events delivers coordinator events in order. The channel is closed after
// Close.
func (c *Coordinator) Events() <-chan Event {
	return c.events.out
}

// Connect dials the relay and starts a session. A coordinator whose relay
// dropped may connect again.
func (c *Coordinator) Connect(ctx context.Context) error {
	var state error
	if err := c.do(func() { state = c.canConnect() }); err != nil {
		return err
	}
	if state != nil {
		return state
	}

	relay, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("connecting to relay: %w", err)
	}

	if err := c.do(func() {
		if state = c.canConnect(); state != nil {
			return
		}
		sess := newSession(relay)
		c.session = sess
		go c.pump(sess)
	}); err != nil {
		_ = relay.Close()
		return err
	}
	if state != nil {
		_ = relay.Close()
		return state
	}

	c.logger.Info("session started")
	return nil
}

func (c *Coordinator) canConnect() error {
	switch {
	case c.closed:
		return ErrClosed
	case c.session != nil:
		return ErrAlreadyConnected
	default:
		return nil
	}
}

// pump feeds relay envelopes to the actor in arrival order.
func (c *Coordinator) pump(sess *session) {
	for env := range sess.relay.Incoming() {
		env := env
		c.post(func() {
			if c.session == sess {
				c.handleEnvelope(sess, env)
			}
		})
	}
	c.post(func() { c.relayLost(sess) })
}

func (c *Coordinator) relayLost(sess *session) {
	if c.session != sess {
		return
	}
	c.logger.Warn("signaling relay closed", "room", sess.roomID)
	c.removeAllLinks(sess, "relay closed")
	sess.clearRoom()
	c.session = nil
	c.emit(Disconnected{})
}

// Join asks the relay to place this member in roomID.
func (c *Coordinator) Join(displayName, roomID string) error {
	if roomID == "" {
		return ErrInvalidRoom
	}
	var result error
	if err := c.do(func() { result = c.join(displayName, roomID) }); err != nil {
		return err
	}
	return result
}

func (c *Coordinator) join(displayName, roomID string) error {
	if c.closed {
		return ErrClosed
	}
	sess := c.session
	if sess == nil {
		return ErrNotConnected
	}
	if sess.inRoom() || sess.joining {
		return ErrAlreadyInRoom
	}
	if !sess.relay.Send(signaling.Join{Username: displayName, RoomID: roomID}) {
		return ErrNotConnected
	}
	sess.joining = true
	c.logger.Info("joining room", "room", roomID, "name", displayName)
	return nil
}

// Leave tells the relay and tears down every link. It is a no-op outside a
// room.
func (c *Coordinator) Leave() error {
	return c.do(func() {
		if !c.closed {
			c.leave()
		}
	})
}

func (c *Coordinator) leave() {
	sess := c.session
	if sess == nil || (!sess.inRoom() && !sess.joining) {
		return
	}
	sess.relay.Send(signaling.Leave{})
	c.logger.Info("leaving room", "room", sess.roomID)
	c.removeAllLinks(sess, "left room")
	sess.clearRoom()
	c.emit(RosterChanged{Roster: []RosterEntry{}})
}

// BroadcastPayload sends payload on every open channel and returns how many
// channels accepted it.
func (c *Coordinator) BroadcastPayload(payload string) int {
	sent := 0
	_ = c.do(func() {
		sess := c.session
		if c.closed || sess == nil {
			return
		}
		for _, link := range sess.links {
			if c.sendOn(link, payload) {
				sent++
			}
		}
	})
	return sent
}

// SendToPeer sends payload to one peer. It reports false when the peer is
// unknown or its channel is not open.
func (c *Coordinator) SendToPeer(peerID, payload string) bool {
	ok := false
	_ = c.do(func() {
		sess := c.session
		if c.closed || sess == nil {
			return
		}
		if link, found := sess.links[peerID]; found {
			ok = c.sendOn(link, payload)
		}
	})
	return ok
}

// WaitWritable blocks while more than HighWaterMark bytes are queued on
// the peer's channel. It fails with ErrBufferTimeout when the queue makes
// no progress within SendTimeout.
func (c *Coordinator) WaitWritable(ctx context.Context, peerID string) error {
	var (
		dc      DataChannel
		drained <-chan struct{}
		gone    <-chan struct{}
		state   error
	)
	if err := c.do(func() {
		sess := c.session
		if c.closed || sess == nil {
			state = ErrNotConnected
			return
		}
		link, ok := sess.links[peerID]
		switch {
		case !ok:
			state = newPeerError("wait writable", peerID, ErrUnknownPeer)
		case link.channelSt != ChannelOpen || link.channel == nil:
			state = newPeerError("wait writable", peerID, ErrChannelNotOpen)
		default:
			dc, drained, gone = link.channel, link.drained, link.gone
		}
	}); err != nil {
		return err
	}
	if state != nil {
		return state
	}

	start := dc.BufferedAmount()
	if start < HighWaterMark {
		return nil
	}

	timer := time.NewTimer(SendTimeout)
	defer timer.Stop()
	for {
		select {
		case <-drained:
			if dc.BufferedAmount() < HighWaterMark {
				return nil
			}
		case <-timer.C:
			if dc.BufferedAmount() < start {
				return nil
			}
			return newPeerError("wait writable", peerID, ErrBufferTimeout)
		case <-gone:
			return newPeerError("wait writable", peerID, ErrChannelNotOpen)
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopped:
			return ErrClosed
		}
	}
}

func (c *Coordinator) sendOn(link *peerLink, payload string) bool {
	err := link.send(payload)
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrChannelNotOpen) {
		c.logger.Warn("send failed", "peer", link.peerID, "error", err)
	}
	return false
}

// Snapshot is a consistent read of the coordinator's state.
type Snapshot struct {
	Connected bool
	SelfID    string
	RoomID    string
	Roster    []RosterEntry
	Peers     []PeerStatus
}

func (c *Coordinator) Snapshot() Snapshot {
	var snap Snapshot
	_ = c.do(func() {
		sess := c.session
		if sess == nil {
			return
		}
		snap.Connected = true
		snap.SelfID = sess.selfID
		snap.RoomID = sess.roomID
		snap.Roster = sess.rosterCopy()
		for _, link := range sess.links {
			snap.Peers = append(snap.Peers, link.status())
		}
		sort.Slice(snap.Peers, func(i, j int) bool {
			return snap.Peers[i].PeerID < snap.Peers[j].PeerID
		})
	})
	return snap
}

// Close leaves the room, closes the relay and stops the coordinator. Every
// later call returns ErrClosed or a zero result.
func (c *Coordinator) Close() error {
	_ = c.do(func() {
		if c.closed {
			return
		}
		c.closed = true
		if sess := c.session; sess != nil {
			c.leave()
			c.removeAllLinks(sess, "closed")
			c.session = nil
			_ = sess.relay.Close()
		}
	})
	c.stopOnce.Do(func() {
		close(c.stopped)
		c.events.close()
	})
	return nil
}
