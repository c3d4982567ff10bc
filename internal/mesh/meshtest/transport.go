// Package meshtest provides in-memory transports and relays for exercising
// the mesh coordinator without sockets.
package meshtest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh"
)

var (
	errInvalidState = errors.New("invalid signaling state")
	errNoRemote     = errors.New("remote description not set")
	errClosed       = errors.New("closed")
	errNotOpen      = errors.New("channel not open")
)

// Network hands out fake connections that find each other through the
// SDP strings they exchange.
type Network struct {
	mu     sync.Mutex
	nextID int
	conns  map[string]*Conn
	order  []*Conn
}

func NewNetwork() *Network {
	return &Network{conns: make(map[string]*Conn)}
}

// NewConnection implements mesh.Transport.
func (n *Network) NewConnection() (mesh.Connection, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	c := &Conn{
		net: n,
		id:  fmt.Sprintf("conn-%d", n.nextID),
	}
	n.conns[c.id] = c
	n.order = append(n.order, c)
	return c, nil
}

// Connections returns every connection created so far, oldest first.
func (n *Network) Connections() []*Conn {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Conn, len(n.order))
	copy(out, n.order)
	return out
}

func (n *Network) lookup(sdp string) *Conn {
	parts := strings.Split(sdp, ":")
	if len(parts) < 2 {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.conns[parts[1]]
}

// Conn is a fake mesh.Connection. Offers and answers are "fake-offer:<id>"
// and "fake-answer:<id>"; the pair connects once an answer is applied.
type Conn struct {
	net *Network
	id  string

	mu         sync.Mutex
	signaling  mesh.SignalingState
	local      *mesh.Description
	remote     *mesh.Description
	peer       *Conn
	pendingDCs []*Channel
	channels   []*Channel
	connected  bool
	closed     bool
	gathered   bool
	candidates int
	offers     int
	rollbacks  int

	onNegotiationNeeded func()
	onCandidate         func(mesh.Candidate)
	onState             func(mesh.ConnectionState)
	onDataChannel       func(mesh.DataChannel)
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) CreateDataChannel(label string) (mesh.DataChannel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errClosed
	}
	ch := newChannel(label)
	c.pendingDCs = append(c.pendingDCs, ch)
	c.channels = append(c.channels, ch)
	if c.signaling == mesh.SignalingStable {
		if fn := c.onNegotiationNeeded; fn != nil {
			go fn()
		}
	}
	return ch, nil
}

func (c *Conn) SetLocalDescription() (mesh.Description, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return mesh.Description{}, errClosed
	}

	var d mesh.Description
	switch c.signaling {
	case mesh.SignalingStable:
		c.offers++
		d = mesh.Description{Type: mesh.SDPTypeOffer, SDP: fmt.Sprintf("fake-offer:%s:%d", c.id, c.offers)}
		c.signaling = mesh.SignalingHaveLocalOffer
	case mesh.SignalingHaveRemoteOffer:
		d = mesh.Description{Type: mesh.SDPTypeAnswer, SDP: "fake-answer:" + c.id}
		c.signaling = mesh.SignalingStable
	default:
		return mesh.Description{}, errInvalidState
	}
	c.local = &d

	if !c.gathered {
		c.gathered = true
		if fn := c.onCandidate; fn != nil {
			mid := "0"
			cand := mesh.Candidate{
				Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 9 typ host",
				SDPMid:    &mid,
			}
			go fn(cand)
		}
	}
	return d, nil
}

func (c *Conn) SetRemoteDescription(d mesh.Description) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errClosed
	}

	switch d.Type {
	case mesh.SDPTypeOffer:
		if c.signaling != mesh.SignalingStable {
			c.mu.Unlock()
			return errInvalidState
		}
		c.remote = &d
		c.signaling = mesh.SignalingHaveRemoteOffer
		c.mu.Unlock()
		if peer := c.net.lookup(d.SDP); peer != nil {
			c.mu.Lock()
			c.peer = peer
			c.mu.Unlock()
		}
		return nil

	case mesh.SDPTypeAnswer:
		if c.signaling != mesh.SignalingHaveLocalOffer {
			c.mu.Unlock()
			return errInvalidState
		}
		c.remote = &d
		c.signaling = mesh.SignalingStable
		c.mu.Unlock()
		if peer := c.net.lookup(d.SDP); peer != nil {
			c.link(peer)
		}
		return nil

	default:
		c.mu.Unlock()
		return fmt.Errorf("unsupported description type %q", d.Type)
	}
}

// link completes the exchange: both sides report connected and every
// channel created here appears on the peer and then opens.
func (c *Conn) link(peer *Conn) {
	c.mu.Lock()
	c.peer = peer
	firstTime := !c.connected
	c.connected = true
	pending := c.pendingDCs
	c.pendingDCs = nil
	c.mu.Unlock()

	if firstTime {
		peer.mu.Lock()
		peer.connected = true
		peer.mu.Unlock()
		c.reportStates(mesh.ConnectionConnecting, mesh.ConnectionConnected)
		peer.reportStates(mesh.ConnectionConnecting, mesh.ConnectionConnected)
	}

	for _, local := range pending {
		remote := newChannel(local.label)
		local.pair(remote)
		peer.mu.Lock()
		peer.channels = append(peer.channels, remote)
		handler := peer.onDataChannel
		peer.mu.Unlock()

		go func(local, remote *Channel) {
			if handler != nil {
				handler(remote)
			}
			remote.markOpen()
			local.markOpen()
		}(local, remote)
	}
}

func (c *Conn) reportStates(states ...mesh.ConnectionState) {
	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()
	if fn == nil {
		return
	}
	go func() {
		for _, s := range states {
			fn(s)
		}
	}()
}

func (c *Conn) Rollback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.signaling != mesh.SignalingHaveLocalOffer {
		return errInvalidState
	}
	c.signaling = mesh.SignalingStable
	c.local = nil
	c.rollbacks++
	return nil
}

func (c *Conn) AddICECandidate(mesh.Candidate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remote == nil {
		return errNoRemote
	}
	c.candidates++
	return nil
}

func (c *Conn) SignalingState() mesh.SignalingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signaling
}

func (c *Conn) HasRemoteDescription() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote != nil
}

func (c *Conn) OnNegotiationNeeded(fn func()) {
	c.mu.Lock()
	c.onNegotiationNeeded = fn
	c.mu.Unlock()
}

func (c *Conn) OnICECandidate(fn func(mesh.Candidate)) {
	c.mu.Lock()
	c.onCandidate = fn
	c.mu.Unlock()
}

func (c *Conn) OnConnectionStateChange(fn func(mesh.ConnectionState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

func (c *Conn) OnDataChannel(fn func(mesh.DataChannel)) {
	c.mu.Lock()
	c.onDataChannel = fn
	c.mu.Unlock()
}

func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.signaling = mesh.SignalingClosed
	channels := c.channels
	c.mu.Unlock()

	for _, ch := range channels {
		_ = ch.Close()
	}
	c.reportStates(mesh.ConnectionClosed)
	return nil
}

// TriggerNegotiation fires negotiation-needed as a renegotiation would.
func (c *Conn) TriggerNegotiation() {
	c.mu.Lock()
	fn := c.onNegotiationNeeded
	c.mu.Unlock()
	if fn != nil {
		go fn()
	}
}

// Channel returns the first data channel of the connection, if any.
func (c *Conn) Channel() *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.channels) == 0 {
		return nil
	}
	return c.channels[0]
}

// Fail makes the connection report "failed".
func (c *Conn) Fail() {
	c.reportStates(mesh.ConnectionFailed)
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CandidatesAdded counts remote candidates applied.
func (c *Conn) CandidatesAdded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.candidates
}

// Rollbacks counts local offers discarded.
func (c *Conn) Rollbacks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollbacks
}

// Offers counts local offers created.
func (c *Conn) Offers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offers
}

// Channel is a fake mesh.DataChannel. Delivery to the paired end is
// ordered.
type Channel struct {
	label string

	mu        sync.Mutex
	peer      *Channel
	open      bool
	closed    bool
	inbox     chan string
	done      chan struct{}
	onOpen    func()
	onClose   func()
	onMessage func(string)

	buffered uint64
	lowMark  uint64
	onLow    func()
}

func newChannel(label string) *Channel {
	return &Channel{
		label: label,
		inbox: make(chan string, 256),
		done:  make(chan struct{}),
	}
}

func (ch *Channel) pair(other *Channel) {
	ch.mu.Lock()
	ch.peer = other
	ch.mu.Unlock()
	other.mu.Lock()
	other.peer = ch
	other.mu.Unlock()
}

func (ch *Channel) markOpen() {
	ch.mu.Lock()
	if ch.open || ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.open = true
	fn := ch.onOpen
	ch.mu.Unlock()

	if fn != nil {
		fn()
	}
	go ch.deliverLoop()
}

func (ch *Channel) deliverLoop() {
	for {
		select {
		case p := <-ch.inbox:
			ch.mu.Lock()
			fn := ch.onMessage
			ch.mu.Unlock()
			if fn != nil {
				fn(p)
			}
		case <-ch.done:
			return
		}
	}
}

func (ch *Channel) Label() string { return ch.label }

func (ch *Channel) Send(payload string) error {
	ch.mu.Lock()
	if !ch.open || ch.closed || ch.peer == nil {
		ch.mu.Unlock()
		return errNotOpen
	}
	peer := ch.peer
	ch.mu.Unlock()

	select {
	case peer.inbox <- payload:
		return nil
	case <-peer.done:
		return errClosed
	}
}

func (ch *Channel) OnOpen(fn func()) {
	ch.mu.Lock()
	ch.onOpen = fn
	ch.mu.Unlock()
}

func (ch *Channel) OnClose(fn func()) {
	ch.mu.Lock()
	ch.onClose = fn
	ch.mu.Unlock()
}

func (ch *Channel) OnMessage(fn func(string)) {
	ch.mu.Lock()
	ch.onMessage = fn
	ch.mu.Unlock()
}

func (ch *Channel) BufferedAmount() uint64 {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.buffered
}

func (ch *Channel) SetBufferedAmountLowThreshold(n uint64) {
	ch.mu.Lock()
	ch.lowMark = n
	ch.mu.Unlock()
}

func (ch *Channel) OnBufferedAmountLow(fn func()) {
	ch.mu.Lock()
	ch.onLow = fn
	ch.mu.Unlock()
}

// SetBuffered pretends n bytes are queued. Dropping to the low threshold
// from above fires OnBufferedAmountLow.
func (ch *Channel) SetBuffered(n uint64) {
	ch.mu.Lock()
	crossed := ch.buffered > ch.lowMark && n <= ch.lowMark
	ch.buffered = n
	fn := ch.onLow
	ch.mu.Unlock()

	if crossed && fn != nil {
		go fn()
	}
}

func (ch *Channel) Close() error {
	if !ch.shut() {
		return nil
	}
	ch.mu.Lock()
	peer := ch.peer
	ch.mu.Unlock()
	if peer != nil {
		peer.shut()
	}
	return nil
}

// shut closes this end and fires OnClose once, before returning, so the
// far side learns of the close ahead of any later signaling.
func (ch *Channel) shut() bool {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return false
	}
	ch.closed = true
	ch.open = false
	close(ch.done)
	fn := ch.onClose
	ch.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}
