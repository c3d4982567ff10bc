package mesh

import (
	"context"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/signaling"
)

// SDPType names the two halves of a description exchange.
type SDPType string

const (
	SDPTypeOffer  SDPType = "offer"
	SDPTypeAnswer SDPType = "answer"
)

// Description is a session description as produced by the transport.
type Description struct {
	Type SDPType
	SDP  string
}

// Candidate is a trickled ICE candidate in browser JSON form.
type Candidate = signaling.ICECandidate

// SignalingState is the offer/answer state of a Connection.
type SignalingState int

const (
	SignalingStable SignalingState = iota
	SignalingHaveLocalOffer
	SignalingHaveRemoteOffer
	SignalingClosed
)

func (s SignalingState) String() string {
	switch s {
	case SignalingStable:
		return "stable"
	case SignalingHaveLocalOffer:
		return "have-local-offer"
	case SignalingHaveRemoteOffer:
		return "have-remote-offer"
	case SignalingClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionState is reported verbatim from the transport
// (new, connecting, connected, disconnected, failed, closed).
type ConnectionState string

const (
	ConnectionNew          ConnectionState = "new"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionFailed       ConnectionState = "failed"
	ConnectionClosed       ConnectionState = "closed"
)

// Connection is one point-to-point transport session. Callbacks may fire on
// any goroutine but never synchronously from inside a Connection method.
type Connection interface {
	// CreateDataChannel opens the ordered, reliable channel locally.
	CreateDataChannel(label string) (DataChannel, error)

	// SetLocalDescription creates an offer (when stable) or an answer (when
	// holding a remote offer), adopts it, and returns it.
	SetLocalDescription() (Description, error)

	SetRemoteDescription(desc Description) error

	// Rollback discards a local offer that has not been answered.
	Rollback() error

	AddICECandidate(candidate Candidate) error
	SignalingState() SignalingState
	HasRemoteDescription() bool

	OnNegotiationNeeded(fn func())
	OnICECandidate(fn func(Candidate))
	OnConnectionStateChange(fn func(ConnectionState))
	OnDataChannel(fn func(DataChannel))

	Close() error
}

// DataChannel is the ordered reliable text channel of a peer link.
type DataChannel interface {
	Label() string
	Send(payload string) error
	OnOpen(fn func())
	OnClose(fn func())
	OnMessage(fn func(payload string))

	// BufferedAmount is the number of bytes queued but not yet sent.
	BufferedAmount() uint64
	SetBufferedAmountLowThreshold(n uint64)
	OnBufferedAmountLow(fn func())

	Close() error
}

// Transport creates Connections.
type Transport interface {
	NewConnection() (Connection, error)
}

// Relay is the socket to the signaling relay.
type Relay interface {
	// Send queues an envelope; false means the socket is closed and the
	// envelope was dropped.
	Send(env signaling.Envelope) bool

	// Incoming yields inbound envelopes and is closed when the socket ends.
	Incoming() <-chan signaling.Envelope

	Close() error
}

// DialFunc opens a relay connection.
type DialFunc func(ctx context.Context) (Relay, error)
