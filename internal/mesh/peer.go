package mesh

import (
	"time"
)

// peerLink is everything this side holds for one remote member. It is only
// touched from the coordinator's actor goroutine.
type peerLink struct {
	peerID      string
	role        Role
	conn        Connection
	channel     DataChannel
	channelSt   ChannelState
	negotiation NegotiationState
	connState   ConnectionState
	pending     []Candidate
	createdAt   time.Time
	deadline    *time.Timer

	// drained is signalled from OnBufferedAmountLow; gone is closed with
	// the link. Both are set at creation and never replaced.
	drained chan struct{}
	gone    chan struct{}
}

// PeerStatus is a read-only view of one link.
type PeerStatus struct {
	PeerID      string
	Role        Role
	Channel     ChannelState
	Connection  ConnectionState
	Negotiation NegotiationState
	Since       time.Time
}

func (l *peerLink) status() PeerStatus {
	return PeerStatus{
		PeerID:      l.peerID,
		Role:        l.role,
		Channel:     l.channelSt,
		Connection:  l.connState,
		Negotiation: l.negotiation,
		Since:       l.createdAt,
	}
}

// setChannelState applies a transition and reports whether it happened.
func (l *peerLink) setChannelState(next ChannelState) bool {
	if !l.channelSt.canMoveTo(next) {
		return false
	}
	l.channelSt = next
	return true
}

// send writes to the channel when it is open.
func (l *peerLink) send(payload string) error {
	if l.channelSt != ChannelOpen || l.channel == nil {
		return ErrChannelNotOpen
	}
	return l.channel.Send(payload)
}

// bufferCandidate holds a candidate that arrived before any remote
// description. It reports false when the buffer is full.
func (l *peerLink) bufferCandidate(c Candidate, limit int) bool {
	if len(l.pending) >= limit {
		return false
	}
	l.pending = append(l.pending, c)
	return true
}

func (l *peerLink) takePending() []Candidate {
	out := l.pending
	l.pending = nil
	return out
}

// close releases the transport. Errors are irrelevant at this point.
func (l *peerLink) close() {
	if l.deadline != nil {
		l.deadline.Stop()
		l.deadline = nil
	}
	if l.channel != nil {
		_ = l.channel.Close()
	}
	l.setChannelState(ChannelClosed)
	_ = l.conn.Close()
	l.pending = nil

	select {
	case <-l.gone:
	default:
		close(l.gone)
	}
}
