package mesh

import (
	"sort"
	"time"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/signaling"
)

// live reports whether link is still the current link for its peer in the
// current session. Every callback continuation checks it first.
func (c *Coordinator) live(sess *session, link *peerLink) bool {
	return c.session == sess && sess.links[link.peerID] == link
}

// createLink returns the existing link for peerID or builds a new one. The
// initiator opens the data channel here, which triggers its first offer.
func (c *Coordinator) createLink(sess *session, peerID string, role Role) (*peerLink, error) {
	if link, ok := sess.links[peerID]; ok {
		return link, nil
	}
	if len(sess.links) >= c.cfg.MaxPeers {
		return nil, newPeerError("create link", peerID, ErrPeerLimit)
	}

	conn, err := c.transport.NewConnection()
	if err != nil {
		return nil, newPeerError("create link", peerID, err)
	}

	link := &peerLink{
		peerID:    peerID,
		role:      role,
		conn:      conn,
		connState: ConnectionNew,
		createdAt: time.Now(),
		drained:   make(chan struct{}, 1),
		gone:      make(chan struct{}),
	}
	sess.links[peerID] = link
	c.wireConnection(sess, link)

	if role.Initiator() {
		dc, err := conn.CreateDataChannel(c.cfg.ChannelLabel)
		if err != nil {
			delete(sess.links, peerID)
			_ = conn.Close()
			return nil, newPeerError("create channel", peerID, err)
		}
		c.adoptChannel(link, dc)
		c.bindChannel(sess, link, dc)
	}

	if c.cfg.NegotiationTimeout > 0 {
		link.deadline = time.AfterFunc(c.cfg.NegotiationTimeout, func() {
			c.post(func() { c.negotiationExpired(sess, link) })
		})
	}

	c.logger.Debug("peer link created", "peer", peerID, "role", role)
	c.emit(PeerAdded{PeerID: peerID, Role: role})
	return link, nil
}

func (c *Coordinator) wireConnection(sess *session, link *peerLink) {
	link.conn.OnNegotiationNeeded(func() {
		c.post(func() {
			if c.live(sess, link) {
				c.negotiate(sess, link)
			}
		})
	})

	link.conn.OnICECandidate(func(cand Candidate) {
		c.post(func() {
			if c.live(sess, link) {
				c.sendSignal(sess, link.peerID, signaling.SignalPayload{Candidate: &cand})
			}
		})
	})

	link.conn.OnConnectionStateChange(func(state ConnectionState) {
		c.post(func() {
			if c.live(sess, link) {
				c.connectionStateChanged(sess, link, state)
			}
		})
	})

	// Channel handlers are bound before this callback returns so nothing
	// the channel emits can be missed; adoption is queued ahead of them.
	link.conn.OnDataChannel(func(dc DataChannel) {
		c.post(func() {
			if !c.live(sess, link) {
				_ = dc.Close()
				return
			}
			if link.channel != nil || dc.Label() != c.cfg.ChannelLabel {
				c.logger.Warn("rejecting unexpected data channel", "peer", link.peerID, "label", dc.Label())
				_ = dc.Close()
				return
			}
			c.adoptChannel(link, dc)
		})
		c.bindChannel(sess, link, dc)
	})
}

func (c *Coordinator) adoptChannel(link *peerLink, dc DataChannel) {
	link.channel = dc
	link.setChannelState(ChannelConnecting)
}

// bindChannel registers channel callbacks. It only captures values, so it
// is safe to call from a transport goroutine.
func (c *Coordinator) bindChannel(sess *session, link *peerLink, dc DataChannel) {
	current := func() bool {
		return c.live(sess, link) && link.channel == dc
	}

	dc.OnOpen(func() {
		c.post(func() {
			if !current() || !link.setChannelState(ChannelOpen) {
				return
			}
			if link.deadline != nil {
				link.deadline.Stop()
				link.deadline = nil
			}
			c.logger.Info("channel open", "peer", link.peerID)
			c.emit(ChannelOpened{PeerID: link.peerID})
		})
	})

	dc.OnClose(func() {
		c.post(func() {
			if current() && link.setChannelState(ChannelClosed) {
				c.logger.Info("channel closed", "peer", link.peerID)
				c.emit(ChannelShut{PeerID: link.peerID})
			}
		})
	})

	dc.SetBufferedAmountLowThreshold(LowWaterMark)
	dc.OnBufferedAmountLow(func() {
		select {
		case link.drained <- struct{}{}:
		default:
		}
	})

	dc.OnMessage(func(payload string) {
		c.post(func() {
			if current() {
				c.emit(PayloadReceived{PeerID: link.peerID, Payload: payload})
			}
		})
	})
}

func (c *Coordinator) connectionStateChanged(sess *session, link *peerLink, state ConnectionState) {
	link.connState = state
	c.logger.Debug("connection state", "peer", link.peerID, "state", state)
	c.emit(ConnectionStateChanged{PeerID: link.peerID, State: state})

	if state == ConnectionFailed {
		c.linkFailed(sess, link, "connection failed")
	}
}

func (c *Coordinator) negotiationExpired(sess *session, link *peerLink) {
	if !c.live(sess, link) || link.channelSt == ChannelOpen {
		return
	}
	link.deadline = nil
	c.logger.Warn("negotiation timed out", "peer", link.peerID, "after", c.cfg.NegotiationTimeout)
	c.emit(NegotiationTimedOut{PeerID: link.peerID})
	c.linkFailed(sess, link, "negotiation timed out")
}

// linkFailed applies the failure policy. Under recreate the initiator
// rebuilds the link while the peer is still a member; the responder waits
// for the next offer to create one.
func (c *Coordinator) linkFailed(sess *session, link *peerLink, reason string) {
	if c.cfg.FailurePolicy != FailureRecreate {
		c.logger.Warn("peer link unhealthy", "peer", link.peerID, "reason", reason)
		return
	}

	peerID, role := link.peerID, link.role
	c.removeLink(sess, peerID, reason)

	if role.Initiator() && sess.hasMember(peerID) {
		c.logger.Info("recreating peer link", "peer", peerID, "reason", reason)
		if _, err := c.createLink(sess, peerID, RoleImpolite); err != nil {
			c.logger.Warn("recreating peer link failed", "peer", peerID, "error", err)
		}
	}
}

// removeLink closes and forgets a link. The map entry goes first so that
// any callback already queued sees it as stale.
func (c *Coordinator) removeLink(sess *session, peerID, reason string) {
	link, ok := sess.links[peerID]
	if !ok {
		return
	}
	delete(sess.links, peerID)
	link.close()
	c.logger.Debug("peer link removed", "peer", peerID, "reason", reason)
	c.emit(PeerRemoved{PeerID: peerID, Reason: reason})
}

func (c *Coordinator) removeAllLinks(sess *session, reason string) {
	ids := make([]string, 0, len(sess.links))
	for id := range sess.links {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c.removeLink(sess, id, reason)
	}
}

func (c *Coordinator) sendSignal(sess *session, peerID string, payload signaling.SignalPayload) {
	if !sess.relay.Send(signaling.Signal{TargetID: peerID, Payload: payload}) {
		c.logger.Warn("relay closed, signal dropped", "peer", peerID)
	}
}
