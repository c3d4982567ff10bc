package mesh

import (
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/signaling"
)

func descriptionPayload(d Description) signaling.SignalPayload {
	return signaling.SignalPayload{Type: string(d.Type), SDP: d.SDP}
}

// negotiate creates and sends a local offer in response to
// negotiation-needed. The offer is created and adopted synchronously, so
// MakingOffer never survives past this call.
func (c *Coordinator) negotiate(sess *session, link *peerLink) {
	if link.negotiation != NegotiationStable {
		c.logger.Debug("negotiation already in progress", "peer", link.peerID, "state", link.negotiation)
		return
	}
	if st := link.conn.SignalingState(); st != SignalingStable {
		c.logger.Debug("deferring renegotiation", "peer", link.peerID, "signaling", st)
		return
	}

	link.negotiation = NegotiationMakingOffer
	offer, err := link.conn.SetLocalDescription()
	if err != nil {
		link.negotiation = NegotiationStable
		c.logger.Warn("creating offer failed", "peer", link.peerID, "error", newPeerError("offer", link.peerID, err))
		return
	}
	link.negotiation = NegotiationAwaitingAnswer

	c.logger.Debug("sending offer", "peer", link.peerID)
	c.sendSignal(sess, link.peerID, descriptionPayload(offer))
}

// onOffer applies the collision rule. An offer from an unknown member
// creates a responder link; the relay only forwards within a room.
func (c *Coordinator) onOffer(sess *session, from string, offer Description) {
	link, ok := sess.links[from]
	if ok && link.role == RolePolite && link.channelSt == ChannelClosed {
		// The peer rebuilt its side; a closed channel is never reopened.
		c.removeLink(sess, from, "superseded")
		ok = false
	}
	if !ok {
		var err error
		if link, err = c.createLink(sess, from, RolePolite); err != nil {
			c.logger.Warn("cannot accept offer", "peer", from, "error", err)
			return
		}
	}

	action := decideOffer(link.role, link.negotiation, link.conn.SignalingState())
	switch action {
	case offerIgnore:
		c.logger.Debug("ignoring colliding offer", "peer", from)
		link.negotiation = NegotiationIgnoring
		return
	case offerRollbackAndAccept:
		c.logger.Debug("rolling back local offer", "peer", from)
		if err := link.conn.Rollback(); err != nil {
			c.logger.Warn("rollback failed", "peer", from, "error", err)
			return
		}
	}

	link.negotiation = NegotiationAnswering
	if err := link.conn.SetRemoteDescription(offer); err != nil {
		link.negotiation = NegotiationStable
		c.logger.Warn("applying offer failed", "peer", from, "error", newPeerError("set remote offer", from, err))
		return
	}
	c.flushCandidates(link)

	answer, err := link.conn.SetLocalDescription()
	if err != nil {
		link.negotiation = NegotiationStable
		c.logger.Warn("creating answer failed", "peer", from, "error", newPeerError("answer", from, err))
		return
	}
	link.negotiation = NegotiationStable

	c.logger.Debug("sending answer", "peer", from)
	c.sendSignal(sess, from, descriptionPayload(answer))
}

// onAnswer applies an answer to our outstanding offer. Answers that match
// no outstanding offer are stale and dropped.
func (c *Coordinator) onAnswer(sess *session, from string, answer Description) {
	link, ok := sess.links[from]
	if !ok {
		c.logger.Debug("dropping answer from unknown peer", "peer", from)
		return
	}
	if st := link.conn.SignalingState(); st != SignalingHaveLocalOffer {
		c.logger.Debug("dropping stale answer", "peer", from, "signaling", st)
		return
	}

	if err := link.conn.SetRemoteDescription(answer); err != nil {
		c.logger.Warn("applying answer failed", "peer", from, "error", newPeerError("set remote answer", from, err))
		return
	}
	link.negotiation = NegotiationStable
	c.flushCandidates(link)
}

// onCandidate adds a remote candidate, buffering it until a remote
// description exists. Candidates for an ignored offer are discarded.
func (c *Coordinator) onCandidate(sess *session, from string, cand Candidate) {
	link, ok := sess.links[from]
	if !ok {
		c.logger.Debug("dropping candidate from unknown peer", "peer", from)
		return
	}
	if link.negotiation.IgnoringOffer() {
		c.logger.Debug("discarding candidate for ignored offer", "peer", from)
		return
	}
	if !link.conn.HasRemoteDescription() {
		if !link.bufferCandidate(cand, c.cfg.MaxPendingCandidates) {
			c.logger.Warn("candidate buffer full, dropping", "peer", from)
		}
		return
	}
	if err := link.conn.AddICECandidate(cand); err != nil {
		c.logger.Warn("adding candidate failed", "peer", from, "error", err)
	}
}

func (c *Coordinator) flushCandidates(link *peerLink) {
	for _, cand := range link.takePending() {
		if err := link.conn.AddICECandidate(cand); err != nil {
			c.logger.Warn("adding buffered candidate failed", "peer", link.peerID, "error", err)
		}
	}
}
