package webrtc

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh"
	pion "github.com/pion/webrtc/v4"
)

var errNothingToRollBack = errors.New("no local offer to roll back")

// connection adapts *pion.PeerConnection to mesh.Connection.
type connection struct {
	pc     *pion.PeerConnection
	logger *slog.Logger
}

func (c *connection) CreateDataChannel(label string) (mesh.DataChannel, error) {
	ordered := true
	dc, err := c.pc.CreateDataChannel(label, &pion.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	return &dataChannel{dc: dc}, nil
}

func (c *connection) SetLocalDescription() (mesh.Description, error) {
	var (
		desc pion.SessionDescription
		err  error
	)
	switch c.pc.SignalingState() {
	case pion.SignalingStateHaveRemoteOffer:
		desc, err = c.pc.CreateAnswer(nil)
		if err != nil {
			return mesh.Description{}, fmt.Errorf("create answer: %w", err)
		}
	default:
		desc, err = c.pc.CreateOffer(nil)
		if err != nil {
			return mesh.Description{}, fmt.Errorf("create offer: %w", err)
		}
	}

	if err := c.pc.SetLocalDescription(desc); err != nil {
		return mesh.Description{}, fmt.Errorf("set local description: %w", err)
	}

	local := c.pc.LocalDescription()
	if local == nil {
		local = &desc
	}
	return fromPion(*local), nil
}

func (c *connection) SetRemoteDescription(desc mesh.Description) error {
	if err := c.pc.SetRemoteDescription(toPion(desc)); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// Rollback needs the pending offer's SDP; pion rejects an empty rollback.
func (c *connection) Rollback() error {
	pending := c.pc.PendingLocalDescription()
	if pending == nil {
		return errNothingToRollBack
	}
	c.logger.Debug("rolling back local offer")
	return c.pc.SetLocalDescription(pion.SessionDescription{
		Type: pion.SDPTypeRollback,
		SDP:  pending.SDP,
	})
}

func (c *connection) AddICECandidate(cand mesh.Candidate) error {
	err := c.pc.AddICECandidate(pion.ICECandidateInit{
		Candidate:        cand.Candidate,
		SDPMid:           cand.SDPMid,
		SDPMLineIndex:    cand.SDPMLineIndex,
		UsernameFragment: cand.UsernameFragment,
	})
	if err != nil {
		c.logger.Debug("remote candidate rejected", "candidate", cand.Candidate, "error", err)
	}
	return err
}

func (c *connection) SignalingState() mesh.SignalingState {
	switch c.pc.SignalingState() {
	case pion.SignalingStateHaveLocalOffer, pion.SignalingStateHaveLocalPranswer:
		return mesh.SignalingHaveLocalOffer
	case pion.SignalingStateHaveRemoteOffer, pion.SignalingStateHaveRemotePranswer:
		return mesh.SignalingHaveRemoteOffer
	case pion.SignalingStateClosed:
		return mesh.SignalingClosed
	default:
		return mesh.SignalingStable
	}
}

func (c *connection) HasRemoteDescription() bool {
	return c.pc.RemoteDescription() != nil
}

func (c *connection) OnNegotiationNeeded(fn func()) {
	c.pc.OnNegotiationNeeded(fn)
}

func (c *connection) OnICECandidate(fn func(mesh.Candidate)) {
	c.pc.OnICECandidate(func(candidate *pion.ICECandidate) {
		// nil marks the end of gathering
		if candidate == nil {
			return
		}
		init := candidate.ToJSON()
		fn(mesh.Candidate{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		})
	})
}

func (c *connection) OnConnectionStateChange(fn func(mesh.ConnectionState)) {
	c.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		c.logger.Debug("peer connection state", "state", state.String())
		fn(mesh.ConnectionState(state.String()))
	})
}

func (c *connection) OnDataChannel(fn func(mesh.DataChannel)) {
	c.pc.OnDataChannel(func(dc *pion.DataChannel) {
		fn(&dataChannel{dc: dc})
	})
}

func (c *connection) Close() error {
	return c.pc.Close()
}

func toPion(d mesh.Description) pion.SessionDescription {
	t := pion.SDPTypeOffer
	if d.Type == mesh.SDPTypeAnswer {
		t = pion.SDPTypeAnswer
	}
	return pion.SessionDescription{Type: t, SDP: d.SDP}
}

func fromPion(d pion.SessionDescription) mesh.Description {
	t := mesh.SDPTypeOffer
	if d.Type == pion.SDPTypeAnswer {
		t = mesh.SDPTypeAnswer
	}
	return mesh.Description{Type: t, SDP: d.SDP}
}

// dataChannel adapts *pion.DataChannel to mesh.DataChannel. Payloads travel
// as text frames.
type dataChannel struct {
	dc *pion.DataChannel
}

func (d *dataChannel) Label() string { return d.dc.Label() }

func (d *dataChannel) Send(payload string) error {
	return d.dc.SendText(payload)
}

func (d *dataChannel) OnOpen(fn func())  { d.dc.OnOpen(fn) }
func (d *dataChannel) OnClose(fn func()) { d.dc.OnClose(fn) }

func (d *dataChannel) OnMessage(fn func(string)) {
	d.dc.OnMessage(func(msg pion.DataChannelMessage) {
		fn(string(msg.Data))
	})
}

func (d *dataChannel) BufferedAmount() uint64 { return d.dc.BufferedAmount() }

func (d *dataChannel) SetBufferedAmountLowThreshold(n uint64) {
	d.dc.SetBufferedAmountLowThreshold(n)
}

func (d *dataChannel) OnBufferedAmountLow(fn func()) { d.dc.OnBufferedAmountLow(fn) }

func (d *dataChannel) Close() error {
	return d.dc.Close()
}
