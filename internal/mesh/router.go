package mesh

import (
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/signaling"
)

func (c *Coordinator) handleEnvelope(sess *session, env signaling.Envelope) {
	switch e := env.(type) {
	case signaling.RoomJoined:
		c.onRoomJoined(sess, e)
	case signaling.UserJoined:
		c.onUserJoined(sess, e)
	case signaling.UserLeft:
		c.onUserLeft(sess, e)
	case signaling.UserList:
		c.emit(UserList{Users: rosterFromUsers(e.Users)})
	case signaling.Signal:
		c.onSignal(sess, e)
	case signaling.Error:
		c.logger.Warn("relay error", "message", e.Message)
		if sess.joining && !sess.inRoom() {
			sess.joining = false
		}
		c.emit(ErrorReported{Message: e.Message})
	case signaling.Unknown:
		c.logger.Debug("ignoring unknown envelope", "type", e.Type)
	default:
		c.logger.Debug("ignoring unexpected envelope", "type", env.MessageType())
	}
}

// onRoomJoined records identity and creates an initiator link to every
// member already present.
func (c *Coordinator) onRoomJoined(sess *session, e signaling.RoomJoined) {
	if sess.inRoom() || !sess.joining {
		c.logger.Warn("ignoring unexpected room-joined", "room", e.RoomID, "current", sess.roomID)
		return
	}

	sess.joining = false
	sess.selfID = e.UserID
	sess.roomID = e.RoomID
	c.logger.Info("joined room", "room", e.RoomID, "self", e.UserID, "members", len(e.Users))
	c.emit(RoomJoined{RoomID: e.RoomID, SelfID: e.UserID})

	for _, u := range e.Users {
		if u.UserID == sess.selfID || u.UserID == "" {
			continue
		}
		sess.addMember(u.UserID, u.Username)
	}
	c.emit(RosterChanged{Roster: sess.rosterCopy()})

	for _, member := range sess.rosterCopy() {
		if _, err := c.createLink(sess, member.PeerID, RoleImpolite); err != nil {
			c.logger.Warn("cannot link to member", "peer", member.PeerID, "error", err)
		}
	}
}

// onUserJoined creates a responder link. Repeats for a known member only
// refresh the display name.
func (c *Coordinator) onUserJoined(sess *session, e signaling.UserJoined) {
	if !sess.inRoom() || e.UserID == sess.selfID {
		return
	}
	if sess.addMember(e.UserID, e.Username) {
		c.emit(RosterChanged{Roster: sess.rosterCopy()})
	}
	if _, err := c.createLink(sess, e.UserID, RolePolite); err != nil {
		c.logger.Warn("cannot link to newcomer", "peer", e.UserID, "error", err)
	}
}

func (c *Coordinator) onUserLeft(sess *session, e signaling.UserLeft) {
	if !sess.inRoom() {
		return
	}
	changed := sess.removeMember(e.UserID)
	c.removeLink(sess, e.UserID, "peer left")
	if changed {
		c.emit(RosterChanged{Roster: sess.rosterCopy()})
	}
}

func (c *Coordinator) onSignal(sess *session, e signaling.Signal) {
	from := e.FromID
	if !sess.inRoom() || from == "" || from == sess.selfID {
		c.logger.Debug("dropping signal", "from", from, "in_room", sess.inRoom())
		return
	}

	p := e.Payload
	switch {
	case p.Type == string(SDPTypeOffer):
		c.onOffer(sess, from, Description{Type: SDPTypeOffer, SDP: p.SDP})
	case p.Type == string(SDPTypeAnswer):
		c.onAnswer(sess, from, Description{Type: SDPTypeAnswer, SDP: p.SDP})
	case p.Candidate != nil:
		c.onCandidate(sess, from, *p.Candidate)
	default:
		c.logger.Warn("dropping malformed signal", "from", from, "type", p.Type)
	}
}
