package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message type constants.
const (
	MessageTypeJoin   = "join"
	MessageTypeLeave  = "leave"
	MessageTypeSignal = "signal"

	MessageTypeRoomJoined = "room-joined"
	MessageTypeUserJoined = "user-joined"
	MessageTypeUserLeft   = "user-left"
	MessageTypeUserList   = "user-list"
	MessageTypeError      = "error"
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

// User is one roster entry as the relay reports it.
type User struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ICECandidate mirrors the browser RTCIceCandidateInit JSON shape.
type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// SignalPayload is either a session description ({type, sdp}) or a
// candidate ({candidate: {...}}).
type SignalPayload struct {
	Type      string        `json:"type,omitempty"`
	SDP       string        `json:"sdp,omitempty"`
	Candidate *ICECandidate `json:"candidate,omitempty"`
}

// IsDescription reports whether the payload carries an offer or an answer.
func (p SignalPayload) IsDescription() bool {
	return p.Type == "offer" || p.Type == "answer"
}

// Envelope is the closed set of messages exchanged with the relay.
// Every concrete type lives in this package.
type Envelope interface {
	MessageType() string
	envelope()
}

// Join asks the relay to place this connection in a room.
type Join struct {
	Username string
	RoomID   string
}

// Leave removes this connection from its room.
type Leave struct{}

// RoomJoined confirms a join and carries the users already present.
type RoomJoined struct {
	RoomID string
	UserID string
	Users  []User
}

// UserJoined announces a newcomer to existing members.
type UserJoined struct {
	UserID   string
	Username string
}

// UserLeft announces a departure.
type UserLeft struct {
	UserID   string
	Username string
}

// UserList is an informational roster snapshot.
type UserList struct {
	Users []User
}

// Signal carries negotiation data. TargetID is set on outbound envelopes,
// FromID on inbound ones.
type Signal struct {
	TargetID string
	FromID   string
	Payload  SignalPayload
}

// Error is a relay-side failure report.
type Error struct {
	Message string
}

// Unknown is any envelope whose type this package does not recognize.
type Unknown struct {
	Type string
}

func (Join) MessageType() string       { return MessageTypeJoin }
func (Leave) MessageType() string      { return MessageTypeLeave }
func (RoomJoined) MessageType() string { return MessageTypeRoomJoined }
func (UserJoined) MessageType() string { return MessageTypeUserJoined }
func (UserLeft) MessageType() string   { return MessageTypeUserLeft }
func (UserList) MessageType() string   { return MessageTypeUserList }
func (Signal) MessageType() string     { return MessageTypeSignal }
func (Error) MessageType() string      { return MessageTypeError }
func (u Unknown) MessageType() string  { return u.Type }

func (Join) envelope()       {}
func (Leave) envelope()      {}
func (RoomJoined) envelope() {}
func (UserJoined) envelope() {}
func (UserLeft) envelope()   {}
func (UserList) envelope()   {}
func (Signal) envelope()     {}
func (Error) envelope()      {}
func (Unknown) envelope()    {}

// Message is the flat wire form of every envelope. Users is a pointer so
// room-joined and user-list always carry the array, even when empty.
type Message struct {
	Type     string         `json:"type"`
	Username string         `json:"username,omitempty"`
	RoomID   string         `json:"roomId,omitempty"`
	UserID   string         `json:"userId,omitempty"`
	Users    *[]User        `json:"users,omitempty"`
	TargetID string         `json:"targetId,omitempty"`
	FromID   string         `json:"fromId,omitempty"`
	Signal   *SignalPayload `json:"signal,omitempty"`
	Text     string         `json:"message,omitempty"`
}

// Encode renders an envelope as a JSON object.
func Encode(env Envelope) ([]byte, error) {
	msg, err := toMessage(env)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// Decode parses one JSON object from the relay. Unrecognized types decode
// to Unknown without error; structurally invalid input returns
// ErrMalformedEnvelope.
func Decode(data []byte) (Envelope, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	return fromMessage(&msg)
}

func toMessage(env Envelope) (*Message, error) {
	switch e := env.(type) {
	case Join:
		return &Message{Type: MessageTypeJoin, Username: e.Username, RoomID: e.RoomID}, nil
	case Leave:
		return &Message{Type: MessageTypeLeave}, nil
	case RoomJoined:
		return &Message{Type: MessageTypeRoomJoined, RoomID: e.RoomID, UserID: e.UserID, Users: wireUsers(e.Users)}, nil
	case UserJoined:
		return &Message{Type: MessageTypeUserJoined, UserID: e.UserID, Username: e.Username}, nil
	case UserLeft:
		return &Message{Type: MessageTypeUserLeft, UserID: e.UserID, Username: e.Username}, nil
	case UserList:
		return &Message{Type: MessageTypeUserList, Users: wireUsers(e.Users)}, nil
	case Signal:
		payload := e.Payload
		return &Message{Type: MessageTypeSignal, TargetID: e.TargetID, FromID: e.FromID, Signal: &payload}, nil
	case Error:
		return &Message{Type: MessageTypeError, Text: e.Message}, nil
	default:
		return nil, fmt.Errorf("cannot encode envelope of type %q", env.MessageType())
	}
}

func fromMessage(msg *Message) (Envelope, error) {
	switch msg.Type {
	case MessageTypeJoin:
		return Join{Username: msg.Username, RoomID: msg.RoomID}, nil
	case MessageTypeLeave:
		return Leave{}, nil
	case MessageTypeRoomJoined:
		if msg.UserID == "" {
			return nil, fmt.Errorf("%w: room-joined without userId", ErrMalformedEnvelope)
		}
		if msg.RoomID == "" {
			return nil, fmt.Errorf("%w: room-joined without roomId", ErrMalformedEnvelope)
		}
		return RoomJoined{RoomID: msg.RoomID, UserID: msg.UserID, Users: msg.users()}, nil
	case MessageTypeUserJoined:
		if msg.UserID == "" {
			return nil, fmt.Errorf("%w: user-joined without userId", ErrMalformedEnvelope)
		}
		return UserJoined{UserID: msg.UserID, Username: msg.Username}, nil
	case MessageTypeUserLeft:
		if msg.UserID == "" {
			return nil, fmt.Errorf("%w: user-left without userId", ErrMalformedEnvelope)
		}
		return UserLeft{UserID: msg.UserID, Username: msg.Username}, nil
	case MessageTypeUserList:
		return UserList{Users: msg.users()}, nil
	case MessageTypeSignal:
		if msg.Signal == nil {
			return nil, fmt.Errorf("%w: signal without payload", ErrMalformedEnvelope)
		}
		return Signal{TargetID: msg.TargetID, FromID: msg.FromID, Payload: *msg.Signal}, nil
	case MessageTypeError:
		return Error{Message: msg.Text}, nil
	default:
		return Unknown{Type: msg.Type}, nil
	}
}

func wireUsers(users []User) *[]User {
	if users == nil {
		users = []User{}
	}
	return &users
}

func (m *Message) users() []User {
	if m.Users == nil {
		return nil
	}
	return *m.Users
}
