package mesh

import (
	"errors"
	"fmt"
)

var (
	ErrClosed           = errors.New("coordinator closed")
	ErrNotConnected     = errors.New("not connected to signaling relay")
	ErrAlreadyConnected = errors.New("already connected to signaling relay")
	ErrAlreadyInRoom    = errors.New("already in a room")
	ErrInvalidRoom      = errors.New("room id is required")
	ErrChannelNotOpen   = errors.New("channel not open")
	ErrUnknownPeer      = errors.New("unknown peer")
	ErrPeerLimit        = errors.New("peer limit reached")
	ErrBufferTimeout    = errors.New("channel buffer not draining")
)

// Error describes a failed operation on a single peer link.
type Error struct {
	Op   string
	Peer string
	Err  error
}

func (e *Error) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newPeerError(op, peer string, err error) *Error {
	return &Error{Op: op, Peer: peer, Err: err}
}
