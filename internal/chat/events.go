package chat

import (
	"time"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh"
)

// Event is anything the chat client reports.
type Event interface {
	chatEvent()
}

// MeshEvent passes a coordinator event through unchanged. Payloads are
// never passed through; they surface as the events below.
type MeshEvent struct {
	mesh.Event
}

// PeerSecured is emitted once a peer's key exchange completes.
type PeerSecured struct {
	PeerID string
	Name   string
}

type TextReceived struct {
	PeerID string
	Name   string
	Text   string
	SentAt time.Time
}

// FileOffered is emitted when a peer starts sending a file.
type FileOffered struct {
	PeerID string
	Name   string
	Size   int64
}

// FileReceived is emitted after a file passed its integrity check.
type FileReceived struct {
	PeerID string
	Name   string
	File   string
	Path   string
	Size   int64
}

type FileFailed struct {
	PeerID string
	Name   string
	Err    error
}

func (MeshEvent) chatEvent()    {}
func (PeerSecured) chatEvent()  {}
func (TextReceived) chatEvent() {}
func (FileOffered) chatEvent()  {}
func (FileReceived) chatEvent() {}
func (FileFailed) chatEvent()   {}
