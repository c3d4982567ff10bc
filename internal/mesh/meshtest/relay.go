package meshtest

import (
	"context"
	"sync"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/signaling"
)

// Relay is a scripted relay: tests inject what the server would send and
// read back what the coordinator sent.
type Relay struct {
	incoming chan signaling.Envelope
	sent     chan signaling.Envelope

	mu     sync.Mutex
	closed bool
}

func NewRelay() *Relay {
	return &Relay{
		incoming: make(chan signaling.Envelope, 1024),
		sent:     make(chan signaling.Envelope, 1024),
	}
}

// Dial returns r itself; use it as a mesh.DialFunc.
func (r *Relay) Dial(context.Context) (mesh.Relay, error) {
	return r, nil
}

// Inject queues an envelope as if the server sent it.
func (r *Relay) Inject(env signaling.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.incoming <- env
	}
}

// Sent yields envelopes the coordinator sent.
func (r *Relay) Sent() <-chan signaling.Envelope {
	return r.sent
}

func (r *Relay) Send(env signaling.Envelope) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.sent <- env
	return true
}

func (r *Relay) Incoming() <-chan signaling.Envelope {
	return r.incoming
}

// Close ends the socket, as a server disconnect would.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.incoming)
	}
	return nil
}
