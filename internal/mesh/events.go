package mesh

import (
	"sync"
	"time"
)

const flushGrace = 5 * time.Second

// Event is anything the coordinator reports to its consumer.
type Event interface {
	event()
}

// RoomJoined is emitted once the relay confirms a join.
type RoomJoined struct {
	RoomID string
	SelfID string
}

// RosterChanged carries the full roster after any membership change.
type RosterChanged struct {
	Roster []RosterEntry
}

// UserList is an informational roster snapshot pushed by the relay.
type UserList struct {
	Users []RosterEntry
}

// PeerAdded is emitted when a peer link is created.
type PeerAdded struct {
	PeerID string
	Role   Role
}

// PeerRemoved is emitted after a peer link is torn down.
type PeerRemoved struct {
	PeerID string
	Reason string
}

// ConnectionStateChanged reports transport states verbatim.
type ConnectionStateChanged struct {
	PeerID string
	State  ConnectionState
}

type ChannelOpened struct {
	PeerID string
}

type ChannelShut struct {
	PeerID string
}

// PayloadReceived carries one application payload, unmodified.
type PayloadReceived struct {
	PeerID  string
	Payload string
}

// ErrorReported surfaces an error envelope from the relay.
type ErrorReported struct {
	Message string
}

// NegotiationTimedOut is emitted when a link's channel is not open within
// the configured deadline.
type NegotiationTimedOut struct {
	PeerID string
}

// Disconnected is emitted when the relay socket ends. All links are gone by
// the time it is delivered.
type Disconnected struct{}

func (RoomJoined) event()             {}
func (RosterChanged) event()          {}
func (UserList) event()               {}
func (PeerAdded) event()              {}
func (PeerRemoved) event()            {}
func (ConnectionStateChanged) event() {}
func (ChannelOpened) event()          {}
func (ChannelShut) event()            {}
func (PayloadReceived) event()        {}
func (ErrorReported) event()          {}
func (NegotiationTimedOut) event()    {}
func (Disconnected) event()           {}

// eventQueue decouples the coordinator from its consumer: push never
// blocks, and delivery order matches push order.
type eventQueue struct {
	mu      sync.Mutex
	pending []Event
	notify  chan struct{}
	out     chan Event
	done    chan struct{}
	once    sync.Once
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *eventQueue) push(e Event) {
	q.mu.Lock()
	q.pending = append(q.pending, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *eventQueue) run() {
	defer close(q.out)
	for {
		select {
		case <-q.notify:
		case <-q.done:
			q.flush()
			return
		}

		batch := q.take()
		for i, e := range batch {
			select {
			case q.out <- e:
			case <-q.done:
				q.requeue(batch[i:])
				q.flush()
				return
			}
		}
	}
}

func (q *eventQueue) take() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.pending
	q.pending = nil
	return batch
}

func (q *eventQueue) requeue(rest []Event) {
	q.mu.Lock()
	q.pending = append(rest[:len(rest):len(rest)], q.pending...)
	q.mu.Unlock()
}

// flush hands over everything pushed before close. A consumer that stops
// reading for flushGrace is treated as gone and the rest is dropped.
func (q *eventQueue) flush() {
	timer := time.NewTimer(flushGrace)
	defer timer.Stop()

	for _, e := range q.take() {
		timer.Reset(flushGrace)
		select {
		case q.out <- e:
		case <-timer.C:
			return
		}
	}
}

func (q *eventQueue) close() {
	q.once.Do(func() { close(q.done) })
}
