package mesh_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh/meshtest"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/signaling"
)

const waitTimeout = 5 * time.Second

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingTransport remembers the fake connections one coordinator made.
type recordingTransport struct {
	net   *meshtest.Network
	mu    sync.Mutex
	conns []*meshtest.Conn
}

func (r *recordingTransport) NewConnection() (mesh.Connection, error) {
	conn, err := r.net.NewConnection()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.conns = append(r.conns, conn.(*meshtest.Conn))
	r.mu.Unlock()
	return conn, nil
}

func (r *recordingTransport) all() []*meshtest.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*meshtest.Conn, len(r.conns))
	copy(out, r.conns)
	return out
}

// recorder collects every event a coordinator emits.
type recorder struct {
	mu     sync.Mutex
	events []mesh.Event
	done   chan struct{}
}

func record(c *mesh.Coordinator) *recorder {
	r := &recorder{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		for e := range c.Events() {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
		}
	}()
	return r
}

func (r *recorder) snapshot() []mesh.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]mesh.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) count(match func(mesh.Event) bool) int {
	n := 0
	for _, e := range r.snapshot() {
		if match(e) {
			n++
		}
	}
	return n
}

func (r *recorder) payloads() []mesh.PayloadReceived {
	var out []mesh.PayloadReceived
	for _, e := range r.snapshot() {
		if p, ok := e.(mesh.PayloadReceived); ok {
			out = append(out, p)
		}
	}
	return out
}

// node is one coordinator under test with its transport and events.
type node struct {
	*mesh.Coordinator
	transport *recordingTransport
	events    *recorder
}

func newNode(t *testing.T, net *meshtest.Network, dial mesh.DialFunc, cfg mesh.Config) *node {
	t.Helper()
	cfg.Logger = quietLogger()
	transport := &recordingTransport{net: net}
	c := mesh.New(transport, dial, cfg)
	t.Cleanup(func() { _ = c.Close() })
	return &node{Coordinator: c, transport: transport, events: record(c)}
}

// joinHub connects a node to the hub and waits for room-joined.
func joinHub(t *testing.T, n *node, name, room string) {
	t.Helper()
	if err := n.Connect(context.Background()); err != nil {
		t.Fatalf("%s: Connect: %v", name, err)
	}
	if err := n.Join(name, room); err != nil {
		t.Fatalf("%s: Join: %v", name, err)
	}
	eventually(t, name+" joined", func() bool {
		return n.Snapshot().RoomID == room
	})
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func openPeers(n *node) int {
	open := 0
	for _, p := range n.Snapshot().Peers {
		if p.Channel == mesh.ChannelOpen {
			open++
		}
	}
	return open
}

func peerStatus(n *node, id string) (mesh.PeerStatus, bool) {
	for _, p := range n.Snapshot().Peers {
		if p.PeerID == id {
			return p, true
		}
	}
	return mesh.PeerStatus{}, false
}

// expectSent reads what the coordinator sent until match accepts one.
func expectSent(t *testing.T, relay *meshtest.Relay, what string, match func(signaling.Envelope) bool) signaling.Envelope {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case env := <-relay.Sent():
			if match(env) {
				return env
			}
		case <-timeout:
			t.Fatalf("timed out waiting for sent %s", what)
			return nil
		}
	}
}

func isSignal(kind string) func(signaling.Envelope) bool {
	return func(env signaling.Envelope) bool {
		s, ok := env.(signaling.Signal)
		return ok && s.Payload.Type == kind
	}
}

// scriptedNode connects a node to a scripted relay and puts it in room
// "r1" as "me" with the given existing members.
func scriptedNode(t *testing.T, cfg mesh.Config, members ...signaling.User) (*node, *meshtest.Relay) {
	t.Helper()
	relay := meshtest.NewRelay()
	n := newNode(t, meshtest.NewNetwork(), relay.Dial, cfg)
	if err := n.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := n.Join("me", "r1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	expectSent(t, relay, "join", func(env signaling.Envelope) bool {
		_, ok := env.(signaling.Join)
		return ok
	})
	relay.Inject(signaling.RoomJoined{RoomID: "r1", UserID: "me", Users: members})
	eventually(t, "room joined", func() bool { return n.Snapshot().RoomID == "r1" })
	return n, relay
}

func offerFrom(peer, sdp string) signaling.Signal {
	return signaling.Signal{FromID: peer, Payload: signaling.SignalPayload{Type: "offer", SDP: sdp}}
}

func answerFrom(peer, sdp string) signaling.Signal {
	return signaling.Signal{FromID: peer, Payload: signaling.SignalPayload{Type: "answer", SDP: sdp}}
}

func candidateFrom(peer string) signaling.Signal {
	return signaling.Signal{FromID: peer, Payload: signaling.SignalPayload{
		Candidate: &signaling.ICECandidate{Candidate: "candidate:2 1 udp 1 10.0.0.2 9 typ host"},
	}}
}
