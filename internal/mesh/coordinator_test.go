package mesh_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh/meshtest"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/signaling"
)

func TestTwoMembersConnect(t *testing.T) {
	hub := meshtest.NewHub()
	net := meshtest.NewNetwork()

	alice := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, alice, "alice", "room")
	bob := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, bob, "bob", "room")

	eventually(t, "both channels open", func() bool {
		return openPeers(alice) == 1 && openPeers(bob) == 1
	})

	aliceID := alice.Snapshot().SelfID
	bobID := bob.Snapshot().SelfID

	// The later joiner initiates.
	if p, _ := peerStatus(bob, aliceID); p.Role != mesh.RoleImpolite {
		t.Errorf("bob's role toward alice = %v, want impolite", p.Role)
	}
	if p, _ := peerStatus(alice, bobID); p.Role != mesh.RolePolite {
		t.Errorf("alice's role toward bob = %v, want polite", p.Role)
	}

	if n := bob.BroadcastPayload("hello"); n != 1 {
		t.Fatalf("BroadcastPayload = %d, want 1", n)
	}
	if !alice.SendToPeer(bobID, "hi back") {
		t.Fatal("SendToPeer returned false on an open channel")
	}

	eventually(t, "payloads delivered", func() bool {
		return len(alice.events.payloads()) == 1 && len(bob.events.payloads()) == 1
	})
	if got := alice.events.payloads()[0]; got.PeerID != bobID || got.Payload != "hello" {
		t.Errorf("alice received %+v", got)
	}
	if got := bob.events.payloads()[0]; got.PeerID != aliceID || got.Payload != "hi back" {
		t.Errorf("bob received %+v", got)
	}
}

func TestFourMemberMesh(t *testing.T) {
	hub := meshtest.NewHub()
	net := meshtest.NewNetwork()

	var nodes []*node
	for i := 0; i < 4; i++ {
		n := newNode(t, net, hub.Dial, mesh.Config{})
		joinHub(t, n, fmt.Sprintf("member-%d", i), "room")
		nodes = append(nodes, n)
	}

	for i, n := range nodes {
		eventually(t, fmt.Sprintf("member-%d fully linked", i), func() bool {
			return openPeers(n) == 3
		})
	}

	// Exactly one link per unordered pair, with opposite roles.
	for _, a := range nodes {
		for _, b := range nodes {
			if a == b {
				continue
			}
			pa, ok := peerStatus(a, b.Snapshot().SelfID)
			if !ok {
				t.Fatalf("%s has no link to %s", a.Snapshot().SelfID, b.Snapshot().SelfID)
			}
			pb, _ := peerStatus(b, a.Snapshot().SelfID)
			if pa.Role == pb.Role {
				t.Errorf("link %s/%s has matching roles %v", a.Snapshot().SelfID, b.Snapshot().SelfID, pa.Role)
			}
		}
	}

	if got := nodes[0].BroadcastPayload("all"); got != 3 {
		t.Fatalf("BroadcastPayload = %d, want 3", got)
	}
	for i, n := range nodes[1:] {
		eventually(t, fmt.Sprintf("member-%d got broadcast", i+1), func() bool {
			return len(n.events.payloads()) == 1
		})
	}
}

func TestRoomFullIsReported(t *testing.T) {
	hub := meshtest.NewHub()
	hub.MaxRoomSize = 2
	net := meshtest.NewNetwork()

	a := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, a, "a", "room")
	b := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, b, "b", "room")

	c := newNode(t, net, hub.Dial, mesh.Config{})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Join("c", "room"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "error event", func() bool {
		return c.events.count(func(e mesh.Event) bool {
			_, ok := e.(mesh.ErrorReported)
			return ok
		}) == 1
	})
	if snap := c.Snapshot(); snap.RoomID != "" || len(snap.Peers) != 0 {
		t.Fatalf("rejected member has state %+v", snap)
	}

	// A rejected join does not count as being in a room.
	if err := c.Join("c", "other"); err != nil {
		t.Fatalf("Join after rejection: %v", err)
	}
}

func TestLeaveTearsEverythingDown(t *testing.T) {
	hub := meshtest.NewHub()
	net := meshtest.NewNetwork()

	a := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, a, "a", "room")
	b := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, b, "b", "room")
	c := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, c, "c", "room")

	for _, n := range []*node{a, b, c} {
		eventually(t, "mesh formed", func() bool { return openPeers(n) == 2 })
	}

	if err := a.Leave(); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	snap := a.Snapshot()
	if snap.RoomID != "" || len(snap.Roster) != 0 || len(snap.Peers) != 0 {
		t.Fatalf("state after leave: %+v", snap)
	}
	for _, conn := range a.transport.all() {
		if !conn.Closed() {
			t.Errorf("connection %s left open", conn.ID())
		}
	}
	if a.BroadcastPayload("late") != 0 {
		t.Error("broadcast after leave reached someone")
	}

	for _, n := range []*node{b, c} {
		eventually(t, "survivors drop the leaver", func() bool {
			s := n.Snapshot()
			return len(s.Roster) == 1 && len(s.Peers) == 1
		})
	}
	if b.BroadcastPayload("still here") != 1 {
		t.Error("remaining pair lost its link")
	}

	// Leaving again is a no-op.
	if err := a.Leave(); err != nil {
		t.Fatalf("second Leave: %v", err)
	}
}

func TestLateJoinerLinksToEveryone(t *testing.T) {
	hub := meshtest.NewHub()
	net := meshtest.NewNetwork()

	a := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, a, "a", "room")
	b := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, b, "b", "room")
	eventually(t, "a-b linked", func() bool { return openPeers(a) == 1 && openPeers(b) == 1 })

	c := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, c, "c", "room")
	eventually(t, "c linked to both", func() bool { return openPeers(c) == 2 })

	for _, p := range c.Snapshot().Peers {
		if p.Role != mesh.RoleImpolite {
			t.Errorf("late joiner role toward %s = %v, want impolite", p.PeerID, p.Role)
		}
	}
	if got := len(c.transport.all()); got != 2 {
		t.Errorf("late joiner created %d connections, want 2", got)
	}
}

func TestDuplicateUserJoinedIsIdempotent(t *testing.T) {
	n, relay := scriptedNode(t, mesh.Config{})

	relay.Inject(signaling.UserJoined{UserID: "p1", Username: "x"})
	relay.Inject(signaling.UserJoined{UserID: "p1", Username: "x"})
	relay.Inject(signaling.UserJoined{UserID: "p1", Username: "renamed"})

	eventually(t, "roster renamed", func() bool {
		r := n.Snapshot().Roster
		return len(r) == 1 && r[0].DisplayName == "renamed"
	})
	if got := len(n.Snapshot().Peers); got != 1 {
		t.Fatalf("peers = %d, want 1", got)
	}
	if got := len(n.transport.all()); got != 1 {
		t.Fatalf("connections = %d, want 1", got)
	}
}

func TestDuplicateRoomJoinedIsIgnored(t *testing.T) {
	n, relay := scriptedNode(t, mesh.Config{}, signaling.User{UserID: "p1", Username: "one"})

	relay.Inject(signaling.RoomJoined{RoomID: "r2", UserID: "other", Users: []signaling.User{{UserID: "p2"}}})
	relay.Inject(signaling.UserJoined{UserID: "p3", Username: "three"})
	eventually(t, "p3 processed", func() bool { return len(n.Snapshot().Roster) == 2 })

	snap := n.Snapshot()
	if snap.RoomID != "r1" || snap.SelfID != "me" {
		t.Fatalf("identity changed: room=%q self=%q", snap.RoomID, snap.SelfID)
	}
	if _, ok := peerStatus(n, "p2"); ok {
		t.Fatal("link created from duplicate room-joined")
	}
}

func TestEarlyCandidatesAreBuffered(t *testing.T) {
	n, relay := scriptedNode(t, mesh.Config{})
	relay.Inject(signaling.UserJoined{UserID: "p1", Username: "one"})
	eventually(t, "link", func() bool { return len(n.Snapshot().Peers) == 1 })

	relay.Inject(candidateFrom("p1"))
	relay.Inject(candidateFrom("p1"))
	relay.Inject(offerFrom("p1", "fake-offer:remote:1"))

	expectSent(t, relay, "answer", isSignal("answer"))
	conn := n.transport.all()[0]
	if got := conn.CandidatesAdded(); got != 2 {
		t.Fatalf("candidates applied = %d, want 2", got)
	}

	// Once a remote description exists candidates go straight in.
	relay.Inject(candidateFrom("p1"))
	eventually(t, "direct candidate", func() bool { return conn.CandidatesAdded() == 3 })
}

func TestImpoliteIgnoresCollidingOffer(t *testing.T) {
	n, relay := scriptedNode(t, mesh.Config{}, signaling.User{UserID: "p1", Username: "one"})

	expectSent(t, relay, "initial offer", isSignal("offer"))
	relay.Inject(offerFrom("p1", "fake-offer:remote:1"))
	eventually(t, "ignoring", func() bool {
		p, _ := peerStatus(n, "p1")
		return p.Negotiation == mesh.NegotiationIgnoring
	})

	relay.Inject(candidateFrom("p1"))
	relay.Inject(answerFrom("p1", "fake-answer:remote"))
	eventually(t, "stable", func() bool {
		p, _ := peerStatus(n, "p1")
		return p.Negotiation == mesh.NegotiationStable
	})

	conn := n.transport.all()[0]
	if got := conn.CandidatesAdded(); got != 0 {
		t.Fatalf("candidates for the ignored offer applied: %d", got)
	}
	if conn.SignalingState() != mesh.SignalingStable {
		t.Fatalf("signaling = %v, want stable", conn.SignalingState())
	}

	select {
	case env := <-relay.Sent():
		if isSignal("answer")(env) {
			t.Fatal("impolite side answered a colliding offer")
		}
	default:
	}
}

func TestPoliteRollsBackOnCollision(t *testing.T) {
	n, relay := scriptedNode(t, mesh.Config{})
	relay.Inject(signaling.UserJoined{UserID: "p1", Username: "one"})
	eventually(t, "link", func() bool { return len(n.transport.all()) == 1 })
	conn := n.transport.all()[0]

	conn.TriggerNegotiation()
	expectSent(t, relay, "renegotiation offer", isSignal("offer"))

	relay.Inject(offerFrom("p1", "fake-offer:remote:1"))
	expectSent(t, relay, "answer after rollback", isSignal("answer"))

	if got := conn.Rollbacks(); got != 1 {
		t.Fatalf("rollbacks = %d, want 1", got)
	}
	p, _ := peerStatus(n, "p1")
	if p.Negotiation != mesh.NegotiationStable {
		t.Fatalf("negotiation = %v, want stable", p.Negotiation)
	}
}

func TestStaleAnswerIsDropped(t *testing.T) {
	n, relay := scriptedNode(t, mesh.Config{})
	relay.Inject(signaling.UserJoined{UserID: "p1", Username: "one"})
	relay.Inject(answerFrom("p1", "fake-answer:remote"))
	relay.Inject(signaling.UserJoined{UserID: "p2", Username: "two"})
	eventually(t, "both links", func() bool { return len(n.Snapshot().Peers) == 2 })

	conn := n.transport.all()[0]
	if conn.HasRemoteDescription() {
		t.Fatal("stale answer was applied")
	}
}

func TestSignalsFromUnknownPeers(t *testing.T) {
	n, relay := scriptedNode(t, mesh.Config{})

	relay.Inject(candidateFrom("ghost"))
	relay.Inject(answerFrom("ghost", "fake-answer:x"))
	relay.Inject(signaling.UserJoined{UserID: "p1", Username: "one"})
	eventually(t, "p1 linked", func() bool { return len(n.Snapshot().Peers) == 1 })
	if _, ok := peerStatus(n, "ghost"); ok {
		t.Fatal("candidate or answer created a link")
	}

	// An offer is the one signal that may create a link.
	relay.Inject(offerFrom("ghost", "fake-offer:x:1"))
	expectSent(t, relay, "answer to ghost", isSignal("answer"))
	p, ok := peerStatus(n, "ghost")
	if !ok || p.Role != mesh.RolePolite {
		t.Fatalf("offer from unknown peer: link=%v role=%v", ok, p.Role)
	}
}

func TestUnknownEnvelopeIsIgnored(t *testing.T) {
	n, relay := scriptedNode(t, mesh.Config{})
	relay.Inject(signaling.Unknown{Type: "typing"})
	relay.Inject(signaling.UserJoined{UserID: "p1", Username: "one"})
	eventually(t, "processing continues", func() bool { return len(n.Snapshot().Roster) == 1 })
}

func TestUserListIsInformational(t *testing.T) {
	n, relay := scriptedNode(t, mesh.Config{})
	relay.Inject(signaling.UserList{Users: []signaling.User{{UserID: "p9", Username: "nine"}}})
	eventually(t, "user list event", func() bool {
		return n.events.count(func(e mesh.Event) bool {
			ul, ok := e.(mesh.UserList)
			return ok && len(ul.Users) == 1 && ul.Users[0].PeerID == "p9"
		}) == 1
	})
	if len(n.Snapshot().Peers) != 0 {
		t.Fatal("user-list created a link")
	}
}

func TestUserLeftRemovesLink(t *testing.T) {
	n, relay := scriptedNode(t, mesh.Config{}, signaling.User{UserID: "p1", Username: "one"})
	eventually(t, "link", func() bool { return len(n.Snapshot().Peers) == 1 })

	relay.Inject(signaling.UserLeft{UserID: "p1", Username: "one"})
	eventually(t, "link removed", func() bool { return len(n.Snapshot().Peers) == 0 })
	if !n.transport.all()[0].Closed() {
		t.Fatal("connection not closed")
	}
	if len(n.Snapshot().Roster) != 0 {
		t.Fatal("roster still lists departed member")
	}

	// Late signals for the departed member do not resurrect anything.
	relay.Inject(candidateFrom("p1"))
	relay.Inject(signaling.UserJoined{UserID: "p2", Username: "two"})
	eventually(t, "p2", func() bool { return len(n.Snapshot().Peers) == 1 })
	if _, ok := peerStatus(n, "p1"); ok {
		t.Fatal("departed member relinked")
	}
}

func TestSignalsOutsideRoomAreDropped(t *testing.T) {
	relay := meshtest.NewRelay()
	n := newNode(t, meshtest.NewNetwork(), relay.Dial, mesh.Config{})
	if err := n.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	relay.Inject(offerFrom("p1", "fake-offer:x:1"))
	relay.Inject(signaling.UserJoined{UserID: "p2"})
	time.Sleep(50 * time.Millisecond)
	if got := len(n.transport.all()); got != 0 {
		t.Fatalf("connections created outside a room: %d", got)
	}
}

func TestFailureKeepLeavesLink(t *testing.T) {
	n, _ := scriptedNode(t, mesh.Config{}, signaling.User{UserID: "p1"})
	eventually(t, "link", func() bool { return len(n.transport.all()) == 1 })

	n.transport.all()[0].Fail()
	eventually(t, "failed state", func() bool {
		p, _ := peerStatus(n, "p1")
		return p.Connection == mesh.ConnectionFailed
	})
	if len(n.transport.all()) != 1 {
		t.Fatal("link recreated under keep policy")
	}
}

func TestFailureRecreateRebuildsLink(t *testing.T) {
	hub := meshtest.NewHub()
	net := meshtest.NewNetwork()
	cfg := mesh.Config{FailurePolicy: mesh.FailureRecreate}

	a := newNode(t, net, hub.Dial, cfg)
	joinHub(t, a, "a", "room")
	b := newNode(t, net, hub.Dial, cfg)
	joinHub(t, b, "b", "room")
	eventually(t, "linked", func() bool { return openPeers(a) == 1 && openPeers(b) == 1 })

	b.transport.all()[0].Fail()

	eventually(t, "initiator rebuilt", func() bool { return len(b.transport.all()) == 2 })
	if !b.transport.all()[0].Closed() {
		t.Fatal("failed connection not closed")
	}
	eventually(t, "relinked", func() bool { return openPeers(a) == 1 && openPeers(b) == 1 })

	if b.BroadcastPayload("again") != 1 {
		t.Fatal("rebuilt link does not carry payloads")
	}
	eventually(t, "delivery", func() bool { return len(a.events.payloads()) == 1 })
}

func TestNegotiationTimeout(t *testing.T) {
	n, _ := scriptedNode(t, mesh.Config{NegotiationTimeout: 50 * time.Millisecond}, signaling.User{UserID: "p1"})

	eventually(t, "timeout event", func() bool {
		return n.events.count(func(e mesh.Event) bool {
			to, ok := e.(mesh.NegotiationTimedOut)
			return ok && to.PeerID == "p1"
		}) == 1
	})
	if _, ok := peerStatus(n, "p1"); !ok {
		t.Fatal("keep policy removed the link")
	}
}

func TestRelayDisconnect(t *testing.T) {
	relays := []*meshtest.Relay{meshtest.NewRelay(), meshtest.NewRelay()}
	dials := 0
	dial := func(ctx context.Context) (mesh.Relay, error) {
		r := relays[dials]
		dials++
		return r, nil
	}

	n := newNode(t, meshtest.NewNetwork(), dial, mesh.Config{})
	if err := n.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := n.Connect(context.Background()); !errors.Is(err, mesh.ErrAlreadyConnected) {
		t.Fatalf("second Connect: %v", err)
	}
	if err := n.Join("me", "r1"); err != nil {
		t.Fatal(err)
	}
	relays[0].Inject(signaling.RoomJoined{RoomID: "r1", UserID: "me", Users: []signaling.User{{UserID: "p1"}}})
	eventually(t, "link", func() bool { return len(n.transport.all()) == 1 })

	_ = relays[0].Close()
	eventually(t, "disconnected event", func() bool {
		return n.events.count(func(e mesh.Event) bool {
			_, ok := e.(mesh.Disconnected)
			return ok
		}) == 1
	})
	if n.Snapshot().Connected {
		t.Fatal("still connected")
	}
	if !n.transport.all()[0].Closed() {
		t.Fatal("link survived relay loss")
	}
	if err := n.Join("me", "r1"); !errors.Is(err, mesh.ErrNotConnected) {
		t.Fatalf("Join without relay: %v", err)
	}

	if err := n.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if err := n.Join("me", "r1"); err != nil {
		t.Fatalf("Join after reconnect: %v", err)
	}
}

func TestJoinPreconditions(t *testing.T) {
	relay := meshtest.NewRelay()
	n := newNode(t, meshtest.NewNetwork(), relay.Dial, mesh.Config{})

	if err := n.Join("me", "r1"); !errors.Is(err, mesh.ErrNotConnected) {
		t.Fatalf("Join before Connect: %v", err)
	}
	if err := n.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := n.Join("me", ""); !errors.Is(err, mesh.ErrInvalidRoom) {
		t.Fatalf("Join with empty room: %v", err)
	}
	if err := n.Join("me", "r1"); err != nil {
		t.Fatal(err)
	}
	if err := n.Join("me", "r2"); !errors.Is(err, mesh.ErrAlreadyInRoom) {
		t.Fatalf("second Join: %v", err)
	}
}

func TestSendToUnknownPeer(t *testing.T) {
	n, _ := scriptedNode(t, mesh.Config{})
	if n.SendToPeer("nobody", "x") {
		t.Fatal("SendToPeer succeeded for unknown peer")
	}
	if n.BroadcastPayload("x") != 0 {
		t.Fatal("broadcast with no peers reported deliveries")
	}
}

func TestSendBeforeChannelOpen(t *testing.T) {
	n, _ := scriptedNode(t, mesh.Config{}, signaling.User{UserID: "p1"})
	eventually(t, "link", func() bool { return len(n.Snapshot().Peers) == 1 })
	if n.SendToPeer("p1", "too early") {
		t.Fatal("send on a connecting channel succeeded")
	}
}

func TestCloseIsTerminal(t *testing.T) {
	n, relay := scriptedNode(t, mesh.Config{}, signaling.User{UserID: "p1"})
	eventually(t, "link", func() bool { return len(n.transport.all()) == 1 })

	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	expectSent(t, relay, "leave", func(env signaling.Envelope) bool {
		_, ok := env.(signaling.Leave)
		return ok
	})
	if !n.transport.all()[0].Closed() {
		t.Fatal("connection left open")
	}

	if err := n.Connect(context.Background()); !errors.Is(err, mesh.ErrClosed) {
		t.Fatalf("Connect after Close: %v", err)
	}
	if err := n.Join("me", "r1"); !errors.Is(err, mesh.ErrClosed) {
		t.Fatalf("Join after Close: %v", err)
	}
	if n.BroadcastPayload("x") != 0 || n.SendToPeer("p1", "x") {
		t.Fatal("send after Close succeeded")
	}
	if err := n.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	select {
	case <-n.events.done:
	case <-time.After(waitTimeout):
		t.Fatal("events channel not closed")
	}
}

func TestCloseReportsEveryRemovedPeer(t *testing.T) {
	n, _ := scriptedNode(t, mesh.Config{},
		signaling.User{UserID: "p1"}, signaling.User{UserID: "p2"}, signaling.User{UserID: "p3"})
	eventually(t, "links", func() bool { return len(n.transport.all()) == 3 })

	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-n.events.done:
	case <-time.After(waitTimeout):
		t.Fatal("events channel not closed")
	}

	removed := map[string]bool{}
	for _, e := range n.events.snapshot() {
		if r, ok := e.(mesh.PeerRemoved); ok {
			removed[r.PeerID] = true
		}
	}
	for _, id := range []string{"p1", "p2", "p3"} {
		if !removed[id] {
			t.Errorf("no PeerRemoved for %s, got %v", id, removed)
		}
	}
}

func TestWaitWritableFollowsBuffer(t *testing.T) {
	hub := meshtest.NewHub()
	net := meshtest.NewNetwork()

	a := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, a, "a", "room")
	b := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, b, "b", "room")
	eventually(t, "linked", func() bool { return openPeers(a) == 1 && openPeers(b) == 1 })

	peerID := a.Snapshot().Peers[0].PeerID
	ch := a.transport.all()[0].Channel()
	if err := a.WaitWritable(context.Background(), peerID); err != nil {
		t.Fatalf("WaitWritable on an empty buffer: %v", err)
	}

	ch.SetBuffered(mesh.HighWaterMark + 1)
	done := make(chan error, 1)
	go func() { done <- a.WaitWritable(context.Background(), peerID) }()

	select {
	case err := <-done:
		t.Fatalf("WaitWritable returned %v over the high water mark", err)
	case <-time.After(50 * time.Millisecond):
	}

	ch.SetBuffered(0)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitWritable after drain: %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("WaitWritable did not wake on drain")
	}

	ch.SetBuffered(mesh.HighWaterMark + 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.WaitWritable(ctx, peerID); !errors.Is(err, context.Canceled) {
		t.Fatalf("WaitWritable with cancelled context: %v", err)
	}
	if err := a.WaitWritable(context.Background(), "nobody"); !errors.Is(err, mesh.ErrUnknownPeer) {
		t.Fatalf("WaitWritable for unknown peer: %v", err)
	}
}

func TestGlareConverges(t *testing.T) {
	hub := meshtest.NewHub()
	net := meshtest.NewNetwork()

	a := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, a, "a", "room")
	b := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, b, "b", "room")
	eventually(t, "linked", func() bool { return openPeers(a) == 1 && openPeers(b) == 1 })

	for i := 0; i < 5; i++ {
		a.transport.all()[0].TriggerNegotiation()
		b.transport.all()[0].TriggerNegotiation()
	}

	eventually(t, "both sides stable", func() bool {
		pa := a.Snapshot().Peers
		pb := b.Snapshot().Peers
		return len(pa) == 1 && len(pb) == 1 &&
			pa[0].Negotiation == mesh.NegotiationStable &&
			pb[0].Negotiation == mesh.NegotiationStable &&
			a.transport.all()[0].SignalingState() == mesh.SignalingStable &&
			b.transport.all()[0].SignalingState() == mesh.SignalingStable
	})

	if a.BroadcastPayload("after glare") != 1 {
		t.Fatal("channel lost during glare")
	}
	eventually(t, "delivery", func() bool { return len(b.events.payloads()) == 1 })
}

func TestPayloadOrderIsPreserved(t *testing.T) {
	hub := meshtest.NewHub()
	net := meshtest.NewNetwork()

	a := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, a, "a", "room")
	b := newNode(t, net, hub.Dial, mesh.Config{})
	joinHub(t, b, "b", "room")
	eventually(t, "linked", func() bool { return openPeers(a) == 1 && openPeers(b) == 1 })

	const n = 100
	for i := 0; i < n; i++ {
		if b.BroadcastPayload(fmt.Sprintf("m%03d", i)) != 1 {
			t.Fatalf("send %d failed", i)
		}
	}
	eventually(t, "all delivered", func() bool { return len(a.events.payloads()) == n })
	for i, p := range a.events.payloads() {
		if want := fmt.Sprintf("m%03d", i); p.Payload != want {
			t.Fatalf("payload %d = %q, want %q", i, p.Payload, want)
		}
	}
}
