package chat_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/chat"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh/meshtest"
)

type member struct {
	coord  *mesh.Coordinator
	client *chat.Client

	mu     sync.Mutex
	events []chat.Event
}

func (m *member) seen(match func(chat.Event) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if match(e) {
			return true
		}
	}
	return false
}

func (m *member) waitFor(t *testing.T, what string, match func(chat.Event) bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if m.seen(match) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newMember(t *testing.T, hub *meshtest.Hub, net *meshtest.Network, name string) *member {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	coord := mesh.New(net, hub.Dial, mesh.Config{Logger: logger})
	client, err := chat.NewClient(coord, chat.Options{DownloadDir: t.TempDir(), Logger: logger})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &member{coord: coord, client: client}
	go client.Run(ctx)
	go func() {
		for e := range client.Events() {
			m.mu.Lock()
			m.events = append(m.events, e)
			m.mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		cancel()
		coord.Close()
	})

	if err := coord.Connect(ctx); err != nil {
		t.Fatalf("%s: Connect: %v", name, err)
	}
	if err := coord.Join(name, "room"); err != nil {
		t.Fatalf("%s: Join: %v", name, err)
	}
	return m
}

func secured(e chat.Event) bool {
	_, ok := e.(chat.PeerSecured)
	return ok
}

func TestTextBetweenMembers(t *testing.T) {
	hub, net := meshtest.NewHub(), meshtest.NewNetwork()
	alice := newMember(t, hub, net, "alice")
	bob := newMember(t, hub, net, "bob")

	alice.waitFor(t, "alice secured", secured)
	bob.waitFor(t, "bob secured", secured)

	if n := alice.client.SendText("hi bob"); n != 1 {
		t.Fatalf("SendText reached %d peers, want 1", n)
	}
	bob.waitFor(t, "text at bob", func(e chat.Event) bool {
		msg, ok := e.(chat.TextReceived)
		return ok && msg.Text == "hi bob" && msg.Name == "alice"
	})

	if got := alice.client.Stats().MessagesSent; got != 1 {
		t.Errorf("MessagesSent = %d", got)
	}
	if got := bob.client.Stats().MessagesReceived; got != 1 {
		t.Errorf("MessagesReceived = %d", got)
	}
}

func TestMeshEventsPassThrough(t *testing.T) {
	hub, net := meshtest.NewHub(), meshtest.NewNetwork()
	alice := newMember(t, hub, net, "alice")
	newMember(t, hub, net, "bob")

	alice.waitFor(t, "channel opened", func(e chat.Event) bool {
		me, ok := e.(chat.MeshEvent)
		if !ok {
			return false
		}
		_, ok = me.Event.(mesh.ChannelOpened)
		return ok
	})
	if alice.seen(func(e chat.Event) bool {
		me, ok := e.(chat.MeshEvent)
		if !ok {
			return false
		}
		_, ok = me.Event.(mesh.PayloadReceived)
		return ok
	}) {
		t.Fatal("raw payloads must not be passed through")
	}
}

func TestFileBetweenMembers(t *testing.T) {
	hub, net := meshtest.NewHub(), meshtest.NewNetwork()
	alice := newMember(t, hub, net, "alice")
	bob := newMember(t, hub, net, "bob")

	alice.waitFor(t, "alice secured", secured)
	bob.waitFor(t, "bob secured", secured)

	data := bytes.Repeat([]byte("warpmesh"), 3*chat.ChunkSize/8+100)
	src := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(src, data, 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := alice.client.SendFile(context.Background(), src)
	if err != nil {
		t.Fatalf("SendFile: %v", err)
	}
	if n != 1 {
		t.Fatalf("SendFile delivered to %d peers, want 1", n)
	}

	var received chat.FileReceived
	bob.waitFor(t, "file at bob", func(e chat.Event) bool {
		fr, ok := e.(chat.FileReceived)
		if ok {
			received = fr
		}
		return ok
	})

	if received.File != "notes.txt" || received.Size != int64(len(data)) {
		t.Fatalf("received = %+v", received)
	}
	got, err := os.ReadFile(received.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("received file differs from source")
	}
	if bob.client.Stats().FilesReceived != 1 {
		t.Errorf("FilesReceived = %d", bob.client.Stats().FilesReceived)
	}
}

func TestSendFileWithoutPeers(t *testing.T) {
	hub, net := meshtest.NewHub(), meshtest.NewNetwork()
	alone := newMember(t, hub, net, "alone")

	src := filepath.Join(t.TempDir(), "a.bin")
	os.WriteFile(src, []byte("data"), 0o644)

	if _, err := alone.client.SendFile(context.Background(), src); err != chat.ErrNoSecuredPeers {
		t.Fatalf("err = %v, want ErrNoSecuredPeers", err)
	}
	if n := alone.client.SendText("anyone?"); n != 0 {
		t.Fatalf("SendText = %d, want 0", n)
	}
}
