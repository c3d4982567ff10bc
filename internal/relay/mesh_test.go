package relay_test

import (
	"context"
	"testing"
	"time"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh/meshtest"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/signaling"
)

// Three coordinators negotiate a full mesh through the real relay and
// signaling client, over the in-memory transport.
func TestMeshOverRelay(t *testing.T) {
	srv, _ := startRelay(t, 4)
	net := meshtest.NewNetwork()

	dial := func(ctx context.Context) (mesh.Relay, error) {
		c := signaling.NewClient(wsURL(srv), quietLogger())
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}

	var nodes []*mesh.Coordinator
	for _, name := range []string{"alice", "bob", "carol"} {
		c := mesh.New(net, dial, mesh.Config{Logger: quietLogger()})
		t.Cleanup(func() { c.Close() })
		go func() {
			for range c.Events() {
			}
		}()

		if err := c.Connect(context.Background()); err != nil {
			t.Fatalf("%s: Connect: %v", name, err)
		}
		if err := c.Join(name, "mesh"); err != nil {
			t.Fatalf("%s: Join: %v", name, err)
		}
		nodes = append(nodes, c)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if allOpen(nodes, 2) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	for i, n := range nodes {
		t.Logf("node %d: %+v", i, n.Snapshot())
	}
	t.Fatal("mesh did not converge")
}

func allOpen(nodes []*mesh.Coordinator, want int) bool {
	for _, n := range nodes {
		open := 0
		for _, p := range n.Snapshot().Peers {
			if p.Channel == mesh.ChannelOpen {
				open++
			}
		}
		if open != want {
			return false
		}
	}
	return true
}
