package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

func TestRosterView(t *testing.T) {
	if got := RosterView(nil); !strings.Contains(got, "Nobody") {
		t.Fatalf("empty roster = %q", got)
	}

	out := RosterView([]PeerRow{
		{Name: "alice", PeerID: "p1", Role: "impolite", Channel: "open", Connection: "connected", Secured: true, Linked: true},
		{Name: "bob", PeerID: "p2"},
	})
	for _, want := range []string{"alice", "bob", "impolite", "connected", "Channel"} {
		if !strings.Contains(out, want) {
			t.Errorf("roster missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, SessionSummary{
		Room:          "plucky-harbor-otter",
		Duration:      90 * time.Second,
		PeersSeen:     3,
		MessagesSent:  7,
		FilesSent:     1,
		BytesSent:     2048,
		FilesReceived: 0,
	})

	out := buf.String()
	for _, want := range []string{"Session Summary", "plucky-harbor-otter", "1m 30s", "Messages sent", "1 (2.00 KB)"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestPeerStyleIsStable(t *testing.T) {
	a := PeerStyle("alice").GetForeground()
	b := PeerStyle("alice").GetForeground()
	if a != b {
		t.Fatal("same name got different colors")
	}
}

func TestSpinnerStopsCleanly(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(spinner.Dot, "connecting")
	s.out = &buf
	s.interval = time.Millisecond

	s.Start()
	time.Sleep(5 * time.Millisecond)
	s.UpdateMessage("almost")
	s.Success("connected")
	s.Stop()

	if !strings.Contains(buf.String(), "connected") {
		t.Fatalf("output = %q", buf.String())
	}
}
