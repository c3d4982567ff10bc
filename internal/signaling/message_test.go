package signaling

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDecodeRelayMessages(t *testing.T) {
	mid := "0"
	cases := []struct {
		name string
		in   string
		want Envelope
	}{
		{
			name: "room-joined",
			in:   `{"type":"room-joined","roomId":"r1","userId":"u2","users":[{"userId":"u1","username":"alice"}]}`,
			want: RoomJoined{RoomID: "r1", UserID: "u2", Users: []User{{UserID: "u1", Username: "alice"}}},
		},
		{
			name: "user-joined",
			in:   `{"type":"user-joined","userId":"u3","username":"carol"}`,
			want: UserJoined{UserID: "u3", Username: "carol"},
		},
		{
			name: "user-left",
			in:   `{"type":"user-left","userId":"u3","username":"carol"}`,
			want: UserLeft{UserID: "u3", Username: "carol"},
		},
		{
			name: "error",
			in:   `{"type":"error","message":"Room is full"}`,
			want: Error{Message: "Room is full"},
		},
		{
			name: "unknown",
			in:   `{"type":"typing","userId":"u1"}`,
			want: Unknown{Type: "typing"},
		},
		{
			name: "candidate",
			in:   `{"type":"signal","fromId":"u1","signal":{"candidate":{"candidate":"candidate:1 1 udp 1 127.0.0.1 5000 typ host","sdpMid":"0"}}}`,
			want: Signal{FromID: "u1", Payload: SignalPayload{Candidate: &ICECandidate{
				Candidate: "candidate:1 1 udp 1 127.0.0.1 5000 typ host",
				SDPMid:    &mid,
			}}},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Decode([]byte(c.in))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(c.want)
			if got.MessageType() != c.want.MessageType() || string(gotJSON) != string(wantJSON) {
				t.Fatalf("Decode = %#v, want %#v", got, c.want)
			}
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		`not json`,
		`{"roomId":"r1"}`,
		`{"type":"room-joined","roomId":"r1"}`,
		`{"type":"room-joined","userId":"u1","users":[]}`,
		`{"type":"signal","fromId":"u1"}`,
	} {
		if _, err := Decode([]byte(in)); !errors.Is(err, ErrMalformedEnvelope) {
			t.Errorf("Decode(%s) err = %v, want ErrMalformedEnvelope", in, err)
		}
	}
}

func TestEncodeWireShape(t *testing.T) {
	data, err := Encode(Signal{TargetID: "u2", Payload: SignalPayload{Type: "offer", SDP: "v=0"}})
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"type":"signal"`, `"targetId":"u2"`, `"signal":{"type":"offer","sdp":"v=0"}`} {
		if !strings.Contains(s, want) {
			t.Errorf("encoded %s missing %s", s, want)
		}
	}

	data, _ = Encode(Join{Username: "alice", RoomID: "r1"})
	if string(data) != `{"type":"join","username":"alice","roomId":"r1"}` {
		t.Errorf("join = %s", data)
	}

	data, _ = Encode(RoomJoined{RoomID: "r1", UserID: "u1"})
	if string(data) != `{"type":"room-joined","roomId":"r1","userId":"u1","users":[]}` {
		t.Errorf("room-joined without users = %s", data)
	}
	data, _ = Encode(UserList{Users: []User{}})
	if string(data) != `{"type":"user-list","users":[]}` {
		t.Errorf("empty user-list = %s", data)
	}
	data, _ = Encode(UserJoined{UserID: "u2", Username: "bob"})
	if strings.Contains(string(data), "users") {
		t.Errorf("user-joined carries users: %s", data)
	}

	if _, err := Encode(Unknown{Type: "typing"}); err == nil {
		t.Error("encoding Unknown should fail")
	}
}
