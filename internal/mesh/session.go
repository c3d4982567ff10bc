package mesh

import "github.com/Prajwalkadam29/Decentralized-Chat-App/internal/signaling"

// RosterEntry is one other member of the current room.
type RosterEntry struct {
	PeerID      string
	DisplayName string
}

// session is the state of one relay connection. A new session replaces it
// on every Connect; callbacks compare against the current one before
// touching anything.
type session struct {
	relay   Relay
	selfID  string
	roomID  string
	joining bool
	roster  []RosterEntry
	links   map[string]*peerLink
}

func newSession(relay Relay) *session {
	return &session{
		relay: relay,
		links: make(map[string]*peerLink),
	}
}

func (s *session) inRoom() bool {
	return s.roomID != ""
}

// addMember inserts or renames a roster entry and reports whether the
// roster changed.
func (s *session) addMember(id, name string) bool {
	for i := range s.roster {
		if s.roster[i].PeerID == id {
			if s.roster[i].DisplayName == name {
				return false
			}
			s.roster[i].DisplayName = name
			return true
		}
	}
	s.roster = append(s.roster, RosterEntry{PeerID: id, DisplayName: name})
	return true
}

func (s *session) removeMember(id string) bool {
	for i := range s.roster {
		if s.roster[i].PeerID == id {
			s.roster = append(s.roster[:i], s.roster[i+1:]...)
			return true
		}
	}
	return false
}

func (s *session) hasMember(id string) bool {
	for _, e := range s.roster {
		if e.PeerID == id {
			return true
		}
	}
	return false
}

func (s *session) rosterCopy() []RosterEntry {
	out := make([]RosterEntry, len(s.roster))
	copy(out, s.roster)
	return out
}

func (s *session) clearRoom() {
	s.roomID = ""
	s.joining = false
	s.roster = nil
}

func rosterFromUsers(users []signaling.User) []RosterEntry {
	out := make([]RosterEntry, 0, len(users))
	for _, u := range users {
		out = append(out, RosterEntry{PeerID: u.UserID, DisplayName: u.Username})
	}
	return out
}
