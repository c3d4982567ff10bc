package relay

import "github.com/Prajwalkadam29/Decentralized-Chat-App/internal/signaling"

// Room is a named group of up to MaxRoomSize clients. Members keep their
// join order.
type Room struct {
	ID      string
	Members []*Client
}

func (r *Room) add(c *Client) {
	r.Members = append(r.Members, c)
}

func (r *Room) remove(c *Client) bool {
	for i, m := range r.Members {
		if m == c {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) find(userID string) *Client {
	for _, m := range r.Members {
		if m.id == userID {
			return m
		}
	}
	return nil
}

// users lists members, leaving out skip when it is non-nil.
func (r *Room) users(skip *Client) []signaling.User {
	users := make([]signaling.User, 0, len(r.Members))
	for _, m := range r.Members {
		if m == skip {
			continue
		}
		users = append(users, signaling.User{UserID: m.id, Username: m.username})
	}
	return users
}

func (r *Room) empty() bool {
	return len(r.Members) == 0
}
