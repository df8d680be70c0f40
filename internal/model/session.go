package model

import "time"

// PrivateSession is the conversation container of an unordered user pair.
// UserA and UserB are stored in canonical (sorted) order.
type PrivateSession struct {
	ID              string     `json:"id"`
	UserA           string     `json:"user_a"`
	UserB           string     `json:"user_b"`
	LastMessage     string     `json:"last_message,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	// LastMessageID orders last-message updates that share a timestamp.
	LastMessageID int64     `json:"-"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Involves reports whether username is one of the participants.
func (s *PrivateSession) Involves(username string) bool {
	return s.UserA == username || s.UserB == username
}

// Other returns the participant that is not username, or "" if username is not a participant.
func (s *PrivateSession) Other(username string) string {
	switch username {
	case s.UserA:
		return s.UserB
	case s.UserB:
		return s.UserA
	}
	return ""
}

// CanonicalPair orders two usernames so that (a, b) and (b, a) map to the same key.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
