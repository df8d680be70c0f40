package model

import "time"

// User is the identity and presence record. Username is the primary key and never changes.
type User struct {
	Username  string    `json:"username"`
	Online    bool      `json:"online"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}
