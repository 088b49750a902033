package database

import "time"

// ClientInfo records a user's presence on the relay. A row exists exactly
// while the user's socket connection is up.
type ClientInfo struct {
	ID        string
	CreatedAt time.Time
}

// DeepCopy creates a deep copy of the given ClientInfo.
func (c *ClientInfo) DeepCopy() *ClientInfo {
	return &ClientInfo{
		ID:        c.ID,
		CreatedAt: c.CreatedAt,
	}
}
