// Package request contains client to relay request types.
package request

import (
	"encoding/json"

	"telecare/types/envelope"
	"telecare/types/invite"
)

// Constants for request types
const (
	REGISTER = "REGISTER"
	JOIN     = "JOIN"
	SIGNAL   = "SIGNAL"
	INVITE   = "INVITE"
	LEAVE    = "LEAVE"
)

// Common is data type that must be implemented in all request
type Common struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Register is data type for registering user presence. It must be the first
// request on a connection.
type Register struct {
	UserID string `json:"user_id"`
}

// Join is data type for entering a call room.
type Join struct {
	RoomID string `json:"room_id"`
}

// Signal is data type for relaying an envelope to the other room member.
type Signal struct {
	RoomID   string            `json:"room_id"`
	Envelope envelope.Envelope `json:"envelope"`
}

// Invite is data type for dispatching a call invitation to the recipient's
// personal notification channel.
type Invite struct {
	Invitation invite.Invitation `json:"invitation"`
}

// Leave is data type for leaving a call room.
type Leave struct {
	RoomID string `json:"room_id"`
}
