// Package response provides data types for relay response to client.
package response

import (
	"telecare/types/envelope"
	"telecare/types/invite"
)

// Constants for response types
const (
	REGISTER = "REGISTER"
	SIGNAL   = "SIGNAL"
	NOTICE   = "NOTICE"
	ERROR    = "ERROR"
)

// Common carries only the response type. Clients decode it first to pick
// the concrete response type.
type Common struct {
	Type string `json:"type"`
}

// Register is data type for acknowledging user registration.
type Register struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Signal is data type for an envelope relayed from the other room member.
type Signal struct {
	Type     string            `json:"type"`
	RoomID   string            `json:"room_id"`
	Envelope envelope.Envelope `json:"envelope"`
}

// Notice is data type for an invitation delivered on the personal
// notification channel.
type Notice struct {
	Type       string            `json:"type"`
	Invitation invite.Invitation `json:"invitation"`
}

// Error is data type for a request the relay could not serve.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
