// Package message provides data types for broker message.
package message

// Register is data type for a user attaching to the relay.
type Register struct {
	UserID string
}

// Deregister is data type for a user detaching from the relay. The relay
// treats the socket connection as the single truth of presence.
type Deregister struct {
	UserID string
}

// Join is data type for a user entering a call room.
type Join struct {
	RoomID string
	UserID string
}

// Leave is data type for a user leaving a call room.
type Leave struct {
	RoomID string
	UserID string
}
