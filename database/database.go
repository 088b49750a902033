// Package database provides an interface for database operations.
package database

import (
	"errors"
)

const (
	// DefaultMaxRoomMembers is the occupancy cap of a call room. Calls are
	// strictly one-to-one.
	DefaultMaxRoomMembers = 2
)

var (
	// ErrClientAlreadyExists is returned when the client already exists.
	ErrClientAlreadyExists = errors.New("client already exists")

	// ErrClientNotFound is returned when the client is not found.
	ErrClientNotFound = errors.New("client not found")

	// ErrMemberAlreadyExists is returned when the user is already in the room.
	ErrMemberAlreadyExists = errors.New("member already exists")

	// ErrMemberNotFound is returned when the room member is not found.
	ErrMemberNotFound = errors.New("member not found")

	// ErrRoomFull is returned when the room already has its two participants.
	ErrRoomFull = errors.New("room is full")
)

// Config contains the configuration for the database.
type Config struct {
	// MaxRoomMembers caps room occupancy. Zero means DefaultMaxRoomMembers.
	MaxRoomMembers int
}

// Database is an interface for database operations.
type Database interface {
	CreateClientInfo(userID string) error
	FindClientInfoByID(userID string) (*ClientInfo, error)
	DeleteClientInfoByID(userID string) error

	CreateMemberInfo(roomID, userID string) (*MemberInfo, error)
	FindMemberInfoByRoomID(roomID string) ([]*MemberInfo, error)
	FindMemberInfoByUserID(userID string) ([]*MemberInfo, error)
	FindCounterpart(roomID, userID string) (*MemberInfo, error)
	DeleteMemberInfo(roomID, userID string) error
}
