package call

import (
	"errors"

	"telecare/call/invite"
	"telecare/call/peer"
	"telecare/call/session"
	"telecare/call/signaling"
)

// Config composes the configuration of the call stack.
type Config struct {
	// UserID is this participant's stable identity.
	UserID string

	// DisplayName is the human-readable name carried on outgoing
	// invitations.
	DisplayName string

	Signaling signaling.Config
	Peer      peer.Config
	Session   session.Config
	Invite    invite.Config
}

// ErrEmptyUserID is returned when the config has no user id.
var ErrEmptyUserID = errors.New("user id must not be empty")

// Validate checks the config and fills in defaults for unset fields.
func (c *Config) Validate() error {
	if c.UserID == "" {
		return ErrEmptyUserID
	}
	if c.DisplayName == "" {
		c.DisplayName = c.UserID
	}
	if err := c.Signaling.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	return c.Invite.Validate()
}
