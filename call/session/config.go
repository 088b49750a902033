package session

import (
	"errors"
	"time"
)

// Default configuration values.
const (
	DefaultConnectTimeout  = 90 * time.Second
	DefaultDisconnectGrace = 5 * time.Second
)

// Config holds the session timers.
type Config struct {
	// ConnectTimeout bounds the whole call setup, from Start to an
	// established transport. It also caps how long an unanswered call
	// rings.
	ConnectTimeout time.Duration

	// DisconnectGrace is how long a dropped transport may try to recover
	// before the session fails.
	DisconnectGrace time.Duration
}

// ErrInvalidTimeout is returned for a negative timer value.
var ErrInvalidTimeout = errors.New("timeout must not be negative")

// Validate checks the config and fills in defaults for unset fields.
func (c *Config) Validate() error {
	if c.ConnectTimeout < 0 || c.DisconnectGrace < 0 {
		return ErrInvalidTimeout
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.DisconnectGrace == 0 {
		c.DisconnectGrace = DefaultDisconnectGrace
	}
	return nil
}
