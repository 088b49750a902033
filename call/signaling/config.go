package signaling

import (
	"errors"
	"time"
)

// Default configuration values.
const (
	DefaultMaxDialAttempts = 3
	DefaultDialBackoff     = 2 * time.Second
)

// Config is the signaling client configuration.
type Config struct {
	// ServerURL is the relay websocket endpoint, e.g. ws://host:7070/ws.
	ServerURL string

	// MaxDialAttempts bounds the dial retries on Connect.
	MaxDialAttempts int

	// DialBackoff is the wait between dial attempts.
	DialBackoff time.Duration
}

var (
	// ErrEmptyServerURL is returned when the relay endpoint is not set.
	ErrEmptyServerURL = errors.New("server url must not be empty")

	// ErrInvalidDialAttempts is returned when the retry bound is not positive.
	ErrInvalidDialAttempts = errors.New("max dial attempts must be positive")
)

// Validate checks the config and fills in defaults for unset fields.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return ErrEmptyServerURL
	}
	if c.MaxDialAttempts == 0 {
		c.MaxDialAttempts = DefaultMaxDialAttempts
	}
	if c.MaxDialAttempts < 0 {
		return ErrInvalidDialAttempts
	}
	if c.DialBackoff == 0 {
		c.DialBackoff = DefaultDialBackoff
	}
	return nil
}
