// Package invite handles the call invitation handshake on the client side:
// announcing outgoing invitations and holding incoming ones until they are
// accepted, declined or expire.
package invite

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	invites "telecare/types/invite"
)

// DefaultExpiry is how long an incoming invitation stays claimable. The
// window is local to the recipient: the relay does not track invitations.
const DefaultExpiry = 30 * time.Second

var (
	// ErrExpired is returned when an invitation is claimed after its
	// window closed or was never delivered.
	ErrExpired = errors.New("invitation expired")

	// ErrInvalidExpiry is returned for a negative expiry.
	ErrInvalidExpiry = errors.New("expiry must not be negative")
)

// Announcer dispatches an invitation to its recipient.
type Announcer interface {
	Invite(invitation invites.Invitation) error
}

// Config holds the dispatcher settings.
type Config struct {
	Expiry time.Duration
}

// Validate checks the config and fills in defaults for unset fields.
func (c *Config) Validate() error {
	if c.Expiry < 0 {
		return ErrInvalidExpiry
	}
	if c.Expiry == 0 {
		c.Expiry = DefaultExpiry
	}
	return nil
}

// Dispatcher sends outgoing invitations and tracks incoming ones. Each
// incoming invitation is claimable exactly once within the expiry window.
type Dispatcher struct {
	config    Config
	announcer Announcer

	mu        sync.Mutex
	pending   map[string]*pendingInvite
	onIncome  func(invites.Invitation)
	onExpired func(invites.Invitation)
}

type pendingInvite struct {
	invitation invites.Invitation
	timer      *time.Timer
}

// NewDispatcher creates a Dispatcher announcing through the given
// announcer.
func NewDispatcher(config Config, announcer Announcer) (*Dispatcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Dispatcher{
		config:    config,
		announcer: announcer,
		pending:   map[string]*pendingInvite{},
	}, nil
}

// OnIncoming registers the callback for delivered invitations.
func (d *Dispatcher) OnIncoming(fn func(invites.Invitation)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onIncome = fn
}

// OnExpired registers the callback for invitations whose window closed
// unclaimed.
func (d *Dispatcher) OnExpired(fn func(invites.Invitation)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onExpired = fn
}

// Announce dispatches an invitation for an outgoing call and returns it
// with a fresh session id. An offline recipient is not an error: the
// relay drops the notice and the caller times out waiting in the room.
func (d *Dispatcher) Announce(kind, callerID, callerName, recipientID string) (invites.Invitation, error) {
	invitation := invites.Invitation{
		SessionID:   uuid.NewString(),
		Kind:        kind,
		CallerID:    callerID,
		CallerName:  callerName,
		RecipientID: recipientID,
	}
	if err := d.announcer.Invite(invitation); err != nil {
		return invites.Invitation{}, err
	}
	return invitation, nil
}

// Deliver records an incoming invitation and starts its expiry window.
// A redelivered session id resets nothing; the first window stands.
func (d *Dispatcher) Deliver(invitation invites.Invitation) {
	d.mu.Lock()
	if _, ok := d.pending[invitation.SessionID]; ok {
		d.mu.Unlock()
		return
	}
	entry := &pendingInvite{invitation: invitation}
	entry.timer = time.AfterFunc(d.config.Expiry, func() {
		d.expire(invitation.SessionID)
	})
	d.pending[invitation.SessionID] = entry
	onIncome := d.onIncome
	d.mu.Unlock()

	if onIncome != nil {
		onIncome(invitation)
	}
}

// Claim takes an invitation out of the pending set for accept or decline.
// Claiming after expiry fails, which is what makes a late accept on a
// caller that already gave up impossible to act on.
func (d *Dispatcher) Claim(sessionID string) (invites.Invitation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.pending[sessionID]
	if !ok {
		return invites.Invitation{}, ErrExpired
	}
	entry.timer.Stop()
	delete(d.pending, sessionID)
	return entry.invitation, nil
}

func (d *Dispatcher) expire(sessionID string) {
	d.mu.Lock()
	entry, ok := d.pending[sessionID]
	if ok {
		delete(d.pending, sessionID)
	}
	onExpired := d.onExpired
	d.mu.Unlock()

	if ok && onExpired != nil {
		onExpired(entry.invitation)
	}
}
