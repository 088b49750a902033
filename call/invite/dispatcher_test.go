package invite_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"telecare/call/invite"
	invites "telecare/types/invite"
)

type fakeAnnouncer struct {
	mu   sync.Mutex
	sent []invites.Invitation
	err  error
}

func (f *fakeAnnouncer) Invite(invitation invites.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, invitation)
	return nil
}

func newDispatcher(t *testing.T, expiry time.Duration, announcer invite.Announcer) *invite.Dispatcher {
	t.Helper()
	d, err := invite.NewDispatcher(invite.Config{Expiry: expiry}, announcer)
	assert.NoError(t, err)
	return d
}

func TestAnnounce(t *testing.T) {
	t.Run("given valid call when announced then invitation carries fresh session id", func(t *testing.T) {
		announcer := &fakeAnnouncer{}
		d := newDispatcher(t, time.Minute, announcer)

		first, err := d.Announce(invites.KindVideo, "doctor-1", "Dr. Kim", "patient-7")
		assert.NoError(t, err)
		second, err := d.Announce(invites.KindVideo, "doctor-1", "Dr. Kim", "patient-7")
		assert.NoError(t, err)

		assert.NotEmpty(t, first.SessionID)
		assert.NotEqual(t, first.SessionID, second.SessionID)
		assert.Equal(t, "doctor-1", first.CallerID)
		assert.Equal(t, "patient-7", first.RecipientID)
		assert.True(t, first.IsVideo())
		assert.Len(t, announcer.sent, 2)
	})

	t.Run("given failing announcer when announced then error is returned", func(t *testing.T) {
		announcer := &fakeAnnouncer{err: errors.New("boom")}
		d := newDispatcher(t, time.Minute, announcer)

		_, err := d.Announce(invites.KindVoice, "doctor-1", "Dr. Kim", "patient-7")
		assert.Error(t, err)
	})
}

func TestDeliverAndClaim(t *testing.T) {
	t.Run("given delivered invitation when claimed then it is returned once", func(t *testing.T) {
		d := newDispatcher(t, time.Minute, &fakeAnnouncer{})
		var incoming []invites.Invitation
		d.OnIncoming(func(inv invites.Invitation) { incoming = append(incoming, inv) })

		inv := invites.Invitation{SessionID: "s-1", Kind: invites.KindVoice, CallerID: "doctor-1"}
		d.Deliver(inv)

		assert.Len(t, incoming, 1)
		got, err := d.Claim("s-1")
		assert.NoError(t, err)
		assert.Equal(t, inv, got)

		_, err = d.Claim("s-1")
		assert.ErrorIs(t, err, invite.ErrExpired)
	})

	t.Run("given redelivered session id when claimed then only first delivery counts", func(t *testing.T) {
		d := newDispatcher(t, time.Minute, &fakeAnnouncer{})
		count := 0
		d.OnIncoming(func(invites.Invitation) { count++ })

		d.Deliver(invites.Invitation{SessionID: "s-1", CallerID: "doctor-1"})
		d.Deliver(invites.Invitation{SessionID: "s-1", CallerID: "doctor-1"})

		assert.Equal(t, 1, count)
	})

	t.Run("given unknown session id when claimed then expired error", func(t *testing.T) {
		d := newDispatcher(t, time.Minute, &fakeAnnouncer{})
		_, err := d.Claim("never-delivered")
		assert.ErrorIs(t, err, invite.ErrExpired)
	})
}

func TestExpiry(t *testing.T) {
	t.Run("given unclaimed invitation when window passes then it expires", func(t *testing.T) {
		d := newDispatcher(t, 20*time.Millisecond, &fakeAnnouncer{})
		expired := make(chan invites.Invitation, 1)
		d.OnExpired(func(inv invites.Invitation) { expired <- inv })

		d.Deliver(invites.Invitation{SessionID: "s-1", CallerID: "doctor-1"})

		select {
		case inv := <-expired:
			assert.Equal(t, "s-1", inv.SessionID)
		case <-time.After(time.Second):
			t.Fatal("invitation never expired")
		}

		_, err := d.Claim("s-1")
		assert.ErrorIs(t, err, invite.ErrExpired)
	})

	t.Run("given claimed invitation when window passes then no expiry fires", func(t *testing.T) {
		d := newDispatcher(t, 20*time.Millisecond, &fakeAnnouncer{})
		expired := make(chan invites.Invitation, 1)
		d.OnExpired(func(inv invites.Invitation) { expired <- inv })

		d.Deliver(invites.Invitation{SessionID: "s-1", CallerID: "doctor-1"})
		_, err := d.Claim("s-1")
		assert.NoError(t, err)

		select {
		case <-expired:
			t.Fatal("claimed invitation expired")
		case <-time.After(100 * time.Millisecond):
		}
	})
}
