// Package call is the client-side call stack. The Supervisor is its entry
// point: it holds the one relay connection, dispatches invitations and
// enforces that at most one call session is live at a time.
package call

import (
	"errors"
	"log"
	"sync"
	"time"

	"telecare/call/invite"
	"telecare/call/media"
	"telecare/call/peer"
	"telecare/call/room"
	"telecare/call/session"
	"telecare/call/signaling"
	invites "telecare/types/invite"
)

var (
	// ErrNoLiveCall is returned when a call control runs with no call up.
	ErrNoLiveCall = errors.New("no live call")

	// ErrSelfCall is returned when a user invites themselves.
	ErrSelfCall = errors.New("cannot call yourself")
)

const statusQueueSize = 32

// Status is one observable snapshot of the live call. A new Status is
// emitted on every session state change.
type Status struct {
	SessionID string
	RoomID    string
	PeerID    string
	State     session.State
	Err       error
	StartedAt time.Time
	Muted     bool
	CameraOff bool
	Sharing   bool
}

// NegotiatorFactory builds the peer connection for one session. Tests
// inject a fake here.
type NegotiatorFactory func(config peer.Config) (session.Negotiator, error)

// Deps are the replaceable edges of the call stack.
type Deps struct {
	// Dialer opens the relay connection. Nil uses the websocket dialer.
	Dialer signaling.Dialer

	// Device opens capture tracks. Required.
	Device media.Device

	// NewNegotiator builds peer connections. Nil uses the real one.
	NewNegotiator NegotiatorFactory
}

// liveCall bundles the resources of one call. The done channel closes when
// the session reaches a terminal state and everything is torn down.
type liveCall struct {
	session    *session.Session
	media      *media.Controller
	negotiator session.Negotiator
	roomID     string
	peerID     string
	done       chan struct{}
}

// Supervisor drives calls for one signed-in user.
type Supervisor struct {
	config        Config
	client        *signaling.Client
	dispatcher    *invite.Dispatcher
	device        media.Device
	newNegotiator NegotiatorFactory

	mu         sync.Mutex
	current    *liveCall
	outgoing   map[string]string // roomID -> recipientID of a pending outgoing call
	statuses   chan Status
	onIncoming func(invites.Invitation)
	onExpired  func(invites.Invitation)
}

// NewSupervisor creates a Supervisor. Call Start to go online.
func NewSupervisor(config Config, deps Deps) (*Supervisor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if deps.Device == nil {
		return nil, errors.New("device is required")
	}

	client, err := signaling.NewClient(config.Signaling, deps.Dialer)
	if err != nil {
		return nil, err
	}
	dispatcher, err := invite.NewDispatcher(config.Invite, client)
	if err != nil {
		return nil, err
	}

	factory := deps.NewNegotiator
	if factory == nil {
		factory = func(config peer.Config) (session.Negotiator, error) {
			return peer.New(config)
		}
	}

	s := &Supervisor{
		config:        config,
		client:        client,
		dispatcher:    dispatcher,
		device:        deps.Device,
		newNegotiator: factory,
		outgoing:      map[string]string{},
		statuses:      make(chan Status, statusQueueSize),
	}

	client.OnNotice(dispatcher.Deliver)
	client.OnDrop(s.handleDrop)
	dispatcher.OnIncoming(s.handleIncoming)
	dispatcher.OnExpired(s.handleExpired)
	return s, nil
}

// OnIncomingCall registers the callback for claimable incoming
// invitations. Invitations swallowed by glare resolution never reach it.
func (s *Supervisor) OnIncomingCall(fn func(invites.Invitation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onIncoming = fn
}

// OnInviteExpired registers the callback for invitations that ran out
// unclaimed.
func (s *Supervisor) OnInviteExpired(fn func(invites.Invitation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = fn
}

// Statuses returns the live call status stream. The channel stays open for
// the supervisor's lifetime and carries every session across calls.
func (s *Supervisor) Statuses() <-chan Status {
	return s.statuses
}

// Start connects to the relay and registers the user's presence.
func (s *Supervisor) Start() error {
	return s.client.Connect(s.config.UserID)
}

// Stop hangs up any live call and disconnects from the relay.
func (s *Supervisor) Stop() error {
	s.HangUp()
	return s.client.Close()
}

// Initiate places a call to the recipient: it announces the invitation,
// joins the derived room as initiator and waits there for the recipient.
// A live call is torn down first; placing a new call always wins over
// keeping an old one.
func (s *Supervisor) Initiate(kind, recipientID string) (Status, error) {
	if recipientID == s.config.UserID {
		return Status{}, ErrSelfCall
	}
	s.teardownCurrent()

	invitation, err := s.dispatcher.Announce(kind, s.config.UserID, s.config.DisplayName, recipientID)
	if err != nil {
		return Status{}, err
	}

	roomID := room.Derive(s.config.UserID, recipientID)
	s.mu.Lock()
	s.outgoing[roomID] = recipientID
	s.mu.Unlock()

	status, err := s.startCall(room.Initiator, roomID, recipientID, invitation)
	if err != nil {
		s.mu.Lock()
		delete(s.outgoing, roomID)
		s.mu.Unlock()
	}
	return status, err
}

// Accept answers an incoming invitation. An expired or already handled
// invitation fails with ErrExpired.
func (s *Supervisor) Accept(sessionID string) (Status, error) {
	invitation, err := s.dispatcher.Claim(sessionID)
	if err != nil {
		return Status{}, err
	}
	s.teardownCurrent()

	roomID := room.Derive(s.config.UserID, invitation.CallerID)
	return s.startCall(room.Joiner, roomID, invitation.CallerID, invitation)
}

// Decline discards an incoming invitation. No message goes back to the
// caller; they time out waiting in the room.
func (s *Supervisor) Decline(sessionID string) error {
	_, err := s.dispatcher.Claim(sessionID)
	return err
}

// HangUp ends the live call. Without one it is a no-op.
func (s *Supervisor) HangUp() {
	s.teardownCurrent()
}

// ToggleAudio flips the local mute and returns the new muted flag.
func (s *Supervisor) ToggleAudio() (bool, error) {
	live := s.live()
	if live == nil {
		return false, ErrNoLiveCall
	}
	return live.media.ToggleAudio(), nil
}

// ToggleVideo flips the camera and returns the new camera-off flag.
func (s *Supervisor) ToggleVideo() (bool, error) {
	live := s.live()
	if live == nil {
		return false, ErrNoLiveCall
	}
	return live.media.ToggleVideo(), nil
}

// StartScreenShare swaps the outbound video to a screen capture.
func (s *Supervisor) StartScreenShare() error {
	live := s.live()
	if live == nil {
		return ErrNoLiveCall
	}
	replacer, ok := live.negotiator.(media.TrackReplacer)
	if !ok {
		return peer.ErrNoVideoSender
	}
	return live.media.StartScreenShare(replacer)
}

// StopScreenShare reverts the outbound video to the camera.
func (s *Supervisor) StopScreenShare() error {
	live := s.live()
	if live == nil {
		return ErrNoLiveCall
	}
	replacer, ok := live.negotiator.(media.TrackReplacer)
	if !ok {
		return peer.ErrNoVideoSender
	}
	return live.media.StopScreenShare(replacer)
}

// ToggleScreenShare starts sharing when idle and stops it when active,
// returning the new sharing flag.
func (s *Supervisor) ToggleScreenShare() (bool, error) {
	live := s.live()
	if live == nil {
		return false, ErrNoLiveCall
	}
	if live.media.Sharing() {
		if err := s.StopScreenShare(); err != nil {
			return true, err
		}
		return false, nil
	}
	if err := s.StartScreenShare(); err != nil {
		return false, err
	}
	return true, nil
}

// Current returns the latest status of the live call.
func (s *Supervisor) Current() (Status, bool) {
	live := s.live()
	if live == nil {
		return Status{}, false
	}
	return Status{
		SessionID: live.session.ID(),
		RoomID:    live.roomID,
		PeerID:    live.peerID,
		StartedAt: live.session.StartedAt(),
		Muted:     live.media.Muted(),
		CameraOff: live.media.CameraOff(),
		Sharing:   live.media.Sharing(),
	}, true
}

func (s *Supervisor) live() *liveCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// startCall builds the session for one call and watches it to termination.
func (s *Supervisor) startCall(role room.Role, roomID, peerID string, invitation invites.Invitation) (Status, error) {
	negotiator, err := s.newNegotiator(s.config.Peer)
	if err != nil {
		return Status{}, err
	}
	controller := media.NewController(s.device)
	channel := s.client.Room(roomID)

	sess, err := session.New(role, s.config.Session, channel, negotiator, controller)
	if err != nil {
		_ = negotiator.Close()
		return Status{}, err
	}

	live := &liveCall{
		session:    sess,
		media:      controller,
		negotiator: negotiator,
		roomID:     roomID,
		peerID:     peerID,
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	s.current = live
	s.mu.Unlock()

	go s.watch(live)

	if err := sess.Start(media.Constraints{Video: invitation.IsVideo()}); err != nil {
		s.teardownCurrent()
		return Status{}, err
	}

	return Status{
		SessionID: sess.ID(),
		RoomID:    roomID,
		PeerID:    peerID,
		State:     session.Acquiring,
	}, nil
}

// watch forwards the session's transitions onto the status stream and
// clears the live call on termination.
func (s *Supervisor) watch(live *liveCall) {
	for event := range live.session.Events() {
		s.emit(live, event)
	}

	s.mu.Lock()
	if s.current == live {
		s.current = nil
	}
	delete(s.outgoing, live.roomID)
	s.mu.Unlock()
	close(live.done)
}

func (s *Supervisor) emit(live *liveCall, event session.Event) {
	status := Status{
		SessionID: event.SessionID,
		RoomID:    live.roomID,
		PeerID:    live.peerID,
		State:     event.State,
		Err:       event.Err,
		StartedAt: live.session.StartedAt(),
		Muted:     live.media.Muted(),
		CameraOff: live.media.CameraOff(),
		Sharing:   live.media.Sharing(),
	}
	select {
	case s.statuses <- status:
	default:
		log.Printf("dropping status %s, observer too slow", event.State)
	}
}

// teardownCurrent hangs up the live call and waits until its teardown
// finished, so the next call never overlaps the previous one.
func (s *Supervisor) teardownCurrent() {
	live := s.live()
	if live == nil {
		return
	}
	live.session.HangUp()
	<-live.done
}

// abandonCurrent drops the live call without notifying the peer.
func (s *Supervisor) abandonCurrent() {
	live := s.live()
	if live == nil {
		return
	}
	live.session.Abandon()
	<-live.done
}

// handleIncoming resolves invitation glare before surfacing the
// invitation. When both sides called each other, the invitation lands in
// the room of our own pending outgoing call; the id order decides who
// stays initiator, never timing.
func (s *Supervisor) handleIncoming(invitation invites.Invitation) {
	roomID := room.Derive(s.config.UserID, invitation.CallerID)

	s.mu.Lock()
	_, glare := s.outgoing[roomID]
	onIncoming := s.onIncoming
	s.mu.Unlock()

	if glare {
		if room.TieBreak(s.config.UserID, invitation.CallerID) == room.Initiator {
			// Our call stands; swallow their invitation. Their side runs
			// the same rule and accepts ours.
			if _, err := s.dispatcher.Claim(invitation.SessionID); err != nil {
				log.Printf("failed to claim glared invitation: %v", err)
			}
			return
		}
		// Their call stands: drop ours and answer theirs. The abandon is
		// silent; a call-ended here would reach the winner through the
		// shared room and end the surviving call too.
		invitation, err := s.dispatcher.Claim(invitation.SessionID)
		if err != nil {
			log.Printf("failed to claim glared invitation: %v", err)
			return
		}
		s.abandonCurrent()
		if _, err := s.startCall(room.Joiner, roomID, invitation.CallerID, invitation); err != nil {
			log.Printf("failed to answer glared call: %v", err)
		}
		return
	}

	if onIncoming != nil {
		onIncoming(invitation)
	}
}

func (s *Supervisor) handleExpired(invitation invites.Invitation) {
	s.mu.Lock()
	onExpired := s.onExpired
	s.mu.Unlock()
	if onExpired != nil {
		onExpired(invitation)
	}
}

// handleDrop reacts to losing the relay connection. The live call cannot
// signal anymore, so it is ended rather than left dangling.
func (s *Supervisor) handleDrop(err error) {
	log.Printf("relay connection lost: %v", err)
	s.teardownCurrent()
}
