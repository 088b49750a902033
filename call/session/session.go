// Package session drives one call from setup to teardown. The session is
// the only writer of its state: every external callback is funneled into a
// single event loop, so handlers never race and a terminal session is
// guaranteed to stay terminal.
package session

import (
	"errors"
	"log"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pion/webrtc/v4"

	"telecare/call/media"
	"telecare/call/peer"
	"telecare/call/room"
	"telecare/types/envelope"
)

var (
	// ErrConnectTimeout is reported when the transport never establishes
	// within the connect window.
	ErrConnectTimeout = errors.New("connect timed out")

	// ErrTransportLost is reported when a dropped transport does not
	// recover within the grace window.
	ErrTransportLost = errors.New("transport lost")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("session already started")
)

// Channel is the room-scoped signaling the session drives.
type Channel interface {
	Join() error
	Send(env envelope.Envelope) error
	Leave() error
	OnMessage(fn func(envelope.Envelope))
	OnPeerJoined(fn func(userID string))
	OnPeerLeft(fn func(userID string))
}

// Negotiator is the peer connection the session drives.
type Negotiator interface {
	OnLocalCandidate(fn func(webrtc.ICECandidateInit))
	OnStateChange(fn func(peer.State))
	AddTrack(track webrtc.TrackLocal) error
	Offer() (string, error)
	Answer(offerSDP string) (string, error)
	AcceptAnswer(answerSDP string) error
	AddRemoteCandidate(candidate webrtc.ICECandidateInit) error
	Close() error
}

// Media acquires and releases the local capture for the session.
type Media interface {
	Acquire(constraints media.Constraints) ([]webrtc.TrackLocal, error)
	Release()
}

// Event is one state transition, delivered in order on the session's
// event stream. Err is set on Failed.
type Event struct {
	SessionID string
	State     State
	Err       error
}

const (
	opQueueSize    = 32
	eventQueueSize = 16
)

// Session is one call attempt. It owns its negotiator and media for their
// whole lifetime; teardown of all three resources happens together, in the
// event loop, exactly once.
type Session struct {
	id     string
	role   room.Role
	config Config

	channel    Channel
	negotiator Negotiator
	media      Media

	ops    chan func()
	done   chan struct{}
	events chan Event

	// Mutated only inside the event loop.
	state        State
	startedAt    time.Time
	peerPresent  bool
	offerSent    bool
	pendingOffer *string
	connectTimer *time.Timer
	graceTimer   *time.Timer
}

// New creates a Session in the Idle state.
func New(role room.Role, config Config, channel Channel, negotiator Negotiator, m Media) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		id:         shortuuid.New(),
		role:       role,
		config:     config,
		channel:    channel,
		negotiator: negotiator,
		media:      m,
		ops:        make(chan func(), opQueueSize),
		done:       make(chan struct{}),
		events:     make(chan Event, eventQueueSize),
		state:      Idle,
	}
	go s.run()
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Role returns the session's offer/answer role.
func (s *Session) Role() room.Role {
	return s.role
}

// Events returns the ordered state transition stream. The channel closes
// when the session reaches a terminal state.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Start joins the room and begins media acquisition. It returns once the
// session left Idle; the rest of the call setup is event driven.
func (s *Session) Start(constraints media.Constraints) error {
	started := make(chan error, 1)
	s.post(func() {
		if s.state != Idle {
			started <- ErrAlreadyStarted
			return
		}
		s.setState(Acquiring, nil)

		s.channel.OnMessage(func(env envelope.Envelope) {
			s.post(func() { s.handleEnvelope(env) })
		})
		s.channel.OnPeerJoined(func(userID string) {
			s.post(func() { s.handlePeerJoined(userID) })
		})
		s.channel.OnPeerLeft(func(userID string) {
			s.post(func() { s.handlePeerLeft(userID) })
		})

		if err := s.channel.Join(); err != nil {
			s.finish(Failed, err)
			started <- err
			return
		}

		// One timeout covers the whole setup, device prompt and ringing
		// included. An unanswered call must not hold the devices forever.
		s.connectTimer = time.AfterFunc(s.config.ConnectTimeout, func() {
			s.post(func() {
				if s.state.Terminal() || s.state == Connected || s.state == Disconnected {
					return
				}
				s.finish(Failed, ErrConnectTimeout)
			})
		})

		// Device access can block on a user prompt, so it runs off the
		// loop and posts its result back.
		go func() {
			tracks, err := s.media.Acquire(constraints)
			s.post(func() { s.handleAcquired(tracks, err) })
		}()
		started <- nil
	})

	select {
	case err := <-started:
		return err
	case <-s.done:
		// Teardown raced the start op; prefer its verdict if it ran.
		select {
		case err := <-started:
			return err
		default:
			return ErrAlreadyStarted
		}
	}
}

// HangUp ends the call locally. The other participant is told the call
// ended; from any state the session lands in EndedLocally. Hanging up a
// terminal session is a no-op.
func (s *Session) HangUp() {
	s.post(func() {
		if s.state.Terminal() {
			return
		}
		if err := s.channel.Send(envelope.NewCallEnded()); err != nil {
			log.Printf("session %s: failed to send call-ended: %v", s.id, err)
		}
		s.finish(EndedLocally, nil)
	})
}

// Abandon ends the call locally without a word to the other participant.
// The yielding side of invitation glare uses it: a call-ended sent into the
// shared room would kill the surviving call.
func (s *Session) Abandon() {
	s.post(func() {
		if s.state.Terminal() {
			return
		}
		s.finish(EndedLocally, nil)
	})
}

// StartedAt returns the time the call connected, or the zero time if it
// never did.
func (s *Session) StartedAt() time.Time {
	out := make(chan time.Time, 1)
	s.post(func() { out <- s.startedAt })
	select {
	case t := <-out:
		return t
	case <-s.done:
		return s.startedAt
	}
}

func (s *Session) run() {
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.done:
			return
		}
	}
}

// post schedules fn on the event loop. Ops posted after teardown are
// dropped.
func (s *Session) post(fn func()) {
	select {
	case s.ops <- fn:
	case <-s.done:
	}
}

func (s *Session) handleAcquired(tracks []webrtc.TrackLocal, err error) {
	if s.state.Terminal() {
		return
	}
	if err != nil {
		s.finish(Failed, err)
		return
	}

	for _, track := range tracks {
		if err := s.negotiator.AddTrack(track); err != nil {
			s.finish(Failed, err)
			return
		}
	}

	s.negotiator.OnLocalCandidate(func(candidate webrtc.ICECandidateInit) {
		s.post(func() { s.handleLocalCandidate(candidate) })
	})
	s.negotiator.OnStateChange(func(state peer.State) {
		s.post(func() { s.handleTransportState(state) })
	})

	if s.role == room.Initiator {
		s.setState(Offering, nil)
		if s.peerPresent {
			s.sendOffer()
		}
	} else {
		s.setState(Answering, nil)
		if s.pendingOffer != nil {
			sdp := *s.pendingOffer
			s.pendingOffer = nil
			s.handleOffer(sdp)
		}
	}
}

func (s *Session) handlePeerJoined(string) {
	if s.state.Terminal() {
		return
	}
	s.peerPresent = true
	if s.role == room.Initiator && s.state == Offering {
		s.sendOffer()
	}
}

// handlePeerLeft marks the peer gone. An explicit hang-up arrives as a
// call-ended envelope before the membership change; a bare peer-left on an
// established call means the other side dropped, so the call gets the
// disconnect grace window and then fails. There is no reconnection: users
// call again.
func (s *Session) handlePeerLeft(string) {
	if s.state.Terminal() || s.state == Disconnected {
		return
	}
	s.peerPresent = false
	if s.state != Connecting && s.state != Connected {
		// Before the transport is up the peer may still come back; a
		// glare loser leaves and rejoins as the answerer. A fresh offer
		// goes out on the rejoin, and the setup timeout bounds the wait.
		s.offerSent = false
		return
	}
	s.setState(Disconnected, nil)
	s.stopTimer(&s.graceTimer)
	s.graceTimer = time.AfterFunc(s.config.DisconnectGrace, func() {
		s.post(func() {
			if s.state != Disconnected {
				return
			}
			s.finish(Failed, ErrTransportLost)
		})
	})
}

func (s *Session) sendOffer() {
	if s.offerSent {
		return
	}
	sdp, err := s.negotiator.Offer()
	if err != nil {
		s.finish(Failed, err)
		return
	}
	if err := s.channel.Send(envelope.NewOffer(sdp)); err != nil {
		s.finish(Failed, err)
		return
	}
	s.offerSent = true
}

func (s *Session) handleEnvelope(env envelope.Envelope) {
	if s.state.Terminal() {
		return
	}

	switch env.Type {
	case envelope.Offer:
		s.handleOffer(env.Payload.SDP)
	case envelope.Answer:
		s.handleAnswer(env.Payload.SDP)
	case envelope.IceCandidate:
		if env.Payload.Candidate == nil {
			return
		}
		if err := s.negotiator.AddRemoteCandidate(*env.Payload.Candidate); err != nil {
			log.Printf("session %s: failed to apply candidate: %v", s.id, err)
		}
	case envelope.CallEnded:
		s.finish(EndedByPeer, nil)
	default:
		log.Printf("session %s: ignoring envelope type %s", s.id, env.Type)
	}
}

func (s *Session) handleOffer(sdp string) {
	if s.role == room.Joiner && s.state == Acquiring {
		// The caller offers the moment we join, which can beat the local
		// device prompt. Hold the offer until acquisition finishes.
		s.pendingOffer = &sdp
		return
	}
	if s.state != Answering {
		log.Printf("session %s: ignoring offer in state %s", s.id, s.state)
		return
	}
	answer, err := s.negotiator.Answer(sdp)
	if err != nil {
		s.finish(Failed, err)
		return
	}
	if err := s.channel.Send(envelope.NewAnswer(answer)); err != nil {
		s.finish(Failed, err)
		return
	}
	s.setState(Connecting, nil)
}

func (s *Session) handleAnswer(sdp string) {
	if s.state != Offering {
		log.Printf("session %s: ignoring answer in state %s", s.id, s.state)
		return
	}
	if err := s.negotiator.AcceptAnswer(sdp); err != nil {
		s.finish(Failed, err)
		return
	}
	s.setState(Connecting, nil)
}

func (s *Session) handleLocalCandidate(candidate webrtc.ICECandidateInit) {
	if s.state.Terminal() {
		return
	}
	if err := s.channel.Send(envelope.NewCandidate(candidate)); err != nil {
		log.Printf("session %s: failed to send candidate: %v", s.id, err)
	}
}

func (s *Session) handleTransportState(state peer.State) {
	if s.state.Terminal() {
		return
	}

	switch state {
	case peer.Connected:
		s.stopTimer(&s.connectTimer)
		s.stopTimer(&s.graceTimer)
		if s.startedAt.IsZero() {
			s.startedAt = time.Now()
		}
		s.setState(Connected, nil)
	case peer.Disconnected:
		if s.state != Connected {
			return
		}
		s.setState(Disconnected, nil)
		s.graceTimer = time.AfterFunc(s.config.DisconnectGrace, func() {
			s.post(func() {
				if s.state != Disconnected {
					return
				}
				s.finish(Failed, ErrTransportLost)
			})
		})
	case peer.Failed:
		s.finish(Failed, ErrTransportLost)
	case peer.Closed:
		// Closing is always driven by finish, never spontaneous.
	}
}

func (s *Session) setState(state State, err error) {
	s.state = state
	select {
	case s.events <- Event{SessionID: s.id, State: state, Err: err}:
	default:
		log.Printf("session %s: dropping event %s, observer too slow", s.id, state)
	}
}

// finish moves the session to a terminal state and tears everything down
// together: negotiator, media and room membership. Nothing survives a
// terminal session.
func (s *Session) finish(state State, err error) {
	if s.state.Terminal() {
		return
	}
	s.stopTimer(&s.connectTimer)
	s.stopTimer(&s.graceTimer)

	if closeErr := s.negotiator.Close(); closeErr != nil {
		log.Printf("session %s: failed to close negotiator: %v", s.id, closeErr)
	}
	s.media.Release()
	if leaveErr := s.channel.Leave(); leaveErr != nil {
		log.Printf("session %s: failed to leave room: %v", s.id, leaveErr)
	}

	s.setState(state, err)
	close(s.done)
	close(s.events)
}

func (s *Session) stopTimer(timer **time.Timer) {
	if *timer != nil {
		(*timer).Stop()
		*timer = nil
	}
}
