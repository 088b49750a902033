// Package peer wraps the pion peer connection for one call session: it
// creates and applies session descriptions, collects and applies ICE
// candidates and reports connection state transitions.
package peer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// State is the abstract connection state a session observes. The UI never
// sees raw ICE states.
type State int

const (
	Connecting State = iota
	Connected
	Disconnected
	Failed
	Closed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Failed:
		return "failed"
	default:
		return "closed"
	}
}

// Config is the ICE server configuration. It is loaded once at process
// start and shared read-only by every Negotiator.
type Config struct {
	ICEServers []webrtc.ICEServer
}

var defaultICEServers = []webrtc.ICEServer{
	{
		URLs: []string{"stun:stun.l.google.com:19302"},
	},
}

// ErrNoVideoSender is returned when a video track replacement is requested
// before a video track was added.
var ErrNoVideoSender = errors.New("no video sender")

// Negotiator owns one peer connection. Exactly one Negotiator exists per
// call session; no other component holds the underlying connection.
type Negotiator struct {
	conn *webrtc.PeerConnection

	mu          sync.Mutex
	remoteSet   bool
	applied     map[string]struct{}
	pending     []webrtc.ICECandidateInit
	audioSender *webrtc.RTPSender
	videoSender *webrtc.RTPSender
}

// New creates a Negotiator with a fresh peer connection.
func New(config Config) (*Negotiator, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}
	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	)

	servers := config.ICEServers
	if len(servers) == 0 {
		servers = defaultICEServers
	}
	conn, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	return &Negotiator{
		conn:    conn,
		applied: make(map[string]struct{}),
	}, nil
}

// OnLocalCandidate registers the callback for locally gathered ICE
// candidates. The end-of-gathering nil candidate is filtered out.
func (n *Negotiator) OnLocalCandidate(fn func(webrtc.ICECandidateInit)) {
	n.conn.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		fn(candidate.ToJSON())
	})
}

// OnStateChange registers the callback for connection state transitions.
func (n *Negotiator) OnStateChange(fn func(State)) {
	n.conn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			fn(Connected)
		case webrtc.PeerConnectionStateDisconnected:
			fn(Disconnected)
		case webrtc.PeerConnectionStateFailed:
			fn(Failed)
		case webrtc.PeerConnectionStateClosed:
			fn(Closed)
		default:
			fn(Connecting)
		}
	})
}

// OnRemoteTrack registers the callback for inbound media tracks.
func (n *Negotiator) OnRemoteTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	n.conn.OnTrack(fn)
}

// AddTrack attaches a local track to the connection and drains its RTCP
// stream.
func (n *Negotiator) AddTrack(track webrtc.TrackLocal) error {
	sender, err := n.conn.AddTrack(track)
	if err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}

	n.mu.Lock()
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		n.videoSender = sender
	} else {
		n.audioSender = sender
	}
	n.mu.Unlock()

	go func() {
		rtcpBuf := make([]byte, 1500)
		for {
			if _, _, rtcpErr := sender.Read(rtcpBuf); rtcpErr != nil {
				return
			}
		}
	}()
	return nil
}

// ReplaceVideoTrack substitutes the outbound video track in place. The
// transceiver is reused, so the far end needs no signaling message.
func (n *Negotiator) ReplaceVideoTrack(track webrtc.TrackLocal) error {
	n.mu.Lock()
	sender := n.videoSender
	n.mu.Unlock()
	if sender == nil {
		return ErrNoVideoSender
	}
	if err := sender.ReplaceTrack(track); err != nil {
		return fmt.Errorf("failed to replace track: %w", err)
	}
	return nil
}

// Offer creates the local offer and applies it as the local description.
func (n *Negotiator) Offer() (string, error) {
	offer, err := n.conn.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	if err := n.conn.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	return offer.SDP, nil
}

// Answer applies the remote offer and creates the local answer.
func (n *Negotiator) Answer(offerSDP string) (string, error) {
	if err := n.setRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer, SDP: offerSDP,
	}); err != nil {
		return "", err
	}
	answer, err := n.conn.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}
	if err := n.conn.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	return answer.SDP, nil
}

// AcceptAnswer applies the remote answer.
func (n *Negotiator) AcceptAnswer(answerSDP string) error {
	return n.setRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer, SDP: answerSDP,
	})
}

func (n *Negotiator) setRemoteDescription(desc webrtc.SessionDescription) error {
	if err := n.conn.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}

	n.mu.Lock()
	pending := n.pending
	n.pending = nil
	n.remoteSet = true
	n.mu.Unlock()

	for _, candidate := range pending {
		if err := n.conn.AddICECandidate(candidate); err != nil {
			return fmt.Errorf("failed to add buffered candidate: %w", err)
		}
	}
	return nil
}

// AddRemoteCandidate applies a remote ICE candidate. The add is idempotent:
// a candidate seen before is ignored, and candidates arriving before the
// remote description are buffered.
func (n *Negotiator) AddRemoteCandidate(candidate webrtc.ICECandidateInit) error {
	n.mu.Lock()
	if _, ok := n.applied[candidate.Candidate]; ok {
		n.mu.Unlock()
		return nil
	}
	n.applied[candidate.Candidate] = struct{}{}
	if !n.remoteSet {
		n.pending = append(n.pending, candidate)
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	if err := n.conn.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("failed to add candidate: %w", err)
	}
	return nil
}

// Close releases the peer connection.
func (n *Negotiator) Close() error {
	return n.conn.Close()
}
