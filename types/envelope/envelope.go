// Package envelope defines the signaling envelope relayed between two
// call participants. The envelope is the only data that crosses the relay.
package envelope

import (
	"github.com/pion/webrtc/v4"
)

// Envelope types. These are the wire values of the "type" field.
const (
	Offer        = "offer"
	Answer       = "answer"
	IceCandidate = "ice-candidate"
	UserJoined   = "user-joined"
	UserLeft     = "user-left"
	CallEnded    = "call-ended"
)

// Envelope is the tagged union exchanged through the relay. The relay treats
// it as opaque; only the two room members interpret it.
type Envelope struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

// Payload carries the envelope body. Exactly the fields relevant to the
// envelope type are set.
type Payload struct {
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	UserID    string                   `json:"user_id,omitempty"`
}

// NewOffer creates an offer envelope carrying the local SDP.
func NewOffer(sdp string) Envelope {
	return Envelope{Type: Offer, Payload: Payload{SDP: sdp}}
}

// NewAnswer creates an answer envelope carrying the local SDP.
func NewAnswer(sdp string) Envelope {
	return Envelope{Type: Answer, Payload: Payload{SDP: sdp}}
}

// NewCandidate creates an ice-candidate envelope.
func NewCandidate(candidate webrtc.ICECandidateInit) Envelope {
	return Envelope{Type: IceCandidate, Payload: Payload{Candidate: &candidate}}
}

// NewUserJoined creates a user-joined membership envelope.
func NewUserJoined(userID string) Envelope {
	return Envelope{Type: UserJoined, Payload: Payload{UserID: userID}}
}

// NewUserLeft creates a user-left membership envelope.
func NewUserLeft(userID string) Envelope {
	return Envelope{Type: UserLeft, Payload: Payload{UserID: userID}}
}

// NewCallEnded creates a call-ended envelope.
func NewCallEnded() Envelope {
	return Envelope{Type: CallEnded}
}
