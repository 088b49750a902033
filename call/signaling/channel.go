package signaling

import (
	"encoding/json"
	"log"
	"sync"

	"telecare/types/client/request"
	"telecare/types/envelope"
)

// Channel is the room-scoped view of the client connection. Envelopes sent
// through it reach only the other member of the room; membership changes
// surface as peer-joined and peer-left callbacks instead of raw envelopes.
type Channel struct {
	client *Client
	roomID string

	mu           sync.Mutex
	joined       bool
	onMessage    func(envelope.Envelope)
	onPeerJoined func(userID string)
	onPeerLeft   func(userID string)
}

func newChannel(client *Client, roomID string) *Channel {
	return &Channel{
		client: client,
		roomID: roomID,
	}
}

// RoomID returns the room this channel is scoped to.
func (ch *Channel) RoomID() string {
	return ch.roomID
}

// OnMessage registers the callback for signaling envelopes from the other
// member. Membership envelopes never reach it.
func (ch *Channel) OnMessage(fn func(envelope.Envelope)) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.onMessage = fn
}

// OnPeerJoined registers the callback for the other member entering the
// room. It also fires when the member was already present at join time.
func (ch *Channel) OnPeerJoined(fn func(userID string)) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.onPeerJoined = fn
}

// OnPeerLeft registers the callback for the other member leaving the room.
func (ch *Channel) OnPeerLeft(fn func(userID string)) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.onPeerLeft = fn
}

// Join enters the room. Joining twice is a no-op.
func (ch *Channel) Join() error {
	ch.mu.Lock()
	if ch.joined {
		ch.mu.Unlock()
		return nil
	}
	ch.joined = true
	ch.mu.Unlock()

	if err := ch.client.send(request.JOIN, request.Join{RoomID: ch.roomID}); err != nil {
		ch.mu.Lock()
		ch.joined = false
		ch.mu.Unlock()
		return err
	}
	return nil
}

// Send relays an envelope to the other room member. Delivery is
// fire-and-forget: an envelope sent while the room has no other member is
// dropped by the relay.
func (ch *Channel) Send(env envelope.Envelope) error {
	return ch.client.send(request.SIGNAL, request.Signal{RoomID: ch.roomID, Envelope: env})
}

// Leave exits the room and detaches the channel from the client. A channel
// that never joined just detaches.
func (ch *Channel) Leave() error {
	ch.mu.Lock()
	joined := ch.joined
	ch.joined = false
	ch.mu.Unlock()

	ch.client.dropRoom(ch.roomID)
	if !joined {
		return nil
	}
	return ch.client.send(request.LEAVE, request.Leave{RoomID: ch.roomID})
}

// deliver routes one relayed envelope to the registered callbacks.
func (ch *Channel) deliver(raw json.RawMessage) {
	var env envelope.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("failed to unmarshal envelope for room %s: %v", ch.roomID, err)
		return
	}

	ch.mu.Lock()
	onMessage := ch.onMessage
	onPeerJoined := ch.onPeerJoined
	onPeerLeft := ch.onPeerLeft
	ch.mu.Unlock()

	switch env.Type {
	case envelope.UserJoined:
		if onPeerJoined != nil {
			onPeerJoined(env.Payload.UserID)
		}
	case envelope.UserLeft:
		if onPeerLeft != nil {
			onPeerLeft(env.Payload.UserID)
		}
	default:
		if onMessage != nil {
			onMessage(env)
		}
	}
}
