package peer_test

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"

	"telecare/call/peer"
)

func newNegotiator(t *testing.T) *peer.Negotiator {
	t.Helper()
	n, err := peer.New(peer.Config{})
	assert.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func newAudioTrack(t *testing.T) webrtc.TrackLocal {
	t.Helper()
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "mic")
	assert.NoError(t, err)
	return track
}

func TestOfferAnswer(t *testing.T) {
	t.Run("given two negotiators when offer answered then descriptions apply", func(t *testing.T) {
		caller := newNegotiator(t)
		callee := newNegotiator(t)
		assert.NoError(t, caller.AddTrack(newAudioTrack(t)))
		assert.NoError(t, callee.AddTrack(newAudioTrack(t)))

		offer, err := caller.Offer()
		assert.NoError(t, err)
		assert.NotEmpty(t, offer)

		answer, err := callee.Answer(offer)
		assert.NoError(t, err)
		assert.NotEmpty(t, answer)

		assert.NoError(t, caller.AcceptAnswer(answer))
	})

	t.Run("given garbage offer when answered then error", func(t *testing.T) {
		callee := newNegotiator(t)
		_, err := callee.Answer("not an sdp")
		assert.Error(t, err)
	})
}

func TestAddRemoteCandidate(t *testing.T) {
	t.Run("given candidate before remote description when added then it is buffered", func(t *testing.T) {
		caller := newNegotiator(t)
		callee := newNegotiator(t)
		assert.NoError(t, caller.AddTrack(newAudioTrack(t)))

		// Before any remote description the candidate cannot be applied
		// yet; buffering must hide that from the caller.
		candidate := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 54321 typ host"}
		assert.NoError(t, caller.AddRemoteCandidate(candidate))

		offer, err := caller.Offer()
		assert.NoError(t, err)
		answer, err := callee.Answer(offer)
		assert.NoError(t, err)
		assert.NoError(t, caller.AcceptAnswer(answer))
	})

	t.Run("given repeated candidate when added then second add is ignored", func(t *testing.T) {
		caller := newNegotiator(t)
		candidate := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 54321 typ host"}
		assert.NoError(t, caller.AddRemoteCandidate(candidate))
		assert.NoError(t, caller.AddRemoteCandidate(candidate))
	})
}

func TestReplaceVideoTrack(t *testing.T) {
	t.Run("given no video sender when replaced then typed error", func(t *testing.T) {
		n := newNegotiator(t)
		assert.NoError(t, n.AddTrack(newAudioTrack(t)))

		track, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "screen")
		assert.NoError(t, err)
		assert.ErrorIs(t, n.ReplaceVideoTrack(track), peer.ErrNoVideoSender)
	})

	t.Run("given video sender when replaced then no error", func(t *testing.T) {
		n := newNegotiator(t)
		camera, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "camera")
		assert.NoError(t, err)
		assert.NoError(t, n.AddTrack(camera))

		screen, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "screen")
		assert.NoError(t, err)
		assert.NoError(t, n.ReplaceVideoTrack(screen))
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connecting", peer.Connecting.String())
	assert.Equal(t, "connected", peer.Connected.String())
	assert.Equal(t, "disconnected", peer.Disconnected.String())
	assert.Equal(t, "failed", peer.Failed.String())
	assert.Equal(t, "closed", peer.Closed.String())
}
