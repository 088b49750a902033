// Package invite defines the call invitation sent over a user's personal
// notification channel. Invitations are ephemeral: they exist only on the
// wire between dispatch and accept, decline or expiry.
package invite

// Call kinds.
const (
	KindVoice = "voice"
	KindVideo = "video"
)

// Invitation announces a call to its recipient. It carries the consultation
// session id rather than the room id, so the recipient derives the room the
// same way the caller did and a replayed notice cannot point at an
// unrelated room.
type Invitation struct {
	SessionID   string `json:"session_id"`
	Kind        string `json:"call_kind"`
	CallerID    string `json:"caller_id"`
	CallerName  string `json:"caller_name"`
	RecipientID string `json:"recipient_id"`
}

// IsVideo reports whether the invitation requests a video call.
func (i Invitation) IsVideo() bool {
	return i.Kind == KindVideo
}
