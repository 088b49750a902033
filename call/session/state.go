package session

// State is the call session lifecycle state. A session moves strictly
// forward except for the Connected and Disconnected pair, which can
// alternate while the transport recovers.
type State int

const (
	// Idle is the state before Start.
	Idle State = iota

	// Acquiring means local media devices are being opened.
	Acquiring

	// Offering means the local offer was or will be sent and the session
	// waits for the answer.
	Offering

	// Answering means the session waits for the remote offer to answer.
	Answering

	// Connecting means descriptions are exchanged and the transport is
	// being established.
	Connecting

	// Connected means media flows.
	Connected

	// Disconnected means the transport dropped and the grace window is
	// running. The session returns to Connected if it recovers.
	Disconnected

	// Failed is terminal: the call never established or was lost.
	Failed

	// EndedByPeer is terminal: the other participant hung up.
	EndedByPeer

	// EndedLocally is terminal: this participant hung up.
	EndedLocally
)

var stateNames = map[State]string{
	Idle:         "idle",
	Acquiring:    "acquiring",
	Offering:     "offering",
	Answering:    "answering",
	Connecting:   "connecting",
	Connected:    "connected",
	Disconnected: "disconnected",
	Failed:       "failed",
	EndedByPeer:  "ended-by-peer",
	EndedLocally: "ended-locally",
}

// String returns the state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the state is absorbing. A terminal session
// ignores every later event and callback.
func (s State) Terminal() bool {
	switch s {
	case Failed, EndedByPeer, EndedLocally:
		return true
	default:
		return false
	}
}
