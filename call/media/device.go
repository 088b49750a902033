// Package media owns the local capture for one call session: microphone,
// camera and screen tracks, local mute and the screen-share track swap.
package media

import (
	"errors"

	"github.com/pion/webrtc/v4"
)

// Typed capture errors. The session converts these into a failed call with
// a specific user-facing message; callers distinguish them with errors.Is.
var (
	// ErrPermissionDenied is returned when the user denied device access.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDeviceUnavailable is returned when no matching device exists.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrDeviceBusy is returned when another application holds the device.
	ErrDeviceBusy = errors.New("device busy")
)

// Capture is one live capture track. Disabling a capture keeps the track
// attached but stops its output, so the remote side sees silence or a
// frozen frame without any renegotiation.
type Capture interface {
	Track() webrtc.TrackLocal
	SetEnabled(enabled bool)
	Close() error
}

// Device opens capture tracks. Implementations wrap the platform capture
// primitives; tests use an in-memory device.
//
//go:generate mockgen -destination=mock_device.go -package=media . Device
type Device interface {
	OpenMicrophone() (Capture, error)
	OpenCamera() (Capture, error)
	OpenScreen() (Capture, error)
}

// TrackReplacer substitutes the outbound video track on an established
// connection in place, without an offer/answer round.
type TrackReplacer interface {
	ReplaceVideoTrack(track webrtc.TrackLocal) error
}
