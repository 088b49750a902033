package media

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// ErrAlreadyAcquired is returned when a session acquires its devices twice.
var ErrAlreadyAcquired = errors.New("media already acquired")

// ErrNotAcquired is returned when a toggle runs before acquisition.
var ErrNotAcquired = errors.New("media not acquired")

// Constraints selects the capture devices for a session. Audio is always
// captured; video only for video calls.
type Constraints struct {
	Video bool
}

// Controller owns the local captures of one call session. All tracks are
// stopped together on Release; a dangling capture after teardown is a bug.
type Controller struct {
	device Device

	mu        sync.Mutex
	mic       Capture
	camera    Capture
	screen    Capture
	acquired  bool
	video     bool
	muted     bool
	cameraOff bool
	sharing   bool
}

// NewController creates a Controller on the given device.
func NewController(device Device) *Controller {
	return &Controller{
		device: device,
	}
}

// Acquire opens the microphone and, for video calls, the camera. Exactly
// one acquisition happens per session. Typed device errors pass through
// unchanged so the caller can pick a specific message.
func (c *Controller) Acquire(constraints Constraints) ([]webrtc.TrackLocal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acquired {
		return nil, ErrAlreadyAcquired
	}

	mic, err := c.device.OpenMicrophone()
	if err != nil {
		return nil, err
	}

	tracks := []webrtc.TrackLocal{mic.Track()}
	var camera Capture
	if constraints.Video {
		camera, err = c.device.OpenCamera()
		if err != nil {
			// Never leave the microphone dangling on a failed acquisition.
			_ = mic.Close()
			return nil, err
		}
		tracks = append(tracks, camera.Track())
	}

	c.mic = mic
	c.camera = camera
	c.acquired = true
	c.video = constraints.Video
	return tracks, nil
}

// ToggleAudio flips the local mute and returns the new muted flag. This is
// a pure local mute: only the outbound track output changes, no signaling
// envelope and no renegotiation.
func (c *Controller) ToggleAudio() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mic == nil {
		return c.muted
	}
	c.muted = !c.muted
	c.mic.SetEnabled(!c.muted)
	return c.muted
}

// ToggleVideo flips the camera and returns the new camera-off flag.
func (c *Controller) ToggleVideo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.camera == nil {
		return c.cameraOff
	}
	c.cameraOff = !c.cameraOff
	c.camera.SetEnabled(!c.cameraOff)
	return c.cameraOff
}

// StartScreenShare captures the screen and atomically replaces the outbound
// video track on the existing connection. The camera is closed to free the
// device; StopScreenShare re-acquires it.
func (c *Controller) StartScreenShare(replacer TrackReplacer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acquired || !c.video {
		return ErrNotAcquired
	}
	if c.sharing {
		return nil
	}

	screen, err := c.device.OpenScreen()
	if err != nil {
		return err
	}
	if err := replacer.ReplaceVideoTrack(screen.Track()); err != nil {
		_ = screen.Close()
		return fmt.Errorf("failed to swap in screen track: %w", err)
	}

	if c.camera != nil {
		_ = c.camera.Close()
		c.camera = nil
	}
	c.screen = screen
	c.sharing = true
	return nil
}

// StopScreenShare reverts to the camera. The camera is re-acquired because
// the original capture was stopped when sharing started.
func (c *Controller) StopScreenShare(replacer TrackReplacer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sharing {
		return nil
	}

	camera, err := c.device.OpenCamera()
	if err != nil {
		return err
	}
	if err := replacer.ReplaceVideoTrack(camera.Track()); err != nil {
		_ = camera.Close()
		return fmt.Errorf("failed to swap camera back: %w", err)
	}

	_ = c.screen.Close()
	c.screen = nil
	c.camera = camera
	c.camera.SetEnabled(!c.cameraOff)
	c.sharing = false
	return nil
}

// Release stops every capture and frees the hardware. Safe to call more
// than once.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, capture := range []Capture{c.mic, c.camera, c.screen} {
		if capture != nil {
			_ = capture.Close()
		}
	}
	c.mic, c.camera, c.screen = nil, nil, nil
	c.acquired = false
	c.sharing = false
}

// Muted reports the local mute flag.
func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// CameraOff reports the camera-off flag.
func (c *Controller) CameraOff() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cameraOff
}

// Sharing reports whether the screen is being shared.
func (c *Controller) Sharing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sharing
}
