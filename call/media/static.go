package media

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// PacketSource yields the RTP stream of one capture device. ReadRTP blocks
// until a packet is available and returns io.EOF when the device stops.
type PacketSource interface {
	ReadRTP() (*rtp.Packet, error)
	Close() error
}

// OpenFunc opens the packet source for one device kind.
type OpenFunc func() (PacketSource, error)

// StaticDevice is a Device backed by RTP packet sources. Platform ports
// plug their capture pipelines in as OpenFuncs; tests feed synthetic
// packets.
type StaticDevice struct {
	Microphone OpenFunc
	Camera     OpenFunc
	Screen     OpenFunc
}

var (
	audioCapability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}
	videoCapability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}
)

// OpenMicrophone opens the microphone source as an audio capture.
func (d *StaticDevice) OpenMicrophone() (Capture, error) {
	return d.open(d.Microphone, audioCapability, "audio", "microphone")
}

// OpenCamera opens the camera source as a video capture.
func (d *StaticDevice) OpenCamera() (Capture, error) {
	return d.open(d.Camera, videoCapability, "video", "camera")
}

// OpenScreen opens the screen source as a video capture.
func (d *StaticDevice) OpenScreen() (Capture, error) {
	return d.open(d.Screen, videoCapability, "video", "screen")
}

func (d *StaticDevice) open(fn OpenFunc, capability webrtc.RTPCodecCapability, kind, id string) (Capture, error) {
	if fn == nil {
		return nil, ErrDeviceUnavailable
	}
	source, err := fn()
	if err != nil {
		return nil, err
	}

	track, err := webrtc.NewTrackLocalStaticRTP(capability, kind, id)
	if err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("failed to create %s track: %w", id, err)
	}

	capture := &staticCapture{
		track:  track,
		source: source,
	}
	capture.enabled.Store(true)
	go capture.pump()
	return capture, nil
}

// staticCapture forwards RTP packets from its source onto the local track.
// A disabled capture keeps reading to drain the source but drops every
// packet, so the far end sees silence without renegotiation.
type staticCapture struct {
	track   *webrtc.TrackLocalStaticRTP
	source  PacketSource
	enabled atomic.Bool
	once    sync.Once
}

func (c *staticCapture) pump() {
	for {
		packet, err := c.source.ReadRTP()
		if err != nil {
			if err != io.EOF {
				log.Printf("capture %s stopped: %v", c.track.ID(), err)
			}
			return
		}
		if !c.enabled.Load() {
			continue
		}
		if err := c.track.WriteRTP(packet); err != nil {
			if err != io.ErrClosedPipe {
				log.Printf("failed to write to track %s: %v", c.track.ID(), err)
			}
			return
		}
	}
}

func (c *staticCapture) Track() webrtc.TrackLocal {
	return c.track
}

func (c *staticCapture) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

func (c *staticCapture) Close() error {
	var err error
	c.once.Do(func() {
		err = c.source.Close()
	})
	return err
}
