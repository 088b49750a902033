package media_test

import (
	"io"
	"testing"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"

	"telecare/call/media"
)

type fakePacketSource struct {
	packets chan *rtp.Packet
	closed  chan struct{}
}

func newFakePacketSource() *fakePacketSource {
	return &fakePacketSource{
		packets: make(chan *rtp.Packet, 8),
		closed:  make(chan struct{}),
	}
}

func (f *fakePacketSource) ReadRTP() (*rtp.Packet, error) {
	select {
	case packet := <-f.packets:
		return packet, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakePacketSource) Close() error {
	close(f.closed)
	return nil
}

func TestStaticDevice(t *testing.T) {
	t.Run("given wired sources when opened then captures carry the right kinds", func(t *testing.T) {
		device := &media.StaticDevice{
			Microphone: func() (media.PacketSource, error) { return newFakePacketSource(), nil },
			Camera:     func() (media.PacketSource, error) { return newFakePacketSource(), nil },
			Screen:     func() (media.PacketSource, error) { return newFakePacketSource(), nil },
		}

		mic, err := device.OpenMicrophone()
		assert.NoError(t, err)
		assert.Equal(t, webrtc.RTPCodecTypeAudio, mic.Track().Kind())
		assert.NoError(t, mic.Close())

		camera, err := device.OpenCamera()
		assert.NoError(t, err)
		assert.Equal(t, webrtc.RTPCodecTypeVideo, camera.Track().Kind())
		assert.NoError(t, camera.Close())

		screen, err := device.OpenScreen()
		assert.NoError(t, err)
		assert.Equal(t, webrtc.RTPCodecTypeVideo, screen.Track().Kind())
		assert.NoError(t, screen.Close())
	})

	t.Run("given missing source when opened then device unavailable", func(t *testing.T) {
		device := &media.StaticDevice{}
		_, err := device.OpenMicrophone()
		assert.ErrorIs(t, err, media.ErrDeviceUnavailable)
	})

	t.Run("given failing source when opened then typed error passes through", func(t *testing.T) {
		device := &media.StaticDevice{
			Camera: func() (media.PacketSource, error) { return nil, media.ErrDeviceBusy },
		}
		_, err := device.OpenCamera()
		assert.ErrorIs(t, err, media.ErrDeviceBusy)
	})

	t.Run("given open capture when closed twice then second close is a no-op", func(t *testing.T) {
		source := newFakePacketSource()
		device := &media.StaticDevice{
			Microphone: func() (media.PacketSource, error) { return source, nil },
		}
		capture, err := device.OpenMicrophone()
		assert.NoError(t, err)
		assert.NoError(t, capture.Close())
		assert.NoError(t, capture.Close())
	})

	t.Run("given disabled capture when packets flow then pump keeps draining", func(t *testing.T) {
		source := newFakePacketSource()
		device := &media.StaticDevice{
			Microphone: func() (media.PacketSource, error) { return source, nil },
		}
		capture, err := device.OpenMicrophone()
		assert.NoError(t, err)
		capture.SetEnabled(false)

		for i := 0; i < 4; i++ {
			source.packets <- &rtp.Packet{Header: rtp.Header{SequenceNumber: uint16(i)}}
		}
		assert.NoError(t, capture.Close())
	})
}
