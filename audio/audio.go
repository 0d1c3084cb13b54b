// Package audio abstracts platform sound I/O. Linux talks to PulseAudio
// through jfreymuth/pulse; everything else goes through malgo
// (miniaudio). Capture hands out raw little-endian S16 PCM, playback
// consumes the same.
package audio

import "strings"

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether this is a Bluetooth
// headset. BT input profiles usually drop to a narrowband codec, which
// hurts recognition accuracy, so the picker warns about them.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives raw capture data. data is S16LE PCM.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	NewPlayer() (Player, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// Player renders mono S16 PCM. Play blocks until the samples have been
// drained or Stop is called; Stop may be called from another goroutine
// and is safe when nothing is playing.
type Player interface {
	Play(samples []int16, sampleRate int) error
	Stop()
	Close()
}
