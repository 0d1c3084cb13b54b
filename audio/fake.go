package audio

import (
	"sync"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext serves canned PCM instead of a real microphone and
// records playback instead of making noise. Tests construct one with
// the samples they want "spoken" into the capture callback.
type FakeContext struct {
	pcm []byte

	mu      sync.Mutex
	players []*FakePlayer
}

func NewFakeContext(samples []int16) *FakeContext {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}
	return &FakeContext{pcm: pcm}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake capture"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCaptureDevice{pcm: f.pcm}, nil
}

func (f *FakeContext) NewPlayer() (Player, error) {
	p := &FakePlayer{}
	f.mu.Lock()
	f.players = append(f.players, p)
	f.mu.Unlock()
	return p, nil
}

// Players returns every player handed out so far.
func (f *FakeContext) Players() []*FakePlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakePlayer(nil), f.players...)
}

// FakeCaptureDevice feeds its PCM to the callback in fixed-size chunks
// on Start, then stays "running" silently until Stop.
type FakeCaptureDevice struct {
	pcm []byte

	mu       sync.Mutex
	cb       DataCallback
	running  bool
	fed      chan struct{}
	feedOnce sync.Once
}

func (f *FakeCaptureDevice) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCaptureDevice) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCaptureDevice) Start() error {
	f.mu.Lock()
	f.running = true
	f.fed = make(chan struct{})
	fed := f.fed
	f.mu.Unlock()

	go func() {
		defer close(fed)
		for pos := 0; pos < len(f.pcm); pos += fakeFrameSize * fakeBytesPerFrame {
			f.mu.Lock()
			cb := f.cb
			running := f.running
			f.mu.Unlock()
			if !running {
				return
			}
			end := pos + fakeFrameSize*fakeBytesPerFrame
			if end > len(f.pcm) {
				end = len(f.pcm)
			}
			if cb != nil {
				chunk := make([]byte, end-pos)
				copy(chunk, f.pcm[pos:end])
				cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
			}
		}
	}()
	return nil
}

func (f *FakeCaptureDevice) Stop() {
	f.mu.Lock()
	f.running = false
	fed := f.fed
	f.mu.Unlock()
	if fed != nil {
		<-fed
	}
}

func (f *FakeCaptureDevice) Close() {
	f.Stop()
}

// Fed returns a channel closed once all canned PCM has been delivered.
func (f *FakeCaptureDevice) Fed() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fed
}

// FakePlayer records what would have been played.
type FakePlayer struct {
	mu      sync.Mutex
	played  [][]int16
	rates   []int
	stopped int
}

func (p *FakePlayer) Play(samples []int16, sampleRate int) error {
	p.mu.Lock()
	p.played = append(p.played, append([]int16(nil), samples...))
	p.rates = append(p.rates, sampleRate)
	p.mu.Unlock()
	return nil
}

func (p *FakePlayer) Stop() {
	p.mu.Lock()
	p.stopped++
	p.mu.Unlock()
}

func (p *FakePlayer) Close() {}

func (p *FakePlayer) Played() [][]int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]int16(nil), p.played...)
}

func (p *FakePlayer) Rates() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.rates...)
}

func (p *FakePlayer) Stops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}
