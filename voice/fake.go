package voice

import "sync"

// FakeCapture is a scriptable CaptureSession for tests and headless
// runs. Events are injected through the sink handed to the most recent
// Start call.
type FakeCapture struct {
	mu       sync.Mutex
	sink     CaptureSink
	cfg      CaptureConfig
	starts   int
	stops    int
	running  bool
	startErr error
}

// SetStartError makes the next Start call fail with err.
func (f *FakeCapture) SetStartError(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

func (f *FakeCapture) Start(cfg CaptureConfig, sink CaptureSink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		err := f.startErr
		f.startErr = nil
		return err
	}
	f.sink = sink
	f.cfg = cfg
	f.running = true
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	f.stops++
	f.running = false
	f.mu.Unlock()
}

func (f *FakeCapture) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *FakeCapture) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *FakeCapture) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *FakeCapture) LastConfig() CaptureConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

// Sink returns the sink of the most recent Start, which tests use to
// inject frames, transcript deltas and faults. It stays valid after
// Stop so stale-event dropping can be exercised.
func (f *FakeCapture) Sink() CaptureSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sink
}

// FakeSpeaker is a scriptable PlaybackSession. Completion is delivered
// when the test calls Finish; Stop drops the pending completion the way
// a cancelled synthesis would.
type FakeSpeaker struct {
	mu       sync.Mutex
	speaking bool
	lastText string
	speaks   int
	stops    int
	done     func(error)
	speakErr error
}

func (f *FakeSpeaker) SetSpeakError(err error) {
	f.mu.Lock()
	f.speakErr = err
	f.mu.Unlock()
}

func (f *FakeSpeaker) Speak(text string, done func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speaks++
	if f.speakErr != nil {
		err := f.speakErr
		f.speakErr = nil
		return err
	}
	f.speaking = true
	f.lastText = text
	f.done = done
	return nil
}

func (f *FakeSpeaker) Stop() {
	f.mu.Lock()
	f.stops++
	f.speaking = false
	f.done = nil
	f.mu.Unlock()
}

// Finish completes the current playback.
func (f *FakeSpeaker) Finish(err error) {
	f.mu.Lock()
	done := f.done
	f.done = nil
	f.speaking = false
	f.mu.Unlock()
	if done != nil {
		done(err)
	}
}

func (f *FakeSpeaker) Speaking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speaking
}

func (f *FakeSpeaker) LastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastText
}

func (f *FakeSpeaker) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *FakeSpeaker) Speaks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speaks
}
