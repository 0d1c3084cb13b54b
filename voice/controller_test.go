package voice

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

type hostLog struct {
	submits []string
	cancels int
}

func newTestRig() (*Controller, *FakeCapture, *FakeSpeaker, *clock.Mock, *hostLog) {
	mock := clock.NewMock()
	fc := &FakeCapture{}
	fs := &FakeSpeaker{}
	host := &hostLog{}
	cfg := DefaultConfig()
	cfg.Clock = mock
	cfg.StopWords = []string{"stop", "cancel"}
	cfg.OnSubmit = func(text string) { host.submits = append(host.submits, text) }
	cfg.OnCancel = func() { host.cancels++ }
	return NewController(fc, fs, cfg), fc, fs, mock, host
}

func feedQuiet(fc *FakeCapture, n int) {
	for i := 0; i < n; i++ {
		fc.Sink().Frame(make([]int16, 320))
	}
}

func feedLoud(fc *FakeCapture, n int) {
	frame := make([]int16, 320)
	for i := range frame {
		frame[i] = 20000
	}
	for i := 0; i < n; i++ {
		fc.Sink().Frame(frame)
	}
}

func TestModeChangeStartsListening(t *testing.T) {
	c, fc, _, _, _ := newTestRig()
	c.SetMode(Conversational)
	if c.State() != Listening {
		t.Fatalf("state = %s, want listening", c.State())
	}
	if !fc.Running() || fc.Starts() != 1 {
		t.Fatal("capture not started")
	}
	if fc.LastConfig().Mode != Conversational {
		t.Fatalf("capture mode = %s", fc.LastConfig().Mode)
	}
}

func TestSameModeIsNoOp(t *testing.T) {
	c, fc, _, _, _ := newTestRig()
	c.SetMode(Conversational)
	c.SetMode(Conversational)
	if fc.Starts() != 1 {
		t.Fatalf("starts = %d, want 1", fc.Starts())
	}
}

func TestFinalResultSubmitsExactlyOnce(t *testing.T) {
	c, fc, _, mock, host := newTestRig()
	c.SetMode(Conversational)
	fc.Sink().Transcript("turn on", false)
	fc.Sink().Transcript("the lights", true)
	if len(host.submits) != 1 || host.submits[0] != "turn on the lights" {
		t.Fatalf("submits = %v", host.submits)
	}
	if c.Transcript() != "" {
		t.Fatalf("transcript not cleared: %q", c.Transcript())
	}
	if c.State() != Processing {
		t.Fatalf("state = %s, want processing", c.State())
	}
	// The silence timer must not double-submit the same utterance.
	mock.Add(5 * time.Second)
	if len(host.submits) != 1 {
		t.Fatalf("submits after silence window = %v", host.submits)
	}
}

func TestSilenceAutoSubmit(t *testing.T) {
	c, fc, _, mock, host := newTestRig()
	c.SetMode(Conversational)
	fc.Sink().Transcript("turn on", false)
	fc.Sink().Transcript("the", false)
	fc.Sink().Transcript("lights", false)
	feedQuiet(fc, 6)
	mock.Add(1600 * time.Millisecond)
	if len(host.submits) != 1 || host.submits[0] != "turn on the lights" {
		t.Fatalf("submits = %v", host.submits)
	}
	if c.State() != Processing {
		t.Fatalf("state = %s, want processing", c.State())
	}
}

func TestSilenceSubmitRequiresSpeech(t *testing.T) {
	c, fc, _, mock, host := newTestRig()
	c.SetMode(Conversational)
	feedQuiet(fc, 10)
	mock.Add(10 * time.Second)
	if len(host.submits) != 0 {
		t.Fatalf("submit without detected speech: %v", host.submits)
	}
	if c.State() != Listening {
		t.Fatalf("state = %s, want listening", c.State())
	}
}

func TestSilenceSubmitRequiresQuietRing(t *testing.T) {
	c, fc, _, mock, host := newTestRig()
	c.SetMode(Conversational)
	fc.Sink().Transcript("turn on the lights", false)
	feedLoud(fc, 10)
	mock.Add(5 * time.Second)
	if len(host.submits) != 0 {
		t.Fatalf("submitted over loud ring: %v", host.submits)
	}
}

func TestStopWordWhileListeningClears(t *testing.T) {
	c, fc, _, _, host := newTestRig()
	c.SetMode(Conversational)
	fc.Sink().Transcript("please stop", false)
	if c.Transcript() != "" {
		t.Fatalf("transcript = %q, want empty", c.Transcript())
	}
	if c.State() != Listening {
		t.Fatalf("state = %s, want listening", c.State())
	}
	if len(host.submits) != 0 {
		t.Fatalf("unexpected submits: %v", host.submits)
	}
}

func TestStopWordWhileProcessingCancels(t *testing.T) {
	c, fc, _, mock, host := newTestRig()
	c.SetMode(Conversational)
	fc.Sink().Transcript("what is the weather", true)
	if c.State() != Processing {
		t.Fatalf("state = %s", c.State())
	}
	mock.Add(300 * time.Millisecond) // reopen the keyword window
	fc.Sink().Transcript("actually cancel", false)
	if host.cancels != 1 {
		t.Fatalf("cancels = %d, want 1", host.cancels)
	}
	if c.State() != Listening || c.Transcript() != "" {
		t.Fatalf("state = %s transcript = %q", c.State(), c.Transcript())
	}
}

func TestBargeInWhileSpeaking(t *testing.T) {
	c, fc, fs, mock, _ := newTestRig()
	c.SetMode(Conversational)
	fc.Sink().Transcript("play some music", true)
	c.SpeakReply("here is some music trivia")
	if c.State() != Speaking || !fs.Speaking() {
		t.Fatalf("state = %s speaking = %v", c.State(), fs.Speaking())
	}
	if !fc.Running() {
		t.Fatal("capture must stay alive while speaking for barge-in")
	}
	mock.Add(300 * time.Millisecond)
	fc.Sink().Transcript("blah blah stop the music", false)
	if fs.Stops() == 0 {
		t.Fatal("playback not stopped on stop word")
	}
	if c.State() != Listening {
		t.Fatalf("state = %s, want listening", c.State())
	}
	if c.Transcript() != "the music" {
		t.Fatalf("transcript = %q, want %q", c.Transcript(), "the music")
	}
}

func TestPlaybackCompletionResumesListening(t *testing.T) {
	c, fc, fs, _, _ := newTestRig()
	c.SetMode(Conversational)
	fc.Sink().Transcript("hello", true)
	c.SpeakReply("hi there")
	fs.Finish(nil)
	if c.State() != Listening {
		t.Fatalf("state = %s, want listening", c.State())
	}
	if c.Transcript() != "" {
		t.Fatalf("transcript = %q", c.Transcript())
	}
}

func TestListenOnlySubmitStopsCapture(t *testing.T) {
	c, fc, fs, mock, host := newTestRig()
	c.SetMode(ListenOnly)
	fc.Sink().Transcript("note to self", true)
	if len(host.submits) != 1 {
		t.Fatalf("submits = %v", host.submits)
	}
	if c.State() != Processing {
		t.Fatalf("state = %s", c.State())
	}
	if fc.Running() {
		t.Fatal("capture must stop on submit in listen-only mode")
	}
	c.SpeakReply("reply text")
	if fs.Speaks() != 0 {
		t.Fatal("listen-only mode must never speak")
	}
	if c.State() != Idle {
		t.Fatalf("state = %s, want idle", c.State())
	}
	mock.Add(400 * time.Millisecond)
	if c.State() != Listening || !fc.Running() {
		t.Fatal("capture not restarted after the fixed delay")
	}
}

func TestSilentModeStopsEverything(t *testing.T) {
	c, fc, fs, _, _ := newTestRig()
	c.SetMode(Conversational)
	fc.Sink().Transcript("hello", true)
	c.SpeakReply("hi")
	c.SetMode(Silent)
	if c.State() != Idle {
		t.Fatalf("state = %s, want idle", c.State())
	}
	if fc.Running() {
		t.Fatal("capture still running")
	}
	if fs.Speaking() || fs.Stops() == 0 {
		t.Fatal("playback not stopped")
	}
}

func TestModeRoundTripResets(t *testing.T) {
	c, fc, _, _, _ := newTestRig()
	c.SetMode(Conversational)
	fc.Sink().Transcript("half an utterance", false)
	feedLoud(fc, 8)
	c.SetMode(ListenOnly)
	c.SetMode(Silent)
	if c.State() != Idle {
		t.Fatalf("state = %s, want idle", c.State())
	}
	if c.Transcript() != "" {
		t.Fatalf("transcript = %q", c.Transcript())
	}
	if c.amplitude.Len() != 0 {
		t.Fatalf("loudness ring not empty: %d", c.amplitude.Len())
	}
}

func TestStaleSessionEventsDropped(t *testing.T) {
	c, fc, _, _, _ := newTestRig()
	c.SetMode(Conversational)
	stale := fc.Sink()
	c.SetMode(ListenOnly)
	stale.Transcript("ghost of the old session", false)
	stale.Frame(make([]int16, 320))
	if c.Transcript() != "" {
		t.Fatalf("stale delta applied: %q", c.Transcript())
	}
	if c.amplitude.Len() != 0 {
		t.Fatal("stale frame applied")
	}
}

func TestStartFailureRecoversOnce(t *testing.T) {
	c, fc, _, mock, _ := newTestRig()
	fc.SetStartError(&CaptureError{Kind: KindEngineUnavailable, Err: errors.New("device busy")})
	c.SetMode(Conversational)
	if c.State() != Errored {
		t.Fatalf("state = %s, want errored", c.State())
	}
	mock.Add(2 * time.Second)
	if c.State() != Listening || fc.Starts() != 2 {
		t.Fatalf("recovery did not restart: state=%s starts=%d", c.State(), fc.Starts())
	}
	// Second consecutive failure must stick in Errored.
	fc.Sink().Fail(&CaptureError{Kind: KindRecognitionFailed, Err: errors.New("stream died")})
	mock.Add(10 * time.Second)
	if c.State() != Errored {
		t.Fatalf("state = %s, want errored after second failure", c.State())
	}
	if fc.Starts() != 2 {
		t.Fatalf("starts = %d, want 2", fc.Starts())
	}
}

func TestRecoveryRearmsAfterHealthyTranscript(t *testing.T) {
	c, fc, _, mock, _ := newTestRig()
	c.SetMode(Conversational)
	fc.Sink().Fail(&CaptureError{Kind: KindRecognitionFailed})
	mock.Add(2 * time.Second)
	if c.State() != Listening {
		t.Fatalf("state = %s", c.State())
	}
	fc.Sink().Transcript("pipeline works again", false)
	fc.Sink().Fail(&CaptureError{Kind: KindRecognitionFailed})
	mock.Add(2 * time.Second)
	if c.State() != Listening {
		t.Fatalf("state = %s, want listening after re-armed recovery", c.State())
	}
}

func TestPermissionDeniedNeverRetries(t *testing.T) {
	c, fc, _, mock, _ := newTestRig()
	c.SetMode(Conversational)
	fc.Sink().Fail(&CaptureError{Kind: KindPermissionDenied})
	mock.Add(time.Minute)
	if c.State() != Errored {
		t.Fatalf("state = %s, want errored", c.State())
	}
	if fc.Starts() != 1 {
		t.Fatalf("starts = %d, want 1", fc.Starts())
	}
	if KindOf(c.LastError()) != KindPermissionDenied {
		t.Fatalf("last error = %v", c.LastError())
	}
}

func TestSpeakReplyIgnoredOutsideProcessing(t *testing.T) {
	c, _, fs, _, _ := newTestRig()
	c.SpeakReply("nobody asked")
	if fs.Speaks() != 0 {
		t.Fatal("spoken while silent")
	}
	c.SetMode(Conversational)
	c.SpeakReply("still listening")
	if fs.Speaks() != 0 {
		t.Fatal("spoken while listening")
	}
}

func TestPlaybackFailureEntersErrored(t *testing.T) {
	c, fc, fs, _, _ := newTestRig()
	c.SetMode(Conversational)
	fc.Sink().Transcript("hello", true)
	fs.SetSpeakError(errors.New("synth down"))
	c.SpeakReply("hi")
	if c.State() != Errored {
		t.Fatalf("state = %s, want errored", c.State())
	}
}
