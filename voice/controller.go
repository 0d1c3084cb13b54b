package voice

import (
	"strings"
	"sync"

	"github.com/benbjohnson/clock"

	"talkie/log"
)

// Controller is the voice interaction state machine. It owns Mode and
// State, drives the capture and playback sessions, and reports submitted
// utterances and cancellations to the host through callbacks.
//
// All state mutation is serialized under one mutex. Handlers compute an
// effect set under the lock and execute session starts/stops and host
// callbacks after releasing it, so a session implementation may call
// back into the controller without deadlocking. Every capture session is
// tagged with an epoch; callbacks from a torn-down session are dropped.
type Controller struct {
	cfg      Config
	clk      clock.Clock
	capture  CaptureSession
	playback PlaybackSession

	mu         sync.Mutex
	mode       Mode
	state      State
	epoch      uint64
	captureOn  bool
	playbackOn bool
	recovered  bool // the single automatic recovery has been spent
	lastErr    error

	transcript TranscriptBuffer
	amplitude  *AmplitudeTracker
	spotter    *KeywordSpotter

	silenceTimer  *clock.Timer
	recoveryTimer *clock.Timer
	restartTimer  *clock.Timer
}

func NewController(capture CaptureSession, playback PlaybackSession, cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	def := DefaultConfig()
	if cfg.RMSScale <= 0 {
		cfg.RMSScale = def.RMSScale
	}
	if cfg.SilenceRMS <= 0 {
		cfg.SilenceRMS = def.SilenceRMS
	}
	if cfg.LoudnessRing <= 0 {
		cfg.LoudnessRing = def.LoudnessRing
	}
	if cfg.KeywordEvery <= 0 {
		cfg.KeywordEvery = def.KeywordEvery
	}
	if cfg.SilenceTick <= 0 {
		cfg.SilenceTick = def.SilenceTick
	}
	if cfg.SubmitSilence <= 0 {
		cfg.SubmitSilence = def.SubmitSilence
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = def.RestartDelay
	}
	if cfg.RecoveryDelay <= 0 {
		cfg.RecoveryDelay = def.RecoveryDelay
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Channels == 0 {
		cfg.Channels = def.Channels
	}
	if len(cfg.StopWords) == 0 {
		cfg.StopWords = def.StopWords
	}
	return &Controller{
		cfg:       cfg,
		clk:       cfg.Clock,
		capture:   capture,
		playback:  playback,
		mode:      Silent,
		state:     Idle,
		amplitude: NewAmplitudeTracker(cfg.RMSScale, cfg.SilenceRMS, cfg.LoudnessRing),
		spotter:   NewKeywordSpotter(cfg.StopWords, cfg.KeywordEvery, cfg.Clock),
	}
}

// effects collects actions decided under the lock and executed after it.
type effects struct {
	stopCapture  bool
	stopPlayback bool

	startCapture bool
	startEpoch   uint64
	captureCfg   CaptureConfig

	speak      bool
	speakText  string
	speakEpoch uint64

	submit     bool
	submitText string
	cancel     bool

	events []func(EventSink)
}

func (c *Controller) run(fx *effects) {
	if fx.stopPlayback {
		c.playback.Stop()
	}
	if fx.stopCapture {
		c.capture.Stop()
	}
	if fx.startCapture {
		sink := &captureSink{c: c, epoch: fx.startEpoch}
		if err := c.capture.Start(fx.captureCfg, sink); err != nil {
			c.failSession(fx.startEpoch, err)
		}
	}
	if fx.speak {
		ep := fx.speakEpoch
		err := c.playback.Speak(fx.speakText, func(err error) {
			c.playbackDone(ep, err)
		})
		if err != nil {
			c.failSession(ep, &CaptureError{Kind: KindEngineUnavailable, Err: err})
		}
	}
	if fx.cancel && c.cfg.OnCancel != nil {
		c.cfg.OnCancel()
	}
	if fx.submit && c.cfg.OnSubmit != nil {
		c.cfg.OnSubmit(fx.submitText)
	}
	if c.cfg.Events != nil {
		for _, ev := range fx.events {
			ev(c.cfg.Events)
		}
	}
}

// SetMode switches the voice mode. A mode switch is always destructive:
// capture and playback are torn down unconditionally, then the pipeline
// is re-initialized for the new mode, so no stale audio tap or
// recognition task survives the change. Setting the current mode again
// is a no-op.
func (c *Controller) SetMode(m Mode) {
	c.mu.Lock()
	if m == c.mode {
		c.mu.Unlock()
		return
	}
	var fx effects
	c.teardownLocked(&fx)
	c.recovered = false
	c.lastErr = nil
	c.mode = m
	log.Infof("voice mode: %s", m)
	fx.events = append(fx.events, func(e EventSink) { e.ModeChanged(m) })
	fx.events = append(fx.events, func(e EventSink) { e.TranscriptChanged("") })
	if m == Silent {
		c.setStateLocked(Idle, &fx)
	} else {
		c.beginListeningLocked(&fx)
	}
	c.mu.Unlock()
	c.run(&fx)
}

// Close stops all sessions and timers. Equivalent to SetMode(Silent).
func (c *Controller) Close() {
	c.SetMode(Silent)
}

// SpeakReply feeds a backend reply into the controller. It only produces
// audible output in Conversational mode; in ListenOnly it completes the
// request cycle silently, and otherwise it is inert.
func (c *Controller) SpeakReply(text string) {
	c.mu.Lock()
	var fx effects
	switch {
	case c.mode == Conversational && c.state == Processing:
		c.setStateLocked(Speaking, &fx)
		c.playbackOn = true
		fx.speak = true
		fx.speakText = text
		fx.speakEpoch = c.epoch
	case c.mode == ListenOnly && c.state == Processing:
		c.setStateLocked(Idle, &fx)
	}
	c.mu.Unlock()
	c.run(&fx)
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns the current in-progress utterance text.
func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Text()
}

// Loudness returns the smoothed display level in [0,1].
func (c *Controller) Loudness() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.amplitude.Smoothed()
}

// LastError returns the error that moved the controller to Errored, if
// it is still there.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// teardownLocked invalidates the running session epoch, disarms all
// timers, flags active sessions for stopping and resets utterance state.
func (c *Controller) teardownLocked(fx *effects) {
	c.epoch++
	c.disarmTimersLocked()
	if c.captureOn {
		fx.stopCapture = true
		c.captureOn = false
	}
	if c.playbackOn {
		fx.stopPlayback = true
		c.playbackOn = false
	}
	c.transcript.Clear()
	c.amplitude.Reset()
	c.spotter.Reset()
}

func (c *Controller) disarmTimersLocked() {
	if c.silenceTimer != nil {
		c.silenceTimer.Stop()
		c.silenceTimer = nil
	}
	if c.recoveryTimer != nil {
		c.recoveryTimer.Stop()
		c.recoveryTimer = nil
	}
	if c.restartTimer != nil {
		c.restartTimer.Stop()
		c.restartTimer = nil
	}
}

func (c *Controller) setStateLocked(s State, fx *effects) {
	if s == c.state {
		return
	}
	c.state = s
	fx.events = append(fx.events, func(e EventSink) { e.StateChanged(s) })
}

// beginListeningLocked enters Listening and flags a capture start for the
// current epoch.
func (c *Controller) beginListeningLocked(fx *effects) {
	c.setStateLocked(Listening, fx)
	c.captureOn = true
	fx.startCapture = true
	fx.startEpoch = c.epoch
	fx.captureCfg = CaptureConfig{
		SampleRate: c.cfg.SampleRate,
		Channels:   c.cfg.Channels,
		Mode:       c.mode,
	}
	c.armSilenceLocked(c.epoch)
}

func (c *Controller) armSilenceLocked(epoch uint64) {
	c.silenceTimer = c.clk.AfterFunc(c.cfg.SilenceTick, func() {
		c.silenceTick(epoch)
	})
}

// submitLocked hands the current utterance to the host. In ListenOnly
// mode capture is stopped and a delayed restart is scheduled; in
// Conversational mode the tap stays alive so stop-words remain
// detectable through Processing and Speaking.
func (c *Controller) submitLocked(fx *effects) {
	text := strings.TrimSpace(c.transcript.Text())
	if text == "" {
		return
	}
	c.transcript.Clear()
	c.setStateLocked(Processing, fx)
	fx.submit = true
	fx.submitText = text
	fx.events = append(fx.events, func(e EventSink) { e.TranscriptChanged("") })
	log.Infof("utterance submitted (%d chars)", len(text))
	if c.mode == ListenOnly {
		c.epoch++ // drop anything still in flight from the old tap
		c.disarmTimersLocked()
		if c.captureOn {
			fx.stopCapture = true
			c.captureOn = false
		}
		c.amplitude.Reset()
		epoch := c.epoch
		c.restartTimer = c.clk.AfterFunc(c.cfg.RestartDelay, func() {
			c.restartListening(epoch)
		})
	}
}

func (c *Controller) handleTranscript(epoch uint64, delta string, final bool) {
	c.mu.Lock()
	if epoch != c.epoch || c.mode == Silent {
		c.mu.Unlock()
		return
	}
	var fx effects
	if delta != "" {
		c.transcript.Append(delta)
		c.transcript.MarkSpeech(c.clk.Now())
		c.recovered = false // pipeline is demonstrably healthy again
		text := c.transcript.Text()
		fx.events = append(fx.events, func(e EventSink) { e.TranscriptChanged(text) })
	}
	if c.mode == Conversational {
		if kw, ok := c.spotter.Check(c.transcript.Text()); ok {
			c.handleStopWordLocked(kw, &fx)
			c.mu.Unlock()
			c.run(&fx)
			return
		}
	}
	if final && c.state == Listening {
		c.submitLocked(&fx)
	}
	c.mu.Unlock()
	c.run(&fx)
}

func (c *Controller) handleStopWordLocked(kw string, fx *effects) {
	log.Infof("stop word %q in state %s", kw, c.state)
	switch c.state {
	case Listening:
		c.transcript.Clear()
		fx.events = append(fx.events, func(e EventSink) { e.TranscriptChanged("") })
	case Processing:
		fx.cancel = true
		c.transcript.Clear()
		c.setStateLocked(Listening, fx)
		fx.events = append(fx.events, func(e EventSink) { e.TranscriptChanged("") })
	case Speaking:
		if c.playbackOn {
			fx.stopPlayback = true
			c.playbackOn = false
		}
		rem := c.transcript.StripThroughKeyword(kw)
		c.setStateLocked(Listening, fx)
		fx.events = append(fx.events, func(e EventSink) { e.TranscriptChanged(rem) })
	}
}

func (c *Controller) handleFrame(epoch uint64, level float64) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.amplitude.Push(level)
	smoothed := c.amplitude.Smoothed()
	c.mu.Unlock()
	if c.cfg.Events != nil {
		c.cfg.Events.LoudnessChanged(smoothed)
	}
}

// silenceTick is the endpointing check. Auto-submit needs both signals:
// speech was detected since the last submit, and the loudness ring has
// been quiet for the configured span. This never fires on pure
// background noise or an empty buffer.
func (c *Controller) silenceTick(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.armSilenceLocked(epoch)
	var fx effects
	if c.mode == Conversational && c.state == Listening &&
		c.transcript.HasSpeech() &&
		strings.TrimSpace(c.transcript.Text()) != "" &&
		c.clk.Now().Sub(c.transcript.LastSpeechAt()) >= c.cfg.SubmitSilence &&
		c.amplitude.IsSilent() {
		c.submitLocked(&fx)
	}
	c.mu.Unlock()
	c.run(&fx)
}

func (c *Controller) restartListening(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || c.mode != ListenOnly || c.captureOn {
		c.mu.Unlock()
		return
	}
	var fx effects
	c.beginListeningLocked(&fx)
	c.mu.Unlock()
	c.run(&fx)
}

func (c *Controller) playbackDone(epoch uint64, err error) {
	c.mu.Lock()
	if epoch != c.epoch || c.state != Speaking {
		// Late completion from a playback we already stopped.
		c.mu.Unlock()
		return
	}
	c.playbackOn = false
	if err != nil {
		c.mu.Unlock()
		c.failSession(epoch, &CaptureError{Kind: KindEngineUnavailable, Err: err})
		return
	}
	var fx effects
	if c.mode == Conversational {
		c.transcript.Clear()
		fx.events = append(fx.events, func(e EventSink) { e.TranscriptChanged("") })
		c.setStateLocked(Listening, &fx)
	} else {
		c.setStateLocked(Idle, &fx)
	}
	c.mu.Unlock()
	c.run(&fx)
}

// failSession moves the controller to Errored, stops the active
// sessions, and schedules the single automatic recovery for transient
// faults. Permission denials are never retried; the user must toggle the
// mode to re-enable capture.
func (c *Controller) failSession(epoch uint64, err error) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	spent := c.recovered
	var fx effects
	c.teardownLocked(&fx)
	c.setStateLocked(Errored, &fx)
	c.lastErr = err
	log.Errorf("voice pipeline error: %v", err)
	fx.events = append(fx.events, func(e EventSink) { e.VoiceError(err) })
	if KindOf(err) != KindPermissionDenied && c.mode != Silent && !spent {
		c.recovered = true
		recoverEpoch := c.epoch
		c.recoveryTimer = c.clk.AfterFunc(c.cfg.RecoveryDelay, func() {
			c.recoverListening(recoverEpoch)
		})
	}
	c.mu.Unlock()
	c.run(&fx)
}

func (c *Controller) recoverListening(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || c.mode == Silent || c.state != Errored {
		c.mu.Unlock()
		return
	}
	log.Infof("recovering voice pipeline")
	c.lastErr = nil
	var fx effects
	c.beginListeningLocked(&fx)
	c.mu.Unlock()
	c.run(&fx)
}

// captureSink binds controller callbacks to one session epoch. The
// loudness computation runs on the capture thread; only its result is
// folded into shared state under the lock.
type captureSink struct {
	c     *Controller
	epoch uint64
}

func (s *captureSink) Frame(samples []int16) {
	level := FrameLoudness(samples, s.c.cfg.RMSScale)
	s.c.handleFrame(s.epoch, level)
}

func (s *captureSink) Transcript(delta string, final bool) {
	s.c.handleTranscript(s.epoch, delta, final)
}

func (s *captureSink) Fail(err error) {
	s.c.failSession(s.epoch, err)
}
