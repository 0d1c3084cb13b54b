package voice

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Config carries the controller's tuning constants, collaborators and
// host callbacks. The numeric values are tuning, not safety: retune
// freely.
type Config struct {
	// StopWords are checked against the transcript tail in priority
	// order; the first match wins.
	StopWords []string

	// RMSScale normalizes frame RMS into [0,1].
	RMSScale float64

	// SilenceRMS is the normalized level below which the loudness ring
	// counts as silence.
	SilenceRMS float64

	// LoudnessRing is the rolling history capacity (~0.5 s of frames).
	LoudnessRing int

	// KeywordEvery rate-limits stop-word checks.
	KeywordEvery time.Duration

	// SilenceTick is the endpointing check interval.
	SilenceTick time.Duration

	// SubmitSilence is how long after the last speech the controller
	// auto-submits in Conversational mode.
	SubmitSilence time.Duration

	// RestartDelay is the pause before ListenOnly capture restarts after
	// a submit.
	RestartDelay time.Duration

	// RecoveryDelay is the pause before the single automatic recovery
	// attempt after a transient engine failure.
	RecoveryDelay time.Duration

	SampleRate uint32
	Channels   uint32

	// Clock drives every timer and timestamp so tests can simulate
	// elapsed time.
	Clock clock.Clock

	// OnSubmit is invoked exactly once per completed utterance.
	OnSubmit func(text string)

	// OnCancel is invoked when a stop-word interrupts an in-flight
	// request; the host must cancel the corresponding backend call.
	OnCancel func()

	// Events receives state updates for the UI. Optional.
	Events EventSink
}

// DefaultConfig returns the tuning used by the talkie client.
func DefaultConfig() Config {
	return Config{
		StopWords:     []string{"stop", "cancel", "never mind"},
		RMSScale:      0.30,
		SilenceRMS:    0.12,
		LoudnessRing:  10,
		KeywordEvery:  300 * time.Millisecond,
		SilenceTick:   500 * time.Millisecond,
		SubmitSilence: 1500 * time.Millisecond,
		RestartDelay:  400 * time.Millisecond,
		RecoveryDelay: 2 * time.Second,
		SampleRate:    16000,
		Channels:      1,
		Clock:         clock.New(),
	}
}
