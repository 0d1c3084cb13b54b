package voice

// EventSink abstracts the display layer so the console UI (or any other
// frontend) can render controller state without polling. All callbacks
// fire outside the controller's lock; implementations must not call back
// into the controller synchronously.
type EventSink interface {
	ModeChanged(m Mode)
	StateChanged(s State)
	TranscriptChanged(text string)
	LoudnessChanged(level float64)
	VoiceError(err error)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) ModeChanged(Mode) {}
func (NopSink) StateChanged(State) {}
func (NopSink) TranscriptChanged(string) {}
func (NopSink) LoudnessChanged(float64) {}
func (NopSink) VoiceError(error) {}
