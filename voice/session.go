package voice

// CaptureConfig is handed to the capture session on every start.
type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32

	// Mode tells the session whether to keep an echo-tolerant tap alive
	// for barge-in (Conversational) or run a plain dictation tap.
	Mode Mode
}

// CaptureSink receives everything a running capture session produces.
// The sink handed to Start is bound to one session epoch; callbacks
// arriving after the controller tore that session down are dropped.
type CaptureSink interface {
	// Frame delivers one frame of signed 16-bit mono samples.
	Frame(samples []int16)

	// Transcript delivers a committed text delta. final marks the
	// recognizer's end-of-utterance result.
	Transcript(delta string, final bool)

	// Fail reports a fatal session error. Benign recognizer notices must
	// be filtered before this point.
	Fail(err error)
}

// CaptureSession owns the microphone and the streaming recognizer.
// Start and Stop are asynchronous requests: results and faults arrive
// through the sink, not as return values, except for immediate startup
// failures. Stop must cancel in-flight recognition and release the
// microphone before returning.
type CaptureSession interface {
	Start(cfg CaptureConfig, sink CaptureSink) error
	Stop()
}

// PlaybackSession owns text-to-speech synthesis and the audio output
// path. Speak is asynchronous; done fires exactly once on completion or
// cancellation. Stop cancels synthesis and playback immediately.
type PlaybackSession interface {
	Speak(text string, done func(error)) error
	Stop()
}
