package voice

import (
	"errors"
	"fmt"
)

// ErrorKind classifies capture and playback engine failures. Benign
// recognizer notices (no speech, cancellation) are absorbed at the
// session boundary and never reach the controller.
type ErrorKind int

const (
	// KindEngineUnavailable: the capture or synthesis engine failed to
	// initialize or died. Recovered automatically once.
	KindEngineUnavailable ErrorKind = iota

	// KindPermissionDenied: the user declined microphone or speech
	// permission. Never retried automatically.
	KindPermissionDenied

	// KindRecognitionFailed: transient engine-reported recognition
	// failure. Recovered automatically once.
	KindRecognitionFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindRecognitionFailed:
		return "recognition_failed"
	default:
		return "engine_unavailable"
	}
}

// CaptureError wraps an engine fault with its kind so the controller can
// pick the right recovery path.
type CaptureError struct {
	Kind ErrorKind
	Err  error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// KindOf extracts the error kind, defaulting to engine-unavailable for
// untyped errors.
func KindOf(err error) ErrorKind {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindEngineUnavailable
}
