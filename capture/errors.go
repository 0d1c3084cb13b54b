package capture

import (
	"errors"
	"strings"

	"talkie/voice"
)

var errAlreadyRunning = errors.New("capture already running")

// classifyDevice maps a platform audio error to a capture fault kind.
// Permission failures are terminal; everything else at the device layer
// counts as the engine being unavailable.
func classifyDevice(err error) error {
	var ce *voice.CaptureError
	if errors.As(err, &ce) {
		return err
	}
	if isPermission(err) {
		return &voice.CaptureError{Kind: voice.KindPermissionDenied, Err: err}
	}
	return &voice.CaptureError{Kind: voice.KindEngineUnavailable, Err: err}
}

// classifyEngine maps recognizer errors. Connect/auth problems mean the
// engine is unavailable; a stream that dies mid-flight is a recognition
// failure and worth one retry.
func classifyEngine(err error) error {
	var ce *voice.CaptureError
	if errors.As(err, &ce) {
		return err
	}
	if isPermission(err) {
		return &voice.CaptureError{Kind: voice.KindPermissionDenied, Err: err}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connect", "dial", "unauthorized", "401", "403", "handshake", "no such host"} {
		if strings.Contains(msg, marker) {
			return &voice.CaptureError{Kind: voice.KindEngineUnavailable, Err: err}
		}
	}
	return &voice.CaptureError{Kind: voice.KindRecognitionFailed, Err: err}
}

func isPermission(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"permission", "access denied", "not authorized", "operation not permitted"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
