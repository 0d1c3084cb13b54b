// Package tts turns agent reply text into audible speech.
package tts

import (
	"context"
	"os"
)

// Synthesizer renders text to mono S16 PCM.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) (samples []int16, sampleRate int, err error)
}

// New picks a synthesizer from the environment. Without an API key the
// reply is acknowledged with a chime instead of speech, so the
// interaction loop stays usable.
func New() Synthesizer {
	if key := os.Getenv("ELEVENLABS_API_KEY"); key != "" {
		return NewElevenLabs(key)
	}
	return NewChime()
}
