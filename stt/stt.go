// Package stt streams microphone PCM to a speech recognition service
// and reports committed transcript segments as they arrive.
package stt

import (
	"context"
	"fmt"
	"os"
)

// Handler receives recognition output. Segment delivers one committed
// piece of transcript text; endOfUtterance is set when the service
// judged the speaker done (endpoint reached). Failed reports a stream
// fault; after Failed no further callbacks arrive.
type Handler interface {
	Segment(text string, endOfUtterance bool)
	Failed(err error)
}

type Config struct {
	SampleRate int
	Channels   int
	Language   string
	Model      string
}

// Session is one live recognition stream. Feed accepts raw S16LE PCM
// and never blocks the audio callback; Close tears the stream down and
// releases its goroutines.
type Session interface {
	Feed(pcm []byte)
	Close()
}

type Recognizer interface {
	Name() string
	Start(ctx context.Context, cfg Config, h Handler) (Session, error)
}

// New picks a recognizer from the environment.
func New() (Recognizer, error) {
	if key := os.Getenv("DEEPGRAM_API_KEY"); key != "" {
		return NewDeepgram(key), nil
	}
	return nil, fmt.Errorf("set DEEPGRAM_API_KEY environment variable")
}
