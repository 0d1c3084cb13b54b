package voice

import (
	"strings"
	"time"
)

// TranscriptBuffer holds the in-progress utterance text plus speech
// bookkeeping. It is owned by the controller and only mutated under the
// controller's lock.
type TranscriptBuffer struct {
	text         string
	hasSpeech    bool
	lastSpeechAt time.Time
}

// Append adds a committed text delta with a space separator.
func (b *TranscriptBuffer) Append(delta string) {
	delta = strings.TrimSpace(delta)
	if delta == "" {
		return
	}
	if b.text != "" {
		b.text += " " + delta
	} else {
		b.text = delta
	}
}

// MarkSpeech records that speech was observed at t.
func (b *TranscriptBuffer) MarkSpeech(t time.Time) {
	b.hasSpeech = true
	b.lastSpeechAt = t
}

func (b *TranscriptBuffer) Text() string            { return b.text }
func (b *TranscriptBuffer) HasSpeech() bool         { return b.hasSpeech }
func (b *TranscriptBuffer) LastSpeechAt() time.Time { return b.lastSpeechAt }

// Clear resets text and speech flags.
func (b *TranscriptBuffer) Clear() {
	b.text = ""
	b.hasSpeech = false
	b.lastSpeechAt = time.Time{}
}

// StripThroughKeyword removes the last occurrence of keyword and
// everything before it, keeping trailing text for a potential follow-up.
// Used when a stop-word interrupts playback: the discarded prefix is an
// echo of the spoken reply that the recognizer picked up. If nothing
// remains, the speech flags are reset too.
func (b *TranscriptBuffer) StripThroughKeyword(keyword string) string {
	idx := strings.LastIndex(strings.ToLower(b.text), strings.ToLower(keyword))
	if idx < 0 {
		return b.text
	}
	b.text = strings.TrimSpace(b.text[idx+len(keyword):])
	if b.text == "" {
		b.hasSpeech = false
		b.lastSpeechAt = time.Time{}
	}
	return b.text
}
