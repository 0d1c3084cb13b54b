package tts

import (
	"context"
	"math"
)

const (
	chimeSampleRate = 16000
	chimeFreq       = 900
	chimeVolume     = 0.5
	chimeDecay      = 40
	chimeDuration   = 0.2
)

// Chime is the keyless fallback synthesizer: instead of speech it
// produces a short acknowledgment tone, so a reply is still audible
// when no TTS service is configured.
type Chime struct{}

func NewChime() *Chime { return &Chime{} }

func (c *Chime) Name() string { return "chime" }

func (c *Chime) Synthesize(_ context.Context, text string) ([]int16, int, error) {
	if text == "" {
		return nil, chimeSampleRate, nil
	}
	return generateTick(chimeSampleRate, chimeFreq, chimeDuration, chimeVolume, chimeDecay), chimeSampleRate, nil
}

func generateTick(sampleRate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}
