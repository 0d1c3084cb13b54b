package voice

import "math"

// AmplitudeTracker folds normalized frame loudness into a smoothed level
// for display and a short rolling history for endpoint detection. The
// smoothed value suppresses transient spikes; the history keeps the raw
// normalized values because decisions should not lag behind smoothing.
type AmplitudeTracker struct {
	scale      float64
	silenceRMS float64

	ring  []float64
	next  int
	count int

	smoothed float64
}

const smoothingNew = 0.7 // smoothed = 0.7·new + 0.3·previous

func NewAmplitudeTracker(scale, silenceRMS float64, capacity int) *AmplitudeTracker {
	if capacity < 2 {
		capacity = 2
	}
	return &AmplitudeTracker{
		scale:      scale,
		silenceRMS: silenceRMS,
		ring:       make([]float64, capacity),
	}
}

// FrameLoudness computes the RMS of one frame of signed samples,
// normalized by scale and clamped to 1.0. Pure; safe to run off the
// controller's serialization point.
func FrameLoudness(samples []int16, scale float64) float64 {
	if len(samples) == 0 || scale <= 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		n := float64(s) / 32768.0
		sumSquares += n * n
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))
	v := rms / scale
	if v > 1 {
		v = 1
	}
	return v
}

// Push folds one normalized loudness value into the tracker.
func (t *AmplitudeTracker) Push(v float64) {
	t.smoothed = smoothingNew*v + (1-smoothingNew)*t.smoothed
	t.ring[t.next] = v
	t.next = (t.next + 1) % len(t.ring)
	if t.count < len(t.ring) {
		t.count++
	}
}

// Smoothed returns the display level in [0,1].
func (t *AmplitudeTracker) Smoothed() float64 { return t.smoothed }

// IsSilent reports whether the most recent half of the history averages
// below the silence threshold. It refuses a verdict until the ring holds
// at least half its capacity, so a just-started stream is never "silent".
func (t *AmplitudeTracker) IsSilent() bool {
	half := len(t.ring) / 2
	if t.count < half {
		return false
	}
	var sum float64
	for i := 0; i < half; i++ {
		sum += t.ring[(t.next-1-i+len(t.ring))%len(t.ring)]
	}
	return sum/float64(half) < t.silenceRMS
}

// Reset drops all history and the smoothed level.
func (t *AmplitudeTracker) Reset() {
	t.next = 0
	t.count = 0
	t.smoothed = 0
}

// Len reports how many samples the history currently holds.
func (t *AmplitudeTracker) Len() int { return t.count }
