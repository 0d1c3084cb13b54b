package capture

import (
	"sync"
	"time"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const (
	vadMode     = 3
	vadFrameMs  = 20
	vadDebounce = 3 // consecutive speech frames to confirm voice
)

// speechGate classifies capture audio with WebRTC VAD. It backs the
// operator-facing "no speech detected" advisory; the endpointing logic
// upstream works on loudness alone and does not consult it.
type speechGate struct {
	vad        *webrtcvad.VAD
	sampleRate int
	frameBytes int

	mu            sync.Mutex
	buf           []byte
	voiceDetected bool
	lastVoiceTime time.Time
	speechRun     int
	totalFrames   int
	speechFrames  int
	tickTotal     int
	tickSpeech    int
}

func newSpeechGate(sampleRate int) (*speechGate, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &speechGate{
		vad:        v,
		sampleRate: sampleRate,
		frameBytes: sampleRate * vadFrameMs / 1000 * 2,
	}, nil
}

func (g *speechGate) Process(data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.buf = append(g.buf, data...)
	for len(g.buf) >= g.frameBytes {
		frame := g.buf[:g.frameBytes]
		g.buf = g.buf[g.frameBytes:]

		active, err := g.vad.Process(g.sampleRate, frame)
		if err != nil {
			continue
		}
		g.totalFrames++
		if active {
			g.speechFrames++
			g.speechRun++
			if g.voiceDetected {
				g.lastVoiceTime = time.Now()
			} else if g.speechRun >= vadDebounce {
				g.voiceDetected = true
				g.lastVoiceTime = time.Now()
			}
		} else {
			g.speechRun = 0
		}
	}
}

func (g *speechGate) VoiceDetected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.voiceDetected
}

// HasSpeechTick reports whether at least speechRatio of the VAD frames
// since the previous call were voiced.
func (g *speechGate) HasSpeechTick() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := g.totalFrames - g.tickTotal
	s := g.speechFrames - g.tickSpeech
	g.tickTotal, g.tickSpeech = g.totalFrames, g.speechFrames
	if t == 0 {
		return false
	}
	return float64(s)/float64(t) >= speechRatio
}

func (g *speechGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.buf = g.buf[:0]
	g.voiceDetected = false
	g.lastVoiceTime = time.Time{}
	g.speechRun = 0
}

const (
	gateTick        = 100 * time.Millisecond
	quietWarnAfter  = 8 * time.Second
	speechRatio     = 0.10
	speechClearRate = 0.25 // higher threshold to clear the warning (hysteresis)
)

// quietMonitor turns per-tick speech verdicts into warn/clear edges:
// one QuietWarn once the recent window has essentially no voiced audio,
// one QuietClear when speech resumes.
type QuietEvent int

const (
	QuietNone QuietEvent = iota
	QuietWarn
	QuietClear
)

type quietMonitor struct {
	warnAt int

	ticks  int
	window []bool
	warned bool
}

func newQuietMonitor() *quietMonitor {
	warnAt := int(quietWarnAfter / gateTick)
	return &quietMonitor{
		warnAt: warnAt,
		window: make([]bool, warnAt),
	}
}

func (m *quietMonitor) ratio() float64 {
	n := m.warnAt
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.warnAt)%m.warnAt] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *quietMonitor) Tick(hasSpeech bool) QuietEvent {
	m.window[m.ticks%m.warnAt] = hasSpeech
	m.ticks++

	r := m.ratio()
	if m.ticks >= m.warnAt && r < speechRatio && !m.warned {
		m.warned = true
		return QuietWarn
	}
	if m.warned && r >= speechClearRate {
		m.warned = false
		return QuietClear
	}
	return QuietNone
}

func (m *quietMonitor) Reset() {
	m.ticks = 0
	m.warned = false
	for i := range m.window {
		m.window[i] = false
	}
}
