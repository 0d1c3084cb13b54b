package capture

import (
	"encoding/binary"
	"math"
	"testing"
)

func genTone(freq float64, durationMs int) []byte {
	n := 16000 * durationMs / 1000
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		sample := int16(16000 * math.Sin(2*math.Pi*freq*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}
	return buf
}

func genSilence(durationMs int) []byte {
	return make([]byte, 16000*durationMs/1000*2)
}

func TestGateSilence(t *testing.T) {
	g, err := newSpeechGate(16000)
	if err != nil {
		t.Fatal(err)
	}
	g.Process(genSilence(200))
	if g.VoiceDetected() {
		t.Error("expected no voice on silence")
	}
}

func TestGateOddChunkSizes(t *testing.T) {
	g, err := newSpeechGate(16000)
	if err != nil {
		t.Fatal(err)
	}
	silence := genSilence(200)
	for i := 0; i < len(silence); i += 100 {
		end := i + 100
		if end > len(silence) {
			end = len(silence)
		}
		g.Process(silence[i:end])
	}
	if g.VoiceDetected() {
		t.Error("expected no voice on silence with odd chunks")
	}
}

func TestGateReset(t *testing.T) {
	g, err := newSpeechGate(16000)
	if err != nil {
		t.Fatal(err)
	}
	g.Process(genTone(440, 200))
	g.Reset()
	if g.VoiceDetected() {
		t.Error("expected no voice after reset")
	}
}

func TestGateTickWithoutFrames(t *testing.T) {
	g, err := newSpeechGate(16000)
	if err != nil {
		t.Fatal(err)
	}
	if g.HasSpeechTick() {
		t.Error("no frames should mean no speech")
	}
}

func TestQuietMonitorWarnsAfterSustainedSilence(t *testing.T) {
	m := newQuietMonitor()
	// One tick short of the warn window: still quiet.
	for i := 0; i < m.warnAt-1; i++ {
		if ev := m.Tick(false); ev != QuietNone {
			t.Fatalf("unexpected event at tick %d: %d", i, ev)
		}
	}
	if ev := m.Tick(false); ev != QuietWarn {
		t.Fatalf("expected warn, got %d", ev)
	}
	// Warning fires once, not every tick.
	if ev := m.Tick(false); ev != QuietNone {
		t.Fatalf("expected no repeat, got %d", ev)
	}
}

func TestQuietMonitorClearsOnSpeech(t *testing.T) {
	m := newQuietMonitor()
	for i := 0; i < m.warnAt; i++ {
		m.Tick(false)
	}
	// Feed speech until the window ratio crosses the clear threshold.
	var cleared bool
	for i := 0; i < m.warnAt; i++ {
		if m.Tick(true) == QuietClear {
			cleared = true
			break
		}
	}
	if !cleared {
		t.Fatal("warning never cleared after speech resumed")
	}
}

func TestQuietMonitorSteadySpeechNeverWarns(t *testing.T) {
	m := newQuietMonitor()
	for i := 0; i < 4*m.warnAt; i++ {
		if ev := m.Tick(i%4 == 0); ev != QuietNone { // 25% speech
			t.Fatalf("unexpected event at tick %d: %d", i, ev)
		}
	}
}

func TestQuietMonitorReset(t *testing.T) {
	m := newQuietMonitor()
	for i := 0; i < m.warnAt; i++ {
		m.Tick(false)
	}
	m.Reset()
	if ev := m.Tick(false); ev != QuietNone {
		t.Fatalf("expected clean slate after reset, got %d", ev)
	}
}
