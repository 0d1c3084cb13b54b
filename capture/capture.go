// Package capture wires a platform audio device to a live recognizer
// and exposes the pair as one microphone session: PCM frames and
// committed transcript segments flow out through a sink, faults come
// out classified by kind.
package capture

import (
	"context"
	"sync"
	"time"

	"talkie/audio"
	"talkie/log"
	"talkie/stt"
	"talkie/voice"
)

// Buffered utterance audio is capped so a long-running session cannot
// grow without bound; 2 minutes at 16kHz mono.
const maxBufferedSamples = 16000 * 120

type Options struct {
	Context    audio.Context
	Device     *audio.DeviceInfo
	Recognizer stt.Recognizer
	Language   string
	Model      string

	// OnQuiet, when set, receives true once no speech has been heard
	// for a while and false when speech resumes. Advisory only.
	OnQuiet func(quiet bool)
}

// MicSession implements voice.CaptureSession. It is reusable: every
// Start opens a fresh device callback and recognition stream, every
// Stop tears both down.
type MicSession struct {
	opts Options

	mu       sync.Mutex
	dev      audio.CaptureDevice
	rec      stt.Session
	gate     *speechGate
	running  bool
	stopTick chan struct{}
	buf      []int16
}

func NewMicSession(opts Options) *MicSession {
	return &MicSession{opts: opts}
}

func (m *MicSession) Start(cfg voice.CaptureConfig, sink voice.CaptureSink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return &voice.CaptureError{Kind: voice.KindEngineUnavailable, Err: errAlreadyRunning}
	}

	dev, err := m.opts.Context.NewCapture(m.opts.Device, audio.CaptureConfig{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	})
	if err != nil {
		return classifyDevice(err)
	}

	rec, err := m.opts.Recognizer.Start(context.Background(), stt.Config{
		SampleRate: int(cfg.SampleRate),
		Channels:   int(cfg.Channels),
		Language:   m.opts.Language,
		Model:      m.opts.Model,
	}, &recognitionSink{sink: sink})
	if err != nil {
		dev.Close()
		return classifyEngine(err)
	}

	gate, gerr := newSpeechGate(int(cfg.SampleRate))
	if gerr != nil {
		// The advisory gate is optional; recognition works without it.
		log.Warnf("speech gate unavailable: %v", gerr)
	}

	dev.SetCallback(func(data []byte, frameCount uint32) {
		samples := pcmToSamples(data)
		sink.Frame(samples)
		rec.Feed(data)
		if gate != nil {
			gate.Process(data)
		}
		m.bufferUtterance(samples)
	})

	if err := dev.Start(); err != nil {
		dev.Close()
		rec.Close()
		return classifyDevice(err)
	}

	m.dev = dev
	m.rec = rec
	m.gate = gate
	m.running = true
	if gate != nil && m.opts.OnQuiet != nil {
		m.stopTick = make(chan struct{})
		go m.runQuietMonitor(gate, m.stopTick)
	}
	return nil
}

func (m *MicSession) Stop() {
	m.mu.Lock()
	dev, rec, stopTick := m.dev, m.rec, m.stopTick
	m.dev, m.rec, m.gate, m.stopTick = nil, nil, nil, nil
	m.running = false
	m.mu.Unlock()

	if stopTick != nil {
		close(stopTick)
	}
	if dev != nil {
		dev.ClearCallback()
		dev.Stop()
		dev.Close()
	}
	if rec != nil {
		rec.Close()
	}
}

// TakeUtterance drains and returns the PCM captured since the previous
// call, for archiving a just-submitted utterance.
func (m *MicSession) TakeUtterance() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.buf
	m.buf = nil
	return out
}

func (m *MicSession) bufferUtterance(samples []int16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf = append(m.buf, samples...)
	if len(m.buf) > maxBufferedSamples {
		m.buf = m.buf[len(m.buf)-maxBufferedSamples:]
	}
}

func (m *MicSession) runQuietMonitor(gate *speechGate, stop <-chan struct{}) {
	monitor := newQuietMonitor()
	ticker := time.NewTicker(gateTick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			switch monitor.Tick(gate.HasSpeechTick()) {
			case QuietWarn:
				log.Info("no speech detected on capture device")
				m.opts.OnQuiet(true)
			case QuietClear:
				m.opts.OnQuiet(false)
			}
		}
	}
}

// recognitionSink adapts recognizer callbacks to the capture sink.
type recognitionSink struct {
	sink voice.CaptureSink
}

func (r *recognitionSink) Segment(text string, endOfUtterance bool) {
	r.sink.Transcript(text, endOfUtterance)
}

func (r *recognitionSink) Failed(err error) {
	r.sink.Fail(classifyEngine(err))
}

func pcmToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}
