package capture

import (
	"errors"
	"sync"
	"testing"
	"time"

	"talkie/audio"
	"talkie/stt"
	"talkie/voice"
)

type sinkRecorder struct {
	mu          sync.Mutex
	samples     int
	transcripts []stt.FakeSegment
	fails       []error
}

func (s *sinkRecorder) Frame(samples []int16) {
	s.mu.Lock()
	s.samples += len(samples)
	s.mu.Unlock()
}

func (s *sinkRecorder) Transcript(delta string, final bool) {
	s.mu.Lock()
	s.transcripts = append(s.transcripts, stt.FakeSegment{Text: delta, Final: final})
	s.mu.Unlock()
}

func (s *sinkRecorder) Fail(err error) {
	s.mu.Lock()
	s.fails = append(s.fails, err)
	s.mu.Unlock()
}

func (s *sinkRecorder) waitSamples(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		got := s.samples
		s.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d samples", n)
}

func micConfig() voice.CaptureConfig {
	return voice.CaptureConfig{SampleRate: 16000, Channels: 1, Mode: voice.Conversational}
}

func TestMicSessionRoutesAudioAndTranscripts(t *testing.T) {
	fctx := audio.NewFakeContext(make([]int16, 4096))
	rec := stt.NewFake(
		stt.FakeSegment{Text: "hello", Final: false},
		stt.FakeSegment{Text: "world", Final: true},
	)
	sink := &sinkRecorder{}
	m := NewMicSession(Options{Context: fctx, Recognizer: rec})

	if err := m.Start(micConfig(), sink); err != nil {
		t.Fatal(err)
	}
	sink.waitSamples(t, 4096)
	m.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.transcripts) != 2 {
		t.Fatalf("transcripts = %+v", sink.transcripts)
	}
	if sink.transcripts[0] != (stt.FakeSegment{Text: "hello", Final: false}) {
		t.Errorf("transcript 0 = %+v", sink.transcripts[0])
	}
	if sink.transcripts[1] != (stt.FakeSegment{Text: "world", Final: true}) {
		t.Errorf("transcript 1 = %+v", sink.transcripts[1])
	}
	if len(sink.fails) != 0 {
		t.Errorf("fails = %v", sink.fails)
	}

	sessions := rec.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d", len(sessions))
	}
	if sessions[0].FedBytes() != 4096*2 {
		t.Errorf("fed bytes = %d, want %d", sessions[0].FedBytes(), 4096*2)
	}
	if !sessions[0].Closed() {
		t.Error("recognition stream not closed on Stop")
	}
}

func TestMicSessionBuffersUtteranceAudio(t *testing.T) {
	fctx := audio.NewFakeContext(make([]int16, 2048))
	sink := &sinkRecorder{}
	m := NewMicSession(Options{Context: fctx, Recognizer: stt.NewFake()})

	if err := m.Start(micConfig(), sink); err != nil {
		t.Fatal(err)
	}
	sink.waitSamples(t, 2048)

	got := m.TakeUtterance()
	if len(got) != 2048 {
		t.Fatalf("buffered = %d samples, want 2048", len(got))
	}
	if len(m.TakeUtterance()) != 0 {
		t.Error("second take should be empty")
	}
	m.Stop()
}

func TestMicSessionRestart(t *testing.T) {
	fctx := audio.NewFakeContext(make([]int16, 1024))
	rec := stt.NewFake()
	m := NewMicSession(Options{Context: fctx, Recognizer: rec})

	for i := 0; i < 2; i++ {
		if err := m.Start(micConfig(), &sinkRecorder{}); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		m.Stop()
	}
	if n := len(rec.Sessions()); n != 2 {
		t.Fatalf("sessions = %d, want 2", n)
	}
}

func TestMicSessionDoubleStartRejected(t *testing.T) {
	fctx := audio.NewFakeContext(nil)
	m := NewMicSession(Options{Context: fctx, Recognizer: stt.NewFake()})
	if err := m.Start(micConfig(), &sinkRecorder{}); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()
	if err := m.Start(micConfig(), &sinkRecorder{}); err == nil {
		t.Fatal("second start should fail")
	}
}

func TestMicSessionRecognizerStartError(t *testing.T) {
	fctx := audio.NewFakeContext(nil)
	rec := stt.NewFake()
	rec.SetStartError(errors.New("dial tcp: connection refused"))
	m := NewMicSession(Options{Context: fctx, Recognizer: rec})

	err := m.Start(micConfig(), &sinkRecorder{})
	if err == nil {
		t.Fatal("expected start error")
	}
	if voice.KindOf(err) != voice.KindEngineUnavailable {
		t.Errorf("kind = %v", voice.KindOf(err))
	}
}

func TestClassifyEngine(t *testing.T) {
	for _, tt := range []struct {
		err  string
		want voice.ErrorKind
	}{
		{"dial tcp 1.2.3.4: i/o timeout", voice.KindEngineUnavailable},
		{"websocket handshake failed", voice.KindEngineUnavailable},
		{"401 unauthorized", voice.KindEngineUnavailable},
		{"microphone permission denied", voice.KindPermissionDenied},
		{"unexpected EOF", voice.KindRecognitionFailed},
	} {
		got := voice.KindOf(classifyEngine(errors.New(tt.err)))
		if got != tt.want {
			t.Errorf("classifyEngine(%q) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestClassifyDevice(t *testing.T) {
	if got := voice.KindOf(classifyDevice(errors.New("operation not permitted"))); got != voice.KindPermissionDenied {
		t.Errorf("permission error classified as %v", got)
	}
	if got := voice.KindOf(classifyDevice(errors.New("no such device"))); got != voice.KindEngineUnavailable {
		t.Errorf("device error classified as %v", got)
	}
}
