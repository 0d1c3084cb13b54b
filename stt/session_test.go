package stt

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

type scriptedStream struct {
	mu      sync.Mutex
	updates chan update
	recvErr error
	sent    [][]byte
	closed  bool
}

func newScriptedStream(buf int) *scriptedStream {
	return &scriptedStream{updates: make(chan update, buf)}
}

func (s *scriptedStream) Send(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, pcm)
	return nil
}

func (s *scriptedStream) Recv() (update, error) {
	u, ok := <-s.updates
	if !ok {
		s.mu.Lock()
		err := s.recvErr
		s.mu.Unlock()
		if err == nil {
			err = errors.New("stream closed")
		}
		return update{}, err
	}
	return u, nil
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.updates)
	}
	return nil
}

func (s *scriptedStream) setRecvErr(err error) {
	s.mu.Lock()
	s.recvErr = err
	s.mu.Unlock()
}

type recordingHandler struct {
	mu       sync.Mutex
	segments []FakeSegment
	failures []error
}

func (h *recordingHandler) Segment(text string, end bool) {
	h.mu.Lock()
	h.segments = append(h.segments, FakeSegment{Text: text, Final: end})
	h.mu.Unlock()
}

func (h *recordingHandler) Failed(err error) {
	h.mu.Lock()
	h.failures = append(h.failures, err)
	h.mu.Unlock()
}

func (h *recordingHandler) waitSegments(t *testing.T, n int) []FakeSegment {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		if len(h.segments) >= n {
			got := append([]FakeSegment(nil), h.segments...)
			h.mu.Unlock()
			return got
		}
		h.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d segments", n)
	return nil
}

func (h *recordingHandler) failureCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.failures)
}

func TestLiveSessionForwardsCommittedSegments(t *testing.T) {
	ws := newScriptedStream(8)
	h := &recordingHandler{}
	s := newLiveSession(ws, Config{SampleRate: 16000, Channels: 1}, h)
	defer s.Close()

	ws.updates <- update{Transcript: "turn on", IsFinal: false} // interim, revised later
	ws.updates <- update{Transcript: "turn on the", IsFinal: true}
	ws.updates <- update{Transcript: "lights", IsFinal: true, SpeechFinal: true}

	got := h.waitSegments(t, 2)
	if got[0].Text != "turn on the" || got[0].Final {
		t.Errorf("segment 0 = %+v", got[0])
	}
	if got[1].Text != "lights" || !got[1].Final {
		t.Errorf("segment 1 = %+v", got[1])
	}
}

func TestLiveSessionSkipsEmptyCommits(t *testing.T) {
	ws := newScriptedStream(8)
	h := &recordingHandler{}
	s := newLiveSession(ws, Config{SampleRate: 16000, Channels: 1}, h)
	defer s.Close()

	ws.updates <- update{Transcript: "", IsFinal: true}
	ws.updates <- update{Transcript: "", IsFinal: true, SpeechFinal: true}
	ws.updates <- update{Transcript: "hello", IsFinal: true}

	got := h.waitSegments(t, 2)
	// The empty is_final is dropped; the empty speech_final still marks
	// the endpoint and must pass through.
	if got[0] != (FakeSegment{Text: "", Final: true}) {
		t.Errorf("segment 0 = %+v, want empty endpoint marker", got[0])
	}
	if got[1] != (FakeSegment{Text: "hello", Final: false}) {
		t.Errorf("segment 1 = %+v", got[1])
	}
}

func TestLiveSessionChunksAudio(t *testing.T) {
	ws := newScriptedStream(1)
	h := &recordingHandler{}
	s := newLiveSession(ws, Config{SampleRate: 16000, Channels: 1}, h)
	defer s.Close()

	chunk := s.chunkBytes
	if chunk != 16000*2*200/1000 {
		t.Fatalf("chunkBytes = %d", chunk)
	}
	s.Feed(make([]byte, chunk-1))
	s.Feed(make([]byte, 1))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ws.mu.Lock()
		n := len(ws.sent)
		ws.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("chunk never sent")
}

func TestLiveSessionSurfacesStreamErrors(t *testing.T) {
	ws := newScriptedStream(1)
	ws.setRecvErr(errors.New("connection reset"))
	h := &recordingHandler{}
	s := newLiveSession(ws, Config{SampleRate: 16000, Channels: 1}, h)
	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.failureCount() == 1 {
			s.Close()
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("stream error never surfaced")
}

func TestLiveSessionCloseIsQuiet(t *testing.T) {
	ws := newScriptedStream(1)
	h := &recordingHandler{}
	s := newLiveSession(ws, Config{SampleRate: 16000, Channels: 1}, h)
	s.Close()
	if n := h.failureCount(); n != 0 {
		t.Fatalf("failures after close = %d", n)
	}
	// Feeding a closed session is a no-op.
	s.Feed(make([]byte, 16000))
	ws.mu.Lock()
	sent := len(ws.sent)
	ws.mu.Unlock()
	if sent != 0 {
		t.Fatal("fed audio after close")
	}
}

func TestBenignStreamErrors(t *testing.T) {
	if !benignStreamErr(nil) {
		t.Error("nil should be benign")
	}
	if !benignStreamErr(context.Canceled) {
		t.Error("context cancellation is part of teardown")
	}
	if !benignStreamErr(net.ErrClosed) {
		t.Error("closed connection is part of teardown")
	}
	if benignStreamErr(errors.New("tls handshake failure")) {
		t.Error("transport fault should surface")
	}
}
