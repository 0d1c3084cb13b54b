package stt

import (
	"context"
	"sync"
)

// FakeSegment scripts one Segment callback.
type FakeSegment struct {
	Text  string
	Final bool
}

// FakeRecognizer hands out sessions that replay a script instead of
// talking to a service.
type FakeRecognizer struct {
	mu       sync.Mutex
	script   []FakeSegment
	startErr error
	sessions []*FakeSession
}

func NewFake(script ...FakeSegment) *FakeRecognizer {
	return &FakeRecognizer{script: script}
}

func (f *FakeRecognizer) SetStartError(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

func (f *FakeRecognizer) Name() string { return "fake" }

func (f *FakeRecognizer) Start(_ context.Context, cfg Config, h Handler) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	s := &FakeSession{h: h, script: append([]FakeSegment(nil), f.script...)}
	f.sessions = append(f.sessions, s)
	return s, nil
}

// Sessions returns every session started so far.
func (f *FakeRecognizer) Sessions() []*FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeSession(nil), f.sessions...)
}

// FakeSession replays one scripted segment per fed chunk, so a test
// controls exactly when recognition output arrives by pushing audio.
type FakeSession struct {
	mu     sync.Mutex
	h      Handler
	script []FakeSegment
	fed    int
	closed bool
}

func (s *FakeSession) Feed(pcm []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.fed += len(pcm)
	var seg *FakeSegment
	if len(s.script) > 0 {
		next := s.script[0]
		s.script = s.script[1:]
		seg = &next
	}
	h := s.h
	s.mu.Unlock()
	if seg != nil {
		h.Segment(seg.Text, seg.Final)
	}
}

func (s *FakeSession) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Fail invokes the handler's failure callback, as a live stream would
// on a transport fault.
func (s *FakeSession) Fail(err error) {
	s.mu.Lock()
	closed := s.closed
	h := s.h
	s.mu.Unlock()
	if !closed {
		h.Failed(err)
	}
}

func (s *FakeSession) FedBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fed
}

func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
