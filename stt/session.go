package stt

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"talkie/log"
)

const (
	streamChunkMs = 200
	drainTimeout  = 2 * time.Second
)

type rawStream interface {
	Send(pcm []byte) error
	Recv() (update, error)
	Close() error
}

type update struct {
	Transcript   string
	IsFinal      bool
	SpeechFinal  bool
	FromFinalize bool
}

// liveSession pumps PCM to a rawStream from a sender goroutine and
// turns committed recognition results into Handler callbacks from a
// receiver goroutine. It runs until Close; errors after Close (or a
// clean remote shutdown) are swallowed as part of teardown.
type liveSession struct {
	ws         rawStream
	h          Handler
	chunkBytes int
	startedAt  time.Time

	audioCh  chan []byte
	sendDone chan struct{}
	recvDone chan struct{}

	feedMu  sync.Mutex
	feedBuf []byte

	mu      sync.Mutex
	closing bool
	failed  bool
	stats   streamStats
}

type streamStats struct {
	SentChunks   int
	SentBytes    uint64
	Dropped      int
	RecvMessages int
	RecvFinal    int
	CommitEvents int
}

func newLiveSession(ws rawStream, cfg Config, h Handler) *liveSession {
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}
	s := &liveSession{
		ws:         ws,
		h:          h,
		chunkBytes: rate * channels * 2 * streamChunkMs / 1000,
		startedAt:  time.Now(),
		audioCh:    make(chan []byte, 128),
		sendDone:   make(chan struct{}),
		recvDone:   make(chan struct{}),
	}
	go s.runSender()
	go s.runReceiver()
	return s
}

// Feed buffers PCM into wire-size chunks. When the sender falls behind
// the chunk is dropped rather than stalling the capture callback.
func (s *liveSession) Feed(pcm []byte) {
	s.mu.Lock()
	if s.closing || s.failed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.feedMu.Lock()
	s.feedBuf = append(s.feedBuf, pcm...)
	var chunks [][]byte
	for len(s.feedBuf) >= s.chunkBytes {
		chunk := make([]byte, s.chunkBytes)
		copy(chunk, s.feedBuf[:s.chunkBytes])
		s.feedBuf = s.feedBuf[s.chunkBytes:]
		chunks = append(chunks, chunk)
	}
	s.feedMu.Unlock()

	for _, chunk := range chunks {
		select {
		case s.audioCh <- chunk:
		default:
			s.mu.Lock()
			s.stats.Dropped++
			s.mu.Unlock()
		}
	}
}

func (s *liveSession) Close() {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.closing = true
	s.mu.Unlock()

	close(s.audioCh)
	s.ws.Close()

	select {
	case <-s.sendDone:
	case <-time.After(drainTimeout):
		log.Warn("stream sender drain timeout")
	}
	select {
	case <-s.recvDone:
	case <-time.After(drainTimeout):
		log.Warn("stream receiver drain timeout")
	}

	s.mu.Lock()
	stats := s.stats
	s.mu.Unlock()
	total := time.Since(s.startedAt)
	log.StreamMetrics(log.StreamMetricsData{
		TotalMs:      float64(total.Milliseconds()),
		AudioS:       float64(stats.SentBytes) / float64(s.chunkBytes*1000/streamChunkMs),
		SentChunks:   stats.SentChunks,
		SentKB:       float64(stats.SentBytes) / 1024,
		RecvMessages: stats.RecvMessages,
		RecvFinal:    stats.RecvFinal,
		CommitEvents: stats.CommitEvents,
	})
}

func (s *liveSession) runSender() {
	defer close(s.sendDone)
	for chunk := range s.audioCh {
		if err := s.ws.Send(chunk); err != nil {
			s.fail(err)
			return
		}
		s.mu.Lock()
		s.stats.SentChunks++
		s.stats.SentBytes += uint64(len(chunk))
		s.mu.Unlock()
	}
}

func (s *liveSession) runReceiver() {
	defer close(s.recvDone)
	for {
		u, err := s.ws.Recv()
		if err != nil {
			s.fail(err)
			return
		}

		committed := u.IsFinal || u.SpeechFinal || u.FromFinalize
		endOfUtterance := u.SpeechFinal || u.FromFinalize

		s.mu.Lock()
		s.stats.RecvMessages++
		if committed {
			s.stats.RecvFinal++
		}
		s.mu.Unlock()

		// Interim guesses get revised by the service; only committed
		// segments are worth forwarding.
		if !committed {
			continue
		}
		if u.Transcript == "" && !endOfUtterance {
			continue
		}

		s.mu.Lock()
		if u.Transcript != "" {
			s.stats.CommitEvents++
		}
		stale := s.closing || s.failed
		s.mu.Unlock()
		if stale {
			continue
		}
		s.h.Segment(u.Transcript, endOfUtterance)
	}
}

// fail surfaces the first stream error to the handler. Errors produced
// by our own teardown are expected and stay quiet.
func (s *liveSession) fail(err error) {
	s.mu.Lock()
	if s.closing || s.failed {
		s.mu.Unlock()
		return
	}
	s.failed = true
	s.mu.Unlock()
	if benignStreamErr(err) {
		return
	}
	s.ws.Close()
	s.h.Failed(err)
}

func benignStreamErr(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return websocket.CloseStatus(err) == websocket.StatusNormalClosure
}
