package tts

import (
	"context"
	"sync"

	"talkie/audio"
	"talkie/log"
)

// Speaker drives one synthesize-then-play pipeline per reply. Speak is
// asynchronous; done fires exactly once when playback finishes, fails,
// or is cancelled by Stop. A new Speak cancels whatever was playing.
type Speaker struct {
	synth  Synthesizer
	player audio.Player

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewSpeaker(synth Synthesizer, player audio.Player) *Speaker {
	return &Speaker{synth: synth, player: player}
}

func (s *Speaker) Speak(text string, done func(error)) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.player.Stop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		samples, rate, err := s.synth.Synthesize(ctx, text)
		if ctx.Err() != nil {
			done(nil)
			return
		}
		if err != nil {
			log.Errorf("synthesis failed: %v", err)
			done(err)
			return
		}
		err = s.player.Play(samples, rate)
		if ctx.Err() != nil {
			// Stop raced with the tail of playback.
			done(nil)
			return
		}
		done(err)
	}()
	return nil
}

func (s *Speaker) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.player.Stop()
}
