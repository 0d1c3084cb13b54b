package tts

import (
	"context"
	"errors"
	"testing"
	"time"

	"talkie/audio"
)

type fakeSynth struct {
	samples []int16
	rate    int
	err     error
	block   chan struct{} // when set, Synthesize waits for it or ctx
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(ctx context.Context, _ string) ([]int16, int, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
	return f.samples, f.rate, f.err
}

func waitDone(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("done callback never fired")
		return nil
	}
}

func TestSpeakerPlaysSynthesizedAudio(t *testing.T) {
	fctx := audio.NewFakeContext(nil)
	player, _ := fctx.NewPlayer()
	fp := player.(*audio.FakePlayer)
	s := NewSpeaker(&fakeSynth{samples: []int16{1, 2, 3}, rate: 16000}, player)

	doneCh := make(chan error, 1)
	if err := s.Speak("hello there", func(err error) { doneCh <- err }); err != nil {
		t.Fatal(err)
	}
	if err := waitDone(t, doneCh); err != nil {
		t.Fatalf("done err = %v", err)
	}

	played := fp.Played()
	if len(played) != 1 || len(played[0]) != 3 {
		t.Fatalf("played = %v", played)
	}
	if fp.Rates()[0] != 16000 {
		t.Errorf("rate = %d", fp.Rates()[0])
	}
}

func TestSpeakerReportsSynthesisError(t *testing.T) {
	fctx := audio.NewFakeContext(nil)
	player, _ := fctx.NewPlayer()
	fp := player.(*audio.FakePlayer)
	s := NewSpeaker(&fakeSynth{err: errors.New("synth down")}, player)

	doneCh := make(chan error, 1)
	s.Speak("hello", func(err error) { doneCh <- err })
	if err := waitDone(t, doneCh); err == nil {
		t.Fatal("expected synthesis error")
	}
	if len(fp.Played()) != 0 {
		t.Error("played audio despite synthesis failure")
	}
}

func TestSpeakerStopCancelsSynthesis(t *testing.T) {
	fctx := audio.NewFakeContext(nil)
	player, _ := fctx.NewPlayer()
	fp := player.(*audio.FakePlayer)
	synth := &fakeSynth{samples: []int16{1}, rate: 16000, block: make(chan struct{})}
	s := NewSpeaker(synth, player)

	doneCh := make(chan error, 1)
	s.Speak("a very long reply", func(err error) { doneCh <- err })
	s.Stop()
	if err := waitDone(t, doneCh); err != nil {
		t.Fatalf("cancelled speak should complete quietly, got %v", err)
	}
	if len(fp.Played()) != 0 {
		t.Error("played audio after stop")
	}
	if fp.Stops() == 0 {
		t.Error("player never stopped")
	}
}

func TestChimeProducesAudio(t *testing.T) {
	c := NewChime()
	samples, rate, err := c.Synthesize(context.Background(), "anything")
	if err != nil {
		t.Fatal(err)
	}
	if rate != chimeSampleRate || len(samples) == 0 {
		t.Fatalf("samples = %d rate = %d", len(samples), rate)
	}
	samples, _, _ = c.Synthesize(context.Background(), "")
	if len(samples) != 0 {
		t.Error("empty text should produce no audio")
	}
}
