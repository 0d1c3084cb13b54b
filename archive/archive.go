// Package archive persists submitted utterances as FLAC files next to
// the logs, one file per utterance, named by timestamp and correlation
// id. Archiving is best effort: a failed write is logged and the
// interaction continues.
package archive

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"

	"talkie/log"
)

const (
	bitsPerSample = 16
	blockSize     = 4096
)

type Archiver struct {
	dir        string
	sampleRate int
}

func New(dir string, sampleRate int) (*Archiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive dir: %w", err)
	}
	return &Archiver{dir: dir, sampleRate: sampleRate}, nil
}

func (a *Archiver) Dir() string { return a.dir }

// Save encodes one utterance and writes it to disk. Returns the file
// path for logging.
func (a *Archiver) Save(correlationID string, samples []int16) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	data, err := Encode(samples, a.sampleRate)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s.flac", time.Now().Format("20060102_150405"), correlationID)
	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	log.Infof("archived utterance %s (%.1fs)", name, float64(len(samples))/float64(a.sampleRate))
	return path, nil
}

// Encode compresses mono S16 PCM to FLAC.
func Encode(samples []int16, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	info := &meta.StreamInfo{
		BlockSizeMin:  blockSize,
		BlockSizeMax:  blockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     1,
		BitsPerSample: bitsPerSample,
	}
	enc, err := flac.NewEncoder(&buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)

	for start := 0; start < len(samples); start += blockSize {
		end := start + blockSize
		if end > len(samples) {
			end = len(samples)
		}
		if err := writeBlock(enc, samples[start:end], sampleRate); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing flac encoder: %w", err)
	}
	return buf.Bytes(), nil
}

func writeBlock(enc *flac.Encoder, block []int16, sampleRate int) error {
	samples32 := make([]int32, len(block))
	for i, s := range block {
		samples32[i] = int32(s)
	}

	subframe := &frame.Subframe{
		SubHeader: frame.SubHeader{
			Pred: frame.PredVerbatim,
		},
		Samples:  samples32,
		NSamples: len(block),
	}

	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    uint32(sampleRate),
			Channels:      frame.ChannelsMono,
			BitsPerSample: bitsPerSample,
		},
		Subframes: []*frame.Subframe{subframe},
	}

	if err := enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	return nil
}
