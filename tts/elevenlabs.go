package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	elevenBaseURL      = "https://api.elevenlabs.io/v1"
	elevenVoiceID      = "21m00Tcm4TlvDq8ikWAM" // Rachel
	elevenModelID      = "eleven_multilingual_v2"
	elevenOutputFormat = "pcm_16000"
	elevenSampleRate   = 16000
	elevenStability    = 0.5
	elevenClarity      = 0.75
)

type ElevenLabs struct {
	apiKey  string
	voiceID string
	modelID string
	baseURL string
	client  *http.Client
}

func NewElevenLabs(apiKey string) *ElevenLabs {
	return &ElevenLabs{
		apiKey:  strings.TrimSpace(apiKey),
		voiceID: elevenVoiceID,
		modelID: elevenModelID,
		baseURL: elevenBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SetVoiceID overrides the default voice.
func (e *ElevenLabs) SetVoiceID(id string) {
	if id != "" {
		e.voiceID = id
	}
}

// SetBaseURL points the client at a different API host, for tests.
func (e *ElevenLabs) SetBaseURL(base string) {
	if base != "" {
		e.baseURL = strings.TrimRight(base, "/")
	}
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

type elevenVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenRequest struct {
	Text          string              `json:"text"`
	ModelID       string              `json:"model_id"`
	VoiceSettings elevenVoiceSettings `json:"voice_settings"`
}

func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]int16, int, error) {
	if strings.TrimSpace(text) == "" {
		return nil, elevenSampleRate, nil
	}

	body, err := json.Marshal(elevenRequest{
		Text:    text,
		ModelID: e.modelID,
		VoiceSettings: elevenVoiceSettings{
			Stability:       elevenStability,
			SimilarityBoost: elevenClarity,
		},
	})
	if err != nil {
		return nil, 0, err
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s&enable_logging=false",
		e.baseURL, e.voiceID, elevenOutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, 0, fmt.Errorf("elevenlabs status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("elevenlabs read: %w", err)
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return samples, elevenSampleRate, nil
}
