package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"eyecare-intake/internal/consultation"
)

const (
	elevenLabsAPIURL  = "https://api.elevenlabs.io/v1/text-to-speech"
	defaultVoiceID    = "21m00Tcm4TlvDq8ikWAM"
	ttsModel          = "eleven_multilingual_v2"
	defaultTTSTimeout = 60 * time.Second
)

type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	BaseURL string // text-to-speech endpoint root, voice id is appended
	Timeout time.Duration
}

type elevenLabsClient struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
}

// NewElevenLabsClient speaks interview questions aloud.
func NewElevenLabsClient(cfg ElevenLabsConfig) consultation.Synthesizer {
	if cfg.VoiceID == "" {
		cfg.VoiceID = defaultVoiceID
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = elevenLabsAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTTSTimeout
	}
	return &elevenLabsClient{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

func (c *elevenLabsClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("synthesize: empty text")
	}
	payload, err := json.Marshal(speechRequest{
		Text:          text,
		ModelID:       ttsModel,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + c.cfg.VoiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("speech service", resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}
