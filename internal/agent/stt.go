package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"eyecare-intake/internal/consultation"
)

const defaultSTTTimeout = 60 * time.Second

// WhisperConfig points at a Whisper-style transcription service that accepts a
// multipart "file" field and answers {"text": ...}.
type WhisperConfig struct {
	URL      string
	Language string // ISO-639-1 hint; empty lets the service detect it
	Timeout  time.Duration
}

type whisperClient struct {
	cfg        WhisperConfig
	httpClient *http.Client
}

func NewWhisperClient(cfg WhisperConfig) consultation.Transcriber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSTTTimeout
	}
	return &whisperClient{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

type transcription struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (c *whisperClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	body, contentType, err := c.form(audio)
	if err != nil {
		return "", fmt.Errorf("build transcription form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apiError("transcription service", resp)
	}

	var out transcription
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}

func (c *whisperClient) form(audio []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if c.cfg.Language != "" {
		if err := w.WriteField("language", c.cfg.Language); err != nil {
			return nil, "", err
		}
	}
	part, err := w.CreateFormFile("file", audioFileName(audio))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

// audioFileName picks an extension from the sniffed format; the service decodes
// by extension.
func audioFileName(audio []byte) string {
	switch http.DetectContentType(audio) {
	case "audio/mpeg":
		return "answer.mp3"
	case "application/ogg":
		return "answer.ogg"
	case "video/webm":
		return "answer.webm"
	default:
		return "answer.wav"
	}
}
