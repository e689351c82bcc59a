package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eyecare-intake/internal/consultation"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, consultation.DefaultPolicy(), cfg.Interview)
	assert.Equal(t, "https://api.deepseek.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Sessions.MaxAge)
	assert.Equal(t, time.Hour, cfg.Sessions.CleanupInterval)
	assert.Equal(t, 5, cfg.Knowledge.Limit)
	assert.InDelta(t, 0.3, cfg.Knowledge.Threshold, 1e-9)
	assert.Empty(t, cfg.Knowledge.Driver)
	assert.False(t, cfg.Telegram.Enabled())
	assert.Empty(t, cfg.Speech.STTURL)
	assert.Empty(t, cfg.Speech.TTSAPIKey)
	assert.Equal(t, time.Minute, cfg.Speech.STTTimeout)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
interview:
  max_questions: 6
  min_confidence: 0.7
knowledge:
  driver: sqlite
  dsn: /tmp/knowledge.db
telegram:
  token: abc
  doctor_chat_id: 12345
report:
  font_paths:
    - /fonts/a.ttf
stt:
  url: http://whisper:8000/transcribe
  language: en
tts:
  voice_id: voice-1
  timeout: 20s
`), 0o600))
	t.Setenv("TTS_API_KEY", "xi-test")
	t.Setenv("INTERVIEW_MAX_QUESTIONS", "10")
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Interview.MaxQuestions)
	assert.InDelta(t, 0.7, cfg.Interview.MinConfidence, 1e-9)
	assert.Equal(t, 3, cfg.Interview.MinQuestions)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "sqlite", cfg.Knowledge.Driver)
	assert.True(t, cfg.Telegram.Enabled())
	assert.Equal(t, int64(12345), cfg.Telegram.DoctorChatID)
	assert.Equal(t, []string{"/fonts/a.ttf"}, cfg.FontPaths)
	assert.Equal(t, Speech{
		STTURL:      "http://whisper:8000/transcribe",
		STTLanguage: "en",
		STTTimeout:  time.Minute,
		TTSAPIKey:   "xi-test",
		TTSVoiceID:  "voice-1",
		TTSTimeout:  20 * time.Second,
	}, cfg.Speech)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := map[string]string{
		"min above max":      "interview:\n  min_questions: 5\n  max_questions: 4\n",
		"threshold range":    "interview:\n  satisfaction_threshold: 1.2\n",
		"unknown driver":     "knowledge:\n  driver: mysql\n  dsn: x\n",
		"driver without dsn": "knowledge:\n  driver: postgres\n",
		"log level":          "log:\n  level: loud\n",
		"log format":         "log:\n  format: xml\n",
		"tts timeout":        "tts:\n  timeout: 0s\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "intake.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

			_, err := Load(viper.New(), path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{Log: Log{Level: "warn", Format: "json"}}
	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "session_id", "s-1")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"session_id":"s-1"`)
}
