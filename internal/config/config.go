// Package config loads runtime settings from defaults, an optional config file
// and environment variables (llm.api_key is read from LLM_API_KEY).
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"eyecare-intake/internal/consultation"
)

const (
	keyHTTPAddr = "http.addr"

	keyLogLevel  = "log.level"
	keyLogFormat = "log.format"

	keyLLMAPIKey  = "llm.api_key"
	keyLLMBaseURL = "llm.base_url"
	keyLLMModel   = "llm.model"
	keyLLMTimeout = "llm.timeout"

	keyMinQuestions          = "interview.min_questions"
	keyMaxQuestions          = "interview.max_questions"
	keySatisfactionThreshold = "interview.satisfaction_threshold"
	keyMinConfidence         = "interview.min_confidence"
	keyHighConfidence        = "interview.high_confidence"

	keySessionMaxAge          = "sessions.max_age"
	keySessionCleanupInterval = "sessions.cleanup_interval"

	keyKnowledgeDriver     = "knowledge.driver"
	keyKnowledgeDSN        = "knowledge.dsn"
	keyKnowledgeMigrations = "knowledge.migrations"
	keyKnowledgeLimit      = "knowledge.limit"
	keyKnowledgeThreshold  = "knowledge.threshold"

	keySTTURL      = "stt.url"
	keySTTLanguage = "stt.language"
	keySTTTimeout  = "stt.timeout"

	keyTTSAPIKey  = "tts.api_key"
	keyTTSVoiceID = "tts.voice_id"
	keyTTSBaseURL = "tts.base_url"
	keyTTSTimeout = "tts.timeout"

	keyTelegramToken        = "telegram.token"
	keyTelegramDoctorChatID = "telegram.doctor_chat_id"

	keyReportFontPaths = "report.font_paths"
)

type Config struct {
	HTTPAddr  string
	Log       Log
	LLM       LLM
	Interview consultation.Policy
	Sessions  Sessions
	Knowledge Knowledge
	Speech    Speech
	Telegram  Telegram
	FontPaths []string
}

type Log struct {
	Level  string
	Format string
}

type LLM struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Sessions struct {
	MaxAge          time.Duration
	CleanupInterval time.Duration
}

type Knowledge struct {
	Driver     string
	DSN        string
	Migrations string
	Limit      int
	Threshold  float64
}

// Speech configures voice answers (stt) and spoken questions (tts). Each side
// is disabled while its endpoint or key is empty.
type Speech struct {
	STTURL      string
	STTLanguage string
	STTTimeout  time.Duration
	TTSAPIKey   string
	TTSVoiceID  string
	TTSBaseURL  string
	TTSTimeout  time.Duration
}

type Telegram struct {
	Token        string
	DoctorChatID int64
}

// Enabled reports whether referrals can be delivered.
func (t Telegram) Enabled() bool {
	return t.Token != "" && t.DoctorChatID != 0
}

func setDefaults(v *viper.Viper) {
	p := consultation.DefaultPolicy()

	v.SetDefault(keyHTTPAddr, ":8080")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "text")
	v.SetDefault(keyLLMAPIKey, "")
	v.SetDefault(keyLLMBaseURL, "https://api.deepseek.com/v1")
	v.SetDefault(keyLLMModel, "deepseek-chat")
	v.SetDefault(keyLLMTimeout, 30*time.Second)
	v.SetDefault(keyMinQuestions, p.MinQuestions)
	v.SetDefault(keyMaxQuestions, p.MaxQuestions)
	v.SetDefault(keySatisfactionThreshold, p.SatisfactionThreshold)
	v.SetDefault(keyMinConfidence, p.MinConfidence)
	v.SetDefault(keyHighConfidence, p.HighConfidence)
	v.SetDefault(keySessionMaxAge, 24*time.Hour)
	v.SetDefault(keySessionCleanupInterval, time.Hour)
	v.SetDefault(keyKnowledgeDriver, "")
	v.SetDefault(keyKnowledgeDSN, "")
	v.SetDefault(keyKnowledgeMigrations, "file://migrations")
	v.SetDefault(keyKnowledgeLimit, 5)
	v.SetDefault(keyKnowledgeThreshold, 0.3)
	v.SetDefault(keySTTURL, "")
	v.SetDefault(keySTTLanguage, "")
	v.SetDefault(keySTTTimeout, time.Minute)
	v.SetDefault(keyTTSAPIKey, "")
	v.SetDefault(keyTTSVoiceID, "")
	v.SetDefault(keyTTSBaseURL, "")
	v.SetDefault(keyTTSTimeout, time.Minute)
	v.SetDefault(keyTelegramToken, "")
	v.SetDefault(keyTelegramDoctorChatID, int64(0))
	v.SetDefault(keyReportFontPaths, []string{})
}

// Load reads configuration into v. path may be empty, in which case a
// "config.{yaml,toml,json}" in the working directory is used if present.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		HTTPAddr: v.GetString(keyHTTPAddr),
		Log: Log{
			Level:  v.GetString(keyLogLevel),
			Format: v.GetString(keyLogFormat),
		},
		LLM: LLM{
			APIKey:  v.GetString(keyLLMAPIKey),
			BaseURL: v.GetString(keyLLMBaseURL),
			Model:   v.GetString(keyLLMModel),
			Timeout: v.GetDuration(keyLLMTimeout),
		},
		Interview: consultation.Policy{
			MinQuestions:          v.GetInt(keyMinQuestions),
			MaxQuestions:          v.GetInt(keyMaxQuestions),
			SatisfactionThreshold: v.GetFloat64(keySatisfactionThreshold),
			MinConfidence:         v.GetFloat64(keyMinConfidence),
			HighConfidence:        v.GetFloat64(keyHighConfidence),
		},
		Sessions: Sessions{
			MaxAge:          v.GetDuration(keySessionMaxAge),
			CleanupInterval: v.GetDuration(keySessionCleanupInterval),
		},
		Knowledge: Knowledge{
			Driver:     strings.ToLower(v.GetString(keyKnowledgeDriver)),
			DSN:        v.GetString(keyKnowledgeDSN),
			Migrations: v.GetString(keyKnowledgeMigrations),
			Limit:      v.GetInt(keyKnowledgeLimit),
			Threshold:  v.GetFloat64(keyKnowledgeThreshold),
		},
		Speech: Speech{
			STTURL:      v.GetString(keySTTURL),
			STTLanguage: v.GetString(keySTTLanguage),
			STTTimeout:  v.GetDuration(keySTTTimeout),
			TTSAPIKey:   v.GetString(keyTTSAPIKey),
			TTSVoiceID:  v.GetString(keyTTSVoiceID),
			TTSBaseURL:  v.GetString(keyTTSBaseURL),
			TTSTimeout:  v.GetDuration(keyTTSTimeout),
		},
		Telegram: Telegram{
			Token:        v.GetString(keyTelegramToken),
			DoctorChatID: v.GetInt64(keyTelegramDoctorChatID),
		},
		FontPaths: v.GetStringSlice(keyReportFontPaths),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Interview.Validate(); err != nil {
		return fmt.Errorf("interview: %w", err)
	}
	if c.Sessions.MaxAge <= 0 {
		return errors.New("sessions.max_age must be positive")
	}
	if c.Sessions.CleanupInterval <= 0 {
		return errors.New("sessions.cleanup_interval must be positive")
	}
	switch c.Knowledge.Driver {
	case "":
	case "postgres", "sqlite":
		if c.Knowledge.DSN == "" {
			return fmt.Errorf("knowledge.dsn is required for driver %q", c.Knowledge.Driver)
		}
	default:
		return fmt.Errorf("knowledge.driver must be postgres or sqlite, got %q", c.Knowledge.Driver)
	}
	if c.Knowledge.Threshold < 0 || c.Knowledge.Threshold > 1 {
		return fmt.Errorf("knowledge.threshold must be within [0, 1], got %v", c.Knowledge.Threshold)
	}
	if c.Speech.STTTimeout <= 0 || c.Speech.TTSTimeout <= 0 {
		return errors.New("stt.timeout and tts.timeout must be positive")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// NewLogger builds the process logger described by the log section.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
