package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"eyecare-intake/internal/agent"
	"eyecare-intake/internal/config"
	"eyecare-intake/internal/consultation"
	"eyecare-intake/internal/knowledge"
	"eyecare-intake/internal/platform/telegram"
	"eyecare-intake/internal/report"
)

var errKnowledgeDisabled = errors.New("knowledge base is not configured (set knowledge.driver and knowledge.dsn)")

type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	service   consultation.Service
	knowledge knowledge.Store
	stt       consultation.Transcriber
	tts       consultation.Synthesizer

	questionnaire *consultation.Questionnaire
}

func (a *app) Close() {
	if a.knowledge != nil {
		if err := a.knowledge.Close(); err != nil {
			a.logger.Warn("closing knowledge store", "error", err)
		}
	}
}

func loadConfig(opts *rootOptions) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(viper.New(), opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	// stdout belongs to the interview and MCP transports.
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func wireApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	if cfg.LLM.APIKey == "" {
		logger.Warn("llm.api_key is not set; every oracle call will fail and fallbacks will be used")
	}
	oracle := agent.NewDeepSeekClient(agent.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})

	svcOpts := consultation.Options{
		Policy: cfg.Interview,
		Search: consultation.SearchOptions{
			Limit:     cfg.Knowledge.Limit,
			Threshold: cfg.Knowledge.Threshold,
		},
		Logger: logger,
	}

	if cfg.Knowledge.Driver != "" {
		store, err := knowledge.Open(ctx, cfg.Knowledge.Driver, cfg.Knowledge.DSN)
		if err != nil {
			// Reference passages are optional; run without them.
			logger.Error("knowledge store unavailable", "driver", cfg.Knowledge.Driver, "error", err)
		} else {
			logger.Info("knowledge store connected", "driver", cfg.Knowledge.Driver)
			a.knowledge = store
			svcOpts.Retriever = store
		}
	}

	if cfg.Telegram.Enabled() {
		tg := telegram.NewClient(cfg.Telegram.Token)
		svcOpts.Reporter = report.NewService(tg, cfg.Telegram.DoctorChatID, cfg.FontPaths, logger)
	} else {
		logger.Warn("telegram.token or telegram.doctor_chat_id not set; referrals will not be sent")
	}

	if cfg.Speech.STTURL != "" {
		a.stt = agent.NewWhisperClient(agent.WhisperConfig{
			URL:      cfg.Speech.STTURL,
			Language: cfg.Speech.STTLanguage,
			Timeout:  cfg.Speech.STTTimeout,
		})
	}
	if cfg.Speech.TTSAPIKey != "" {
		a.tts = agent.NewElevenLabsClient(agent.ElevenLabsConfig{
			APIKey:  cfg.Speech.TTSAPIKey,
			VoiceID: cfg.Speech.TTSVoiceID,
			BaseURL: cfg.Speech.TTSBaseURL,
			Timeout: cfg.Speech.TTSTimeout,
		})
	}

	a.service = consultation.NewService(consultation.NewMemoryRepository(), oracle, svcOpts)
	a.questionnaire = consultation.NewQuestionnaire(oracle, svcOpts)
	return a, nil
}
