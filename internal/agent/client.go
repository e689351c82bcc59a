package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"eyecare-intake/internal/consultation"
)

const systemPrompt = "You are a careful medical intake assistant for eye care. Follow the requested output format exactly and never use markdown."

var ErrEmptyCompletion = errors.New("empty completion")

// Config selects an OpenAI-compatible endpoint. DeepSeek is the default target.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// NewDeepSeekClient returns the reasoning oracle used by the consultation flow.
func NewDeepSeekClient(cfg Config) consultation.Oracle {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	return &client{
		api:     openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// Complete sends a single-turn chat completion. Every call is bounded by the
// configured timeout.
func (c *client) Complete(ctx context.Context, p consultation.Prompt) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: p.Text},
		},
		Temperature: p.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", p.Task, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%s completion: %w", p.Task, ErrEmptyCompletion)
	}
	return resp.Choices[0].Message.Content, nil
}
