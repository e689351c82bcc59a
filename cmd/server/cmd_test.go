package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eyecare-intake/internal/config"
	"eyecare-intake/internal/consultation"
)

var colorQuestion = consultation.Question{
	Text: "What color is the discharge?",
	Options: []consultation.Option{
		{Text: "Clear"},
		{Text: "Yellow"},
		{Text: "Other", IsOther: true},
	},
}

func TestResolveAnswer(t *testing.T) {
	tests := []struct {
		input     string
		want      string
		needsText bool
	}{
		{"2", "Yellow", false},
		{" 1 ", "Clear", false},
		{"3", "", true},
		{"4", "4", false},
		{"greenish", "greenish", false},
	}
	for _, tt := range tests {
		got, needsText := resolveAnswer(colorQuestion, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
		assert.Equal(t, tt.needsText, needsText, tt.input)
	}
}

// stubService finishes after two answers.
type stubService struct {
	answers []string
}

func (s *stubService) Start(_ context.Context, condition string) (*consultation.StartResult, error) {
	if strings.TrimSpace(condition) == "" {
		return nil, consultation.ErrEmptyCondition
	}
	return &consultation.StartResult{SessionID: "s-1", FirstQuestion: colorQuestion}, nil
}

func (s *stubService) SubmitAnswer(_ context.Context, _ string, answer string) (*consultation.TurnResult, error) {
	s.answers = append(s.answers, answer)
	if len(s.answers) < 2 {
		q := colorQuestion
		return &consultation.TurnResult{SessionID: "s-1", Question: &q}, nil
	}
	summary := "Yellow discharge."
	return &consultation.TurnResult{
		SessionID:      "s-1",
		IsComplete:     true,
		Confidence:     consultation.ConfidenceScore{Overall: 0.7},
		Recommendation: &consultation.Recommendation{Specialist: consultation.Ophthalmologist, Reasoning: "infection"},
		Summary:        &summary,
	}, nil
}

func (s *stubService) Get(_ context.Context, id string) (*consultation.Session, error) {
	if id != "s-1" {
		return nil, consultation.ErrSessionNotFound
	}
	return &consultation.Session{ID: id}, nil
}

func (s *stubService) Reap(context.Context, time.Duration) (int, error) { return 0, nil }

func TestRunInterview(t *testing.T) {
	svc := &stubService{}
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetIn(strings.NewReader("red eye\n2\n3\nlike pus\n"))
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, runInterview(cmd, svc))

	assert.Equal(t, []string{"Yellow", "like pus"}, svc.answers)
	assert.Contains(t, out.String(), "  3. Other")
	assert.Contains(t, out.String(), "Recommended specialist: Ophthalmologist")
	assert.Contains(t, out.String(), "Yellow discharge.")
}

func TestRunInterviewStopsAtEOF(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetIn(strings.NewReader("red eye\n"))
	cmd.SetOut(&bytes.Buffer{})

	assert.NoError(t, runInterview(cmd, &stubService{}))
}

func TestHealth(t *testing.T) {
	a := &app{cfg: &config.Config{LLM: config.LLM{APIKey: "k"}}}
	rec := httptest.NewRecorder()
	healthHandler(a)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body struct {
		Status   string          `json:"status"`
		Version  string          `json:"version"`
		Services map[string]bool `json:"services"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, version, body.Version)
	assert.True(t, body.Services["llm"])
	assert.False(t, body.Services["knowledge"])
	assert.False(t, body.Services["tts"])
}

func TestToolResult(t *testing.T) {
	res, err := toolResult(&consultation.Session{ID: "s-1"}, nil)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, `"session_id": "s-1"`)

	res, err = toolResult[*consultation.Session](nil, errors.New("session not found"))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
