package consultation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"eyecare-intake/internal/platform/llmjson"
)

// Assessment is the oracle's verdict on whether questioning can stop.
type Assessment struct {
	Satisfied bool
	Reasoning string
	Score     float64
	Gaps      []string
	// Degraded marks the fallback verdict returned when the oracle could not be used.
	Degraded bool
}

func unavailableAssessment() Assessment {
	return Assessment{Satisfied: false, Reasoning: "assessment unavailable", Score: 0.3, Degraded: true}
}

type SatisfactionAssessor struct {
	oracle Oracle
	logger *slog.Logger
}

func NewSatisfactionAssessor(oracle Oracle, logger *slog.Logger) *SatisfactionAssessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SatisfactionAssessor{oracle: oracle, logger: logger.With("component", "assessor")}
}

// Assess never fails; on any error it returns a "not satisfied" verdict with Degraded set.
func (a *SatisfactionAssessor) Assess(ctx context.Context, s *Session) Assessment {
	res, err := a.assess(ctx, s)
	if err != nil {
		a.logger.WarnContext(ctx, "satisfaction assessment unavailable", "session_id", s.ID, "error", err)
		return unavailableAssessment()
	}
	a.logger.DebugContext(ctx, "satisfaction assessed", "session_id", s.ID, "satisfied", res.Satisfied, "score", res.Score, "gaps", res.Gaps)
	return res
}

type satisfactionReply struct {
	Satisfied llmjson.Bool   `json:"is_satisfied"`
	Score     llmjson.Number `json:"satisfaction_score"`
	Reasoning string         `json:"reasoning"`
	Gaps      []string       `json:"information_gaps"`
}

func (a *SatisfactionAssessor) assess(ctx context.Context, s *Session) (Assessment, error) {
	raw, err := a.oracle.Complete(ctx, Prompt{
		Task:        TaskSatisfaction,
		Text:        satisfactionPrompt(s),
		Temperature: 0.2,
	})
	if err != nil {
		return Assessment{}, fmt.Errorf("complete: %w", err)
	}

	var reply satisfactionReply
	if err := llmjson.Decode(raw, &reply); err != nil {
		return Assessment{}, err
	}
	reasoning := strings.TrimSpace(reply.Reasoning)
	if reasoning == "" {
		reasoning = "no reasoning given"
	}
	return Assessment{
		Satisfied: bool(reply.Satisfied),
		Reasoning: reasoning,
		Score:     llmjson.Clamp01(reply.Score.Or(0.5)),
		Gaps:      reply.Gaps,
	}, nil
}
