package consultation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"eyecare-intake/internal/platform/llmjson"
)

const maxContextPassages = 3

// Finalizer produces the closing recommendation and clinical summary.
type Finalizer struct {
	oracle    Oracle
	retriever Retriever
	search    SearchOptions
	logger    *slog.Logger
}

type SearchOptions struct {
	Limit     int
	Threshold float64
}

func NewFinalizer(oracle Oracle, retriever Retriever, search SearchOptions, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if search.Limit <= 0 {
		search.Limit = 5
	}
	return &Finalizer{oracle: oracle, retriever: retriever, search: search, logger: logger.With("component", "finalizer")}
}

// Conclusion is everything the finalizer produced for one session.
type Conclusion struct {
	Recommendation Recommendation
	Summary        string
	Context        []Passage
}

// Finalize never fails. Each of the two oracle calls has its own fallback
// built from the leading specialist and the initial condition.
func (f *Finalizer) Finalize(ctx context.Context, s *Session) (Recommendation, string) {
	c := f.Conclude(ctx, s)
	return c.Recommendation, c.Summary
}

// Conclude is Finalize plus the reference passages the summary was written with.
func (f *Finalizer) Conclude(ctx context.Context, s *Session) Conclusion {
	passages := f.reference(ctx, s)
	summary, err := f.summarize(ctx, s, passages)
	if err != nil {
		f.logger.WarnContext(ctx, "summary unavailable, using template", "session_id", s.ID, "error", err)
		summary = fallbackSummary(s)
	}

	rec, err := f.recommend(ctx, s)
	if err != nil {
		f.logger.WarnContext(ctx, "recommendation unavailable, using leading specialist", "session_id", s.ID, "error", err)
		rec = fallbackRecommendation(s)
	}
	return Conclusion{Recommendation: rec, Summary: summary, Context: passages}
}

func (f *Finalizer) summarize(ctx context.Context, s *Session, passages []Passage) (string, error) {
	raw, err := f.oracle.Complete(ctx, Prompt{
		Task:        TaskSummary,
		Text:        summaryPrompt(s, passages),
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	summary := llmjson.StripFences(raw)
	if summary == "" {
		return "", &llmjson.ParseError{Reason: "empty summary", Raw: raw}
	}
	return summary, nil
}

func (f *Finalizer) reference(ctx context.Context, s *Session) []Passage {
	if f.retriever == nil {
		return nil
	}
	passages, err := f.retriever.Search(ctx, transcriptText(s.InitialCondition, s.History), f.search.Limit, f.search.Threshold)
	if err != nil {
		f.logger.WarnContext(ctx, "knowledge search failed", "session_id", s.ID, "error", err)
		return nil
	}
	if len(passages) > maxContextPassages {
		passages = passages[:maxContextPassages]
	}
	return passages
}

type recommendationReply struct {
	DoctorType string `json:"doctor_type"`
	Reasoning  string `json:"reasoning"`
}

func (f *Finalizer) recommend(ctx context.Context, s *Session) (Recommendation, error) {
	raw, err := f.oracle.Complete(ctx, Prompt{
		Task:        TaskRecommend,
		Text:        recommendationPrompt(s),
		Temperature: 0.2,
	})
	if err != nil {
		return Recommendation{}, fmt.Errorf("complete: %w", err)
	}

	var reply recommendationReply
	if err := llmjson.Decode(raw, &reply); err != nil {
		return Recommendation{}, err
	}

	rec := Recommendation{Specialist: s.Leading, Reasoning: strings.TrimSpace(reply.Reasoning)}
	if spec, ok := NormalizeSpecialist(reply.DoctorType); ok {
		rec.Specialist = spec
	} else {
		f.logger.WarnContext(ctx, "unknown specialist in recommendation, substituting leading", "session_id", s.ID, "doctor_type", reply.DoctorType)
	}
	if rec.Reasoning == "" {
		rec.Reasoning = fmt.Sprintf("Based on consultation analysis, %s is recommended", rec.Specialist)
	}
	return rec, nil
}

func fallbackRecommendation(s *Session) Recommendation {
	return Recommendation{
		Specialist: s.Leading,
		Reasoning:  fmt.Sprintf("Based on conversation analysis, %s appears most appropriate for %s", s.Leading, s.InitialCondition),
	}
}

func fallbackSummary(s *Session) string {
	return fmt.Sprintf("Patient presents with: %s\nConversation covered %d key areas.\nRecommendation: %s",
		s.InitialCondition, len(s.History), s.Leading)
}
