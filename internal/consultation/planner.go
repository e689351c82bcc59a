package consultation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"eyecare-intake/internal/platform/llmjson"
)

const (
	minOptions = 3
	maxOptions = 5
)

var errMalformedQuestion = errors.New("malformed question")

// QuestionPlanner asks the oracle for the next targeted question.
type QuestionPlanner struct {
	oracle Oracle
	logger *slog.Logger
}

func NewQuestionPlanner(oracle Oracle, logger *slog.Logger) *QuestionPlanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionPlanner{oracle: oracle, logger: logger.With("component", "planner")}
}

// Next returns one new question. It never fails: oracle errors and unusable
// output fall back to a fixed ladder keyed on how many turns were answered.
func (p *QuestionPlanner) Next(ctx context.Context, condition string, history []Turn, confidence ConfidenceScore, leading Specialist) Question {
	raw, err := p.oracle.Complete(ctx, Prompt{
		Task:        TaskQuestion,
		Text:        questionPrompt(condition, history, confidence, leading),
		Temperature: 0.4,
	})
	if err == nil {
		var q Question
		q, err = parseQuestion(raw)
		if err == nil {
			return q
		}
	}
	p.logger.WarnContext(ctx, "oracle question unavailable, using fallback ladder", "error", err, "answered", len(history))
	return FallbackQuestion(len(history))
}

type questionReply struct {
	Question string `json:"question"`
	Options  []struct {
		Text    string       `json:"text"`
		IsOther llmjson.Bool `json:"is_other"`
	} `json:"options"`
}

func parseQuestion(raw string) (Question, error) {
	var reply questionReply
	if err := llmjson.Decode(raw, &reply); err != nil {
		return Question{}, err
	}
	return reply.question()
}

func (reply questionReply) question() (Question, error) {
	q := Question{Text: strings.TrimSpace(reply.Question)}
	if q.Text == "" {
		return Question{}, fmt.Errorf("%w: empty question text", errMalformedQuestion)
	}
	others := 0
	for _, o := range reply.Options {
		text := strings.TrimSpace(o.Text)
		if text == "" {
			continue
		}
		isOther := bool(o.IsOther) || strings.EqualFold(text, "other")
		if isOther {
			others++
		}
		q.Options = append(q.Options, Option{Text: text, IsOther: isOther})
	}
	if others > 1 {
		return Question{}, fmt.Errorf("%w: %d free-text options", errMalformedQuestion, others)
	}
	if others == 0 {
		q.Options = append(q.Options, Option{Text: "Other", IsOther: true})
	}
	if n := len(q.Options); n < minOptions || n > maxOptions {
		return Question{}, fmt.Errorf("%w: %d options", errMalformedQuestion, n)
	}
	return q, nil
}

// FallbackQuestion is the deterministic ladder: severity, then timeline, then
// additional symptoms.
func FallbackQuestion(answered int) Question {
	switch {
	case answered <= 0:
		return Question{
			Text: "How would you describe the severity of your symptoms?",
			Options: []Option{
				{Text: "Mild - minimal impact on daily activities"},
				{Text: "Moderate - some impact on daily activities"},
				{Text: "Severe - significant impact on daily activities"},
				{Text: "Other", IsOther: true},
			},
		}
	case answered == 1:
		return Question{
			Text: "How long have you been experiencing these symptoms?",
			Options: []Option{
				{Text: "Less than 24 hours"},
				{Text: "1-7 days"},
				{Text: "More than a week"},
				{Text: "Other", IsOther: true},
			},
		}
	default:
		return Question{
			Text: "Are you experiencing any additional symptoms?",
			Options: []Option{
				{Text: "No additional symptoms"},
				{Text: "Pain or discomfort"},
				{Text: "Vision changes"},
				{Text: "Other", IsOther: true},
			},
		}
	}
}
