package consultation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"eyecare-intake/internal/platform/llmjson"
)

const (
	questionnaireSize    = 4
	minQuestionnaireSize = 3
	maxQuestionnaireSize = 5
)

// QuestionnaireAnswer is one answer to a question handed out by Questions.
type QuestionnaireAnswer struct {
	QuestionIndex  int    `json:"question_index"`
	Question       string `json:"question,omitempty"`
	SelectedOption string `json:"selected_option,omitempty"`
	CustomAnswer   string `json:"custom_answer,omitempty"`
}

// Text prefers the free-text answer over the picked option.
func (a QuestionnaireAnswer) Text() string {
	if custom := strings.TrimSpace(a.CustomAnswer); custom != "" {
		return custom
	}
	return strings.TrimSpace(a.SelectedOption)
}

type QuestionnaireResult struct {
	Recommendation Recommendation  `json:"doctor"`
	Summary        string          `json:"summary_for_doctor"`
	Confidence     ConfidenceScore `json:"confidence_score"`
	Context        []Passage       `json:"knowledge_context"`
}

// Questionnaire is the one-shot flow: a fixed list of questions up front and a
// single assessment once every answer is in. Nothing is stored.
type Questionnaire struct {
	oracle     Oracle
	confidence *ConfidenceModel
	finalizer  *Finalizer
	logger     *slog.Logger
}

// NewQuestionnaire reads Search, Retriever and Logger from opts.
func NewQuestionnaire(oracle Oracle, opts Options) *Questionnaire {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Questionnaire{
		oracle:     oracle,
		confidence: NewConfidenceModel(oracle, opts.Logger),
		finalizer:  NewFinalizer(oracle, opts.Retriever, opts.Search, opts.Logger),
		logger:     opts.Logger.With("component", "questionnaire"),
	}
}

// Questions returns three to five questions for condition. Oracle failures fall
// back to the fixed ladder; a short list is topped up from it.
func (q *Questionnaire) Questions(ctx context.Context, condition string) ([]Question, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return nil, ErrEmptyCondition
	}

	raw, err := q.oracle.Complete(ctx, Prompt{
		Task:        TaskQuestions,
		Text:        questionListPrompt(condition, questionnaireSize),
		Temperature: 0.4,
	})
	var questions []Question
	if err == nil {
		questions, err = parseQuestionList(raw)
	}
	if err != nil {
		q.logger.WarnContext(ctx, "oracle questionnaire unavailable, using fallback ladder", "error", err)
	}

	questions = topUp(questions)
	q.logger.InfoContext(ctx, "questionnaire generated", "questions", len(questions))
	return questions, nil
}

type questionListReply struct {
	Questions []questionReply `json:"questions"`
}

// parseQuestionList keeps every well-formed, distinct question, up to the maximum.
func parseQuestionList(raw string) ([]Question, error) {
	var reply questionListReply
	if err := llmjson.Decode(raw, &reply); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(reply.Questions))
	var out []Question
	for _, r := range reply.Questions {
		q, err := r.question()
		if err != nil {
			continue
		}
		key := strings.ToLower(q.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) == maxQuestionnaireSize {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no usable questions in list", errMalformedQuestion)
	}
	return out, nil
}

func topUp(questions []Question) []Question {
	seen := make(map[string]bool, len(questions))
	for _, q := range questions {
		seen[strings.ToLower(q.Text)] = true
	}
	// The ladder has exactly minQuestionnaireSize distinct rungs.
	for step := 0; step < minQuestionnaireSize && len(questions) < minQuestionnaireSize; step++ {
		fb := FallbackQuestion(step)
		if key := strings.ToLower(fb.Text); !seen[key] {
			seen[key] = true
			questions = append(questions, fb)
		}
	}
	return questions
}

// Assess scores the complete set of answers and produces the recommendation,
// the doctor's summary and the reference passages used.
func (q *Questionnaire) Assess(ctx context.Context, condition string, answers []QuestionnaireAnswer) (*QuestionnaireResult, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return nil, ErrEmptyCondition
	}

	ordered := append([]QuestionnaireAnswer(nil), answers...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].QuestionIndex < ordered[j].QuestionIndex })

	turns := make([]Turn, 0, len(ordered))
	for _, a := range ordered {
		text := a.Text()
		if text == "" {
			continue
		}
		question := strings.TrimSpace(a.Question)
		if question == "" {
			question = fmt.Sprintf("Question %d", a.QuestionIndex+1)
		}
		turns = append(turns, Turn{Question: question, Answer: text})
	}

	var conf ConfidenceScore
	if n := len(turns); n == 0 {
		conf = q.confidence.Initial(ctx, condition)
	} else {
		conf = q.confidence.Update(ctx, condition, turns[:n-1], turns[n-1])
	}

	sess := &Session{
		ID:               uuid.NewString(),
		InitialCondition: condition,
		History:          turns,
		Confidence:       conf,
		Leading:          conf.Leading(),
		IsComplete:       true,
	}
	c := q.finalizer.Conclude(ctx, sess)
	q.logger.InfoContext(ctx, "questionnaire assessed",
		"session_id", sess.ID,
		"answers", len(turns),
		"confidence", conf.Overall,
		"recommendation", c.Recommendation.Specialist,
		"passages", len(c.Context),
	)

	passages := c.Context
	if passages == nil {
		passages = []Passage{}
	}
	return &QuestionnaireResult{
		Recommendation: c.Recommendation,
		Summary:        c.Summary,
		Confidence:     conf.clone(),
		Context:        passages,
	}, nil
}
