package consultation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultReportTimeout = 2 * time.Minute

type StartResult struct {
	SessionID     string          `json:"session_id"`
	FirstQuestion Question        `json:"first_question"`
	Confidence    ConfidenceScore `json:"confidence_score"`
}

type TurnResult struct {
	SessionID      string          `json:"session_id"`
	Question       *Question       `json:"question"`
	Confidence     ConfidenceScore `json:"confidence_score"`
	IsComplete     bool            `json:"is_complete"`
	Recommendation *Recommendation `json:"doctor_recommendation,omitempty"`
	Summary        *string         `json:"summary_for_doctor,omitempty"`
	History        []Turn          `json:"conversation_history"`
}

// Service is the interview state machine.
type Service interface {
	Start(ctx context.Context, condition string) (*StartResult, error)
	SubmitAnswer(ctx context.Context, sessionID, answer string) (*TurnResult, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	Reap(ctx context.Context, maxAge time.Duration) (int, error)
}

type Options struct {
	Policy Policy
	Search SearchOptions
	// Retriever and Reporter are optional.
	Retriever     Retriever
	Reporter      Reporter
	ReportTimeout time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

type service struct {
	repo       Repository
	confidence *ConfidenceModel
	planner    *QuestionPlanner
	assessor   *SatisfactionAssessor
	finalizer  *Finalizer
	reporter   Reporter
	policy     Policy

	reportTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(repo Repository, oracle Oracle, opts Options) Service {
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReportTimeout <= 0 {
		opts.ReportTimeout = defaultReportTimeout
	}
	return &service{
		repo:          repo,
		confidence:    NewConfidenceModel(oracle, opts.Logger),
		planner:       NewQuestionPlanner(oracle, opts.Logger),
		assessor:      NewSatisfactionAssessor(oracle, opts.Logger),
		finalizer:     NewFinalizer(oracle, opts.Retriever, opts.Search, opts.Logger),
		reporter:      opts.Reporter,
		policy:        opts.Policy,
		reportTimeout: opts.ReportTimeout,
		logger:        opts.Logger.With("component", "session"),
		now:           opts.Now,
	}
}

func (s *service) Start(ctx context.Context, condition string) (*StartResult, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return nil, ErrEmptyCondition
	}

	conf := s.confidence.Initial(ctx, condition)
	leading := conf.Leading()
	first := s.planner.Next(ctx, condition, nil, conf, leading)

	now := s.now()
	sess := &Session{
		ID:               uuid.NewString(),
		InitialCondition: condition,
		History:          []Turn{},
		Pending:          &first,
		Confidence:       conf,
		Leading:          leading,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.InfoContext(ctx, "session started", "session_id", sess.ID, "confidence", conf.Overall, "leading", leading)
	return &StartResult{
		SessionID:     sess.ID,
		FirstQuestion: first.clone(),
		Confidence:    conf.clone(),
	}, nil
}

func (s *service) SubmitAnswer(ctx context.Context, sessionID, answer string) (*TurnResult, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.IsComplete {
		return nil, ErrSessionComplete
	}
	if sess.Pending == nil {
		return nil, ErrNoPendingQuestion
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, ErrEmptyAnswer
	}

	now := s.now()
	turn := Turn{Question: sess.Pending.Text, Answer: answer, AnsweredAt: now}
	conf := s.confidence.Update(ctx, sess.InitialCondition, sess.History, turn)

	sess.History = append(sess.History, turn)
	sess.Pending = nil
	sess.Confidence = conf
	sess.Leading = conf.Leading()
	sess.UpdatedAt = now

	decision := s.policy.Decide(ctx, sess, s.assessor.Assess)
	s.logger.InfoContext(ctx, "turn evaluated",
		"session_id", sess.ID,
		"answered", sess.AnsweredTurns(),
		"confidence", conf.Overall,
		"leading", sess.Leading,
		"stop", decision.Stop,
		"reason", decision.Reason,
	)

	if decision.Stop {
		return s.complete(ctx, sess)
	}

	next := s.planner.Next(ctx, sess.InitialCondition, sess.History, conf, sess.Leading)
	sess.Pending = &next
	if err := s.commit(ctx, sess); err != nil {
		return nil, err
	}

	q := next.clone()
	return &TurnResult{
		SessionID:  sess.ID,
		Question:   &q,
		Confidence: conf.clone(),
		History:    sess.Transcript(),
	}, nil
}

func (s *service) complete(ctx context.Context, sess *Session) (*TurnResult, error) {
	rec, summary := s.finalizer.Finalize(ctx, sess)
	sess.IsComplete = true
	sess.Recommendation = &rec
	sess.Summary = summary
	if err := s.commit(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "session completed", "session_id", sess.ID, "confidence", sess.Confidence.Overall, "recommendation", rec.Specialist)
	s.dispatchReport(ctx, sess.Clone())

	r := rec
	return &TurnResult{
		SessionID:      sess.ID,
		Confidence:     sess.Confidence.clone(),
		IsComplete:     true,
		Recommendation: &r,
		Summary:        &summary,
		History:        sess.Transcript(),
	}, nil
}

// commit writes a turn back. A session reaped while the turn was in flight
// stays gone.
func (s *service) commit(ctx context.Context, sess *Session) error {
	if err := s.repo.Update(ctx, sess); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			s.logger.WarnContext(ctx, "session expired during turn", "session_id", sess.ID)
			return fmt.Errorf("session %s: %w", sess.ID, ErrSessionNotFound)
		}
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// dispatchReport hands the completed session to the reporter in the background.
// The turn response never waits for or depends on it.
func (s *service) dispatchReport(ctx context.Context, sess *Session) {
	if s.reporter == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.reportTimeout)
		defer cancel()
		if err := s.reporter.SendReferral(ctx, *sess); err != nil {
			s.logger.ErrorContext(ctx, "referral report failed", "session_id", sess.ID, "error", err)
			return
		}
		s.logger.InfoContext(ctx, "referral report sent", "session_id", sess.ID)
	}()
}

func (s *service) Get(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return sess, nil
}

// Reap removes sessions idle for longer than maxAge. It is meant to be driven
// by an external scheduler.
func (s *service) Reap(ctx context.Context, maxAge time.Duration) (int, error) {
	removed, err := s.repo.DeleteUpdatedBefore(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("reap sessions: %w", err)
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "expired sessions removed", "count", removed)
	}
	return removed, nil
}
