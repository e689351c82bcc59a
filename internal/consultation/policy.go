package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Policy decides after every answered turn whether to keep questioning.
type Policy struct {
	MinQuestions          int
	MaxQuestions          int
	SatisfactionThreshold float64
	MinConfidence         float64
	HighConfidence        float64
}

func DefaultPolicy() Policy {
	return Policy{
		MinQuestions:          3,
		MaxQuestions:          8,
		SatisfactionThreshold: 0.8,
		MinConfidence:         0.75,
		HighConfidence:        0.9,
	}
}

func (p Policy) Validate() error {
	if p.MinQuestions < 1 {
		return errors.New("min questions must be at least 1")
	}
	if p.MaxQuestions < p.MinQuestions {
		return fmt.Errorf("max questions (%d) must not be below min questions (%d)", p.MaxQuestions, p.MinQuestions)
	}
	for name, v := range map[string]float64{
		"satisfaction threshold": p.SatisfactionThreshold,
		"min confidence":         p.MinConfidence,
		"high confidence":        p.HighConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
		}
	}
	return nil
}

type Decision struct {
	Stop   bool
	Reason string
}

// Decide applies the floor, then the ceiling, then the judgment tier. assess is
// only consulted between the two bounds.
func (p Policy) Decide(ctx context.Context, s *Session, assess func(context.Context, *Session) Assessment) Decision {
	n := s.AnsweredTurns()
	if n < p.MinQuestions {
		return Decision{Reason: fmt.Sprintf("only %d/%d questions answered", n, p.MinQuestions)}
	}
	if n >= p.MaxQuestions {
		return Decision{Stop: true, Reason: fmt.Sprintf("reached question limit (%d)", p.MaxQuestions)}
	}

	a := assess(ctx, s)
	if a.Degraded {
		if s.Confidence.Overall >= p.MinConfidence {
			return Decision{Stop: true, Reason: fmt.Sprintf("assessment unavailable, confidence %.2f sufficient", s.Confidence.Overall)}
		}
		return Decision{Reason: "assessment unavailable, confidence below threshold"}
	}
	if a.Satisfied && a.Score >= p.SatisfactionThreshold {
		return Decision{Stop: true, Reason: fmt.Sprintf("satisfied (score %.2f): %s", a.Score, a.Reasoning)}
	}
	if s.Confidence.Overall >= p.MinConfidence && s.Confidence.Top() >= p.HighConfidence {
		return Decision{Stop: true, Reason: fmt.Sprintf("high confidence in %s (%.2f)", s.Leading, s.Confidence.Top())}
	}
	reason := fmt.Sprintf("satisfaction %.2f, confidence %.2f", a.Score, s.Confidence.Overall)
	if len(a.Gaps) > 0 {
		reason += "; missing: " + strings.Join(a.Gaps, ", ")
	}
	return Decision{Reason: reason}
}
