package consultation

import (
	"strings"
	"time"
)

// Specialist is one of the four eye-care provider types a patient can be routed to.
type Specialist string

const (
	Ophthalmologist Specialist = "Ophthalmologist"
	Optometrist     Specialist = "Optometrist"
	Optician        Specialist = "Optician"
	OcularSurgeon   Specialist = "Ocular Surgeon"
)

// Specialists is the canonical ordering. Ties are broken by position in this slice.
var Specialists = []Specialist{Ophthalmologist, Optometrist, Optician, OcularSurgeon}

func (s Specialist) Valid() bool {
	switch s {
	case Ophthalmologist, Optometrist, Optician, OcularSurgeon:
		return true
	default:
		return false
	}
}

func (s Specialist) Description() string {
	switch s {
	case Ophthalmologist:
		return "General eye doctor for diagnosis, surgery, and disease management"
	case Optometrist:
		return "Eye examination, vision correction, prescription of glasses/contact lenses"
	case Optician:
		return "Fits and dispenses glasses or contact lenses"
	case OcularSurgeon:
		return "Specialist in surgical procedures for eye conditions"
	default:
		return ""
	}
}

// NormalizeSpecialist maps loosely worded names ("an ophthalmologist",
// "eye surgeon") onto the canonical values. ok is false when nothing matches.
func NormalizeSpecialist(name string) (Specialist, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	switch {
	case cleaned == "":
		return "", false
	case strings.Contains(cleaned, "ophthalmologist"):
		return Ophthalmologist, true
	case strings.Contains(cleaned, "optometrist"):
		return Optometrist, true
	case strings.Contains(cleaned, "optician"):
		return Optician, true
	case strings.Contains(cleaned, "surgeon"), strings.Contains(cleaned, "surgical"):
		return OcularSurgeon, true
	default:
		return "", false
	}
}

// ConfidenceScore is the belief state over specialists. Overall is an
// independent "how sure are we" signal and is not derived from PerSpecialist.
type ConfidenceScore struct {
	Overall       float64                `json:"overall_confidence"`
	PerSpecialist map[Specialist]float64 `json:"doctor_confidence"`
	Reasoning     string                 `json:"reasoning"`
}

// Leading returns the specialist with the highest weight.
func (c ConfidenceScore) Leading() Specialist {
	best := Specialists[0]
	bestScore := -1.0
	for _, s := range Specialists {
		if v, ok := c.PerSpecialist[s]; ok && v > bestScore {
			best, bestScore = s, v
		}
	}
	return best
}

// Top returns the highest per-specialist weight.
func (c ConfidenceScore) Top() float64 {
	return c.PerSpecialist[c.Leading()]
}

func (c ConfidenceScore) clone() ConfidenceScore {
	out := c
	out.PerSpecialist = make(map[Specialist]float64, len(c.PerSpecialist))
	for k, v := range c.PerSpecialist {
		out.PerSpecialist[k] = v
	}
	return out
}

type Option struct {
	Text    string `json:"text"`
	IsOther bool   `json:"is_other"`
}

// Question is a multiple-choice prompt. Exactly one option is the free-text escape hatch.
type Question struct {
	Text    string   `json:"question"`
	Options []Option `json:"options"`
}

func (q Question) clone() Question {
	q.Options = append([]Option(nil), q.Options...)
	return q
}

// Turn is one answered exchange of the transcript.
type Turn struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	AnsweredAt time.Time `json:"timestamp"`
}

type Recommendation struct {
	Specialist Specialist `json:"doctor_type"`
	Reasoning  string     `json:"reasoning"`
}

// Session represents the aggregate root of one intake interview.
type Session struct {
	ID               string          `json:"session_id"`
	InitialCondition string          `json:"initial_condition"`
	History          []Turn          `json:"history"`
	Pending          *Question       `json:"pending_question,omitempty"`
	Confidence       ConfidenceScore `json:"confidence"`
	Leading          Specialist      `json:"leading_specialist"`

	// Set once on completion.
	IsComplete     bool            `json:"is_complete"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Summary        string          `json:"summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AnsweredTurns is the number of completed exchanges.
func (s *Session) AnsweredTurns() int {
	return len(s.History)
}

// Transcript returns the history with the pending question, if any, appended
// as an entry with an empty answer.
func (s *Session) Transcript() []Turn {
	out := make([]Turn, 0, len(s.History)+1)
	out = append(out, s.History...)
	if s.Pending != nil {
		out = append(out, Turn{Question: s.Pending.Text})
	}
	return out
}

// Clone returns a deep copy so store snapshots never share mutable state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.History = make([]Turn, len(s.History))
	copy(out.History, s.History)
	out.Confidence = s.Confidence.clone()
	if s.Pending != nil {
		q := s.Pending.clone()
		out.Pending = &q
	}
	if s.Recommendation != nil {
		r := *s.Recommendation
		out.Recommendation = &r
	}
	return &out
}
