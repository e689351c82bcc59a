package consultation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"eyecare-intake/internal/platform/llmjson"
)

const (
	keywordIncrement  = 0.15
	initialKeywordW   = 0.3
	initialOracleW    = 0.7
	confidenceCeiling = 0.7
	qualityScale      = 0.6
)

var specialistKeywords = map[Specialist][]string{
	Ophthalmologist: {
		"infection", "disease", "serious", "medical", "treatment", "diagnosis",
		"severe", "complications", "medication", "urgent", "red eye", "discharge", "pain",
	},
	Optometrist: {
		"blurry", "vision", "glasses", "contacts", "prescription", "reading",
		"distance", "eye strain", "headache", "focus", "clarity",
	},
	Optician: {
		"fitting", "adjustment", "frame", "lens", "broken", "repair",
		"comfort", "size", "style", "dispense",
	},
	OcularSurgeon: {
		"surgery", "surgical", "operation", "cataract", "retinal", "tumor",
		"emergency", "trauma", "injury", "severe damage",
	},
}

var qualityIndicators = []string{
	"severe", "mild", "moderate", "sudden", "gradual", "days", "weeks", "months",
	"pain", "burning", "itching", "discharge", "swelling", "redness",
	"vision", "blurry", "clear", "double", "loss", "improvement",
	"medication", "surgery", "injury", "trauma", "family history",
}

var vagueMarkers = []string{"other", "maybe", "not sure", "don't know", "unclear"}

var errNoConfidenceData = errors.New("reply carries no confidence data")

// ConfidenceModel blends deterministic keyword evidence with the oracle's judgment.
type ConfidenceModel struct {
	oracle Oracle
	logger *slog.Logger
}

func NewConfidenceModel(oracle Oracle, logger *slog.Logger) *ConfidenceModel {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfidenceModel{oracle: oracle, logger: logger.With("component", "confidence")}
}

// Initial scores the initial complaint alone.
func (m *ConfidenceModel) Initial(ctx context.Context, condition string) ConfidenceScore {
	keyword := KeywordScore(condition)
	judged, err := m.ask(ctx, condition, nil)
	if err != nil {
		m.logger.WarnContext(ctx, "oracle confidence unavailable, blending with fallback", "error", err)
		judged = fallbackConfidence("Fallback due to oracle analysis error")
	}
	return blend(keyword, judged, initialKeywordW, initialOracleW)
}

// Update rescores the whole transcript after latest was answered. prior holds
// the turns answered before it.
func (m *ConfidenceModel) Update(ctx context.Context, condition string, prior []Turn, latest Turn) ConfidenceScore {
	turns := make([]Turn, 0, len(prior)+1)
	turns = append(turns, prior...)
	turns = append(turns, latest)

	judged, err := m.ask(ctx, condition, turns)
	if err != nil {
		m.logger.WarnContext(ctx, "oracle confidence unavailable, using fallback distribution", "error", err)
		return fallbackConfidence("Fallback confidence after processing answer")
	}

	length := len(turns)
	keywordW := math.Max(0.1, 0.4-0.05*float64(length))
	combined := blend(KeywordScore(transcriptText(condition, turns)), judged, keywordW, 1-keywordW)

	boost := lengthBoost(length) + InformationQuality(latest.Answer, prior)*qualityScale
	combined.Overall = math.Min(confidenceCeiling, math.Max(0, combined.Overall+boost))
	return combined
}

func (m *ConfidenceModel) ask(ctx context.Context, condition string, turns []Turn) (ConfidenceScore, error) {
	raw, err := m.oracle.Complete(ctx, Prompt{
		Task:        TaskConfidence,
		Text:        confidencePrompt(condition, turns),
		Temperature: 0.2,
	})
	if err != nil {
		return ConfidenceScore{}, fmt.Errorf("complete: %w", err)
	}
	return parseConfidence(raw)
}

type confidenceReply struct {
	Overall   llmjson.Number            `json:"overall_confidence"`
	Doctors   map[string]llmjson.Number `json:"doctor_confidence"`
	Reasoning string                    `json:"reasoning"`
}

func parseConfidence(raw string) (ConfidenceScore, error) {
	var reply confidenceReply
	if err := llmjson.Decode(raw, &reply); err != nil {
		return ConfidenceScore{}, err
	}

	per := make(map[Specialist]float64, len(Specialists))
	for name, v := range reply.Doctors {
		s, ok := NormalizeSpecialist(name)
		if !ok || !v.Set {
			continue
		}
		per[s] = math.Max(per[s], llmjson.Clamp01(v.Value))
	}
	if len(per) == 0 && !reply.Overall.Set {
		return ConfidenceScore{}, &llmjson.ParseError{Reason: "validate confidence", Raw: raw, Err: errNoConfidenceData}
	}
	for _, s := range Specialists {
		if _, ok := per[s]; !ok {
			per[s] = 0.25
		}
	}

	reasoning := strings.TrimSpace(reply.Reasoning)
	if reasoning == "" {
		reasoning = "AI-based medical analysis"
	}
	return ConfidenceScore{
		Overall:       llmjson.Clamp01(reply.Overall.Or(0.5)),
		PerSpecialist: normalize(per),
		Reasoning:     reasoning,
	}, nil
}

// KeywordScore scores text against the fixed per-specialist keyword sets.
func KeywordScore(text string) ConfidenceScore {
	lower := strings.ToLower(text)
	raw := make(map[Specialist]float64, len(Specialists))
	for _, s := range Specialists {
		score := 0.0
		for _, kw := range specialistKeywords[s] {
			if strings.Contains(lower, kw) {
				score += keywordIncrement
			}
		}
		raw[s] = math.Min(1, score)
	}

	per := normalize(raw)
	overall := 0.0
	for _, v := range per {
		overall = math.Max(overall, v)
	}
	return ConfidenceScore{
		Overall:       overall,
		PerSpecialist: per,
		Reasoning:     "Keyword-based confidence analysis",
	}
}

// InformationQuality rates how diagnostically useful the latest answer and the
// two answers before it are. The result lies in [0, 0.1].
func InformationQuality(latest string, prior []Turn) float64 {
	answers := []string{latest}
	for i := len(prior) - 1; i >= 0 && len(answers) < 3; i-- {
		if prior[i].Answer != "" {
			answers = append(answers, prior[i].Answer)
		}
	}

	score := 0.0
	for _, a := range answers {
		if a == "" {
			continue
		}
		lower := strings.ToLower(a)
		if len(strings.Fields(a)) > 3 {
			score += 0.02
		}
		for _, ind := range qualityIndicators {
			if strings.Contains(lower, ind) {
				score += 0.01
			}
		}
		for _, v := range vagueMarkers {
			if strings.Contains(lower, v) {
				score -= 0.01
			}
		}
	}
	return math.Max(0, math.Min(0.1, score))
}

func lengthBoost(length int) float64 {
	if length <= 3 {
		return math.Min(0.08, 0.03*float64(length))
	}
	return 0.09 + math.Min(0.06, 0.015*float64(length-3))
}

// blend is a per-specialist weighted average plus a weighted average of Overall.
func blend(a, b ConfidenceScore, wa, wb float64) ConfidenceScore {
	total := wa + wb
	if total <= 0 {
		wa, wb = 0.5, 0.5
	} else {
		wa, wb = wa/total, wb/total
	}

	per := make(map[Specialist]float64, len(Specialists))
	for _, s := range Specialists {
		per[s] = a.PerSpecialist[s]*wa + b.PerSpecialist[s]*wb
	}
	return ConfidenceScore{
		Overall:       a.Overall*wa + b.Overall*wb,
		PerSpecialist: per,
		Reasoning:     fmt.Sprintf("Combined analysis (weights: %.2f/%.2f) - %s + %s", wa, wb, a.Reasoning, b.Reasoning),
	}
}

// normalize rescales weights to sum to 1, or returns the uniform distribution.
func normalize(in map[Specialist]float64) map[Specialist]float64 {
	total := 0.0
	for _, s := range Specialists {
		total += in[s]
	}
	out := make(map[Specialist]float64, len(Specialists))
	for _, s := range Specialists {
		if total > 0 {
			out[s] = in[s] / total
		} else {
			out[s] = 1 / float64(len(Specialists))
		}
	}
	return out
}

func fallbackConfidence(reason string) ConfidenceScore {
	return ConfidenceScore{
		Overall: 0.5,
		PerSpecialist: map[Specialist]float64{
			Ophthalmologist: 0.4,
			Optometrist:     0.3,
			Optician:        0.2,
			OcularSurgeon:   0.1,
		},
		Reasoning: reason,
	}
}
