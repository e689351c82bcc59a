package consultation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSpecialist(t *testing.T) {
	tests := []struct {
		in   string
		want Specialist
		ok   bool
	}{
		{"Ophthalmologist", Ophthalmologist, true},
		{"  an OPTOMETRIST ", Optometrist, true},
		{"Optician", Optician, true},
		{"Ocular Surgeon", OcularSurgeon, true},
		{"eye surgeon", OcularSurgeon, true},
		{"surgical specialist", OcularSurgeon, true},
		{"dermatologist", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeSpecialist(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLeadingBreaksTiesByCanonicalOrder(t *testing.T) {
	even := ConfidenceScore{PerSpecialist: map[Specialist]float64{
		Ophthalmologist: 0.25, Optometrist: 0.25, Optician: 0.25, OcularSurgeon: 0.25,
	}}
	assert.Equal(t, Ophthalmologist, even.Leading())

	tied := ConfidenceScore{PerSpecialist: map[Specialist]float64{
		Ophthalmologist: 0.1, Optometrist: 0.1, Optician: 0.4, OcularSurgeon: 0.4,
	}}
	assert.Equal(t, Optician, tied.Leading())
	assert.InDelta(t, 0.4, tied.Top(), 1e-9)
}

func TestSessionCloneIsDeep(t *testing.T) {
	s := &Session{
		ID:             "s-1",
		History:        []Turn{{Question: "q1", Answer: "a1"}},
		Pending:        &Question{Text: "q2", Options: []Option{{Text: "x"}}},
		Confidence:     ConfidenceScore{PerSpecialist: map[Specialist]float64{Optician: 1}},
		Recommendation: &Recommendation{Specialist: Optician},
	}

	c := s.Clone()
	require.Equal(t, s, c)

	c.History[0].Answer = "changed"
	c.Pending.Options[0].Text = "changed"
	c.Confidence.PerSpecialist[Optician] = 0
	c.Recommendation.Specialist = Optometrist

	assert.Equal(t, "a1", s.History[0].Answer)
	assert.Equal(t, "x", s.Pending.Options[0].Text)
	assert.InDelta(t, 1.0, s.Confidence.PerSpecialist[Optician], 1e-9)
	assert.Equal(t, Optician, s.Recommendation.Specialist)
}

func TestTranscriptAppendsPendingQuestion(t *testing.T) {
	s := &Session{History: []Turn{{Question: "q1", Answer: "a1"}}}
	assert.Len(t, s.Transcript(), 1)

	s.Pending = &Question{Text: "q2"}
	got := s.Transcript()
	require.Len(t, got, 2)
	assert.Equal(t, Turn{Question: "q2"}, got[1])
	assert.Equal(t, 1, s.AnsweredTurns())
}

func TestSessionCloneKeepsEmptyHistory(t *testing.T) {
	s := &Session{ID: "s-1", History: []Turn{}, Pending: &Question{Text: "q1"}}

	c := s.Clone()
	require.NotNil(t, c.History)
	assert.Empty(t, c.History)

	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"history":[]`)
}
