package consultation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssessorParsesLooseReplies(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Assessment
	}{
		{
			name: "strict",
			raw:  satisfied,
			want: Assessment{Satisfied: true, Score: 0.9, Reasoning: "enough detail", Gaps: []string{}},
		},
		{
			name: "string fields",
			raw:  "```\n" + `{"is_satisfied": "yes", "satisfaction_score": "0.85", "reasoning": "ok"}` + "\n```",
			want: Assessment{Satisfied: true, Score: 0.85, Reasoning: "ok"},
		},
		{
			name: "score clamped and defaulted reasoning",
			raw:  `{"is_satisfied": false, "satisfaction_score": 1.4}`,
			want: Assessment{Satisfied: false, Score: 1, Reasoning: "no reasoning given"},
		},
		{
			name: "missing score",
			raw:  `{"is_satisfied": true, "reasoning": "fine"}`,
			want: Assessment{Satisfied: true, Score: 0.5, Reasoning: "fine"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewSatisfactionAssessor(newScriptedOracle().on(TaskSatisfaction, tt.raw), nil)

			got := a.Assess(context.Background(), sessionWith(3, 0.5, nil))

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssessorDegradesOnFailure(t *testing.T) {
	for _, oracle := range []*scriptedOracle{
		newScriptedOracle(),
		newScriptedOracle().on(TaskSatisfaction, "I am satisfied."),
	} {
		got := NewSatisfactionAssessor(oracle, nil).Assess(context.Background(), sessionWith(3, 0.5, nil))

		assert.False(t, got.Satisfied)
		assert.True(t, got.Degraded)
		assert.InDelta(t, 0.3, got.Score, 1e-9)
	}
}
