package consultation

import (
	"context"
	"errors"
	"sync"
)

var errOracleDown = errors.New("oracle down")

// scriptedOracle answers by task. Tasks without a script fail with errOracleDown.
type scriptedOracle struct {
	mu      sync.Mutex
	scripts map[Task]func(Prompt) (string, error)
	calls   map[Task]int
	prompts map[Task][]Prompt
}

func newScriptedOracle() *scriptedOracle {
	return &scriptedOracle{
		scripts: map[Task]func(Prompt) (string, error){},
		calls:   map[Task]int{},
		prompts: map[Task][]Prompt{},
	}
}

func (o *scriptedOracle) on(task Task, reply string) *scriptedOracle {
	o.scripts[task] = func(Prompt) (string, error) { return reply, nil }
	return o
}

// handle swaps in a reply function; safe while calls are in flight.
func (o *scriptedOracle) handle(task Task, f func(Prompt) (string, error)) *scriptedOracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scripts[task] = f
	return o
}

func (o *scriptedOracle) Complete(_ context.Context, p Prompt) (string, error) {
	o.mu.Lock()
	o.calls[p.Task]++
	o.prompts[p.Task] = append(o.prompts[p.Task], p)
	f, ok := o.scripts[p.Task]
	o.mu.Unlock()
	if !ok {
		return "", errOracleDown
	}
	return f(p)
}

func (o *scriptedOracle) count(task Task) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[task]
}

func (o *scriptedOracle) lastPrompt(task Task) Prompt {
	o.mu.Lock()
	defer o.mu.Unlock()
	ps := o.prompts[task]
	if len(ps) == 0 {
		return Prompt{}
	}
	return ps[len(ps)-1]
}

const (
	ophthalmologyConfidence = `{"overall_confidence": 0.6, "doctor_confidence": {"Ophthalmologist": 0.7, "Optometrist": 0.1, "Optician": 0.1, "Ocular Surgeon": 0.1}, "reasoning": "signs of infection"}`

	dischargeQuestion = "```json\n" + `{"question": "What color is the discharge?", "options": [{"text": "Clear", "is_other": false}, {"text": "Yellow or green", "is_other": false}, {"text": "White and stringy", "is_other": false}, {"text": "Other", "is_other": true}]}` + "\n```"

	satisfied    = `{"is_satisfied": true, "satisfaction_score": 0.9, "reasoning": "enough detail", "information_gaps": []}`
	notSatisfied = `{"is_satisfied": false, "satisfaction_score": 0.2, "reasoning": "timeline unclear", "information_gaps": ["onset"]}`

	ophthalmologistRec = `{"doctor_type": "Ophthalmologist", "reasoning": "Likely bacterial conjunctivitis needing medical treatment"}`
)
