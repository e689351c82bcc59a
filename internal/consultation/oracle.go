package consultation

import "context"

// Task names the purpose of an oracle call. Clients may use it for routing,
// metrics or model selection; fakes use it to script responses.
type Task string

const (
	TaskConfidence   Task = "confidence"
	TaskQuestion     Task = "question"
	TaskQuestions    Task = "questions"
	TaskSatisfaction Task = "satisfaction"
	TaskSummary      Task = "summary"
	TaskRecommend    Task = "recommendation"
)

type Prompt struct {
	Task        Task
	Text        string
	Temperature float32
}

// Oracle is the external reasoning service. We define it here to decouple from
// the specific agent implementation. Responses are untrusted free text.
type Oracle interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Passage is a knowledge-base hit.
type Passage struct {
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

// Retriever searches reference material. It is optional; a nil Retriever means
// no knowledge context.
type Retriever interface {
	Search(ctx context.Context, query string, limit int, threshold float64) ([]Passage, error)
}

// Reporter receives completed sessions, e.g. to forward a referral to a doctor.
type Reporter interface {
	SendReferral(ctx context.Context, s Session) error
}

// Transcriber turns a recorded voice answer into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioData []byte) (string, error)
}

// Synthesizer turns text into spoken audio (MP3).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
