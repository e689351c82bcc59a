package consultation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTranscriber struct {
	text string
	err  error
	got  []byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte) (string, error) {
	f.got = audio
	return f.text, f.err
}

type fakeKnowledge struct {
	content  string
	metadata map[string]string
}

func (f *fakeKnowledge) Add(_ context.Context, content string, metadata map[string]string) error {
	f.content, f.metadata = content, metadata
	return nil
}

func newTestRouter(svc Service, stt Transcriber, kw KnowledgeWriter) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, NewHandler(svc, stt, kw, nil))
	})
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestHandlerInterviewFlow(t *testing.T) {
	h := newTestRouter(NewService(NewMemoryRepository(), happyOracle(), Options{}), nil, nil)

	rec, body := doJSON(t, h, http.MethodPost, "/api/sessions", `{"condition": "severe eye pain and discharge"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "What color is the discharge?", body["first_question"].(map[string]any)["question"])
	assert.Contains(t, body["confidence_score"], "doctor_confidence")

	for i := 0; i < 2; i++ {
		rec, body = doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/answers", `{"answer": "Yellow or green"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, body["is_complete"])
		assert.NotNil(t, body["question"])
	}

	rec, body = doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/answers", `{"answer": "Yellow or green"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["is_complete"])
	assert.Nil(t, body["question"])
	assert.Equal(t, "Ophthalmologist", body["doctor_recommendation"].(map[string]any)["doctor_type"])
	assert.NotEmpty(t, body["summary_for_doctor"])
	assert.Len(t, body["conversation_history"], 3)

	rec, body = doJSON(t, h, http.MethodGet, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["is_complete"])
	assert.Len(t, body["conversation_history"], 3)

	rec, body = doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/answers", `{"answer": "again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, body["error"], "already complete")
}

func TestHandlerErrors(t *testing.T) {
	h := newTestRouter(NewService(NewMemoryRepository(), happyOracle(), Options{}), nil, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"malformed body", http.MethodPost, "/api/sessions", `{`, http.StatusBadRequest},
		{"empty condition", http.MethodPost, "/api/sessions", `{"condition": " "}`, http.StatusBadRequest},
		{"unknown session answer", http.MethodPost, "/api/sessions/nope/answers", `{"answer": "x"}`, http.StatusNotFound},
		{"unknown session get", http.MethodGet, "/api/sessions/nope", "", http.StatusNotFound},
		{"audio disabled", http.MethodPost, "/api/sessions/nope/answers/audio", "", http.StatusNotFound},
		{"knowledge disabled", http.MethodPost, "/api/knowledge", `{"content": "x"}`, http.StatusNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doJSON(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandlerListSpecialists(t *testing.T) {
	h := newTestRouter(NewService(NewMemoryRepository(), happyOracle(), Options{}), nil, nil)

	rec, body := doJSON(t, h, http.MethodGet, "/api/specialists", "")
	require.Equal(t, http.StatusOK, rec.Code)

	list := body["allowed_doctors"].([]any)
	require.Len(t, list, 4)
	assert.Equal(t, "Ocular Surgeon", list[3].(map[string]any)["name"])
}

func TestHandlerAudioAnswer(t *testing.T) {
	svc := NewService(NewMemoryRepository(), happyOracle(), Options{})
	start, err := svc.Start(context.Background(), "red eye")
	require.NoError(t, err)

	stt := &fakeTranscriber{text: "Clear and watery"}
	h := newTestRouter(svc, stt, nil)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio", "answer.wav")
	require.NoError(t, err)
	_, err = part.Write([]byte("RIFF-audio"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+start.SessionID+"/answers/audio", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Clear and watery", body["transcribed_text"])
	assert.Equal(t, []byte("RIFF-audio"), stt.got)

	sess, err := svc.Get(context.Background(), start.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.History, 1)
	assert.Equal(t, "Clear and watery", sess.History[0].Answer)
}

func TestHandlerAudioTranscriptionFailure(t *testing.T) {
	svc := NewService(NewMemoryRepository(), happyOracle(), Options{})
	h := newTestRouter(svc, &fakeTranscriber{err: errors.New("whisper down")}, nil)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio", "answer.wav")
	require.NoError(t, err)
	_, _ = part.Write([]byte("x"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/any/answers/audio", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandlerAddKnowledge(t *testing.T) {
	kw := &fakeKnowledge{}
	h := newTestRouter(NewService(NewMemoryRepository(), happyOracle(), Options{}), nil, kw)

	rec, _ := doJSON(t, h, http.MethodPost, "/api/knowledge", `{"content": "Conjunctivitis causes discharge.", "metadata": {"topic": "infection"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Conjunctivitis causes discharge.", kw.content)
	assert.Equal(t, map[string]string{"topic": "infection"}, kw.metadata)

	rec, _ = doJSON(t, h, http.MethodPost, "/api/knowledge", `{"content": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeSynthesizer struct {
	audio []byte
	err   error
	text  string
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.text = text
	return f.audio, f.err
}

func routerWith(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, h)
	})
	return r
}

func TestHandlerQuestionAudio(t *testing.T) {
	svc := NewService(NewMemoryRepository(), happyOracle(), Options{})
	start, err := svc.Start(context.Background(), "red eye")
	require.NoError(t, err)

	tts := &fakeSynthesizer{audio: []byte("ID3-mp3")}
	h := routerWith(NewHandler(svc, nil, nil, nil).WithSynthesizer(tts))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+start.SessionID+"/question/audio", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ID3-mp3", rec.Body.String())
	assert.Equal(t, "What color is the discharge? Clear, Yellow or green, White and stringy, or Other.", tts.text)
}

func TestHandlerQuestionAudioErrors(t *testing.T) {
	svc := NewService(NewMemoryRepository(), happyOracle(), Options{})
	open, err := svc.Start(context.Background(), "red eye")
	require.NoError(t, err)
	done, err := svc.Start(context.Background(), "red eye")
	require.NoError(t, err)
	answerN(t, svc, done.SessionID, 3)

	tests := []struct {
		name   string
		tts    Synthesizer
		id     string
		status int
	}{
		{"disabled", nil, open.SessionID, http.StatusNotFound},
		{"unknown session", &fakeSynthesizer{}, "nope", http.StatusNotFound},
		{"completed session", &fakeSynthesizer{}, done.SessionID, http.StatusConflict},
		{"synthesis failure", &fakeSynthesizer{err: errors.New("quota exceeded")}, open.SessionID, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(svc, nil, nil, nil)
			if tt.tts != nil {
				h.WithSynthesizer(tt.tts)
			}
			rec, body := doJSON(t, routerWith(h), http.MethodGet, "/api/sessions/"+tt.id+"/question/audio", "")
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandlerQuestionnaire(t *testing.T) {
	oracle := happyOracle().on(TaskQuestions, questionList)
	svc := NewService(NewMemoryRepository(), oracle, Options{})
	h := routerWith(NewHandler(svc, nil, nil, nil).WithQuestionnaire(NewQuestionnaire(oracle, Options{})))

	rec, body := doJSON(t, h, http.MethodPost, "/api/generate-questions", `{"condition": "sticky yellow discharge"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	questions := body["questions"].([]any)
	require.Len(t, questions, 4)
	first := questions[0].(map[string]any)
	assert.Equal(t, "How long have you had the discharge?", first["question"])
	assert.Len(t, first["options"], 4)

	rec, body = doJSON(t, h, http.MethodPost, "/api/process-answers", `{
		"initial_condition": "sticky yellow discharge",
		"answers": [
			{"question_index": 0, "selected_option": "A few days"},
			{"question_index": 1, "selected_option": "Other", "custom_answer": "mostly the left eye"}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doctor := body["doctor"].(map[string]any)
	assert.Equal(t, "Ophthalmologist", doctor["doctor_type"])
	assert.NotEmpty(t, doctor["reasoning"])
	assert.Contains(t, body["summary_for_doctor"], "yellow discharge")
	assert.Contains(t, body["confidence_score"], "overall_confidence")
	assert.Equal(t, []any{}, body["knowledge_context"])
	assert.Contains(t, oracle.lastPrompt(TaskSummary).Text, "mostly the left eye")

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"malformed questions body", "/api/generate-questions", `{`, http.StatusBadRequest},
		{"empty questions condition", "/api/generate-questions", `{"condition": ""}`, http.StatusBadRequest},
		{"malformed answers body", "/api/process-answers", `[]`, http.StatusBadRequest},
		{"empty answers condition", "/api/process-answers", `{"answers": []}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doJSON(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandlerQuestionnaireDisabled(t *testing.T) {
	h := newTestRouter(NewService(NewMemoryRepository(), happyOracle(), Options{}), nil, nil)

	rec, _ := doJSON(t, h, http.MethodPost, "/api/generate-questions", `{"condition": "red eye"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = doJSON(t, h, http.MethodPost, "/api/process-answers", `{"initial_condition": "red eye"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
