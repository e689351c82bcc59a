package consultation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const maxAudioUpload = 10 << 20

// KnowledgeWriter adds reference passages to the knowledge base.
type KnowledgeWriter interface {
	Add(ctx context.Context, content string, metadata map[string]string) error
}

type Handler struct {
	svc           Service
	stt           Transcriber
	tts           Synthesizer
	knowledge     KnowledgeWriter
	questionnaire *Questionnaire
	logger        *slog.Logger
}

// NewHandler builds the HTTP surface. stt and knowledge may be nil, which
// disables voice answers and knowledge uploads respectively.
func NewHandler(svc Service, stt Transcriber, knowledge KnowledgeWriter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, stt: stt, knowledge: knowledge, logger: logger.With("component", "http")}
}

// WithSynthesizer enables spoken questions.
func (h *Handler) WithSynthesizer(tts Synthesizer) *Handler {
	h.tts = tts
	return h
}

// WithQuestionnaire enables the one-shot questionnaire endpoints.
func (h *Handler) WithQuestionnaire(q *Questionnaire) *Handler {
	h.questionnaire = q
	return h
}

type StartSessionRequest struct {
	Condition string `json:"condition"`
}

type AnswerRequest struct {
	Answer string `json:"answer"`
}

type ProcessAnswersRequest struct {
	InitialCondition string                `json:"initial_condition"`
	Answers          []QuestionnaireAnswer `json:"answers"`
}

type AddKnowledgeRequest struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

type specialistInfo struct {
	Name        Specialist `json:"name"`
	Description string     `json:"description"`
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	res, err := h.svc.Start(r.Context(), req.Condition)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	res, err := h.svc.SubmitAnswer(r.Context(), chi.URLParam(r, "sessionID"), req.Answer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) SubmitAudioAnswer(w http.ResponseWriter, r *http.Request) {
	if h.stt == nil {
		writeError(w, http.StatusNotFound, "voice answers are not enabled")
		return
	}
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing audio file")
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(file, maxAudioUpload)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read audio file")
		return
	}

	text, err := h.stt.Transcribe(r.Context(), buf.Bytes())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "transcription failed", "error", err)
		writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}

	res, err := h.svc.SubmitAnswer(r.Context(), chi.URLParam(r, "sessionID"), text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*TurnResult
		Transcript string `json:"transcribed_text"`
	}{res, text})
}

// QuestionAudio speaks the pending question with its options.
func (h *Handler) QuestionAudio(w http.ResponseWriter, r *http.Request) {
	if h.tts == nil {
		writeError(w, http.StatusNotFound, "spoken questions are not enabled")
		return
	}
	sess, err := h.svc.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if sess.IsComplete {
		h.fail(w, r, ErrSessionComplete)
		return
	}
	if sess.Pending == nil {
		h.fail(w, r, ErrNoPendingQuestion)
		return
	}

	audio, err := h.tts.Synthesize(r.Context(), spokenQuestion(*sess.Pending))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "speech synthesis failed", "session_id", sess.ID, "error", err)
		writeError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

func spokenQuestion(q Question) string {
	opts := make([]string, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, o.Text)
	}
	switch len(opts) {
	case 0:
		return q.Text
	case 1:
		return q.Text + " " + opts[0] + "."
	}
	return q.Text + " " + strings.Join(opts[:len(opts)-1], ", ") + ", or " + opts[len(opts)-1] + "."
}

func (h *Handler) GenerateQuestions(w http.ResponseWriter, r *http.Request) {
	if h.questionnaire == nil {
		writeError(w, http.StatusNotFound, "questionnaire is not enabled")
		return
	}
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	questions, err := h.questionnaire.Questions(r.Context(), req.Condition)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (h *Handler) ProcessAnswers(w http.ResponseWriter, r *http.Request) {
	if h.questionnaire == nil {
		writeError(w, http.StatusNotFound, "questionnaire is not enabled")
		return
	}
	var req ProcessAnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	res, err := h.questionnaire.Assess(r.Context(), req.InitialCondition, req.Answers)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*Session
		Transcript []Turn `json:"conversation_history"`
	}{sess, sess.Transcript()})
}

func (h *Handler) ListSpecialists(w http.ResponseWriter, _ *http.Request) {
	out := make([]specialistInfo, 0, len(Specialists))
	for _, s := range Specialists {
		out = append(out, specialistInfo{Name: s, Description: s.Description()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"allowed_doctors": out})
}

func (h *Handler) AddKnowledge(w http.ResponseWriter, r *http.Request) {
	if h.knowledge == nil {
		writeError(w, http.StatusNotImplemented, "knowledge base is not configured")
		return
	}
	var req AddKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if err := h.knowledge.Add(r.Context(), req.Content, req.Metadata); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "document added"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrEmptyCondition), errors.Is(err, ErrEmptyAnswer):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "an unexpected error occurred")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/sessions", h.StartSession)
	r.Get("/sessions/{sessionID}", h.GetSession)
	r.Post("/sessions/{sessionID}/answers", h.SubmitAnswer)
	r.Post("/sessions/{sessionID}/answers/audio", h.SubmitAudioAnswer)
	r.Get("/sessions/{sessionID}/question/audio", h.QuestionAudio)
	r.Post("/generate-questions", h.GenerateQuestions)
	r.Post("/process-answers", h.ProcessAnswers)
	r.Get("/specialists", h.ListSpecialists)
	r.Post("/knowledge", h.AddKnowledge)
}
