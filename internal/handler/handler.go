// Package handler wires the HTTP JSON API. Every failure is scoped to
// one request; chat failures degrade to a fixed apology in the working
// language instead of leaking provider errors.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ihkcoach/ihkcoach/internal/chat"
	"github.com/ihkcoach/ihkcoach/internal/exam"
	"github.com/ihkcoach/ihkcoach/internal/generator"
	"github.com/ihkcoach/ihkcoach/internal/i18n"
	"github.com/ihkcoach/ihkcoach/internal/model"
	"github.com/ihkcoach/ihkcoach/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	chat      *chat.Orchestrator
	generator *generator.Generator
	config    model.ServerConfig
}

// New creates a new Handler.
func New(s *store.Store, o *chat.Orchestrator, g *generator.Generator, cfg model.ServerConfig) *Handler {
	return &Handler{store: s, chat: o, generator: g, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(api chi.Router) {
		api.Get("/questions", h.handleListQuestions)
		api.Post("/evaluate", h.handleEvaluate)
		api.Post("/chat", h.handleChat)
		api.Post("/generate-question", h.handleGenerateQuestion)
	})
	r.Get("/healthz", h.handleHealth)

	if h.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(h.config.StaticDir))
		r.Handle("/*", fs)
	}
}

type evaluateRequest struct {
	QuestionID int64 `json:"questionId"`
	Answer     int   `json:"answer"`
}

type chatRequest struct {
	Message string       `json:"message"`
	Context []model.Turn `json:"context"`
}

type chatResponse struct {
	Response string       `json:"response"`
	Context  []model.Turn `json:"context"`
}

type generateRequest struct {
	Topic string `json:"topic"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.store.ListQuestions()
	if err != nil {
		slog.Error("list questions", "error", err)
		respondError(w, http.StatusInternalServerError, i18n.T(r.Context(), "InvalidRequest"))
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}
	respondJSON(w, http.StatusOK, questions)
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, i18n.T(r.Context(), "InvalidRequest"))
		return
	}

	question, err := h.store.GetQuestion(req.QuestionID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, i18n.T(r.Context(), "QuestionNotFound"))
		return
	}
	if err != nil {
		slog.Error("get question", "id", req.QuestionID, "error", err)
		respondError(w, http.StatusInternalServerError, i18n.T(r.Context(), "InvalidRequest"))
		return
	}

	result, err := exam.Evaluate(r.Context(), &question, req.Answer)
	if err != nil {
		slog.Error("evaluate answer", "id", req.QuestionID, "error", err)
		respondError(w, http.StatusInternalServerError, i18n.T(r.Context(), "InvalidRequest"))
		return
	}

	if err := h.store.RecordAttempt(question.ID, result.Correct); err != nil {
		slog.Warn("record attempt", "id", question.ID, "error", err)
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, i18n.T(r.Context(), "InvalidRequest"))
		return
	}

	reply, updated, err := h.chat.HandleTurn(r.Context(), req.Context, req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrContextHasSystemTurn):
		respondError(w, http.StatusBadRequest, i18n.T(r.Context(), "InvalidRequest"))
		return
	case err != nil:
		slog.Error("chat turn failed", "error", err)
		respondError(w, http.StatusInternalServerError, i18n.T(r.Context(), "ChatFailure"))
		return
	}

	respondJSON(w, http.StatusOK, chatResponse{Response: reply, Context: updated})
}

func (h *Handler) handleGenerateQuestion(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Topic) == "" {
		respondError(w, http.StatusBadRequest, i18n.T(r.Context(), "InvalidRequest"))
		return
	}

	question, err := h.generator.Generate(r.Context(), req.Topic)
	if err != nil {
		if errors.Is(err, generator.ErrMalformedGeneration) {
			slog.Error("provider returned malformed question", "topic", req.Topic, "error", err)
		} else {
			slog.Error("question generation failed", "topic", req.Topic, "error", err)
		}
		respondError(w, http.StatusInternalServerError, i18n.T(r.Context(), "GenerateFailure"))
		return
	}

	respondJSON(w, http.StatusOK, question)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}
