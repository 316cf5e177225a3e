package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/studyhub/internal/models"
	"github.com/terra-clan/studyhub/internal/quiz"
)

// startQuiz opens a session for the calling learner
func (s *Server) startQuiz(r *http.Request) (*quiz.Runner, *httpError) {
	learnerID := LearnerFromContext(r.Context())
	store, err := s.progress.Get(r.Context(), learnerID)
	if err != nil {
		slog.Error("failed to load progress", "error", err, "learner_id", learnerID)
		return nil, &httpError{http.StatusInternalServerError, "internal_error", "failed to load progress"}
	}

	runner, err := s.quizzes.Start(r.Context(), learnerID, store)
	if err != nil {
		if errors.Is(err, quiz.ErrNoQuestions) {
			return nil, &httpError{http.StatusNotFound, "no_quizzes", "No quizzes available"}
		}
		slog.Error("failed to start quiz", "error", err, "learner_id", learnerID)
		return nil, &httpError{http.StatusServiceUnavailable, "quiz_unavailable", "failed to load quiz"}
	}
	return runner, nil
}

// answerQuiz decodes the answer and applies it to the learner's session
func (s *Server) answerQuiz(r *http.Request) (models.AnswerResponse, *httpError) {
	var req models.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return models.AnswerResponse{}, &httpError{http.StatusBadRequest, "invalid_request", "invalid JSON body"}
	}
	if req.Index == nil && req.Choice == "" {
		return models.AnswerResponse{}, &httpError{http.StatusBadRequest, "validation_error", "choice or index is required"}
	}

	runner, err := s.quizzes.Get(LearnerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		return models.AnswerResponse{}, &httpError{http.StatusNotFound, "not_found", "quiz not found"}
	}

	resp, err := runner.Answer(r.Context(), req)
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, quiz.ErrQuizCompleted):
		return resp, &httpError{http.StatusConflict, "quiz_completed", "quiz already completed"}
	case errors.Is(err, quiz.ErrInvalidChoice):
		return resp, &httpError{http.StatusBadRequest, "invalid_choice", err.Error()}
	default:
		slog.Error("failed to answer quiz", "error", err, "quiz_id", runner.ID())
		return resp, &httpError{http.StatusInternalServerError, "internal_error", "failed to answer quiz"}
	}
}

func (s *Server) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	runner, herr := s.startQuiz(r)
	if herr != nil {
		herr.respondJSON(w)
		return
	}
	respondJSON(w, http.StatusCreated, runner.State())
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	runner, err := s.quizzes.Get(LearnerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "quiz not found")
		return
	}
	respondJSON(w, http.StatusOK, runner.State())
}

func (s *Server) handleAnswerQuiz(w http.ResponseWriter, r *http.Request) {
	resp, herr := s.answerQuiz(r)
	if herr != nil {
		herr.respondJSON(w)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
