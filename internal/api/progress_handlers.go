package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/studyhub/internal/models"
	"github.com/terra-clan/studyhub/internal/progress"
)

// learnerStore returns the calling learner's progress store, writing an
// error response when it can't be loaded
func (s *Server) learnerStore(w http.ResponseWriter, r *http.Request) (*progress.Store, bool) {
	learnerID := LearnerFromContext(r.Context())
	store, err := s.progress.Get(r.Context(), learnerID)
	if err != nil {
		slog.Error("failed to load progress", "error", err, "learner_id", learnerID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load progress")
		return nil, false
	}
	return store, true
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	store, ok := s.learnerStore(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, models.ProgressResponse{
		LearnerID: store.LearnerID(),
		Counters:  store.Counters(),
		Badges:    store.Badges(),
	})
}

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	event := models.EventType(chi.URLParam(r, "eventType"))
	if !event.Valid() {
		respondError(w, http.StatusBadRequest, "unknown_event", "unknown event type: "+string(event))
		return
	}

	store, ok := s.learnerStore(w, r)
	if !ok {
		return
	}

	unlocked, err := store.Record(r.Context(), event)
	if err != nil {
		if errors.Is(err, progress.ErrUnknownEvent) {
			respondError(w, http.StatusBadRequest, "unknown_event", err.Error())
			return
		}
		slog.Error("failed to record event", "error", err, "event_type", event)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to record event")
		return
	}
	if unlocked == nil {
		unlocked = []models.Badge{}
	}

	respondJSON(w, http.StatusOK, models.RecordResponse{
		Counters: store.Counters(),
		Unlocked: unlocked,
	})
}
