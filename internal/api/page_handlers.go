package api

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
)

// Page and fragment handlers: server-rendered HTML for the browser

// respondHTML renders into a buffer first so a template error becomes a
// 500 instead of a half-written page
func respondHTML(w http.ResponseWriter, status int, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		slog.Error("failed to render html", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("failed to write html", "error", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	store, ok := s.learnerStore(w, r)
	if !ok {
		return
	}

	q := r.URL.Query().Get("q")
	data := s.snapshot.Page(q, store.Badges())

	respondHTML(w, http.StatusOK, func(buf *bytes.Buffer) error {
		if q != "" {
			// Search results replace the cached full grid
			var grid bytes.Buffer
			if err := s.renderer.Grid(&grid, s.catalog.GridFor(q)); err != nil {
				return err
			}
			data.Grid = template.HTML(grid.String())
		}
		return s.renderer.Page(buf, data)
	})
}

func (s *Server) handleGridFragment(w http.ResponseWriter, r *http.Request) {
	grid := s.catalog.GridFor(r.URL.Query().Get("q"))
	respondHTML(w, http.StatusOK, func(buf *bytes.Buffer) error {
		return s.renderer.Grid(buf, grid)
	})
}

func (s *Server) handleBadgesFragment(w http.ResponseWriter, r *http.Request) {
	store, ok := s.learnerStore(w, r)
	if !ok {
		return
	}
	respondHTML(w, http.StatusOK, func(buf *bytes.Buffer) error {
		return s.renderer.Badges(buf, store.Badges())
	})
}

func (s *Server) handlePreviewFragment(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	preview := s.catalog.Preview(path)
	respondHTML(w, http.StatusOK, func(buf *bytes.Buffer) error {
		return s.renderer.Preview(buf, preview)
	})
}

func (s *Server) handleStartQuizFragment(w http.ResponseWriter, r *http.Request) {
	runner, herr := s.startQuiz(r)
	if herr != nil {
		herr.respondText(w)
		return
	}
	respondHTML(w, http.StatusCreated, func(buf *bytes.Buffer) error {
		return s.renderer.Quiz(buf, runner.State())
	})
}

func (s *Server) handleAnswerQuizFragment(w http.ResponseWriter, r *http.Request) {
	resp, herr := s.answerQuiz(r)
	if herr != nil {
		herr.respondText(w)
		return
	}
	respondHTML(w, http.StatusOK, func(buf *bytes.Buffer) error {
		return s.renderer.Quiz(buf, resp.State)
	})
}
