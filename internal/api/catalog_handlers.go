package api

import (
	"net/http"
	"strings"

	"github.com/terra-clan/studyhub/internal/models"
)

// Catalog handlers: listing, search, featured entries and preview kinds

func (s *Server) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	resources := s.catalog.Filter(q)

	respondJSON(w, http.StatusOK, models.CatalogResponse{
		Resources: resources,
		Total:     len(resources),
		Stats:     s.catalog.Stats(),
		Query:     strings.ToLower(strings.TrimSpace(q)),
	})
}

func (s *Server) handleFeatured(w http.ResponseWriter, r *http.Request) {
	featured := s.catalog.Featured()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"resources": featured,
		"total":     len(featured),
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "path is required")
		return
	}

	respondJSON(w, http.StatusOK, s.catalog.Preview(path))
}
