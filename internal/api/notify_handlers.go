package api

import (
	"net/http"
)

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, LearnerFromContext(r.Context()))
}
