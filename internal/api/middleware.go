package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// LearnerCookie carries the learner ID for browsers
	LearnerCookie = "studyhub_learner"
	// LearnerHeader carries the learner ID for API clients
	LearnerHeader = "X-Learner-ID"

	maxLearnerIDLen = 64
	cookieMaxAge    = 365 * 24 * time.Hour
)

// validLearnerID accepts short IDs made of letters, digits, '-' and '_'
func validLearnerID(id string) bool {
	if id == "" || len(id) > maxLearnerIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// learnerMiddleware resolves who the request belongs to. The header wins
// over the cookie; without either a new ID is minted and set as a cookie.
// This is identity for per-learner state, not authentication.
func (s *Server) learnerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(LearnerHeader)
		if !validLearnerID(id) {
			id = ""
			if c, err := r.Cookie(LearnerCookie); err == nil && validLearnerID(c.Value) {
				id = c.Value
			}
		}

		if id == "" {
			id = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     LearnerCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(cookieMaxAge.Seconds()),
				HttpOnly: true,
				Secure:   s.config.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
			slog.Debug("issued learner id", "learner_id", id)
		}

		w.Header().Set(LearnerHeader, id)
		next.ServeHTTP(w, r.WithContext(ContextWithLearner(r.Context(), id)))
	})
}
