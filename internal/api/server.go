package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terra-clan/studyhub/internal/catalog"
	"github.com/terra-clan/studyhub/internal/config"
	"github.com/terra-clan/studyhub/internal/notify"
	"github.com/terra-clan/studyhub/internal/progress"
	"github.com/terra-clan/studyhub/internal/quiz"
	"github.com/terra-clan/studyhub/internal/render"
)

// Dependencies are the components the HTTP layer serves
type Dependencies struct {
	Catalog  *catalog.View
	Progress *progress.Registry
	Quizzes  *quiz.Sessions
	Renderer *render.Renderer
	Snapshot *render.Snapshot
	Hub      *notify.Hub
}

// Server represents the HTTP API server
type Server struct {
	config    config.ServerConfig
	rateLimit config.RateLimitConfig
	siteDir   string
	router    *chi.Mux

	catalog  *catalog.View
	progress *progress.Registry
	quizzes  *quiz.Sessions
	renderer *render.Renderer
	snapshot *render.Snapshot
	hub      *notify.Hub
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	s := &Server{
		config:    cfg.Server,
		rateLimit: cfg.RateLimit,
		siteDir:   cfg.Data.SiteDir,
		catalog:   deps.Catalog,
		progress:  deps.Progress,
		quizzes:   deps.Quizzes,
		renderer:  deps.Renderer,
		snapshot:  deps.Snapshot,
		hub:       deps.Hub,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration. With no origins configured only same-origin pages
	// may call the API; the learner cookie never goes to a wildcard origin.
	if len(s.config.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", LearnerHeader},
			ExposedHeaders:   []string{"X-Request-ID", LearnerHeader},
			AllowCredentials: !allowsAnyOrigin(s.config.AllowedOrigins),
			MaxAge:           300,
		}))
	}

	// Health check and metrics (no learner identity)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	// Resource files referenced by catalog entries
	r.Handle("/data/resources/*", http.FileServer(http.Dir(s.siteDir)))

	r.Group(func(r chi.Router) {
		r.Use(s.learnerMiddleware)

		writeLimit := s.writeLimiter()

		// Page and HTML fragments
		r.Get("/", s.handleIndex)
		r.Route("/fragments", func(r chi.Router) {
			r.Get("/grid", s.handleGridFragment)
			r.Get("/badges", s.handleBadgesFragment)
			r.Get("/preview", s.handlePreviewFragment)
			r.With(writeLimit).Post("/quiz", s.handleStartQuizFragment)
			r.With(writeLimit).Post("/quiz/{id}/answer", s.handleAnswerQuizFragment)
		})

		// Badge notifications
		r.Get("/ws/notifications", s.handleNotifications)

		// API v1 routes
		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/catalog", func(r chi.Router) {
				r.Get("/", s.handleListCatalog)
				r.Get("/featured", s.handleFeatured)
				r.Get("/preview", s.handlePreview)
			})

			r.Route("/progress", func(r chi.Router) {
				r.Get("/", s.handleGetProgress)
				r.With(writeLimit).Post("/{eventType}", s.handleRecordEvent)
			})

			r.Route("/quiz", func(r chi.Router) {
				r.With(writeLimit).Post("/", s.handleStartQuiz)
				r.Get("/{id}", s.handleGetQuiz)
				r.With(writeLimit).Post("/{id}/answer", s.handleAnswerQuiz)
			})
		})
	})

	s.router = r
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// writeLimiter rate limits state-changing requests per client IP.
// A zero limit disables it.
func (s *Server) writeLimiter() func(http.Handler) http.Handler {
	if s.rateLimit.PerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		s.rateLimit.PerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
		}),
	)
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
