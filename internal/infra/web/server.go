package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Kassag-stack/visionly.ai/internal/usecase"
)

// Server exposes the public chat API and the admin surface.
type Server struct {
	orchestrator usecase.OrchestratorUseCase
	statsUC      usecase.StatsUseCase
	auth         *AuthManager
	adminAPIKey  string
	log          *zerolog.Logger
}

func NewServer(
	orchestrator usecase.OrchestratorUseCase,
	statsUC usecase.StatsUseCase,
	auth *AuthManager,
	adminAPIKey string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		orchestrator: orchestrator,
		statsUC:      statsUC,
		auth:         auth,
		adminAPIKey:  adminAPIKey,
		log:          &l,
	}
}

// Router builds the public API: submission, polling and health.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Post("/api/chat/completions", s.handleSubmit)
	r.Get("/api/chat/status/{job_id}", s.handleStatus)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return r
}

// AdminRouter builds the operator surface served on the admin port:
// login, job listing, counters and the Prometheus scrape endpoint.
func (s *Server) AdminRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Post("/api/v1/admin/login", s.handleAdminLogin)
	r.Post("/api/v1/admin/logout", s.handleAdminLogout)

	r.Group(func(pr chi.Router) {
		pr.Use(s.requireAdmin)
		pr.Get("/api/v1/jobs", s.handleListJobs)
		pr.Get("/api/v1/jobs/{job_id}", s.handleAdminJob)
		pr.Get("/api/v1/stats", s.handleStats)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return r
}

// requireAdmin gates the protected admin routes on a valid session.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			writeError(w, http.StatusForbidden, "admin surface disabled")
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
