package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dgallion1/finextract/internal/config"
	"github.com/dgallion1/finextract/internal/extract"
	"github.com/dgallion1/finextract/internal/pipeline"
)

// Server is the HTTP API server for finextract.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	stats        *extract.LLMStats
	model        string
	log          *slog.Logger
	cfg          config.ServerConfig
}

// NewServer creates and configures the HTTP server. stats may be nil.
func NewServer(orch *pipeline.Orchestrator, stats *extract.LLMStats, model string, log *slog.Logger, cfg config.ServerConfig) *Server {
	s := &Server{
		orchestrator: orch,
		stats:        stats,
		model:        model,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/extract", s.handleExtract)
		r.Get("/api/extract/{jobID}/status", s.handleExtractStatus)
		r.Get("/api/extract/{jobID}/rows", s.handleExtractRows)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
