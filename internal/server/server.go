package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/moryhq/mory/internal/config"
	"github.com/moryhq/mory/internal/engine"
	"github.com/moryhq/mory/internal/store"
)

// Server is the mory HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	cfg     config.Config
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server around an opened database and engine.
func New(db *store.DB, eng *engine.Engine, cfg config.Config, version string) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
		cfg:     cfg,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/memories", s.handleIngest)
		r.Post("/memories/batch", s.handleCommit)
		r.Get("/memories", s.handleReadByPath)
		r.Get("/retrieve", s.handleRetrieve)
		r.Post("/forget", s.handleForget)
		r.Post("/consolidate", s.handleConsolidate)
		r.Post("/workspace/expire", s.handleExpireWorkspace)
		r.Get("/metrics", s.handleMetrics)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
