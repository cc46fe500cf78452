package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dgallion1/markview/internal/annotation"
	"github.com/dgallion1/markview/internal/config"
	"github.com/dgallion1/markview/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Archiver keeps a copy of exported annotation files.
type Archiver interface {
	Store(ctx context.Context, sessionID string, f *annotation.File) (string, error)
}

// Server is the HTTP API server for markview.
type Server struct {
	router   chi.Router
	sessions *session.Manager
	archive  Archiver
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server. archive may be nil.
func NewServer(sessions *session.Manager, archive Archiver, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		sessions: sessions,
		archive:  archive,
		log:      log,
		cfg:      cfg,
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

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/sessions", s.handleCreateSession)
		r.Route("/api/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleCloseSession)

			r.Post("/document", s.handleLoadDocument)
			r.Get("/document", s.handleDownloadDocument)

			r.Post("/navigate", s.handleNavigate)
			r.Post("/next", s.handleNextPage)
			r.Post("/previous", s.handlePreviousPage)
			r.Post("/zoom", s.handleZoom)

			r.Post("/mode", s.handleMode)
			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)

			r.Get("/annotations", s.handleListAnnotations)
			r.Post("/annotations", s.handleDraw)
			r.Delete("/annotations", s.handleClearAnnotations)
			r.Get("/annotations/export", s.handleExport)
			r.Post("/annotations/import", s.handleImport)

			r.Get("/thumbnails", s.handleThumbnails)
			r.Get("/report", s.handleReport)
		})

		r.Get("/api/stats/render", s.handleRenderStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
