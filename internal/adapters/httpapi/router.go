// Package httpapi serves live canvases over HTTP: JSON endpoints for
// every user action plus a websocket stream of canvas changes.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sandeepseesa/promptea/internal/app/services"
	"github.com/sandeepseesa/promptea/internal/app/usecases"
	"github.com/sandeepseesa/promptea/internal/core/graph"
	"github.com/sandeepseesa/promptea/internal/infrastructure/middleware"
)

// WorkspaceStore is the repository the API serves canvases from
type WorkspaceStore interface {
	usecases.WorkspaceRepository
	Import(ctx context.Context, name string, c *graph.Canvas) (*usecases.Workspace, error)
}

// Deps wires a Server
type Deps struct {
	Workspaces WorkspaceStore
	Controller *usecases.Controller
	Snapshots  *services.SnapshotService
	Logger     *zap.Logger

	// Metrics receives per-request measurements; MetricsHandler serves
	// them on /metrics. Both are optional.
	Metrics        middleware.HTTPObserver
	MetricsHandler http.Handler

	AllowedOrigins []string
	// UploadLimit caps multipart upload bodies
	UploadLimit int64
}

// Server holds the handlers of the canvas API
// PRINCIPLES:
// - SRP: Translates HTTP into controller calls
// - DIP: Every collaborator is injected
type Server struct {
	workspaces WorkspaceStore
	controller *usecases.Controller
	snapshots  *services.SnapshotService
	logger     *zap.Logger

	metrics        middleware.HTTPObserver
	metricsHandler http.Handler
	origins        []string
	uploadLimit    int64
	upgrader       websocket.Upgrader
}

// defaultUploadLimit applies when Deps.UploadLimit is zero
const defaultUploadLimit = 20 << 20

// NewServer creates a Server
func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := d.UploadLimit
	if limit <= 0 {
		limit = defaultUploadLimit
	}
	s := &Server{
		workspaces:     d.Workspaces,
		controller:     d.Controller,
		snapshots:      d.Snapshots,
		logger:         logger,
		metrics:        d.Metrics,
		metricsHandler: d.MetricsHandler,
		origins:        d.AllowedOrigins,
		uploadLimit:    limit,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Stack(s.logger, s.metrics, s.origins)...)

	r.Get("/healthz", s.handleHealth)
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}
	r.Get("/palette", s.handlePalette)

	r.Route("/canvases", func(r chi.Router) {
		r.Post("/", s.handleCreateCanvas)
		r.Get("/", s.handleListCanvases)

		r.Route("/{canvasID}", func(r chi.Router) {
			r.Get("/", s.handleGetCanvas)
			r.Delete("/", s.handleDeleteCanvas)
			r.Get("/session", s.handleGetSession)
			r.Get("/events", s.handleEvents)

			r.Post("/run", s.handleRun)
			r.Delete("/run", s.handleCancelRun)

			r.Post("/edges", s.handleConnect)
			r.Post("/selection", s.handleSelect)
			r.Delete("/selection", s.handleDeleteSelected)
			r.Post("/selection/clear", s.handleClearSelection)

			r.Post("/snapshots", s.handleCreateSnapshot)
			r.Get("/snapshots", s.handleListSnapshots)

			r.Post("/nodes/drop", s.handleDrop)
			r.Route("/nodes/{nodeID}", func(r chi.Router) {
				r.Patch("/position", s.handleMoveNode)
				r.Put("/query", s.handleSetQuery)
				r.Put("/model", s.handleSelectModel)
				r.Post("/upload", s.handleUpload)
				r.Post("/ask", s.handleAsk)
				r.Delete("/messages", s.handleClearMessages)
				r.Delete("/run", s.handleCancelNode)
			})
		})
	})

	r.Route("/snapshots/{snapshotID}", func(r chi.Router) {
		r.Get("/", s.handleGetSnapshot)
		r.Delete("/", s.handleDeleteSnapshot)
		r.Post("/restore", s.handleRestoreSnapshot)
	})

	return r
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
