package usecases

import (
	"time"

	"github.com/google/uuid"

	"github.com/sandeepseesa/promptea/internal/app/services"
	"github.com/sandeepseesa/promptea/internal/core/graph"
)

// Workspace is one live canvas: its store and the session its nodes share
type Workspace struct {
	Name      string
	Store     *services.Store
	Session   *services.Session
	CreatedAt time.Time
}

// NewWorkspace creates a workspace around canvas. Session writes are
// published on the store's event stream.
func NewWorkspace(name string, canvas *graph.Canvas) *Workspace {
	if canvas == nil {
		now := time.Now()
		canvas = &graph.Canvas{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
	}
	store := services.NewStore(canvas)
	return &Workspace{
		Name:      name,
		Store:     store,
		Session:   services.NewStoreSession(store),
		CreatedAt: time.Now(),
	}
}

// ID returns the canvas ID
func (w *Workspace) ID() string { return w.Store.ID() }

// Alert implements Alerter by publishing on the store's event stream
func (w *Workspace) Alert(message string) { w.Store.Alert(message) }
