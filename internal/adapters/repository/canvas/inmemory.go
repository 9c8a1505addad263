// Package canvasrepo keeps the live workspaces of a server process
package canvasrepo

import (
    "context"
    "fmt"
    "strings"
    "sync"

    "github.com/sandeepseesa/promptea/internal/app/usecases"
    "github.com/sandeepseesa/promptea/internal/core/graph"
    "github.com/sandeepseesa/promptea/pkg/validation"
)

// InMemoryWorkspaceRepository provides an in-memory implementation of
// usecases.WorkspaceRepository
// PRINCIPLES:
// - KISS: Simple map-based storage
// - SRP: Only responsible for workspace lookup
// - Thread-safe

type InMemoryWorkspaceRepository struct {
    mu         sync.RWMutex
    workspaces map[string]*usecases.Workspace
    order      []string
}

func NewInMemoryWorkspaceRepository() *InMemoryWorkspaceRepository {
    return &InMemoryWorkspaceRepository{
        workspaces: make(map[string]*usecases.Workspace),
    }
}

// Create starts an empty workspace
func (r *InMemoryWorkspaceRepository) Create(ctx context.Context, name string) (*usecases.Workspace, error) {
    ws := usecases.NewWorkspace(strings.TrimSpace(name), nil)
    r.mu.Lock()
    defer r.mu.Unlock()
    r.workspaces[ws.ID()] = ws
    r.order = append(r.order, ws.ID())
    return ws, nil
}

// Import starts a workspace from an existing canvas, keeping its ID. The
// canvas is validated first; an ID already in use is rejected.
func (r *InMemoryWorkspaceRepository) Import(ctx context.Context, name string, c *graph.Canvas) (*usecases.Workspace, error) {
    if err := validation.ValidateCanvas(c, validation.CanvasValidationOptions{CheckNodeData: true}); err != nil {
        return nil, fmt.Errorf("%w: %w", graph.ErrInvalidCanvas, err)
    }
    ws := usecases.NewWorkspace(strings.TrimSpace(name), c.Clone())

    r.mu.Lock()
    defer r.mu.Unlock()
    if _, exists := r.workspaces[ws.ID()]; exists {
        return nil, fmt.Errorf("%w: %s", graph.ErrCanvasExists, ws.ID())
    }
    r.workspaces[ws.ID()] = ws
    r.order = append(r.order, ws.ID())
    return ws, nil
}

func (r *InMemoryWorkspaceRepository) Get(ctx context.Context, id string) (*usecases.Workspace, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    ws, ok := r.workspaces[id]
    if !ok {
        return nil, graph.ErrCanvasNotFound
    }
    return ws, nil
}

// List returns every workspace in creation order
func (r *InMemoryWorkspaceRepository) List(ctx context.Context) ([]*usecases.Workspace, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    out := make([]*usecases.Workspace, 0, len(r.order))
    for _, id := range r.order {
        out = append(out, r.workspaces[id])
    }
    return out, nil
}

func (r *InMemoryWorkspaceRepository) Delete(ctx context.Context, id string) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    if _, ok := r.workspaces[id]; !ok {
        return graph.ErrCanvasNotFound
    }
    delete(r.workspaces, id)
    for i, v := range r.order {
        if v == id {
            r.order = append(r.order[:i], r.order[i+1:]...)
            break
        }
    }
    return nil
}

var _ usecases.WorkspaceRepository = (*InMemoryWorkspaceRepository)(nil)
