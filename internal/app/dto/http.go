package dto

import (
	"time"

	"github.com/sandeepseesa/promptea/internal/core/graph"
)

// Request bodies of the canvas service API

type CreateCanvasRequest struct {
	Name string `json:"name" validate:"max=200"`
	// Canvas optionally seeds the workspace, e.g. from an export
	Canvas *graph.Canvas `json:"canvas,omitempty"`
}

type MoveNodeRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ConnectRequest struct {
	Source string `json:"source" validate:"required,object_id"`
	Target string `json:"target" validate:"required,object_id,nefield=Source"`
}

type SelectionRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,object_id"`
	// Selected defaults to true
	Selected *bool `json:"selected,omitempty"`
}

// Value returns the requested selection flag
func (r SelectionRequest) Value() bool {
	return r.Selected == nil || *r.Selected
}

type QueryRequest struct {
	Query string `json:"query" validate:"max=10000"`
}

type ModelRequest struct {
	Model string `json:"model" validate:"required,model_id"`
}

type AskRequest struct {
	Text string `json:"text" validate:"max=10000"`
}

type SnapshotRequest struct {
	Label string `json:"label" validate:"max=200"`
}

// CanvasSummary lists one open canvas
type CanvasSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Nodes     int       `json:"nodes"`
	Edges     int       `json:"edges"`
	Running   bool      `json:"running"`
	CreatedAt time.Time `json:"created_at"`
}

// CanvasView is a canvas with the session its nodes share
type CanvasView struct {
	Canvas  *graph.Canvas     `json:"canvas"`
	Session map[string]string `json:"session"`
	Running bool              `json:"running"`
}

// RemovedResponse reports a delete-selection
type RemovedResponse struct {
	NodeIDs []string `json:"node_ids"`
	EdgeIDs []string `json:"edge_ids"`
}
