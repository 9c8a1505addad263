package dto

import (
	"github.com/sandeepseesa/promptea/internal/core/graph"
)

// Node extent and default viewport of the canvas
const (
	ExtentMinX = 0.0
	ExtentMinY = 0.0
	ExtentMaxX = 2000.0
	ExtentMaxY = 800.0
)

// OutputPosition is where Run places an output node it has to create
var OutputPosition = graph.Position{X: 150, Y: 150}

// Viewport describes how the canvas is displayed. Pan and zoom come from
// the graph widget; bounds are the canvas element's client offsets.
type Viewport struct {
	PanX       float64 `json:"pan_x"`
	PanY       float64 `json:"pan_y"`
	Zoom       float64 `json:"zoom" validate:"omitempty,gt=0"`
	BoundsLeft float64 `json:"bounds_left"`
	BoundsTop  float64 `json:"bounds_top"`
}

// DefaultViewport is the canvas's initial view
func DefaultViewport() Viewport {
	return Viewport{PanX: 0, PanY: 30, Zoom: 0.9}
}

// Project translates a client point into canvas space and clamps it to the
// node extent.
func (v Viewport) Project(clientX, clientY float64) graph.Position {
	zoom := v.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	x := (clientX - v.BoundsLeft - v.PanX) / zoom
	y := (clientY - v.BoundsTop - v.PanY) / zoom
	return graph.Position{X: clamp(x, ExtentMinX, ExtentMaxX), Y: clamp(y, ExtentMinY, ExtentMaxY)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DropRequest creates a node from a palette drag
type DropRequest struct {
	Type     graph.NodeType `json:"type" validate:"required,node_type"`
	ClientX  float64        `json:"client_x"`
	ClientY  float64        `json:"client_y"`
	Viewport *Viewport      `json:"viewport,omitempty"`
}

// ResolveMode selects how a run finds its input nodes
type ResolveMode string

const (
	// ResolveByType takes the first node of each type on the canvas
	ResolveByType ResolveMode = "type"
	// ResolveByEdges takes nodes wired upstream of the output node
	ResolveByEdges ResolveMode = "edges"
)

// RunResult reports what a run appended
type RunResult struct {
	OutputNodeID string          `json:"output_node_id"`
	Request      SearchRequest   `json:"request"`
	Messages     []graph.Message `json:"messages"`
	// Failed is set when the reply is an error message
	Failed bool `json:"failed"`
}
