// Package snapshot provides the canvas snapshot domain entities and
// interfaces following Clean Architecture principles with zero external
// dependencies.
package snapshot

import (
	"time"

	"github.com/sandeepseesa/promptea/internal/core/graph"
)

// Snapshot is an explicitly saved copy of a canvas and its session state.
// Canvases live in memory; a snapshot is only taken on request.
// PRINCIPLES:
// - KISS: Simple struct with clear fields
// - SRP: Only responsible for snapshot data structure
type Snapshot struct {
	ID        string            `json:"id" msgpack:"id"`
	CanvasID  string            `json:"canvas_id" msgpack:"canvas_id"`
	Canvas    *graph.Canvas     `json:"canvas" msgpack:"canvas"`
	Session   map[string]string `json:"session,omitempty" msgpack:"session,omitempty"`
	Metadata  Metadata          `json:"metadata" msgpack:"metadata"`
	Timestamp time.Time         `json:"timestamp" msgpack:"timestamp"`
	Version   string            `json:"version" msgpack:"version"`
}

// Metadata contains additional information about a snapshot
type Metadata struct {
	Label     string   `json:"label,omitempty" msgpack:"label,omitempty"`
	Source    string   `json:"source" msgpack:"source"`
	NodeCount int      `json:"node_count" msgpack:"node_count"`
	EdgeCount int      `json:"edge_count" msgpack:"edge_count"`
	Tags      []string `json:"tags,omitempty" msgpack:"tags,omitempty"`
}

// CurrentVersion is written to every new snapshot
const CurrentVersion = "1"

// Validate ensures snapshot integrity
// PRINCIPLES:
// - SRP: Single responsibility - validation only
// - KISS: Simple validation rules, easy to understand
func (s *Snapshot) Validate() error {
	if s.ID == "" {
		return ErrInvalidSnapshotID
	}
	if s.CanvasID == "" {
		return ErrInvalidCanvasID
	}
	if s.Canvas == nil {
		return ErrNilCanvas
	}
	return nil
}
