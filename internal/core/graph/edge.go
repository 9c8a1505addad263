// Package graph provides edge definitions
package graph

// Edge represents a directed connection between two nodes
// PRINCIPLES:
// - KISS: Simple edge representation
// - SRP: Only responsible for edge data
type Edge struct {
	ID       string `json:"id" msgpack:"id"`
	Source   string `json:"source" msgpack:"source"` // Source node ID
	Target   string `json:"target" msgpack:"target"` // Target node ID
	Selected bool   `json:"selected,omitempty" msgpack:"selected,omitempty"`
}

// Validate ensures edge integrity
// PRINCIPLES:
// - SRP: Single responsibility - validation only
// - KISS: Simple validation, <10 lines
func (e *Edge) Validate() error {
	if e.Source == "" {
		return ErrInvalidSource
	}
	if e.Target == "" {
		return ErrInvalidTarget
	}
	if e.Source == e.Target {
		return ErrSelfLoop
	}
	return nil
}

// Touches reports whether the edge has nodeID as either endpoint
func (e *Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}
