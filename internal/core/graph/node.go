// Package graph provides node definitions
package graph

import (
	"math"
	"time"
)

// NodeType represents the type of node
type NodeType string

const (
	// NodeTypeQuery holds the user's free-text question
	NodeTypeQuery NodeType = "query"
	// NodeTypeKnowledgeBase holds an uploaded document reference
	NodeTypeKnowledgeBase NodeType = "knowledge-base"
	// NodeTypeModelSelector holds the chosen model identifier
	NodeTypeModelSelector NodeType = "model-selector"
	// NodeTypeOutput holds the chat transcript
	NodeTypeOutput NodeType = "output"
)

// Well-known data fields. Each Kind declares which of them it owns.
const (
	FieldLabel        = "label"
	FieldType         = "type"
	FieldQuery        = "query"
	FieldModel        = "model"
	FieldDocumentName = "documentName"
	FieldStatus       = "status"
	FieldMessages     = "messages"
)

// Position is a point in canvas space
type Position struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Validate rejects NaN and infinite coordinates
func (p Position) Validate() error {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return ErrInvalidPosition
	}
	return nil
}

// Node represents a vertex on the canvas
// PRINCIPLES:
// - KISS: Simple node representation
// - SRP: Only responsible for node data
type Node struct {
	ID        string                 `json:"id" msgpack:"id"`
	Type      NodeType               `json:"type" msgpack:"type"`
	Position  Position               `json:"position" msgpack:"position"`
	Data      map[string]interface{} `json:"data" msgpack:"data"`
	Selected  bool                   `json:"selected,omitempty" msgpack:"selected,omitempty"`
	CreatedAt time.Time              `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" msgpack:"updated_at"`
}

// Validate ensures node integrity
// PRINCIPLES:
// - SRP: Single responsibility - validation only
// - KISS: Simple validation, <10 lines
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if n.Type == "" {
		return ErrInvalidNodeType
	}
	if _, ok := LookupKind(n.Type); !ok {
		return ErrUnknownNodeType
	}
	return n.Position.Validate()
}

// String returns a data field as a string, or "" if absent or not a string.
func (n *Node) String(field string) string {
	if n == nil || n.Data == nil {
		return ""
	}
	s, _ := n.Data[field].(string)
	return s
}

// Messages returns the node's transcript. Output nodes only; others return nil.
func (n *Node) Messages() []Message {
	if n == nil || n.Data == nil {
		return nil
	}
	return messagesFrom(n.Data[FieldMessages])
}

// Clone returns a copy that shares no mutable state with n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Data = cloneData(n.Data)
	return &cp
}

func cloneData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		switch tv := v.(type) {
		case []Message:
			out[k] = append([]Message(nil), tv...)
		case map[string]interface{}:
			out[k] = cloneData(tv)
		default:
			out[k] = v
		}
	}
	return out
}
