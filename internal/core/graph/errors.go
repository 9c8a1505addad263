// Package graph defines domain-specific errors
package graph

import "errors"

// Domain errors - DRY principle: defined once, used everywhere
var (
	// Canvas errors
	ErrCanvasNotFound = errors.New("canvas not found")
	ErrCanvasExists   = errors.New("canvas already open")
	ErrInvalidCanvas  = errors.New("invalid canvas")

	// Node errors
	ErrNilNode           = errors.New("node cannot be nil")
	ErrInvalidNodeID     = errors.New("invalid node ID")
	ErrInvalidNodeType   = errors.New("invalid node type")
	ErrUnknownNodeType   = errors.New("unknown node type")
	ErrNodeNotFound      = errors.New("node not found")
	ErrDuplicateNode     = errors.New("duplicate node ID")
	ErrDuplicateNodeType = errors.New("node type already exists on the canvas")
	ErrInvalidPosition   = errors.New("invalid position: coordinates must be finite")
	ErrFieldNotOwned     = errors.New("field is not owned by node type")
	ErrWrongNodeType     = errors.New("operation not supported by node type")

	// Edge errors
	ErrNilEdge            = errors.New("edge cannot be nil")
	ErrInvalidSource      = errors.New("invalid source node")
	ErrInvalidTarget      = errors.New("invalid target node")
	ErrSourceNodeNotFound = errors.New("source node not found")
	ErrTargetNodeNotFound = errors.New("target node not found")
	ErrDuplicateEdge      = errors.New("duplicate edge")
	ErrSelfLoop           = errors.New("self-loops are not allowed")
	ErrCyclicGraph        = errors.New("canvas contains a cycle")

	// Message errors
	ErrInvalidSender      = errors.New("invalid message sender")
	ErrInvalidMessageKind = errors.New("invalid message kind")
	ErrInvalidTranscript  = errors.New("messages field is not a transcript")
)
