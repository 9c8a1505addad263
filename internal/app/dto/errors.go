package dto

import "errors"

// Workflow errors
var (
	ErrMissingCanvasID     = errors.New("canvas ID is required")
	ErrEmptyQuery          = errors.New("please enter a query before running the workflow")
	ErrRunInFlight         = errors.New("a request is already running for this node")
	ErrNothingInFlight     = errors.New("no request is running for this node")
	ErrUnsupportedDocument = errors.New("only .pdf and .docx documents are supported")
	ErrInvalidModel        = errors.New("unsupported model")
	ErrNotKeyOwner         = errors.New("node type does not own this session key")
	ErrUnknownSessionKey   = errors.New("unknown session key")
	ErrNoOutputNode        = errors.New("no output node on the canvas")
)
