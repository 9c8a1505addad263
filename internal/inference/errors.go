package inference

import "errors"

var (
	ErrUnsupportedFormat = errors.New("only PDF and DOCX files are supported")
	ErrDocumentExists    = errors.New("document already exists")
	ErrUnknownModel      = errors.New("model not supported")
	ErrEmptyDocument     = errors.New("no text could be extracted from the document")
	ErrNoCompletion      = errors.New("model returned no completion")
)
