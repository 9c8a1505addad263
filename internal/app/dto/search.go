package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SearchRequest is the body of a backend search call. DocumentName is
// serialised as null when no document is attached.
type SearchRequest struct {
	Query        string  `json:"query"`
	Model        string  `json:"model"`
	DocumentName *string `json:"documentName"`
}

// Document returns the attached document name, or ""
func (r SearchRequest) Document() string {
	if r.DocumentName == nil {
		return ""
	}
	return *r.DocumentName
}

// SearchResponse is the backend's reply. Error and Answer are kept raw:
// their presence and shape drive classification.
type SearchResponse struct {
	Error     json.RawMessage `json:"error,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	ModelUsed string          `json:"model_used,omitempty"`
}

// HasError reports whether the response carries a non-empty error value.
// null, false, 0 and "" count as absent.
func (r *SearchResponse) HasError() bool {
	return truthy(r.Error)
}

// ErrorText renders the error value for display. String values are
// unquoted; anything else is shown as its JSON text.
func (r *SearchResponse) ErrorText() string {
	var s string
	if err := json.Unmarshal(r.Error, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(r.Error))
}

// AnswerIsList reports whether answer is a JSON array
func (r *SearchResponse) AnswerIsList() bool {
	trimmed := bytes.TrimSpace(r.Answer)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// AnswerText returns the answer as display text. ok is false when the
// answer is absent or empty.
func (r *SearchResponse) AnswerText() (text string, ok bool) {
	if !truthy(r.Answer) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(r.Answer, &s); err == nil {
		return s, true
	}
	return string(bytes.TrimSpace(r.Answer)), true
}

// UploadResponse is the backend's reply to a document upload
type UploadResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BackendError is returned when the backend answers but reports a failure
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

func truthy(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	switch s {
	case "", "null", "false", `""`, "0":
		return false
	}
	return true
}
