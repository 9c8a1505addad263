package services

import (
	"fmt"
	"sync"

	"github.com/sandeepseesa/promptea/internal/app/dto"
	"github.com/sandeepseesa/promptea/internal/core/graph"
)

// Session keys shared between node kinds
const (
	KeySelectedModel        = "selectedModel"
	KeyUploadedDocumentName = "uploadedDocumentName"
)

// keyOwners lists which node kind may write each session key
var keyOwners = map[string]graph.NodeType{
	KeySelectedModel:        graph.NodeTypeModelSelector,
	KeyUploadedDocumentName: graph.NodeTypeKnowledgeBase,
}

// sessionKeys orders keyOwners for change reporting
var sessionKeys = []string{KeySelectedModel, KeyUploadedDocumentName}

// Session holds the canvas-wide values nodes share. Writes are
// last-writer-wins; each key has one owning node kind.
// PRINCIPLES:
// - SRP: Shared values only, no canvas state
// - KISS: Fixed key set, no versioning
type Session struct {
	mu     sync.RWMutex
	values map[string]string
	// onChange is called after a successful write, outside the lock
	onChange func(key, value string)
}

// NewSession creates an empty session
func NewSession() *Session {
	return &Session{values: make(map[string]string, len(keyOwners))}
}

// NewStoreSession creates a session whose writes are published as store
// events.
func NewStoreSession(store *Store) *Session {
	s := NewSession()
	s.onChange = func(key, value string) {
		store.notify(ChangeEvent{Type: EventSessionChanged, Key: key, Value: value})
	}
	return s
}

// Set writes key on behalf of a node of type writer
func (s *Session) Set(writer graph.NodeType, key, value string) error {
	owner, ok := keyOwners[key]
	if !ok {
		return fmt.Errorf("%w: %s", dto.ErrUnknownSessionKey, key)
	}
	if owner != writer {
		return fmt.Errorf("%w: %s cannot write %s", dto.ErrNotKeyOwner, writer, key)
	}

	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(key, value)
	}
	return nil
}

// Get returns the value of key, or "" when unset
func (s *Session) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// SelectedModel returns the last model chosen on any model selector
func (s *Session) SelectedModel() string { return s.Get(KeySelectedModel) }

// UploadedDocumentName returns the last document uploaded on any knowledge base
func (s *Session) UploadedDocumentName() string { return s.Get(KeyUploadedDocumentName) }

// Values returns a copy of every set key
func (s *Session) Values() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Restore replaces the session's values. Unknown keys are dropped. Every
// key whose value changes is reported like a write; a cleared key reports "".
func (s *Session) Restore(values map[string]string) {
	next := make(map[string]string, len(keyOwners))
	for k, v := range values {
		if _, ok := keyOwners[k]; ok {
			next[k] = v
		}
	}

	s.mu.Lock()
	prev := s.values
	s.values = next
	s.mu.Unlock()

	if s.onChange == nil {
		return
	}
	for _, key := range sessionKeys {
		if prev[key] != next[key] {
			s.onChange(key, next[key])
		}
	}
}
