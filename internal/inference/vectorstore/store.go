// Package vectorstore keeps embedded document chunks and retrieves the
// ones closest to a query vector.
package vectorstore

import (
	"context"
	"errors"
)

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrLengthMismatch    = errors.New("chunks and embeddings differ in length")
)

// Chunk is one stored piece of a document
type Chunk struct {
	ID         string
	DocumentID string
	Text       string
	Embedding  []float32
}

// Match is a retrieved chunk with its cosine similarity to the query
type Match struct {
	Chunk
	Score float64
}

// Store keeps chunks per document
// PRINCIPLES:
// - ISP: Only what upload and search need
// - DIP: Backed by memory or pgvector
type Store interface {
	// Exists reports whether any chunk of documentID is stored
	Exists(ctx context.Context, documentID string) (bool, error)
	// Add stores chunks; IDs are assigned when empty
	Add(ctx context.Context, chunks []Chunk) error
	// Query returns up to k chunks of documentID, most similar first
	Query(ctx context.Context, documentID string, vector []float32, k int) ([]Match, error)
	Close() error
}
