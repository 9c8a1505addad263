package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store ranking by cosine similarity
type Memory struct {
	mu         sync.RWMutex
	dimensions int
	docs       map[string][]Chunk
}

// NewMemory creates an empty store. dimensions of 0 accepts any length.
func NewMemory(dimensions int) *Memory {
	return &Memory{dimensions: dimensions, docs: make(map[string][]Chunk)}
}

func (m *Memory) Exists(_ context.Context, documentID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[documentID]) > 0, nil
}

func (m *Memory) Add(_ context.Context, chunks []Chunk) error {
	for _, c := range chunks {
		if err := m.checkDims(c.Embedding); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.Embedding = append([]float32(nil), c.Embedding...)
		m.docs[c.DocumentID] = append(m.docs[c.DocumentID], c)
	}
	return nil
}

func (m *Memory) Query(_ context.Context, documentID string, vector []float32, k int) ([]Match, error) {
	if err := m.checkDims(vector); err != nil {
		return nil, err
	}
	m.mu.RLock()
	chunks := m.docs[documentID]
	matches := make([]Match, 0, len(chunks))
	for _, c := range chunks {
		matches = append(matches, Match{Chunk: c, Score: Cosine(vector, c.Embedding)})
	}
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Len returns the number of stored chunks
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.docs {
		n += len(c)
	}
	return n
}

func (m *Memory) Close() error { return nil }

func (m *Memory) checkDims(v []float32) error {
	if m.dimensions > 0 && len(v) != m.dimensions {
		return fmt.Errorf("%w: want %d, got %d", ErrDimensionMismatch, m.dimensions, len(v))
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ Store = (*Memory)(nil)
