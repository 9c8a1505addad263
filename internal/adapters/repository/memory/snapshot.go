// Package memory keeps canvas snapshots in process memory
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sandeepseesa/promptea/internal/core/snapshot"
	"github.com/sandeepseesa/promptea/pkg/serialization"
)

// InMemorySaver implements snapshot.Saver with thread-safe in-memory storage.
// Snapshots are stored serialized so a loaded snapshot never aliases the
// saved one.
// PRINCIPLES:
// - KISS: Simple in-memory map with proper concurrency
// - SRP: Single responsibility for in-memory snapshot storage
// - DIP: Implements snapshot.Saver interface
type InMemorySaver struct {
	mu      sync.RWMutex
	entries map[string]*entry

	ttl          time.Duration
	maxPerCanvas int
	serializer   *serialization.Serializer

	// Cleanup
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupOnce   sync.Once
}

// InMemoryConfig holds configuration for InMemorySaver
type InMemoryConfig struct {
	TTL             time.Duration             // Snapshot lifetime; 0 keeps them until deleted
	MaxPerCanvas    int                       // Oldest snapshots beyond this are evicted; 0 is unlimited
	CleanupInterval time.Duration             // How often expired snapshots are swept
	Serializer      *serialization.Serializer // Custom serializer (optional)
}

type entry struct {
	canvasID  string
	timestamp time.Time
	data      []byte
	expiresAt time.Time
}

// NewInMemorySaver creates a new in-memory snapshot saver
func NewInMemorySaver(config InMemoryConfig) *InMemorySaver {
	if config.CleanupInterval == 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.Serializer == nil {
		config.Serializer = serialization.DefaultSerializer()
	}

	s := &InMemorySaver{
		entries:      make(map[string]*entry),
		ttl:          config.TTL,
		maxPerCanvas: config.MaxPerCanvas,
		serializer:   config.Serializer,
		stopCleanup:  make(chan struct{}),
	}
	if s.ttl > 0 {
		s.startCleanup(config.CleanupInterval)
	}
	return s
}

// DefaultInMemorySaver creates an InMemorySaver with default configuration
func DefaultInMemorySaver() *InMemorySaver {
	return NewInMemorySaver(InMemoryConfig{})
}

// Save stores a snapshot, replacing one with the same ID
func (s *InMemorySaver) Save(_ context.Context, snap *snapshot.Snapshot) error {
	if snap == nil {
		return snapshot.ErrInvalidSnapshotID
	}
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("snapshot validation failed: %w", err)
	}

	data, err := s.serializer.Serialize(snap)
	if err != nil {
		return fmt.Errorf("snapshot serialization failed: %w", err)
	}

	e := &entry{canvasID: snap.CanvasID, timestamp: snap.Timestamp, data: data}
	if s.ttl > 0 {
		e.expiresAt = time.Now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[snap.ID] = e
	s.evictLocked(snap.CanvasID)
	return nil
}

// Load retrieves a snapshot by ID
func (s *InMemorySaver) Load(_ context.Context, id string) (*snapshot.Snapshot, error) {
	if id == "" {
		return nil, snapshot.ErrInvalidSnapshotID
	}

	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || s.expired(e) {
		return nil, snapshot.ErrSnapshotNotFound
	}

	var snap snapshot.Snapshot
	if err := s.serializer.Deserialize(e.data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot deserialization failed: %w", err)
	}
	return &snap, nil
}

// List returns snapshots matching the filter, newest first
func (s *InMemorySaver) List(ctx context.Context, filter snapshot.Filter) ([]*snapshot.Snapshot, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter validation failed: %w", err)
	}

	type candidate struct {
		id string
		e  *entry
	}
	s.mu.RLock()
	var matches []candidate
	for id, e := range s.entries {
		if s.expired(e) {
			continue
		}
		// Cheap pre-filter on the unserialized fields
		if filter.CanvasID != "" && e.canvasID != filter.CanvasID {
			continue
		}
		matches = append(matches, candidate{id, e})
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].e.timestamp.Equal(matches[j].e.timestamp) {
			return matches[i].id > matches[j].id
		}
		return matches[i].e.timestamp.After(matches[j].e.timestamp)
	})

	var out []*snapshot.Snapshot
	skipped := 0
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var snap snapshot.Snapshot
		if err := s.serializer.Deserialize(m.e.data, &snap); err != nil {
			return nil, fmt.Errorf("snapshot deserialization failed: %w", err)
		}
		if !filter.Matches(&snap) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, &snap)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Delete removes a snapshot by ID
func (s *InMemorySaver) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return snapshot.ErrSnapshotNotFound
	}
	delete(s.entries, id)
	return nil
}

// Len returns the number of stored snapshots, expired ones included
func (s *InMemorySaver) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the cleanup goroutine
func (s *InMemorySaver) Close() error {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
		if s.cleanupTicker != nil {
			s.cleanupTicker.Stop()
		}
	})
	return nil
}

func (s *InMemorySaver) expired(e *entry) bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// evictLocked drops the oldest snapshots of canvasID beyond maxPerCanvas
func (s *InMemorySaver) evictLocked(canvasID string) {
	if s.maxPerCanvas <= 0 {
		return
	}
	var ids []string
	for id, e := range s.entries {
		if e.canvasID == canvasID {
			ids = append(ids, id)
		}
	}
	if len(ids) <= s.maxPerCanvas {
		return
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.entries[ids[i]].timestamp.Before(s.entries[ids[j]].timestamp)
	})
	for _, id := range ids[:len(ids)-s.maxPerCanvas] {
		delete(s.entries, id)
	}
}

func (s *InMemorySaver) startCleanup(interval time.Duration) {
	s.cleanupTicker = time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.cleanupTicker.C:
				s.cleanupExpired()
			case <-s.stopCleanup:
				return
			}
		}
	}()
}

func (s *InMemorySaver) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
		}
	}
}
