package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepseesa/promptea/internal/core/graph"
	"github.com/sandeepseesa/promptea/internal/core/snapshot"
	"github.com/sandeepseesa/promptea/pkg/validation"
)

// defaultListLimit bounds List when the caller passes no limit
const defaultListLimit = 100

// SnapshotService takes and restores explicit canvas snapshots
// PRINCIPLES:
// - SRP: Manages snapshot operations for canvases
// - DIP: Depends on snapshot.Saver abstraction
type SnapshotService struct {
	saver snapshot.Saver
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(saver snapshot.Saver) *SnapshotService {
	return &SnapshotService{saver: saver}
}

// Create saves the store's canvas together with the session values
func (s *SnapshotService) Create(ctx context.Context, store *Store, session *Session, label string) (*snapshot.Snapshot, error) {
	canvas := store.Canvas()
	snap := &snapshot.Snapshot{
		ID:       uuid.NewString(),
		CanvasID: canvas.ID,
		Canvas:   canvas,
		Metadata: snapshot.Metadata{
			Label:     label,
			Source:    "promptea",
			NodeCount: len(canvas.Nodes),
			EdgeCount: len(canvas.Edges),
		},
		Timestamp: time.Now(),
		Version:   snapshot.CurrentVersion,
	}
	if session != nil {
		snap.Session = session.Values()
	}

	if err := s.saver.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	return snap, nil
}

// Load returns one snapshot
func (s *SnapshotService) Load(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	snap, err := s.saver.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snap, nil
}

// Restore loads a snapshot and writes it into store and session. The
// snapshot's canvas is validated first; a bad snapshot changes nothing.
func (s *SnapshotService) Restore(ctx context.Context, id string, store *Store, session *Session) (*snapshot.Snapshot, error) {
	snap, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateCanvas(snap.Canvas, validation.CanvasValidationOptions{CheckNodeData: true}); err != nil {
		return nil, fmt.Errorf("%w: snapshot %s: %w", graph.ErrInvalidCanvas, id, err)
	}

	store.Replace(snap.Canvas)
	if session != nil {
		session.Restore(snap.Session)
	}
	return snap, nil
}

// List returns the newest snapshots of a canvas
func (s *SnapshotService) List(ctx context.Context, canvasID string, limit int) ([]*snapshot.Snapshot, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	snaps, err := s.saver.List(ctx, snapshot.Filter{CanvasID: canvasID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snaps, nil
}

// Delete removes a snapshot
func (s *SnapshotService) Delete(ctx context.Context, id string) error {
	if err := s.saver.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
