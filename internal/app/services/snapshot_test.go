package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepseesa/promptea/internal/adapters/repository/memory"
	"github.com/sandeepseesa/promptea/internal/core/graph"
	"github.com/sandeepseesa/promptea/internal/core/snapshot"
)

func TestSnapshotService_CreateAndRestore(t *testing.T) {
	ctx := context.Background()
	svc := NewSnapshotService(memory.DefaultInMemorySaver())

	store := NewStore(nil)
	session := NewStoreSession(store)
	require.NoError(t, store.AddNode(kindNode("q", graph.NodeTypeQuery)))
	require.NoError(t, store.AddNode(kindNode("o", graph.NodeTypeOutput)))
	_, err := store.Connect("q", "o")
	require.NoError(t, err)
	require.NoError(t, session.Set(graph.NodeTypeModelSelector, KeySelectedModel, graph.ModelGemini))

	snap, err := svc.Create(ctx, store, session, "before edits")
	require.NoError(t, err)
	assert.Equal(t, store.ID(), snap.CanvasID)
	assert.Equal(t, 2, snap.Metadata.NodeCount)
	assert.Equal(t, 1, snap.Metadata.EdgeCount)
	assert.Equal(t, "before edits", snap.Metadata.Label)
	assert.Equal(t, snapshot.CurrentVersion, snap.Version)

	// Diverge, then roll back
	require.NoError(t, store.SetSelected([]string{"o"}, true))
	store.RemoveSelected()
	require.NoError(t, session.Set(graph.NodeTypeModelSelector, KeySelectedModel, graph.ModelLlama3))
	require.Len(t, store.Canvas().Nodes, 1)

	restored, err := svc.Restore(ctx, snap.ID, store, session)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, restored.ID)
	assert.Len(t, store.Canvas().Nodes, 2)
	assert.Len(t, store.Canvas().Edges, 1)
	assert.Equal(t, graph.ModelGemini, session.SelectedModel())
}

func TestSnapshotService_RestoreRejectsInvalidCanvas(t *testing.T) {
	ctx := context.Background()
	saver := memory.DefaultInMemorySaver()
	svc := NewSnapshotService(saver)

	bad := &snapshot.Snapshot{
		ID:       "bad",
		CanvasID: "c1",
		Canvas: &graph.Canvas{ID: "c1", Nodes: []*graph.Node{
			{ID: "m", Type: graph.NodeTypeModelSelector, Data: map[string]interface{}{graph.FieldModel: "gpt-9"}},
		}},
		Timestamp: time.Now(),
		Version:   snapshot.CurrentVersion,
	}
	require.NoError(t, saver.Save(ctx, bad))

	store := NewStore(nil)
	require.NoError(t, store.AddNode(kindNode("q", graph.NodeTypeQuery)))

	_, err := svc.Restore(ctx, "bad", store, nil)
	assert.ErrorIs(t, err, graph.ErrInvalidCanvas)
	assert.Len(t, store.Canvas().Nodes, 1, "a bad snapshot changes nothing")

	_, err = svc.Restore(ctx, "missing", store, nil)
	assert.ErrorIs(t, err, snapshot.ErrSnapshotNotFound)
}

func TestSnapshotService_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	saver := memory.DefaultInMemorySaver()
	svc := NewSnapshotService(saver)

	base := time.Now()
	for i, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, saver.Save(ctx, &snapshot.Snapshot{
			ID:        id,
			CanvasID:  "c1",
			Canvas:    &graph.Canvas{ID: "c1"},
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Version:   snapshot.CurrentVersion,
		}))
	}
	require.NoError(t, saver.Save(ctx, &snapshot.Snapshot{
		ID: "other", CanvasID: "c2", Canvas: &graph.Canvas{ID: "c2"}, Timestamp: base, Version: snapshot.CurrentVersion,
	}))

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"default limit", 0, []string{"s3", "s2", "s1"}},
		{"limited", 2, []string{"s3", "s2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snaps, err := svc.List(ctx, "c1", tt.limit)
			require.NoError(t, err)
			ids := make([]string, 0, len(snaps))
			for _, s := range snaps {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	require.NoError(t, svc.Delete(ctx, "s2"))
	_, err := svc.Load(ctx, "s2")
	assert.ErrorIs(t, err, snapshot.ErrSnapshotNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "s2"), snapshot.ErrSnapshotNotFound)
}
