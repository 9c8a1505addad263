package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepseesa/promptea/internal/core/graph"
	"github.com/sandeepseesa/promptea/internal/core/snapshot"
	"github.com/sandeepseesa/promptea/pkg/serialization"
)

func newSaver(t *testing.T) *SnapshotSaver {
	t.Helper()
	saver, err := Open(context.Background(), ":memory:", serialization.DefaultSerializer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = saver.Close() })
	return saver
}

func testSnapshot(id, canvasID string, ts time.Time) *snapshot.Snapshot {
	q := &graph.Node{ID: "q", Type: graph.NodeTypeQuery, Data: map[string]interface{}{
		graph.FieldLabel: "User Query",
		graph.FieldQuery: "what is a vector?",
	}}
	return &snapshot.Snapshot{
		ID:        id,
		CanvasID:  canvasID,
		Canvas:    &graph.Canvas{ID: canvasID, Nodes: []*graph.Node{q}},
		Session:   map[string]string{"uploadedDocumentName": "notes.pdf"},
		Metadata:  snapshot.Metadata{Label: "before demo", NodeCount: 1},
		Timestamp: ts,
		Version:   snapshot.CurrentVersion,
	}
}

func TestSQLiteSnapshotSaver(t *testing.T) {
	ctx := context.Background()
	saver := newSaver(t)

	snap := testSnapshot("s1", "c1", time.Now())
	require.NoError(t, saver.Save(ctx, snap))

	loaded, err := saver.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "c1", loaded.CanvasID)
	assert.Equal(t, "before demo", loaded.Metadata.Label)
	assert.Equal(t, "notes.pdf", loaded.Session["uploadedDocumentName"])
	require.Len(t, loaded.Canvas.Nodes, 1)
	assert.Equal(t, "what is a vector?", loaded.Canvas.Nodes[0].String(graph.FieldQuery))

	snap.Metadata.Label = "renamed"
	require.NoError(t, saver.Save(ctx, snap), "saving the same ID replaces it")
	loaded, err = saver.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", loaded.Metadata.Label)

	require.NoError(t, saver.Delete(ctx, "s1"))
	_, err = saver.Load(ctx, "s1")
	assert.ErrorIs(t, err, snapshot.ErrSnapshotNotFound)
	assert.ErrorIs(t, saver.Delete(ctx, "s1"), snapshot.ErrSnapshotNotFound)
}

func TestSQLiteSnapshotSaver_List(t *testing.T) {
	ctx := context.Background()
	saver := newSaver(t)

	base := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, saver.Save(ctx, testSnapshot(fmt.Sprintf("s%d", i), "c1", base.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, saver.Save(ctx, testSnapshot("x", "c2", base)))

	tests := []struct {
		name   string
		filter snapshot.Filter
		want   []string
	}{
		{name: "all of one canvas", filter: snapshot.Filter{CanvasID: "c1"}, want: []string{"s3", "s2", "s1", "s0"}},
		{name: "limit", filter: snapshot.Filter{CanvasID: "c1", Limit: 2}, want: []string{"s3", "s2"}},
		{name: "offset without limit", filter: snapshot.Filter{CanvasID: "c1", Offset: 3}, want: []string{"s0"}},
		{name: "other canvas", filter: snapshot.Filter{CanvasID: "c2"}, want: []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := saver.List(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, s := range list {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSQLiteSnapshotSaver_Errors(t *testing.T) {
	ctx := context.Background()
	saver := newSaver(t)

	assert.ErrorIs(t, saver.Save(ctx, nil), snapshot.ErrInvalidSnapshotID)
	assert.ErrorIs(t, saver.Save(ctx, &snapshot.Snapshot{ID: "s"}), snapshot.ErrInvalidCanvasID)
	_, err := saver.Load(ctx, "")
	assert.ErrorIs(t, err, snapshot.ErrInvalidSnapshotID)
	_, err = saver.List(ctx, snapshot.Filter{Offset: -1})
	assert.ErrorIs(t, err, snapshot.ErrInvalidOffset)
}

func TestWithTableName(t *testing.T) {
	s := NewSnapshotSaver(nil, nil)
	assert.Equal(t, "snapshots", s.WithTableName("bad; DROP TABLE x").tableName)
	assert.Equal(t, "canvas_snapshots", s.WithTableName("canvas_snapshots").tableName)
}

func TestSQLiteSnapshotSaver_TranscriptSurvivesEachCodec(t *testing.T) {
	for _, codec := range []string{"json", "msgpack"} {
		t.Run(codec, func(t *testing.T) {
			ctx := context.Background()
			s, err := serialization.FromOptions(codec, "gzip", nil)
			require.NoError(t, err)
			saver, err := Open(ctx, ":memory:", s)
			require.NoError(t, err)
			defer saver.Close()

			out := &graph.Node{ID: "o", Type: graph.NodeTypeOutput, Data: map[string]interface{}{
				graph.FieldLabel:    "Output",
				graph.FieldMessages: []graph.Message{
					graph.UserMessage("what is a vector?"),
					{Sender: graph.SenderAssistant, Kind: graph.MessageKindText, Text: "A list of numbers.", ModelUsed: "gemini", CreatedAt: time.Now()},
				},
			}}
			snap := testSnapshot("s1", "c1", time.Now())
			snap.Canvas.Nodes = append(snap.Canvas.Nodes, out)
			require.NoError(t, saver.Save(ctx, snap))

			loaded, err := saver.Load(ctx, "s1")
			require.NoError(t, err)
			require.NoError(t, loaded.Canvas.Validate())
			require.Len(t, loaded.Canvas.Nodes, 2)

			msgs := loaded.Canvas.Nodes[1].Messages()
			require.Len(t, msgs, 2)
			assert.Equal(t, graph.SenderUser, msgs[0].Sender)
			assert.Equal(t, "A list of numbers.", msgs[1].Text)
			assert.Equal(t, "gemini", msgs[1].ModelUsed)
		})
	}
}
