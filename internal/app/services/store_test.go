package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepseesa/promptea/internal/app/dto"
	"github.com/sandeepseesa/promptea/internal/core/graph"
)

func kindNode(id string, t graph.NodeType) *graph.Node {
	kind, _ := graph.LookupKind(t)
	return &graph.Node{ID: id, Type: t, Data: kind.DefaultData()}
}

func recordEvents(s *Store) (*[]ChangeEvent, func()) {
	var mu sync.Mutex
	var events []ChangeEvent
	unsub := s.Subscribe(func(ev ChangeEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	return &events, unsub
}

func TestStore_AddNodePublishes(t *testing.T) {
	s := NewStore(nil)
	events, unsub := recordEvents(s)
	defer unsub()

	require.NoError(t, s.AddNode(kindNode("q", graph.NodeTypeQuery)))
	err := s.AddNode(kindNode("q2", graph.NodeTypeQuery))
	assert.ErrorIs(t, err, graph.ErrDuplicateNodeType)

	require.Len(t, *events, 1, "rejected add publishes nothing")
	ev := (*events)[0]
	assert.Equal(t, EventNodeAdded, ev.Type)
	assert.Equal(t, "q", ev.Node.ID)
	assert.Equal(t, s.ID(), ev.CanvasID)
	assert.Len(t, s.Canvas().Nodes, 1)
}

func TestStore_EventsAreOrdered(t *testing.T) {
	s := NewStore(nil)
	events, unsub := recordEvents(s)
	defer unsub()

	require.NoError(t, s.AddNode(kindNode("q", graph.NodeTypeQuery)))
	require.NoError(t, s.UpdateNodeData("q", map[string]interface{}{graph.FieldQuery: "hi"}))
	require.NoError(t, s.UpdateNodePosition("q", graph.Position{X: 5, Y: 6}))

	require.Len(t, *events, 3)
	for i, ev := range *events {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
	assert.Equal(t, []EventType{EventNodeAdded, EventNodeUpdated, EventNodeMoved},
		[]EventType{(*events)[0].Type, (*events)[1].Type, (*events)[2].Type})
}

func TestStore_Unsubscribe(t *testing.T) {
	s := NewStore(nil)
	events, unsub := recordEvents(s)
	unsub()
	unsub()

	require.NoError(t, s.AddNode(kindNode("q", graph.NodeTypeQuery)))
	assert.Empty(t, *events)
}

func TestStore_AddNodeIfAbsent(t *testing.T) {
	s := NewStore(nil)

	first, created, err := s.AddNodeIfAbsent(kindNode("o1", graph.NodeTypeOutput))
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := s.AddNodeIfAbsent(kindNode("o2", graph.NodeTypeOutput))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, s.Canvas().Nodes, 1)
}

func TestStore_AppendMessagesConcurrently(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.AddNode(kindNode("o", graph.NodeTypeOutput)))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AppendMessages("o", []graph.Message{graph.UserMessage("x")}, nil)
		}()
	}
	wg.Wait()

	n, err := s.Node("o")
	require.NoError(t, err)
	assert.Len(t, n.Messages(), 20)
}

func TestStore_ReadsAreCopies(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.AddNode(kindNode("q", graph.NodeTypeQuery)))

	n, err := s.Node("q")
	require.NoError(t, err)
	n.Data[graph.FieldQuery] = "mutated"

	fresh, _ := s.Node("q")
	assert.Empty(t, fresh.String(graph.FieldQuery))
}

func TestStore_SelectionAndRemoval(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.AddNode(kindNode("q", graph.NodeTypeQuery)))
	require.NoError(t, s.AddNode(kindNode("o", graph.NodeTypeOutput)))
	edge, err := s.Connect("q", "o")
	require.NoError(t, err)

	assert.ErrorIs(t, s.SetSelected([]string{"q", "nope"}, true), graph.ErrNodeNotFound)
	n, _ := s.Node("q")
	assert.False(t, n.Selected, "failed selection changes nothing")

	require.NoError(t, s.SetSelected([]string{edge.ID}, true))
	nodes, edges := s.RemoveSelected()
	assert.Empty(t, nodes)
	assert.Equal(t, []string{edge.ID}, edges)
	assert.Empty(t, s.Canvas().Edges)

	nodes, edges = s.RemoveSelected()
	assert.Nil(t, nodes)
	assert.Nil(t, edges)
}

func TestStore_ReplaceKeepsID(t *testing.T) {
	s := NewStore(nil)
	id := s.ID()
	s.Replace(&graph.Canvas{ID: "other", Nodes: []*graph.Node{kindNode("q", graph.NodeTypeQuery)}})

	c := s.Canvas()
	assert.Equal(t, id, c.ID)
	assert.Len(t, c.Nodes, 1)
}

func TestSession_Owners(t *testing.T) {
	s := NewSession()

	require.NoError(t, s.Set(graph.NodeTypeModelSelector, KeySelectedModel, graph.ModelGemini))
	require.NoError(t, s.Set(graph.NodeTypeKnowledgeBase, KeyUploadedDocumentName, "doc.pdf"))

	err := s.Set(graph.NodeTypeQuery, KeySelectedModel, graph.ModelSerpAPI)
	assert.ErrorIs(t, err, dto.ErrNotKeyOwner)
	assert.ErrorIs(t, s.Set(graph.NodeTypeQuery, "colour", "red"), dto.ErrUnknownSessionKey)

	assert.Equal(t, graph.ModelGemini, s.SelectedModel())
	assert.Equal(t, "doc.pdf", s.UploadedDocumentName())
}

func TestSession_LastWriterWinsAndRestore(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Set(graph.NodeTypeModelSelector, KeySelectedModel, graph.ModelGemini))
	require.NoError(t, s.Set(graph.NodeTypeModelSelector, KeySelectedModel, graph.ModelLlama3))
	assert.Equal(t, graph.ModelLlama3, s.SelectedModel())

	s.Restore(map[string]string{KeyUploadedDocumentName: "a.docx", "stray": "x"})
	assert.Equal(t, map[string]string{KeyUploadedDocumentName: "a.docx"}, s.Values())
}

func TestStoreSession_PublishesChanges(t *testing.T) {
	store := NewStore(nil)
	events, unsub := recordEvents(store)
	defer unsub()

	s := NewStoreSession(store)
	require.NoError(t, s.Set(graph.NodeTypeModelSelector, KeySelectedModel, graph.ModelSerpAPI))

	require.Len(t, *events, 1)
	assert.Equal(t, EventSessionChanged, (*events)[0].Type)
	assert.Equal(t, KeySelectedModel, (*events)[0].Key)
	assert.Equal(t, graph.ModelSerpAPI, (*events)[0].Value)
}

func TestStoreSession_RestorePublishesChangedKeys(t *testing.T) {
	store := NewStore(nil)
	s := NewStoreSession(store)
	require.NoError(t, s.Set(graph.NodeTypeModelSelector, KeySelectedModel, graph.ModelGemini))
	require.NoError(t, s.Set(graph.NodeTypeKnowledgeBase, KeyUploadedDocumentName, "a.docx"))

	events, unsub := recordEvents(store)
	defer unsub()

	s.Restore(map[string]string{KeySelectedModel: graph.ModelGemini, "stray": "x"})

	require.Len(t, *events, 1, "only the cleared document is reported")
	assert.Equal(t, EventSessionChanged, (*events)[0].Type)
	assert.Equal(t, KeyUploadedDocumentName, (*events)[0].Key)
	assert.Empty(t, (*events)[0].Value)

	s.Restore(map[string]string{KeySelectedModel: graph.ModelLlama3, KeyUploadedDocumentName: "b.pdf"})
	require.Len(t, *events, 3)
	assert.Equal(t, KeySelectedModel, (*events)[1].Key)
	assert.Equal(t, graph.ModelLlama3, (*events)[1].Value)
	assert.Equal(t, KeyUploadedDocumentName, (*events)[2].Key)
	assert.Equal(t, "b.pdf", (*events)[2].Value)
}
