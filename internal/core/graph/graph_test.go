package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNode(id string, t NodeType) *Node {
	kind, _ := LookupKind(t)
	return &Node{ID: id, Type: t, Data: kind.DefaultData()}
}

func TestCanvas_Validate(t *testing.T) {
	tests := []struct {
		name    string
		canvas  *Canvas
		wantErr error
	}{
		{
			name: "valid canvas",
			canvas: &Canvas{
				ID:    "c1",
				Nodes: []*Node{newNode("q", NodeTypeQuery), newNode("o", NodeTypeOutput)},
				Edges: []*Edge{{ID: "e1", Source: "q", Target: "o"}},
			},
		},
		{
			name:    "missing id",
			canvas:  &Canvas{},
			wantErr: ErrCanvasNotFound,
		},
		{
			name: "duplicate unique type",
			canvas: &Canvas{
				ID:    "c1",
				Nodes: []*Node{newNode("q1", NodeTypeQuery), newNode("q2", NodeTypeQuery)},
			},
			wantErr: ErrDuplicateNodeType,
		},
		{
			name: "two output nodes allowed",
			canvas: &Canvas{
				ID:    "c1",
				Nodes: []*Node{newNode("o1", NodeTypeOutput), newNode("o2", NodeTypeOutput)},
			},
		},
		{
			name: "dangling edge",
			canvas: &Canvas{
				ID:    "c1",
				Nodes: []*Node{newNode("q", NodeTypeQuery)},
				Edges: []*Edge{{ID: "e1", Source: "q", Target: "missing"}},
			},
			wantErr: ErrTargetNodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.canvas.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCanvas_AddNode(t *testing.T) {
	c := &Canvas{ID: "c1"}

	t.Run("add valid node", func(t *testing.T) {
		node := newNode("q1", NodeTypeQuery)
		require.NoError(t, c.AddNode(node))
		got, ok := c.Node("q1")
		require.True(t, ok)
		assert.Equal(t, node, got)
		assert.False(t, node.CreatedAt.IsZero())
	})

	t.Run("add nil node", func(t *testing.T) {
		assert.ErrorIs(t, c.AddNode(nil), ErrNilNode)
	})

	t.Run("add node with unknown type", func(t *testing.T) {
		err := c.AddNode(&Node{ID: "x", Type: "widget"})
		assert.ErrorIs(t, err, ErrUnknownNodeType)
	})

	t.Run("add duplicate id", func(t *testing.T) {
		err := c.AddNode(newNode("q1", NodeTypeOutput))
		assert.ErrorIs(t, err, ErrDuplicateNode)
	})

	t.Run("constrained types reject a second node and leave the set unchanged", func(t *testing.T) {
		for _, nt := range []NodeType{NodeTypeQuery, NodeTypeKnowledgeBase, NodeTypeModelSelector} {
			fresh := &Canvas{ID: "c2"}
			require.NoError(t, fresh.AddNode(newNode("first", nt)))
			before := len(fresh.Nodes)

			err := fresh.AddNode(newNode("second", nt))
			assert.ErrorIs(t, err, ErrDuplicateNodeType, string(nt))
			assert.Len(t, fresh.Nodes, before)
		}
	})

	t.Run("output nodes are not constrained", func(t *testing.T) {
		require.NoError(t, c.AddNode(newNode("o1", NodeTypeOutput)))
		require.NoError(t, c.AddNode(newNode("o2", NodeTypeOutput)))
	})

	t.Run("invalid position", func(t *testing.T) {
		n := newNode("m", NodeTypeModelSelector)
		n.Position = Position{X: math.NaN()}
		assert.ErrorIs(t, c.AddNode(n), ErrInvalidPosition)
	})
}

func TestCanvas_AddEdge(t *testing.T) {
	c := &Canvas{
		ID:    "c1",
		Nodes: []*Node{newNode("q", NodeTypeQuery), newNode("o", NodeTypeOutput)},
	}

	t.Run("add valid edge", func(t *testing.T) {
		edge := &Edge{ID: "e1", Source: "q", Target: "o"}
		require.NoError(t, c.AddEdge(edge))
		assert.Len(t, c.Edges, 1)
		assert.False(t, c.UpdatedAt.IsZero())
	})

	t.Run("add nil edge", func(t *testing.T) {
		assert.ErrorIs(t, c.AddEdge(nil), ErrNilEdge)
	})

	t.Run("unknown source", func(t *testing.T) {
		err := c.AddEdge(&Edge{Source: "nope", Target: "o"})
		assert.ErrorIs(t, err, ErrSourceNodeNotFound)
	})

	t.Run("unknown target", func(t *testing.T) {
		err := c.AddEdge(&Edge{Source: "q", Target: "nope"})
		assert.ErrorIs(t, err, ErrTargetNodeNotFound)
	})

	t.Run("duplicate edge", func(t *testing.T) {
		err := c.AddEdge(&Edge{ID: "e2", Source: "q", Target: "o"})
		assert.ErrorIs(t, err, ErrDuplicateEdge)
	})
}

func TestEdge_Validate(t *testing.T) {
	tests := []struct {
		name    string
		edge    *Edge
		wantErr error
	}{
		{name: "valid edge", edge: &Edge{Source: "a", Target: "b"}},
		{name: "missing source", edge: &Edge{Target: "b"}, wantErr: ErrInvalidSource},
		{name: "missing target", edge: &Edge{Source: "a"}, wantErr: ErrInvalidTarget},
		{name: "self loop", edge: &Edge{Source: "a", Target: "a"}, wantErr: ErrSelfLoop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.edge.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCanvas_UpdateNodeData(t *testing.T) {
	c := &Canvas{ID: "c1", Nodes: []*Node{newNode("q", NodeTypeQuery)}}

	require.NoError(t, c.UpdateNodeData("q", map[string]interface{}{FieldQuery: "hello"}))
	n, _ := c.Node("q")
	assert.Equal(t, "hello", n.String(FieldQuery))
	assert.Equal(t, "User Query", n.String(FieldLabel), "shallow merge keeps other fields")

	assert.ErrorIs(t, c.UpdateNodeData("missing", nil), ErrNodeNotFound)
}

func TestCanvas_RemoveSelected(t *testing.T) {
	build := func() *Canvas {
		c := &Canvas{ID: "c1"}
		for _, n := range []*Node{
			newNode("q", NodeTypeQuery),
			newNode("kb", NodeTypeKnowledgeBase),
			newNode("m", NodeTypeModelSelector),
			newNode("o", NodeTypeOutput),
		} {
			require.NoError(t, c.AddNode(n))
		}
		require.NoError(t, c.AddEdge(&Edge{ID: "q-m", Source: "q", Target: "m"}))
		require.NoError(t, c.AddEdge(&Edge{ID: "kb-m", Source: "kb", Target: "m"}))
		require.NoError(t, c.AddEdge(&Edge{ID: "m-o", Source: "m", Target: "o"}))
		return c
	}

	orders := [][]string{
		{"kb", "m-o"},
		{"m-o", "kb"},
	}
	for _, order := range orders {
		c := build()
		for _, id := range order {
			require.NoError(t, c.SetSelected(id, true))
		}

		nodes, edges := c.RemoveSelected()
		assert.ElementsMatch(t, []string{"kb"}, nodes)
		assert.ElementsMatch(t, []string{"kb-m", "m-o"}, edges, "edges of removed nodes go too")

		var remaining []string
		for _, n := range c.Nodes {
			remaining = append(remaining, n.ID)
		}
		assert.Equal(t, []string{"q", "m", "o"}, remaining)
		require.Len(t, c.Edges, 1)
		assert.Equal(t, "q-m", c.Edges[0].ID)
	}

	t.Run("nothing selected", func(t *testing.T) {
		c := build()
		nodes, edges := c.RemoveSelected()
		assert.Empty(t, nodes)
		assert.Empty(t, edges)
		assert.Len(t, c.Nodes, 4)
	})
}

func TestCanvas_Upstream(t *testing.T) {
	c := &Canvas{ID: "c1"}
	for _, n := range []*Node{
		newNode("q", NodeTypeQuery),
		newNode("m", NodeTypeModelSelector),
		newNode("o", NodeTypeOutput),
		newNode("kb", NodeTypeKnowledgeBase),
	} {
		require.NoError(t, c.AddNode(n))
	}
	require.NoError(t, c.AddEdge(&Edge{ID: "1", Source: "q", Target: "m"}))
	require.NoError(t, c.AddEdge(&Edge{ID: "2", Source: "m", Target: "o"}))

	var ids []string
	for _, n := range c.Upstream("o") {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"m", "q"}, ids, "kb is not wired and is not reached")
}

func TestCanvas_Clone(t *testing.T) {
	c := &Canvas{ID: "c1"}
	o := newNode("o", NodeTypeOutput)
	o.Data[FieldMessages] = []Message{UserMessage("hi")}
	require.NoError(t, c.AddNode(o))

	cp := c.Clone()
	require.NoError(t, cp.UpdateNodeData("o", map[string]interface{}{FieldMessages: []Message{}}))

	orig, _ := c.Node("o")
	assert.Len(t, orig.Messages(), 1)
}
