// Package graph provides the core canvas domain entities
// following Clean Architecture principles with zero external dependencies.
package graph

import (
	"fmt"
	"time"
)

// Canvas is the node graph a user builds: typed nodes plus the directed
// edges between them. Nodes keep insertion order.
// PRINCIPLES:
// - KISS: Simple struct, no complex hierarchies
// - SRP: Only responsible for graph structure, not execution
type Canvas struct {
	ID        string    `json:"id" msgpack:"id"`
	Name      string    `json:"name" msgpack:"name"`
	Nodes     []*Node   `json:"nodes" msgpack:"nodes"`
	Edges     []*Edge   `json:"edges" msgpack:"edges"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
}

// Validate ensures canvas integrity. It is meant for canvases loaded from
// external sources where AddNode/AddEdge guards may have been bypassed.
func (c *Canvas) Validate() error {
	if c.ID == "" {
		return ErrCanvasNotFound
	}
	seen := make(map[string]struct{}, len(c.Nodes))
	types := make(map[NodeType]struct{}, len(c.Nodes))
	for _, n := range c.Nodes {
		if n == nil {
			return ErrNilNode
		}
		if err := n.Validate(); err != nil {
			return err
		}
		if _, dup := seen[n.ID]; dup {
			return ErrDuplicateNode
		}
		seen[n.ID] = struct{}{}
		kind, _ := LookupKind(n.Type)
		if _, dup := types[n.Type]; dup && kind.Unique() {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeType, n.Type)
		}
		types[n.Type] = struct{}{}
	}
	for _, e := range c.Edges {
		if e == nil {
			return ErrNilEdge
		}
		if err := e.Validate(); err != nil {
			return err
		}
		if _, ok := seen[e.Source]; !ok {
			return ErrSourceNodeNotFound
		}
		if _, ok := seen[e.Target]; !ok {
			return ErrTargetNodeNotFound
		}
	}
	return nil
}

// Node returns the node with the given ID
func (c *Canvas) Node(id string) (*Node, bool) {
	for _, n := range c.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// FirstOfType returns the first node of type t in insertion order, or nil
func (c *Canvas) FirstOfType(t NodeType) *Node {
	for _, n := range c.Nodes {
		if n.Type == t {
			return n
		}
	}
	return nil
}

// HasType reports whether a node of type t exists
func (c *Canvas) HasType(t NodeType) bool {
	return c.FirstOfType(t) != nil
}

// AddNode adds a node to the canvas
// PRINCIPLES:
// - KISS: Direct and simple implementation
// - No nesting beyond 2 levels
func (c *Canvas) AddNode(node *Node) error {
	if node == nil {
		return ErrNilNode
	}
	if err := node.Validate(); err != nil {
		return err
	}
	if _, exists := c.Node(node.ID); exists {
		return ErrDuplicateNode
	}
	kind, _ := LookupKind(node.Type)
	if kind.Unique() && c.HasType(node.Type) {
		return fmt.Errorf("%w: %s", ErrDuplicateNodeType, kind.Label())
	}
	now := time.Now()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	node.UpdatedAt = now
	c.Nodes = append(c.Nodes, node)
	c.UpdatedAt = now
	return nil
}

// AddEdge adds an edge to the canvas
func (c *Canvas) AddEdge(edge *Edge) error {
	if edge == nil {
		return ErrNilEdge
	}
	if err := edge.Validate(); err != nil {
		return err
	}
	if _, exists := c.Node(edge.Source); !exists {
		return ErrSourceNodeNotFound
	}
	if _, exists := c.Node(edge.Target); !exists {
		return ErrTargetNodeNotFound
	}
	for _, e := range c.Edges {
		if e.Source == edge.Source && e.Target == edge.Target {
			return ErrDuplicateEdge
		}
	}
	c.Edges = append(c.Edges, edge)
	c.UpdatedAt = time.Now()
	return nil
}

// UpdateNodeData shallow-merges patch into the node's data. The patch shape
// is not checked here; callers write only the fields they own.
func (c *Canvas) UpdateNodeData(id string, patch map[string]interface{}) error {
	n, ok := c.Node(id)
	if !ok {
		return ErrNodeNotFound
	}
	if n.Data == nil {
		n.Data = make(map[string]interface{}, len(patch))
	}
	for k, v := range patch {
		n.Data[k] = v
	}
	n.UpdatedAt = time.Now()
	c.UpdatedAt = n.UpdatedAt
	return nil
}

// UpdateNodePosition moves a node
func (c *Canvas) UpdateNodePosition(id string, pos Position) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	n, ok := c.Node(id)
	if !ok {
		return ErrNodeNotFound
	}
	n.Position = pos
	n.UpdatedAt = time.Now()
	c.UpdatedAt = n.UpdatedAt
	return nil
}

// SetSelected flags the node or edge with the given ID
func (c *Canvas) SetSelected(id string, selected bool) error {
	if n, ok := c.Node(id); ok {
		n.Selected = selected
		return nil
	}
	for _, e := range c.Edges {
		if e.ID == id {
			e.Selected = selected
			return nil
		}
	}
	return ErrNodeNotFound
}

// ClearSelection unflags every node and edge
func (c *Canvas) ClearSelection() {
	for _, n := range c.Nodes {
		n.Selected = false
	}
	for _, e := range c.Edges {
		e.Selected = false
	}
}

// RemoveSelected deletes every selected node and edge. Edges attached to a
// removed node go with it. It returns the removed IDs.
func (c *Canvas) RemoveSelected() (nodeIDs, edgeIDs []string) {
	removed := make(map[string]struct{})
	keptNodes := c.Nodes[:0]
	for _, n := range c.Nodes {
		if n.Selected {
			removed[n.ID] = struct{}{}
			nodeIDs = append(nodeIDs, n.ID)
			continue
		}
		keptNodes = append(keptNodes, n)
	}
	c.Nodes = keptNodes

	keptEdges := c.Edges[:0]
	for _, e := range c.Edges {
		_, srcGone := removed[e.Source]
		_, dstGone := removed[e.Target]
		if e.Selected || srcGone || dstGone {
			edgeIDs = append(edgeIDs, e.ID)
			continue
		}
		keptEdges = append(keptEdges, e)
	}
	c.Edges = keptEdges

	if len(nodeIDs) > 0 || len(edgeIDs) > 0 {
		c.UpdatedAt = time.Now()
	}
	return nodeIDs, edgeIDs
}

// Upstream returns every node that can reach nodeID by following edges,
// nearest first.
func (c *Canvas) Upstream(nodeID string) []*Node {
	incoming := make(map[string][]string, len(c.Edges))
	for _, e := range c.Edges {
		incoming[e.Target] = append(incoming[e.Target], e.Source)
	}
	visited := map[string]bool{nodeID: true}
	queue := []string{nodeID}
	var out []*Node
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, src := range incoming[cur] {
			if visited[src] {
				continue
			}
			visited[src] = true
			if n, ok := c.Node(src); ok {
				out = append(out, n)
			}
			queue = append(queue, src)
		}
	}
	return out
}

// Clone returns a deep copy of the canvas
func (c *Canvas) Clone() *Canvas {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Nodes = make([]*Node, len(c.Nodes))
	for i, n := range c.Nodes {
		cp.Nodes[i] = n.Clone()
	}
	cp.Edges = make([]*Edge, len(c.Edges))
	for i, e := range c.Edges {
		ec := *e
		cp.Edges[i] = &ec
	}
	return &cp
}
