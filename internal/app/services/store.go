package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepseesa/promptea/internal/core/graph"
)

// EventType names a store change
type EventType string

const (
	EventNodeAdded        EventType = "node_added"
	EventNodeUpdated      EventType = "node_updated"
	EventNodeMoved        EventType = "node_moved"
	EventEdgeAdded        EventType = "edge_added"
	EventSelectionChanged EventType = "selection_changed"
	EventRemoved          EventType = "removed"
	EventCanvasReplaced   EventType = "canvas_replaced"
	EventSessionChanged   EventType = "session_changed"
	EventAlert            EventType = "alert"
)

// ChangeEvent describes one store mutation. Node and Edge are copies.
type ChangeEvent struct {
	Seq      uint64      `json:"seq"`
	Type     EventType   `json:"type"`
	CanvasID string      `json:"canvas_id"`
	Node     *graph.Node `json:"node,omitempty"`
	Edge     *graph.Edge `json:"edge,omitempty"`
	NodeIDs  []string    `json:"node_ids,omitempty"`
	EdgeIDs  []string    `json:"edge_ids,omitempty"`
	Key      string      `json:"key,omitempty"`
	Value    string      `json:"value,omitempty"`
	Message  string      `json:"message,omitempty"`
	At       time.Time   `json:"at"`
}

// Store owns one canvas and serialises every mutation on it. Subscribers
// are called after the mutation lock is released, one event at a time and
// in mutation order. A subscriber must not mutate the store synchronously.
// PRINCIPLES:
// - SRP: Owns canvas state and change notification only
// - KISS: One mutex, one canvas
type Store struct {
	mu     sync.Mutex
	canvas *graph.Canvas

	// dispatch keeps notifications in mutation order
	dispatch sync.Mutex
	subMu    sync.RWMutex
	subs     map[int]func(ChangeEvent)
	nextSub  int
	seq      uint64
}

// NewStore creates a store for canvas. A nil canvas starts an empty one.
func NewStore(canvas *graph.Canvas) *Store {
	if canvas == nil {
		now := time.Now()
		canvas = &graph.Canvas{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	}
	return &Store{canvas: canvas, subs: make(map[int]func(ChangeEvent))}
}

// ID returns the canvas ID
func (s *Store) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.ID
}

// Canvas returns a deep copy of the current canvas
func (s *Store) Canvas() *graph.Canvas {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.Clone()
}

// Node returns a copy of one node
func (s *Store) Node(id string) (*graph.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.canvas.Node(id)
	if !ok {
		return nil, graph.ErrNodeNotFound
	}
	return n.Clone(), nil
}

// FirstOfType returns a copy of the first node of type t, or nil
func (s *Store) FirstOfType(t graph.NodeType) *graph.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.FirstOfType(t).Clone()
}

// Subscribe registers fn for change events and returns its unsubscribe func
func (s *Store) Subscribe(fn func(ChangeEvent)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// AddNode appends node. A second node of a unique kind is rejected with
// graph.ErrDuplicateNodeType and the canvas is left unchanged.
func (s *Store) AddNode(node *graph.Node) error {
	s.mu.Lock()
	if err := s.canvas.AddNode(node); err != nil {
		s.mu.Unlock()
		return err
	}
	s.publishLocked(ChangeEvent{Type: EventNodeAdded, Node: node.Clone()})
	return nil
}

// AddNodeIfAbsent appends node unless a node of the same type exists. It
// returns the node now on the canvas and whether it was created.
func (s *Store) AddNodeIfAbsent(node *graph.Node) (*graph.Node, bool, error) {
	s.mu.Lock()
	if existing := s.canvas.FirstOfType(node.Type); existing != nil {
		out := existing.Clone()
		s.mu.Unlock()
		return out, false, nil
	}
	if err := s.canvas.AddNode(node); err != nil {
		s.mu.Unlock()
		return nil, false, err
	}
	out := node.Clone()
	s.publishLocked(ChangeEvent{Type: EventNodeAdded, Node: node.Clone()})
	return out, true, nil
}

// UpdateNodeData shallow-merges patch into a node's data
func (s *Store) UpdateNodeData(id string, patch map[string]interface{}) error {
	s.mu.Lock()
	if err := s.canvas.UpdateNodeData(id, patch); err != nil {
		s.mu.Unlock()
		return err
	}
	n, _ := s.canvas.Node(id)
	s.publishLocked(ChangeEvent{Type: EventNodeUpdated, Node: n.Clone()})
	return nil
}

// AppendMessages appends msgs to a node transcript and merges patch, in
// one step so concurrent appends never lose messages.
func (s *Store) AppendMessages(id string, msgs []graph.Message, patch map[string]interface{}) error {
	s.mu.Lock()
	n, ok := s.canvas.Node(id)
	if !ok {
		s.mu.Unlock()
		return graph.ErrNodeNotFound
	}
	merged := make(map[string]interface{}, len(patch)+1)
	for k, v := range patch {
		merged[k] = v
	}
	merged[graph.FieldMessages] = graph.AppendMessages(n.Messages(), msgs...)
	if err := s.canvas.UpdateNodeData(id, merged); err != nil {
		s.mu.Unlock()
		return err
	}
	s.publishLocked(ChangeEvent{Type: EventNodeUpdated, Node: n.Clone()})
	return nil
}

// UpdateNodePosition moves a node
func (s *Store) UpdateNodePosition(id string, pos graph.Position) error {
	s.mu.Lock()
	if err := s.canvas.UpdateNodePosition(id, pos); err != nil {
		s.mu.Unlock()
		return err
	}
	n, _ := s.canvas.Node(id)
	s.publishLocked(ChangeEvent{Type: EventNodeMoved, Node: n.Clone()})
	return nil
}

// Connect adds a directed edge from source to target
func (s *Store) Connect(source, target string) (*graph.Edge, error) {
	edge := &graph.Edge{ID: uuid.NewString(), Source: source, Target: target}
	s.mu.Lock()
	if err := s.canvas.AddEdge(edge); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	cp := *edge
	s.publishLocked(ChangeEvent{Type: EventEdgeAdded, Edge: &cp})
	return &cp, nil
}

// SetSelected flags the given nodes and edges. Unknown IDs abort the whole
// call before anything changes.
func (s *Store) SetSelected(ids []string, selected bool) error {
	s.mu.Lock()
	for _, id := range ids {
		if !s.hasElementLocked(id) {
			s.mu.Unlock()
			return graph.ErrNodeNotFound
		}
	}
	for _, id := range ids {
		_ = s.canvas.SetSelected(id, selected)
	}
	s.publishLocked(ChangeEvent{Type: EventSelectionChanged, NodeIDs: ids})
	return nil
}

// ClearSelection unflags every node and edge
func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.canvas.ClearSelection()
	s.publishLocked(ChangeEvent{Type: EventSelectionChanged})
}

// RemoveSelected deletes every selected node and edge and returns their IDs
func (s *Store) RemoveSelected() (nodeIDs, edgeIDs []string) {
	s.mu.Lock()
	nodeIDs, edgeIDs = s.canvas.RemoveSelected()
	if len(nodeIDs) == 0 && len(edgeIDs) == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	s.publishLocked(ChangeEvent{Type: EventRemoved, NodeIDs: nodeIDs, EdgeIDs: edgeIDs})
	return nodeIDs, edgeIDs
}

// Replace swaps in a whole canvas, keeping the store's canvas ID
func (s *Store) Replace(canvas *graph.Canvas) {
	s.mu.Lock()
	next := canvas.Clone()
	next.ID = s.canvas.ID
	next.UpdatedAt = time.Now()
	s.canvas = next
	s.publishLocked(ChangeEvent{Type: EventCanvasReplaced})
}

// Alert publishes a user-facing message without changing the canvas
func (s *Store) Alert(message string) {
	s.mu.Lock()
	s.publishLocked(ChangeEvent{Type: EventAlert, Message: message})
}

// notify publishes an event that did not come from a canvas mutation
func (s *Store) notify(ev ChangeEvent) {
	s.mu.Lock()
	s.publishLocked(ev)
}

func (s *Store) hasElementLocked(id string) bool {
	if _, ok := s.canvas.Node(id); ok {
		return true
	}
	for _, e := range s.canvas.Edges {
		if e.ID == id {
			return true
		}
	}
	return false
}

// publishLocked stamps ev, releases s.mu and delivers ev to subscribers.
// It must be called with s.mu held.
func (s *Store) publishLocked(ev ChangeEvent) {
	s.seq++
	ev.Seq = s.seq
	ev.CanvasID = s.canvas.ID
	ev.At = time.Now()

	s.dispatch.Lock()
	s.mu.Unlock()
	defer s.dispatch.Unlock()

	s.subMu.RLock()
	subs := make([]func(ChangeEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
