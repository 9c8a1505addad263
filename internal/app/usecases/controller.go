package usecases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sandeepseesa/promptea/internal/app/dto"
	"github.com/sandeepseesa/promptea/internal/app/services"
	"github.com/sandeepseesa/promptea/internal/core/graph"
)

// runKey is the in-flight key of a canvas-wide run
const runKey = "run"

// supportedDocuments are the upload extensions the backend can index
var supportedDocuments = map[string]bool{".pdf": true, ".docx": true}

// Controller carries out user actions on a workspace: palette drops,
// wiring, selection, the per-node operations and runs.
// PRINCIPLES:
// - SRP: Translates user intent into store mutations
// - DIP: Backend and metrics are injected
type Controller struct {
	runner   *Runner
	backend  SearchBackend
	inflight *InFlight
	logger   *zap.Logger
	recorder Recorder
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// WithRecorder sets the measurement sink
func WithRecorder(rec Recorder) ControllerOption {
	return func(c *Controller) { c.recorder = rec }
}

// NewController creates a controller. Uploads go straight to backend;
// searches go through runner.
func NewController(runner *Runner, backend SearchBackend, opts ...ControllerOption) *Controller {
	c := &Controller{
		runner:   runner,
		backend:  backend,
		inflight: NewInFlight(),
		logger:   zap.NewNop(),
		recorder: NopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Drop creates a node from a palette drag. Any type already on the canvas
// is rejected with an alert, output included.
func (c *Controller) Drop(ws *Workspace, req dto.DropRequest) (*graph.Node, error) {
	kind, ok := graph.LookupKind(req.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", graph.ErrUnknownNodeType, req.Type)
	}

	vp := dto.DefaultViewport()
	if req.Viewport != nil {
		vp = *req.Viewport
	}

	node := &graph.Node{
		ID:       uuid.NewString(),
		Type:     kind.Type(),
		Position: vp.Project(req.ClientX, req.ClientY),
		Data:     kind.DefaultData(),
	}
	added, created, err := ws.Store.AddNodeIfAbsent(node)
	if err != nil {
		return nil, err
	}
	if !created {
		msg := fmt.Sprintf("%s already exists on the canvas.", kind.Label())
		ws.Alert(msg)
		return nil, fmt.Errorf("%w: %s", graph.ErrDuplicateNodeType, kind.Label())
	}

	c.recorder.NodeCreated(kind.Type())
	c.logger.Debug("node dropped",
		zap.String("canvas_id", ws.ID()),
		zap.String("node_id", added.ID),
		zap.String("type", string(added.Type)))
	return added, nil
}

// MoveNode repositions a node within the node extent
func (c *Controller) MoveNode(ws *Workspace, nodeID string, pos graph.Position) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	clamped := (dto.Viewport{Zoom: 1}).Project(pos.X, pos.Y)
	return ws.Store.UpdateNodePosition(nodeID, clamped)
}

// Connect wires source to target
func (c *Controller) Connect(ws *Workspace, source, target string) (*graph.Edge, error) {
	return ws.Store.Connect(source, target)
}

// Select flags nodes or edges as selected or not
func (c *Controller) Select(ws *Workspace, ids []string, selected bool) error {
	return ws.Store.SetSelected(ids, selected)
}

// ClearSelection unselects everything
func (c *Controller) ClearSelection(ws *Workspace) {
	ws.Store.ClearSelection()
}

// DeleteSelected removes every selected node and edge
func (c *Controller) DeleteSelected(ws *Workspace) (nodeIDs, edgeIDs []string) {
	nodeIDs, edgeIDs = ws.Store.RemoveSelected()
	for _, id := range nodeIDs {
		// A removed node's task has nowhere to write
		_ = c.inflight.Cancel(nodeKey(ws, id))
	}
	if len(nodeIDs) > 0 {
		c.recorder.NodesDeleted(len(nodeIDs))
	}
	return nodeIDs, edgeIDs
}

// SetQuery stores the query text typed into a query node
func (c *Controller) SetQuery(ws *Workspace, nodeID, text string) error {
	if _, err := c.nodeOfType(ws, nodeID, graph.NodeTypeQuery); err != nil {
		return err
	}
	return ws.Store.UpdateNodeData(nodeID, map[string]interface{}{graph.FieldQuery: text})
}

// SelectModel stores the chosen model on the node and in the session
func (c *Controller) SelectModel(ws *Workspace, nodeID, model string) error {
	if _, err := c.nodeOfType(ws, nodeID, graph.NodeTypeModelSelector); err != nil {
		return err
	}
	if !graph.IsSupportedModel(model) {
		return fmt.Errorf("%w: %q (supported: %s)", dto.ErrInvalidModel, model, strings.Join(graph.SupportedModels, ", "))
	}
	if err := ws.Store.UpdateNodeData(nodeID, map[string]interface{}{graph.FieldModel: model}); err != nil {
		return err
	}
	return ws.Session.Set(graph.NodeTypeModelSelector, services.KeySelectedModel, model)
}

// Upload sends a document to the backend on behalf of a knowledge-base
// node. The node's status moves idle, uploading, then uploaded or error.
// On success the document name is written to the node and the session.
// Backend failures are recorded in the status, not returned.
func (c *Controller) Upload(ctx context.Context, ws *Workspace, nodeID, filename string, r io.Reader) error {
	if _, err := c.nodeOfType(ws, nodeID, graph.NodeTypeKnowledgeBase); err != nil {
		return err
	}
	name := filepath.Base(filename)
	if !supportedDocuments[strings.ToLower(filepath.Ext(name))] {
		ws.Alert(dto.ErrUnsupportedDocument.Error())
		return fmt.Errorf("%w: %s", dto.ErrUnsupportedDocument, name)
	}

	taskCtx, release, err := c.inflight.Begin(ctx, nodeKey(ws, nodeID))
	if err != nil {
		return err
	}
	defer release()

	if err := c.setStatus(ws, nodeID, graph.UploadUploading); err != nil {
		return err
	}

	resp, err := c.backend.Upload(taskCtx, name, r)
	if err == nil && resp.Error != "" {
		err = errors.New(resp.Error)
	}
	if err != nil {
		c.logger.Warn("upload failed",
			zap.String("canvas_id", ws.ID()),
			zap.String("node_id", nodeID),
			zap.String("document", name),
			zap.Error(err))
		c.recorder.UploadFinished(graph.UploadError)
		return c.setStatus(ws, nodeID, graph.UploadError)
	}

	c.recorder.UploadFinished(graph.UploadUploaded)
	if err := ws.Store.UpdateNodeData(nodeID, map[string]interface{}{
		graph.FieldStatus:       string(graph.UploadUploaded),
		graph.FieldDocumentName: name,
	}); err != nil {
		return err
	}
	return ws.Session.Set(graph.NodeTypeKnowledgeBase, services.KeyUploadedDocumentName, name)
}

// Run executes the workflow. Only one run per canvas may be in flight.
func (c *Controller) Run(ctx context.Context, ws *Workspace) (*dto.RunResult, error) {
	taskCtx, release, err := c.inflight.Begin(ctx, canvasKey(ws, runKey))
	if err != nil {
		return nil, err
	}
	defer release()
	return c.runner.Run(taskCtx, ws)
}

// AskAgain sends a follow-up question from an output node
func (c *Controller) AskAgain(ctx context.Context, ws *Workspace, nodeID, text string) (*dto.RunResult, error) {
	if _, err := c.nodeOfType(ws, nodeID, graph.NodeTypeOutput); err != nil {
		return nil, err
	}
	taskCtx, release, err := c.inflight.Begin(ctx, nodeKey(ws, nodeID))
	if err != nil {
		return nil, err
	}
	defer release()
	return c.runner.Ask(taskCtx, ws, nodeID, text)
}

// Clear empties an output node's transcript
func (c *Controller) Clear(ws *Workspace, nodeID string) error {
	if _, err := c.nodeOfType(ws, nodeID, graph.NodeTypeOutput); err != nil {
		return err
	}
	return ws.Store.UpdateNodeData(nodeID, map[string]interface{}{graph.FieldMessages: []graph.Message{}})
}

// Cancel stops the task running on a node
func (c *Controller) Cancel(ws *Workspace, nodeID string) error {
	return c.inflight.Cancel(nodeKey(ws, nodeID))
}

// CancelRun stops the canvas-wide run
func (c *Controller) CancelRun(ws *Workspace) error {
	return c.inflight.Cancel(canvasKey(ws, runKey))
}

// Running reports whether the canvas-wide run is in flight
func (c *Controller) Running(ws *Workspace) bool {
	return c.inflight.Running(canvasKey(ws, runKey))
}

func (c *Controller) nodeOfType(ws *Workspace, nodeID string, t graph.NodeType) (*graph.Node, error) {
	n, err := ws.Store.Node(nodeID)
	if err != nil {
		return nil, err
	}
	if n.Type != t {
		return nil, fmt.Errorf("%w: node %s is %s, not %s", graph.ErrWrongNodeType, nodeID, n.Type, t)
	}
	return n, nil
}

func (c *Controller) setStatus(ws *Workspace, nodeID string, status graph.UploadStatus) error {
	return ws.Store.UpdateNodeData(nodeID, map[string]interface{}{graph.FieldStatus: string(status)})
}

func nodeKey(ws *Workspace, nodeID string) string { return ws.ID() + "/node/" + nodeID }

func canvasKey(ws *Workspace, name string) string { return ws.ID() + "/" + name }
