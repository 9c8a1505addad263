package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sandeepseesa/promptea/internal/app/dto"
	"github.com/sandeepseesa/promptea/internal/app/usecases"
	"github.com/sandeepseesa/promptea/internal/core/graph"
	"github.com/sandeepseesa/promptea/internal/core/snapshot"
	"github.com/sandeepseesa/promptea/pkg/validation"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePalette(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, usecases.Palette())
}

// workspace resolves the {canvasID} URL parameter. It writes the error
// response itself and reports whether the handler should continue.
func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*usecases.Workspace, bool) {
	ws, err := s.workspaces.Get(r.Context(), chi.URLParam(r, "canvasID"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return ws, true
}

func (s *Server) view(ws *usecases.Workspace) dto.CanvasView {
	return dto.CanvasView{
		Canvas:  ws.Store.Canvas(),
		Session: ws.Session.Values(),
		Running: s.controller.Running(ws),
	}
}

// Canvases

func (s *Server) handleCreateCanvas(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCanvasRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var (
		ws  *usecases.Workspace
		err error
	)
	if req.Canvas != nil {
		ws, err = s.workspaces.Import(r.Context(), req.Name, req.Canvas)
	} else {
		ws, err = s.workspaces.Create(r.Context(), req.Name)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("canvas opened", zap.String("canvas_id", ws.ID()), zap.Bool("imported", req.Canvas != nil))
	writeJSON(w, http.StatusCreated, s.view(ws))
}

func (s *Server) handleListCanvases(w http.ResponseWriter, r *http.Request) {
	list, err := s.workspaces.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]dto.CanvasSummary, 0, len(list))
	for _, ws := range list {
		c := ws.Store.Canvas()
		out = append(out, dto.CanvasSummary{
			ID:        c.ID,
			Name:      ws.Name,
			Nodes:     len(c.Nodes),
			Edges:     len(c.Edges),
			Running:   s.controller.Running(ws),
			CreatedAt: ws.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCanvas(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.view(ws))
}

func (s *Server) handleDeleteCanvas(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	_ = s.controller.CancelRun(ws)
	if err := s.workspaces.Delete(r.Context(), ws.ID()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.Session.Values())
}

// Graph editing

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req dto.DropRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	node, err := s.controller.Drop(ws, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (s *Server) handleMoveNode(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req dto.MoveNodeRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	nodeID := chi.URLParam(r, "nodeID")
	if err := s.controller.MoveNode(ws, nodeID, graph.Position{X: req.X, Y: req.Y}); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeNode(w, r, ws, nodeID)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req dto.ConnectRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	edge, err := s.controller.Connect(ws, req.Source, req.Target)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, edge)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req dto.SelectionRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.controller.Select(ws, req.IDs, req.Value()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	s.controller.ClearSelection(ws)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSelected(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	nodeIDs, edgeIDs := s.controller.DeleteSelected(ws)
	if nodeIDs == nil {
		nodeIDs = []string{}
	}
	if edgeIDs == nil {
		edgeIDs = []string{}
	}
	writeJSON(w, http.StatusOK, dto.RemovedResponse{NodeIDs: nodeIDs, EdgeIDs: edgeIDs})
}

// Node operations

func (s *Server) handleSetQuery(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req dto.QueryRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	nodeID := chi.URLParam(r, "nodeID")
	if err := s.controller.SetQuery(ws, nodeID, req.Query); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeNode(w, r, ws, nodeID)
}

func (s *Server) handleSelectModel(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req dto.ModelRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	nodeID := chi.URLParam(r, "nodeID")
	if err := s.controller.SelectModel(ws, nodeID, req.Model); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeNode(w, r, ws, nodeID)
}

// handleUpload forwards the multipart "file" field. A backend failure is
// reported through the node's status, so the node is returned either way.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if r.ContentLength > s.uploadLimit {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "document is too large"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadLimit)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "document is too large"})
			return
		}
		validation.WriteErrors(w, http.StatusBadRequest, validation.ValidationErrors{
			{Field: "file", Message: "a multipart file field is required"},
		})
		return
	}
	defer file.Close()

	nodeID := chi.URLParam(r, "nodeID")
	if err := s.controller.Upload(r.Context(), ws, nodeID, header.Filename, file); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeNode(w, r, ws, nodeID)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req dto.AskRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.controller.AskAgain(r.Context(), ws, chi.URLParam(r, "nodeID"), req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	nodeID := chi.URLParam(r, "nodeID")
	if err := s.controller.Clear(ws, nodeID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeNode(w, r, ws, nodeID)
}

func (s *Server) handleCancelNode(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := s.controller.Cancel(ws, chi.URLParam(r, "nodeID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Runs

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	res, err := s.controller.Run(r.Context(), ws)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := s.controller.CancelRun(ws); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Snapshots

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req dto.SnapshotRequest
	if r.ContentLength != 0 {
		if err := validation.DecodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	snap, err := s.snapshots.Create(r.Context(), ws.Store, ws.Session, req.Label)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, snapshot.ErrInvalidLimit)
			return
		}
		limit = n
	}
	snaps, err := s.snapshots.List(r.Context(), ws.ID(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if snaps == nil {
		snaps = []*snapshot.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Load(r.Context(), chi.URLParam(r, "snapshotID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.snapshots.Delete(r.Context(), chi.URLParam(r, "snapshotID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRestoreSnapshot writes a snapshot back into its canvas when that
// canvas is open, and reopens it otherwise.
func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "snapshotID")
	snap, err := s.snapshots.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ws, err := s.workspaces.Get(r.Context(), snap.CanvasID)
	switch {
	case err == nil:
		if _, err := s.snapshots.Restore(r.Context(), id, ws.Store, ws.Session); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.view(ws))

	case errors.Is(err, graph.ErrCanvasNotFound):
		name := snap.Metadata.Label
		if name == "" {
			name = snap.Canvas.Name
		}
		ws, err := s.workspaces.Import(r.Context(), name, snap.Canvas)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ws.Session.Restore(snap.Session)
		writeJSON(w, http.StatusCreated, s.view(ws))

	default:
		s.writeError(w, r, err)
	}
}

func (s *Server) writeNode(w http.ResponseWriter, r *http.Request, ws *usecases.Workspace, nodeID string) {
	n, err := ws.Store.Node(nodeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
