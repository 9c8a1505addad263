package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sandeepseesa/promptea/internal/app/dto"
	"github.com/sandeepseesa/promptea/internal/core/graph"
	"github.com/sandeepseesa/promptea/internal/core/snapshot"
	"github.com/sandeepseesa/promptea/pkg/validation"
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, graph.ErrCanvasNotFound),
		errors.Is(err, graph.ErrNodeNotFound),
		errors.Is(err, snapshot.ErrSnapshotNotFound):
		return http.StatusNotFound

	case errors.Is(err, graph.ErrCanvasExists),
		errors.Is(err, graph.ErrDuplicateNodeType),
		errors.Is(err, graph.ErrDuplicateEdge),
		errors.Is(err, dto.ErrRunInFlight),
		errors.Is(err, dto.ErrNothingInFlight),
		errors.Is(err, context.Canceled):
		return http.StatusConflict

	case errors.Is(err, graph.ErrInvalidCanvas),
		errors.Is(err, graph.ErrUnknownNodeType),
		errors.Is(err, graph.ErrWrongNodeType),
		errors.Is(err, graph.ErrInvalidPosition),
		errors.Is(err, graph.ErrSelfLoop),
		errors.Is(err, graph.ErrSourceNodeNotFound),
		errors.Is(err, graph.ErrTargetNodeNotFound),
		errors.Is(err, graph.ErrCyclicGraph),
		errors.Is(err, dto.ErrEmptyQuery),
		errors.Is(err, dto.ErrUnsupportedDocument),
		errors.Is(err, dto.ErrInvalidModel),
		errors.Is(err, dto.ErrNotKeyOwner),
		errors.Is(err, dto.ErrUnknownSessionKey),
		errors.Is(err, snapshot.ErrInvalidLimit):
		return http.StatusBadRequest

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		validation.WriteErrors(w, http.StatusBadRequest, verrs)
		return
	}

	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
