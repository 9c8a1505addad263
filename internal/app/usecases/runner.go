package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sandeepseesa/promptea/internal/app/dto"
	"github.com/sandeepseesa/promptea/internal/core/graph"
)

// DefaultRequestTimeout bounds one backend call
const DefaultRequestTimeout = 60 * time.Second

// Runner executes the run-workflow algorithm: read the wired inputs, call
// the backend once, append the exchange to an output node.
// PRINCIPLES:
// - KISS: One request, one append
// - SRP: Orchestration only; classification and resolution live apart
// - DIP: Depends on the SearchBackend abstraction
type Runner struct {
	backend  SearchBackend
	resolver InputResolver
	timeout  time.Duration
	logger   *zap.Logger
	recorder Recorder
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithResolveMode selects how inputs are found
func WithResolveMode(mode dto.ResolveMode) RunnerOption {
	return func(r *Runner) { r.resolver = NewInputResolver(mode) }
}

// WithRequestTimeout bounds each backend call; 0 keeps the default
func WithRequestTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRunnerLogger sets the logger
func WithRunnerLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithRunnerRecorder sets the measurement sink
func WithRunnerRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

// NewRunner creates a runner that resolves inputs by type
func NewRunner(backend SearchBackend, opts ...RunnerOption) *Runner {
	r := &Runner{
		backend:  backend,
		resolver: typeResolver{},
		timeout:  DefaultRequestTimeout,
		logger:   zap.NewNop(),
		recorder: NopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the workflow on ws. An empty query is rejected with
// dto.ErrEmptyQuery and an alert, before any network call. Backend and
// network failures do not fail the run: they become an error message on
// the output node. Only cancellation of ctx aborts without appending.
func (r *Runner) Run(ctx context.Context, ws *Workspace) (*dto.RunResult, error) {
	in := r.resolver.Resolve(ws.Store.Canvas())

	query := strings.TrimSpace(in.query.String(graph.FieldQuery))
	if query == "" {
		ws.Alert(dto.ErrEmptyQuery.Error())
		r.recorder.RunFinished(OutcomeRejected, 0)
		return nil, dto.ErrEmptyQuery
	}

	model := firstNonEmpty(in.model.String(graph.FieldModel), ws.Session.SelectedModel(), graph.DefaultModel)
	doc := firstNonEmpty(in.kb.String(graph.FieldDocumentName), ws.Session.UploadedDocumentName())
	req := newSearchRequest(query, model, doc)

	reply, err := r.call(ctx, req)
	if err != nil {
		return nil, err
	}

	msgs := []graph.Message{graph.UserMessage(query), reply}
	patch := map[string]interface{}{
		graph.FieldModel:        model,
		graph.FieldDocumentName: doc,
	}

	outID := ""
	if in.output != nil {
		outID = in.output.ID
	}
	outID, err = r.appendToOutput(ws, outID, msgs, patch)
	if err != nil {
		return nil, err
	}

	return &dto.RunResult{OutputNodeID: outID, Request: req, Messages: msgs, Failed: reply.IsError}, nil
}

// Ask reruns the workflow scoped to one output node with text as the query.
// Model and document come from the session only.
func (r *Runner) Ask(ctx context.Context, ws *Workspace, outputID, text string) (*dto.RunResult, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil, dto.ErrEmptyQuery
	}
	n, err := ws.Store.Node(outputID)
	if err != nil {
		return nil, err
	}
	if n.Type != graph.NodeTypeOutput {
		return nil, fmt.Errorf("%w: %s cannot ask", graph.ErrWrongNodeType, n.Type)
	}

	model := firstNonEmpty(ws.Session.SelectedModel(), graph.DefaultModel)
	req := newSearchRequest(query, model, ws.Session.UploadedDocumentName())

	reply, err := r.call(ctx, req)
	if err != nil {
		return nil, err
	}
	msgs := []graph.Message{graph.UserMessage(query), reply}
	if err := ws.Store.AppendMessages(outputID, msgs, nil); err != nil {
		return nil, err
	}
	return &dto.RunResult{OutputNodeID: outputID, Request: req, Messages: msgs, Failed: reply.IsError}, nil
}

// call performs one bounded backend request and classifies the reply. It
// returns an error only when ctx itself was cancelled.
func (r *Runner) call(ctx context.Context, req dto.SearchRequest) (graph.Message, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.backend.Search(callCtx, req)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			r.logger.Info("run cancelled", zap.String("model", req.Model), zap.Duration("elapsed", elapsed))
			return graph.Message{}, ctx.Err()
		}
		r.logger.Warn("backend unreachable",
			zap.String("model", req.Model),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		r.recorder.RunFinished(OutcomeNetworkError, elapsed)
		return networkFailure(err, req.Model), nil
	}

	msg, outcome := classify(resp, req.Model)
	r.logger.Info("run finished",
		zap.String("model", req.Model),
		zap.String("model_used", msg.ModelUsed),
		zap.String("outcome", outcome),
		zap.Bool("document", req.DocumentName != nil),
		zap.Duration("elapsed", elapsed))
	r.recorder.RunFinished(outcome, elapsed)
	return msg, nil
}

// appendToOutput appends to outputID, creating an output node when it is
// empty or was removed while the request was in flight.
func (r *Runner) appendToOutput(ws *Workspace, outputID string, msgs []graph.Message, patch map[string]interface{}) (string, error) {
	if outputID != "" {
		err := ws.Store.AppendMessages(outputID, msgs, patch)
		if err == nil {
			return outputID, nil
		}
		if !errors.Is(err, graph.ErrNodeNotFound) {
			return "", err
		}
	}

	kind, _ := graph.LookupKind(graph.NodeTypeOutput)
	node, created, err := ws.Store.AddNodeIfAbsent(&graph.Node{
		ID:       uuid.NewString(),
		Type:     graph.NodeTypeOutput,
		Position: dto.OutputPosition,
		Data:     kind.DefaultData(),
	})
	if err != nil {
		return "", err
	}
	if created {
		r.recorder.NodeCreated(graph.NodeTypeOutput)
	}
	if err := ws.Store.AppendMessages(node.ID, msgs, patch); err != nil {
		return "", err
	}
	return node.ID, nil
}

func newSearchRequest(query, model, doc string) dto.SearchRequest {
	req := dto.SearchRequest{Query: query, Model: model}
	if doc != "" {
		req.DocumentName = &doc
	}
	return req
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
