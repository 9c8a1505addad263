package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sandeepseesa/promptea/internal/app/dto"
	"github.com/sandeepseesa/promptea/internal/app/services"
	"github.com/sandeepseesa/promptea/internal/core/graph"
)

// fakeBackend records calls and answers with search/upload, or with a
// plain text answer when search is nil
type fakeBackend struct {
	mu      sync.Mutex
	calls   []dto.SearchRequest
	uploads []string

	search func(ctx context.Context, req dto.SearchRequest) (*dto.SearchResponse, error)
	upload func(ctx context.Context, filename string, r io.Reader) (*dto.UploadResponse, error)
}

func (f *fakeBackend) Search(ctx context.Context, req dto.SearchRequest) (*dto.SearchResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.search != nil {
		return f.search(ctx, req)
	}
	return textAnswer("ok", req.Model), nil
}

func (f *fakeBackend) Upload(ctx context.Context, filename string, r io.Reader) (*dto.UploadResponse, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, filename)
	f.mu.Unlock()
	if f.upload != nil {
		return f.upload(ctx, filename, r)
	}
	_, _ = io.Copy(io.Discard, r)
	return &dto.UploadResponse{Message: "File uploaded and embeddings generated."}, nil
}

func (f *fakeBackend) Calls() []dto.SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dto.SearchRequest(nil), f.calls...)
}

// blockingBackend answers only once release is closed, or fails with the
// context's error
func blockingBackend(started chan<- struct{}, release <-chan struct{}) *fakeBackend {
	return &fakeBackend{search: func(ctx context.Context, req dto.SearchRequest) (*dto.SearchResponse, error) {
		started <- struct{}{}
		select {
		case <-release:
			return textAnswer("late", req.Model), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
}

func textAnswer(text, model string) *dto.SearchResponse {
	raw, _ := json.Marshal(text)
	return &dto.SearchResponse{Answer: raw, ModelUsed: model}
}

var errUnreachable = errors.New("connection refused")

func kindNode(id string, t graph.NodeType, fields map[string]interface{}) *graph.Node {
	kind, _ := graph.LookupKind(t)
	data := kind.DefaultData()
	for k, v := range fields {
		data[k] = v
	}
	return &graph.Node{ID: id, Type: t, Data: data}
}

// newWorkspace builds a workspace holding nodes, in order
func newWorkspace(t *testing.T, nodes ...*graph.Node) *Workspace {
	t.Helper()
	ws := NewWorkspace("test", nil)
	for _, n := range nodes {
		require.NoError(t, ws.Store.AddNode(n))
	}
	return ws
}

// captureAlerts records every alert published on ws
func captureAlerts(ws *Workspace) func() []string {
	var mu sync.Mutex
	var alerts []string
	ws.Store.Subscribe(func(ev services.ChangeEvent) {
		if ev.Type != services.EventAlert {
			return
		}
		mu.Lock()
		alerts = append(alerts, ev.Message)
		mu.Unlock()
	})
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), alerts...)
	}
}

func messagesOf(t *testing.T, ws *Workspace, id string) []graph.Message {
	t.Helper()
	n, err := ws.Store.Node(id)
	require.NoError(t, err)
	return n.Messages()
}

// recorder counts measurements
type recorder struct {
	mu       sync.Mutex
	outcomes []string
	created  []graph.NodeType
	deleted  int
	uploads  []graph.UploadStatus
}

func (r *recorder) RunFinished(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recorder) NodeCreated(t graph.NodeType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, t)
}

func (r *recorder) NodesDeleted(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted += n
}

func (r *recorder) UploadFinished(s graph.UploadStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads = append(r.uploads, s)
}
