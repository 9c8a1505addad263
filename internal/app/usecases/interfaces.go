package usecases

import (
	"context"
	"io"
	"time"

	"github.com/sandeepseesa/promptea/internal/app/dto"
	"github.com/sandeepseesa/promptea/internal/core/graph"
)

// SearchBackend is the remote inference service a canvas talks to
// PRINCIPLES:
// - ISP: Only the two calls the canvas makes
// - DIP: Implemented by the HTTP client adapter
type SearchBackend interface {
	// Search asks a question. A non-nil error means no usable reply
	// arrived (transport failure or a body that is not JSON).
	Search(ctx context.Context, req dto.SearchRequest) (*dto.SearchResponse, error)

	// Upload sends a document for indexing
	Upload(ctx context.Context, filename string, r io.Reader) (*dto.UploadResponse, error)
}

// Alerter shows a blocking, user-facing message
type Alerter interface {
	Alert(message string)
}

// WorkspaceRepository keeps the live canvases of a service
type WorkspaceRepository interface {
	Create(ctx context.Context, name string) (*Workspace, error)
	Get(ctx context.Context, id string) (*Workspace, error)
	List(ctx context.Context) ([]*Workspace, error)
	Delete(ctx context.Context, id string) error
}

// Recorder receives workflow measurements
type Recorder interface {
	RunFinished(outcome string, d time.Duration)
	NodeCreated(t graph.NodeType)
	NodesDeleted(n int)
	UploadFinished(status graph.UploadStatus)
}

// Run outcomes reported to a Recorder
const (
	OutcomeText          = "text"
	OutcomeLinkedResults = "linked_results"
	OutcomeError         = "error"
	OutcomeNetworkError  = "network_error"
	OutcomeRejected      = "rejected"
)

// NopRecorder discards measurements
type NopRecorder struct{}

func (NopRecorder) RunFinished(string, time.Duration) {}
func (NopRecorder) NodeCreated(graph.NodeType)        {}
func (NopRecorder) NodesDeleted(int)                  {}
func (NopRecorder) UploadFinished(graph.UploadStatus) {}
