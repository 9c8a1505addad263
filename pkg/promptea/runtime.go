package promptea

import (
    "context"
    "errors"
    "fmt"
    "io"
    "time"

    "go.uber.org/zap"

    "github.com/sandeepseesa/promptea/internal/adapters/backend"
    canvasrepo "github.com/sandeepseesa/promptea/internal/adapters/repository/canvas"
    "github.com/sandeepseesa/promptea/internal/app/dto"
    "github.com/sandeepseesa/promptea/internal/app/services"
    "github.com/sandeepseesa/promptea/internal/app/usecases"
    "github.com/sandeepseesa/promptea/internal/core/graph"
)

// Re-export canvas types for convenience
type Canvas = graph.Canvas
type Node = graph.Node
type Edge = graph.Edge
type NodeType = graph.NodeType
type Message = graph.Message
type RunResult = dto.RunResult
type SearchRequest = dto.SearchRequest
type SearchResponse = dto.SearchResponse
type UploadResponse = dto.UploadResponse

// Backend answers searches and accepts documents
type Backend = usecases.SearchBackend

const (
    NodeTypeQuery         = graph.NodeTypeQuery
    NodeTypeKnowledgeBase = graph.NodeTypeKnowledgeBase
    NodeTypeModelSelector = graph.NodeTypeModelSelector
    NodeTypeOutput        = graph.NodeTypeOutput

    SenderUser      = graph.SenderUser
    SenderAssistant = graph.SenderAssistant
)

// ErrUploadFailed is returned when the backend rejected a document
var ErrUploadFailed = errors.New("document upload failed")

// Options tune a Runtime
type Options struct {
    Logger *zap.Logger
    // RequestTimeout bounds one backend call; zero keeps the default
    RequestTimeout time.Duration
    // ResolveByEdges reads inputs from nodes wired into the output node
    ResolveByEdges bool
}

// Runtime builds and runs workflows against one backend. Workflows live in
// memory for the lifetime of the Runtime.
type Runtime struct {
    controller *usecases.Controller
    workspaces *canvasrepo.InMemoryWorkspaceRepository
}

// NewRuntime constructs a runtime over backend
func NewRuntime(b Backend, opts Options) *Runtime {
    logger := opts.Logger
    if logger == nil {
        logger = zap.NewNop()
    }
    mode := dto.ResolveByType
    if opts.ResolveByEdges {
        mode = dto.ResolveByEdges
    }
    runnerOpts := []usecases.RunnerOption{
        usecases.WithResolveMode(mode),
        usecases.WithRunnerLogger(logger),
    }
    if opts.RequestTimeout > 0 {
        runnerOpts = append(runnerOpts, usecases.WithRequestTimeout(opts.RequestTimeout))
    }
    runner := usecases.NewRunner(b, runnerOpts...)
    return &Runtime{
        controller: usecases.NewController(runner, b, usecases.WithLogger(logger)),
        workspaces: canvasrepo.NewInMemoryWorkspaceRepository(),
    }
}

// NewHTTPRuntime constructs a runtime talking to the inference backend at
// baseURL
func NewHTTPRuntime(baseURL string, opts Options) *Runtime {
    cfg := backend.Config{BaseURL: baseURL, Timeout: opts.RequestTimeout}
    var clientOpts []backend.Option
    if opts.Logger != nil {
        clientOpts = append(clientOpts, backend.WithLogger(opts.Logger))
    }
    return NewRuntime(backend.NewClient(cfg, clientOpts...), opts)
}

// NewWorkflow starts an empty workflow
func (rt *Runtime) NewWorkflow(ctx context.Context, name string) (*Workflow, error) {
    ws, err := rt.workspaces.Create(ctx, name)
    if err != nil {
        return nil, err
    }
    return &Workflow{rt: rt, ws: ws}, nil
}

// Workflow returns an existing workflow by ID
func (rt *Runtime) Workflow(ctx context.Context, id string) (*Workflow, error) {
    ws, err := rt.workspaces.Get(ctx, id)
    if err != nil {
        return nil, err
    }
    return &Workflow{rt: rt, ws: ws}, nil
}

// RunSimple builds a query → model → output workflow and runs it once.
// document names a file the backend already holds; empty searches without
// one.
func (rt *Runtime) RunSimple(ctx context.Context, query, model, document string) (*RunResult, error) {
    wf, err := rt.NewWorkflow(ctx, "simple")
    if err != nil {
        return nil, err
    }
    if err := wf.SetQuery(query); err != nil {
        return nil, err
    }
    if model != "" {
        if err := wf.SelectModel(model); err != nil {
            return nil, err
        }
    }
    if document != "" {
        if err := wf.UseDocument(document); err != nil {
            return nil, err
        }
    }
    return wf.Run(ctx)
}

// Workflow is one canvas of the runtime
type Workflow struct {
    rt *Runtime
    ws *usecases.Workspace
}

func (wf *Workflow) ID() string { return wf.ws.ID() }

// Canvas returns a copy of the workflow's canvas
func (wf *Workflow) Canvas() *Canvas { return wf.ws.Store.Canvas() }

// Add places a node of type t. Each type may appear once.
func (wf *Workflow) Add(t NodeType) (*Node, error) {
    return wf.rt.controller.Drop(wf.ws, dto.DropRequest{Type: t})
}

// Connect wires source into target
func (wf *Workflow) Connect(source, target string) (*Edge, error) {
    return wf.rt.controller.Connect(wf.ws, source, target)
}

// SetQuery writes text into the query node, adding one when missing
func (wf *Workflow) SetQuery(text string) error {
    n, err := wf.ensure(NodeTypeQuery)
    if err != nil {
        return err
    }
    return wf.rt.controller.SetQuery(wf.ws, n.ID, text)
}

// SelectModel picks the model, adding a model selector when missing
func (wf *Workflow) SelectModel(model string) error {
    n, err := wf.ensure(NodeTypeModelSelector)
    if err != nil {
        return err
    }
    return wf.rt.controller.SelectModel(wf.ws, n.ID, model)
}

// UseDocument scopes searches to a document the backend already indexed
func (wf *Workflow) UseDocument(name string) error {
    if _, err := wf.ensure(NodeTypeKnowledgeBase); err != nil {
        return err
    }
    return wf.ws.Session.Set(NodeTypeKnowledgeBase, services.KeyUploadedDocumentName, name)
}

// Upload sends a document through the knowledge-base node, adding one
// when missing
func (wf *Workflow) Upload(ctx context.Context, filename string, r io.Reader) error {
    n, err := wf.ensure(NodeTypeKnowledgeBase)
    if err != nil {
        return err
    }
    if err := wf.rt.controller.Upload(ctx, wf.ws, n.ID, filename, r); err != nil {
        return err
    }
    n, err = wf.ws.Store.Node(n.ID)
    if err != nil {
        return err
    }
    if n.String(graph.FieldStatus) != string(graph.UploadUploaded) {
        return fmt.Errorf("%w: %s", ErrUploadFailed, filename)
    }
    return nil
}

// Run executes the workflow and returns the appended exchange
func (wf *Workflow) Run(ctx context.Context) (*RunResult, error) {
    return wf.rt.controller.Run(ctx, wf.ws)
}

// Ask sends a follow-up through an output node
func (wf *Workflow) Ask(ctx context.Context, outputID, text string) (*RunResult, error) {
    return wf.rt.controller.AskAgain(ctx, wf.ws, outputID, text)
}

func (wf *Workflow) ensure(t NodeType) (*Node, error) {
    if n := wf.ws.Store.FirstOfType(t); n != nil {
        return n, nil
    }
    return wf.Add(t)
}
