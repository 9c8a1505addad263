package usecases

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepseesa/promptea/internal/app/dto"
	"github.com/sandeepseesa/promptea/internal/app/services"
	"github.com/sandeepseesa/promptea/internal/core/graph"
)

func TestRunner_EmptyQueryMakesNoCall(t *testing.T) {
	for _, query := range []string{"", "   ", "\n\t"} {
		backend := &fakeBackend{}
		rec := &recorder{}
		prior := []graph.Message{graph.UserMessage("earlier")}
		ws := newWorkspace(t,
			kindNode("q", graph.NodeTypeQuery, map[string]interface{}{graph.FieldQuery: query}),
			kindNode("o", graph.NodeTypeOutput, map[string]interface{}{graph.FieldMessages: prior}),
		)
		alerts := captureAlerts(ws)

		result, err := NewRunner(backend, WithRunnerRecorder(rec)).Run(context.Background(), ws)
		assert.ErrorIs(t, err, dto.ErrEmptyQuery)
		assert.Nil(t, result)
		assert.Empty(t, backend.Calls())
		assert.Len(t, messagesOf(t, ws, "o"), 1, "outputs unchanged")
		assert.Equal(t, []string{dto.ErrEmptyQuery.Error()}, alerts())
		assert.Equal(t, []string{OutcomeRejected}, rec.outcomes)
	}
}

func TestRunner_MissingQueryNodeIsEmpty(t *testing.T) {
	backend := &fakeBackend{}
	ws := newWorkspace(t)

	_, err := NewRunner(backend).Run(context.Background(), ws)
	assert.ErrorIs(t, err, dto.ErrEmptyQuery)
	assert.Empty(t, backend.Calls())
	assert.Empty(t, ws.Store.Canvas().Nodes)
}

func TestRunner_CreatesOutputNode(t *testing.T) {
	backend := &fakeBackend{}
	rec := &recorder{}
	ws := newWorkspace(t, kindNode("q", graph.NodeTypeQuery, map[string]interface{}{graph.FieldQuery: "  what is go?  "}))

	result, err := NewRunner(backend, WithRunnerRecorder(rec)).Run(context.Background(), ws)
	require.NoError(t, err)

	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "what is go?", calls[0].Query, "query is trimmed")
	assert.Equal(t, graph.DefaultModel, calls[0].Model)
	assert.Nil(t, calls[0].DocumentName, "no document serialises as null")

	out, err := ws.Store.Node(result.OutputNodeID)
	require.NoError(t, err)
	assert.Equal(t, graph.NodeTypeOutput, out.Type)
	assert.Equal(t, dto.OutputPosition, out.Position)
	assert.Equal(t, graph.DefaultModel, out.String(graph.FieldModel))

	msgs := out.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, graph.SenderUser, msgs[0].Sender)
	assert.Equal(t, "what is go?", msgs[0].Text)
	assert.Equal(t, graph.SenderAssistant, msgs[1].Sender)
	assert.Equal(t, "ok", msgs[1].Text)
	assert.Equal(t, []graph.NodeType{graph.NodeTypeOutput}, rec.created)
}

func TestRunner_ReadsWiredValues(t *testing.T) {
	backend := &fakeBackend{}
	ws := newWorkspace(t,
		kindNode("q", graph.NodeTypeQuery, map[string]interface{}{graph.FieldQuery: "summarise"}),
		kindNode("m", graph.NodeTypeModelSelector, map[string]interface{}{graph.FieldModel: graph.ModelGemini}),
		kindNode("k", graph.NodeTypeKnowledgeBase, map[string]interface{}{graph.FieldDocumentName: "report.pdf"}),
		kindNode("o", graph.NodeTypeOutput, nil),
	)

	result, err := NewRunner(backend).Run(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, "o", result.OutputNodeID)

	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, graph.ModelGemini, calls[0].Model)
	assert.Equal(t, "report.pdf", calls[0].Document())

	out, _ := ws.Store.Node("o")
	assert.Equal(t, graph.ModelGemini, out.String(graph.FieldModel))
	assert.Equal(t, "report.pdf", out.String(graph.FieldDocumentName))
}

func TestRunner_SessionFallback(t *testing.T) {
	backend := &fakeBackend{}
	ws := newWorkspace(t, kindNode("q", graph.NodeTypeQuery, map[string]interface{}{graph.FieldQuery: "hi"}))
	require.NoError(t, ws.Session.Set(graph.NodeTypeModelSelector, services.KeySelectedModel, graph.ModelSerpAPI))
	require.NoError(t, ws.Session.Set(graph.NodeTypeKnowledgeBase, services.KeyUploadedDocumentName, "notes.docx"))

	_, err := NewRunner(backend).Run(context.Background(), ws)
	require.NoError(t, err)

	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, graph.ModelSerpAPI, calls[0].Model)
	assert.Equal(t, "notes.docx", calls[0].Document())
}

func TestRunner_Classification(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		err       error
		wantKind  graph.MessageKind
		wantText  string
		wantError bool
		wantModel string
		outcome   string
	}{
		{
			name:      "text answer",
			body:      `{"answer":"Go is a language","model_used":"gemini"}`,
			wantKind:  graph.MessageKindText,
			wantText:  "Go is a language",
			wantModel: "gemini",
			outcome:   OutcomeText,
		},
		{
			name:      "error wins over answer",
			body:      `{"error":"quota exceeded","answer":"ignored"}`,
			wantKind:  graph.MessageKindText,
			wantText:  "Error: quota exceeded",
			wantError: true,
			wantModel: graph.DefaultModel,
			outcome:   OutcomeError,
		},
		{
			name:      "empty error is ignored",
			body:      `{"error":"","answer":"fine"}`,
			wantKind:  graph.MessageKindText,
			wantText:  "fine",
			wantModel: graph.DefaultModel,
			outcome:   OutcomeText,
		},
		{
			name:      "no answer",
			body:      `{}`,
			wantKind:  graph.MessageKindText,
			wantText:  NoAnswerText,
			wantModel: graph.DefaultModel,
			outcome:   OutcomeText,
		},
		{
			name:      "network failure",
			err:       errUnreachable,
			wantKind:  graph.MessageKindText,
			wantText:  "Could not reach the server: connection refused",
			wantError: true,
			wantModel: graph.DefaultModel,
			outcome:   OutcomeNetworkError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			backend := &fakeBackend{search: func(context.Context, dto.SearchRequest) (*dto.SearchResponse, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				var resp dto.SearchResponse
				require.NoError(t, json.Unmarshal([]byte(tt.body), &resp))
				return &resp, nil
			}}
			ws := newWorkspace(t,
				kindNode("q", graph.NodeTypeQuery, map[string]interface{}{graph.FieldQuery: "q"}),
				kindNode("o", graph.NodeTypeOutput, nil),
			)

			result, err := NewRunner(backend, WithRunnerRecorder(rec)).Run(context.Background(), ws)
			require.NoError(t, err)
			assert.Equal(t, tt.wantError, result.Failed)

			msgs := messagesOf(t, ws, "o")
			require.Len(t, msgs, 2)
			reply := msgs[1]
			assert.Equal(t, tt.wantKind, reply.Kind)
			assert.Equal(t, tt.wantText, reply.Text)
			assert.Equal(t, tt.wantError, reply.IsError)
			assert.Equal(t, tt.wantModel, reply.ModelUsed)
			assert.Equal(t, []string{tt.outcome}, rec.outcomes)
		})
	}
}

func TestRunner_LinkedResultsKeepOrder(t *testing.T) {
	body := `{"answer":[
		{"title":"First","link":"https://a.example","snippet":"one","source":"A","date":"2024-01-01"},
		{"title":"Second","link":"https://b.example","snippet":"two","source":"B","date":""},
		{"title":"Third","link":"https://c.example","snippet":"three","source":"C","date":""}
	],"model_used":"serpapi"}`
	backend := &fakeBackend{search: func(context.Context, dto.SearchRequest) (*dto.SearchResponse, error) {
		var resp dto.SearchResponse
		if err := json.Unmarshal([]byte(body), &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	}}
	ws := newWorkspace(t,
		kindNode("q", graph.NodeTypeQuery, map[string]interface{}{graph.FieldQuery: "news"}),
		kindNode("o", graph.NodeTypeOutput, nil),
	)

	_, err := NewRunner(backend).Run(context.Background(), ws)
	require.NoError(t, err)

	reply := messagesOf(t, ws, "o")[1]
	assert.Equal(t, graph.MessageKindLinkedResults, reply.Kind)
	require.Len(t, reply.Results, 3)
	assert.Equal(t, []string{"First", "Second", "Third"},
		[]string{reply.Results[0].Title, reply.Results[1].Title, reply.Results[2].Title})
	assert.Equal(t, "https://a.example", reply.Results[0].Link)
	assert.Equal(t, "serpapi", reply.ModelUsed)
}

func TestRunner_AnyListAnswerIsLinkedResults(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		titles []string
	}{
		{name: "strings", answer: `["alpha","beta"]`, titles: []string{"alpha", "beta"}},
		{name: "numbers", answer: `[1,2.5]`, titles: []string{"1", "2.5"}},
		{name: "mixed", answer: `[{"title":"Card","link":"https://a.example"},"plain"]`, titles: []string{"Card", "plain"}},
		{name: "empty", answer: `[]`, titles: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			backend := &fakeBackend{search: func(context.Context, dto.SearchRequest) (*dto.SearchResponse, error) {
				return &dto.SearchResponse{Answer: json.RawMessage(tt.answer)}, nil
			}}
			ws := newWorkspace(t,
				kindNode("q", graph.NodeTypeQuery, map[string]interface{}{graph.FieldQuery: "q"}),
				kindNode("o", graph.NodeTypeOutput, nil),
			)

			_, err := NewRunner(backend, WithRunnerRecorder(rec)).Run(context.Background(), ws)
			require.NoError(t, err)

			reply := messagesOf(t, ws, "o")[1]
			assert.Equal(t, graph.MessageKindLinkedResults, reply.Kind)
			assert.Empty(t, reply.Text)
			titles := make([]string, 0, len(reply.Results))
			for _, r := range reply.Results {
				titles = append(titles, r.Title)
			}
			assert.Equal(t, tt.titles, titles)
			assert.Equal(t, []string{OutcomeLinkedResults}, rec.outcomes)
		})
	}
}

func TestRunner_RunsAppendInOrder(t *testing.T) {
	n := 0
	backend := &fakeBackend{search: func(_ context.Context, req dto.SearchRequest) (*dto.SearchResponse, error) {
		n++
		return textAnswer(req.Query, req.Model), nil
	}}
	ws := newWorkspace(t,
		kindNode("q", graph.NodeTypeQuery, nil),
		kindNode("o", graph.NodeTypeOutput, nil),
	)
	runner := NewRunner(backend)

	for _, q := range []string{"one", "two", "three"} {
		require.NoError(t, ws.Store.UpdateNodeData("q", map[string]interface{}{graph.FieldQuery: q}))
		_, err := runner.Run(context.Background(), ws)
		require.NoError(t, err)
	}

	msgs := messagesOf(t, ws, "o")
	require.Len(t, msgs, 6)
	var texts []string
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"one", "one", "two", "two", "three", "three"}, texts)
	assert.Equal(t, 3, n)
}

func TestRunner_CancelAppendsNothing(t *testing.T) {
	started := make(chan struct{}, 1)
	backend := blockingBackend(started, make(chan struct{}))
	ws := newWorkspace(t,
		kindNode("q", graph.NodeTypeQuery, map[string]interface{}{graph.FieldQuery: "slow"}),
		kindNode("o", graph.NodeTypeOutput, nil),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := NewRunner(backend).Run(ctx, ws)
		done <- err
	}()

	<-started
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not stop after cancellation")
	}
	assert.Empty(t, messagesOf(t, ws, "o"))
}

func TestRunner_TimeoutIsNetworkFailure(t *testing.T) {
	started := make(chan struct{}, 1)
	backend := blockingBackend(started, make(chan struct{}))
	ws := newWorkspace(t,
		kindNode("q", graph.NodeTypeQuery, map[string]interface{}{graph.FieldQuery: "slow"}),
		kindNode("o", graph.NodeTypeOutput, nil),
	)

	result, err := NewRunner(backend, WithRequestTimeout(20*time.Millisecond)).Run(context.Background(), ws)
	require.NoError(t, err)
	assert.True(t, result.Failed)

	msgs := messagesOf(t, ws, "o")
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].IsError)
	assert.Contains(t, msgs[1].Text, "Could not reach the server")
}

func TestRunner_OutputRemovedMidFlight(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	backend := blockingBackend(started, release)
	ws := newWorkspace(t,
		kindNode("q", graph.NodeTypeQuery, map[string]interface{}{graph.FieldQuery: "hi"}),
		kindNode("o", graph.NodeTypeOutput, nil),
	)

	done := make(chan *dto.RunResult, 1)
	go func() {
		result, err := NewRunner(backend).Run(context.Background(), ws)
		assert.NoError(t, err)
		done <- result
	}()

	<-started
	require.NoError(t, ws.Store.SetSelected([]string{"o"}, true))
	ws.Store.RemoveSelected()
	close(release)

	result := <-done
	require.NotNil(t, result)
	assert.NotEqual(t, "o", result.OutputNodeID)
	out, err := ws.Store.Node(result.OutputNodeID)
	require.NoError(t, err)
	assert.Equal(t, dto.OutputPosition, out.Position)
	assert.Len(t, out.Messages(), 2)
}

func TestRunner_EdgeResolution(t *testing.T) {
	backend := &fakeBackend{}
	ws := newWorkspace(t,
		kindNode("q", graph.NodeTypeQuery, map[string]interface{}{graph.FieldQuery: "wired"}),
		kindNode("m", graph.NodeTypeModelSelector, map[string]interface{}{graph.FieldModel: graph.ModelGemini}),
		kindNode("o", graph.NodeTypeOutput, nil),
	)
	_, err := ws.Store.Connect("q", "o")
	require.NoError(t, err)

	// The model selector is not wired, so the default model is used
	_, err = NewRunner(backend, WithResolveMode(dto.ResolveByEdges)).Run(context.Background(), ws)
	require.NoError(t, err)
	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "wired", calls[0].Query)
	assert.Equal(t, graph.DefaultModel, calls[0].Model)

	_, err = ws.Store.Connect("m", "q")
	require.NoError(t, err)
	_, err = NewRunner(backend, WithResolveMode(dto.ResolveByEdges)).Run(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, graph.ModelGemini, backend.Calls()[1].Model)
}

func TestRunner_EdgeResolutionUnwiredQuery(t *testing.T) {
	backend := &fakeBackend{}
	ws := newWorkspace(t,
		kindNode("q", graph.NodeTypeQuery, map[string]interface{}{graph.FieldQuery: "loose"}),
		kindNode("o", graph.NodeTypeOutput, nil),
	)

	_, err := NewRunner(backend, WithResolveMode(dto.ResolveByEdges)).Run(context.Background(), ws)
	assert.ErrorIs(t, err, dto.ErrEmptyQuery)
	assert.Empty(t, backend.Calls())
}

func TestRunner_Ask(t *testing.T) {
	backend := &fakeBackend{}
	ws := newWorkspace(t,
		kindNode("q", graph.NodeTypeQuery, map[string]interface{}{graph.FieldQuery: "ignored"}),
		kindNode("m", graph.NodeTypeModelSelector, map[string]interface{}{graph.FieldModel: graph.ModelGemini}),
		kindNode("o", graph.NodeTypeOutput, map[string]interface{}{graph.FieldModel: "kept"}),
	)
	runner := NewRunner(backend)

	_, err := runner.Ask(context.Background(), ws, "o", "   ")
	assert.ErrorIs(t, err, dto.ErrEmptyQuery)
	assert.Empty(t, backend.Calls())

	_, err = runner.Ask(context.Background(), ws, "q", "hi")
	assert.ErrorIs(t, err, graph.ErrWrongNodeType)

	result, err := runner.Ask(context.Background(), ws, "o", " follow up ")
	require.NoError(t, err)
	assert.Equal(t, "o", result.OutputNodeID)

	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "follow up", calls[0].Query)
	assert.Equal(t, graph.DefaultModel, calls[0].Model, "ask reads the session, not the node")

	out, _ := ws.Store.Node("o")
	assert.Equal(t, "kept", out.String(graph.FieldModel), "ask does not patch the node")
	assert.Len(t, out.Messages(), 2)
}
