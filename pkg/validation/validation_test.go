package validation

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepseesa/promptea/internal/core/graph"
)

type dropRequest struct {
	Type    string  `json:"type" validate:"required,node_type"`
	ClientX float64 `json:"client_x"`
	Zoom    float64 `json:"zoom" validate:"omitempty,gt=0"`
}

type modelRequest struct {
	Model string `json:"model" validate:"required,model_id"`
}

type guardedRequest struct {
	Query string `json:"query" validate:"required"`
}

func (g *guardedRequest) Validate() error {
	if strings.TrimSpace(g.Query) == "" {
		return errors.New("query is blank")
	}
	return nil
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "type", Value: "", Message: "field is required"},
		{Field: "zoom", Value: -1, Message: "must be greater than 0"},
	}
	expected := "validation error on field 'type': field is required (got: ); validation error on field 'zoom': must be greater than 0 (got: -1)"
	assert.Equal(t, expected, errs.Error())
	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     interface{}
		wantField string
	}{
		{name: "valid drop", input: &dropRequest{Type: "query", Zoom: 1}},
		{name: "missing type", input: &dropRequest{}, wantField: "type"},
		{name: "unknown type", input: &dropRequest{Type: "widget"}, wantField: "type"},
		{name: "bad zoom", input: &dropRequest{Type: "output", Zoom: -2}, wantField: "zoom"},
		{name: "valid model", input: &modelRequest{Model: graph.ModelGemini}},
		{name: "unsupported model", input: &modelRequest{Model: "gpt-9"}, wantField: "model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.input)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.wantField, verrs[0].Field)
		})
	}
}

func TestStruct_RunsCustomValidate(t *testing.T) {
	assert.EqualError(t, Struct(&guardedRequest{Query: "   "}), "query is blank")
	assert.NoError(t, Struct(&guardedRequest{Query: "hi"}))
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("id", "node_1-a", "object_id"))

	err := Var("id", "no spaces", "object_id")
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "id", verrs[0].Field)
	assert.Contains(t, verrs[0].Message, "identifier")
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   bool
		wantField string
	}{
		{name: "valid", body: `{"type":"knowledge-base","client_x":10}`},
		{name: "empty body", body: ``, wantErr: true, wantField: "request_body"},
		{name: "malformed", body: `{"type":`, wantErr: true, wantField: "request_body"},
		{name: "unknown field", body: `{"type":"query","colour":"red"}`, wantErr: true, wantField: "request_body"},
		{name: "fails validation", body: `{"type":"widget"}`, wantErr: true, wantField: "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var req dropRequest
			err := DecodeJSON(r, &req)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "knowledge-base", req.Type)
				return
			}
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.wantField, verrs[0].Field)
		})
	}
}

func TestDecodeJSONLenient(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   bool
		wantField string
	}{
		{name: "valid", body: `{"type":"knowledge-base"}`},
		{name: "unknown field ignored", body: `{"type":"knowledge-base","colour":"red"}`},
		{name: "malformed", body: `{"type":`, wantErr: true, wantField: "request_body"},
		{name: "still validated", body: `{"type":"widget","colour":"red"}`, wantErr: true, wantField: "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var req dropRequest
			err := DecodeJSONLenient(r, &req)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "knowledge-base", req.Type)
				return
			}
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.wantField, verrs[0].Field)
		})
	}
}

func TestWriteErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrors(rec, http.StatusBadRequest, ValidationErrors{{Field: "model", Message: "field is required"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), `"field":"model"`)
}

func TestJSONMiddleware(t *testing.T) {
	h := JSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("json accepted", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		r.Header.Set("Content-Type", "application/json; charset=utf-8")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("form rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`a=b`))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func canvasWith(edges ...*graph.Edge) *graph.Canvas {
	c := &graph.Canvas{ID: "c1"}
	for _, nt := range []graph.NodeType{graph.NodeTypeQuery, graph.NodeTypeModelSelector, graph.NodeTypeOutput} {
		kind, _ := graph.LookupKind(nt)
		c.Nodes = append(c.Nodes, &graph.Node{ID: string(nt), Type: nt, Data: kind.DefaultData()})
	}
	c.Edges = edges
	return c
}

func TestValidateCanvas(t *testing.T) {
	t.Run("nil canvas", func(t *testing.T) {
		assert.Error(t, ValidateCanvas(nil))
	})

	t.Run("dangling edge", func(t *testing.T) {
		c := canvasWith(&graph.Edge{ID: "e", Source: "query", Target: "missing"})
		assert.ErrorIs(t, ValidateCanvas(c), graph.ErrTargetNodeNotFound)
	})

	t.Run("duplicate edges", func(t *testing.T) {
		c := canvasWith(
			&graph.Edge{ID: "e1", Source: "query", Target: "output"},
			&graph.Edge{ID: "e2", Source: "query", Target: "output"},
		)
		assert.ErrorIs(t, ValidateCanvas(c), graph.ErrDuplicateEdge)
	})

	t.Run("cycle only reported when asked", func(t *testing.T) {
		c := canvasWith(
			&graph.Edge{ID: "e1", Source: "query", Target: "model-selector"},
			&graph.Edge{ID: "e2", Source: "model-selector", Target: "query"},
		)
		assert.NoError(t, ValidateCanvas(c))
		assert.ErrorIs(t, ValidateCanvas(c, CanvasValidationOptions{CheckCycles: true}), graph.ErrCyclicGraph)
	})

	t.Run("node data checked when asked", func(t *testing.T) {
		c := canvasWith()
		c.Nodes[1].Data[graph.FieldModel] = "gpt-9"
		assert.NoError(t, ValidateCanvas(c))
		assert.Error(t, ValidateCanvas(c, CanvasValidationOptions{CheckNodeData: true}))
	})
}
