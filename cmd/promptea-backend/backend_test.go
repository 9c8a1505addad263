package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sandeepseesa/promptea/internal/infrastructure/config"
)

func TestBuild_InMemory(t *testing.T) {
	cfg := config.Default()
	b, err := build(context.Background(), cfg.Inference, cfg.Server, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, "memory", b.storeKind)

	srv := httptest.NewServer(b.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	var greeting string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&greeting))
	resp.Body.Close()
	assert.Equal(t, "Hello, World!", greeting)

	resp, err = http.Post(srv.URL+"/search", "application/json", strings.NewReader(`{"query":"tea","model":"gpt-9"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var reply map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Contains(t, reply["error"], "Model 'gpt-9' not supported")
}

func TestChatModels(t *testing.T) {
	models := chatModels(config.Default().Inference)
	assert.Len(t, models, 2)
	assert.Contains(t, models, "llama3")
	assert.Contains(t, models, "gemini")
	assert.NotContains(t, models, "serpapi")
}

func TestOpenVectorStore_BadDSN(t *testing.T) {
	cfg := config.Default().Inference
	cfg.VectorDSN = "postgres://%zz"
	_, _, err := openVectorStore(context.Background(), cfg)
	assert.Error(t, err)
}
