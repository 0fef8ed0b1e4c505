package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bratushka/cypher/pkg/config"
	"github.com/bratushka/cypher/pkg/provider"
)

func newTestRouter(t *testing.T) (*gin.Engine, *apiServer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	require.NoError(t, cfg.Set("graph", config.Database{URL: "redis://graph", Name: "social"}))
	s := newAPIServer(cfg)
	return newRouter(s), s
}

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

func TestAPIQuery(t *testing.T) {
	stub := &stubProvider{result: oneNodeResult()}
	withProvider(t, stub)
	router, _ := newTestRouter(t)

	w := serve(router, http.MethodPost, "/api/query", `{"query": "MATCH (n) RETURN n", "database": "graph", "jsonpath": "$.n[*].properties.name"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result []string `json:"result"`
		Graph  struct {
			Nodes []struct {
				ID string `json:"id"`
			} `json:"nodes"`
		} `json:"graph"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Ann"}, resp.Result)
	require.Len(t, resp.Graph.Nodes, 1)
	assert.Equal(t, "1", resp.Graph.Nodes[0].ID)
	assert.Equal(t, "social", stub.database)
	assert.Equal(t, []string{"MATCH (n) RETURN n"}, stub.queries)
}

func TestAPIQueryErrors(t *testing.T) {
	stub := &stubProvider{err: errors.New("boom")}
	withProvider(t, stub)
	router, _ := newTestRouter(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed body", `{"query": `, http.StatusBadRequest},
		{"empty query", `{"query": ""}`, http.StatusBadRequest},
		{"unknown database", `{"query": "RETURN 1", "database": "nope"}`, http.StatusNotFound},
		{"database failure", `{"query": "RETURN 1"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, http.MethodPost, "/api/query", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestAPIProvidersAreReused(t *testing.T) {
	stub := &stubProvider{}
	withProvider(t, stub)
	opened := 0
	wrapped := openProviderFunc
	openProviderFunc = func(cfg *config.Config, name string) (provider.Provider, config.Database, error) {
		opened++
		return wrapped(cfg, name)
	}

	router, s := newTestRouter(t)
	for i := 0; i < 3; i++ {
		w := serve(router, http.MethodPost, "/api/query", `{"query": "RETURN 1"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 1, opened)

	s.close(context.Background())
	assert.True(t, stub.closed)
}

func TestAPIDatabases(t *testing.T) {
	router, _ := newTestRouter(t)

	w := serve(router, http.MethodGet, "/api/databases", "")
	require.Equal(t, http.StatusOK, w.Code)

	var dbs []DatabaseInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dbs))
	assert.Equal(t, []DatabaseInfo{
		{Name: "default", Engine: "bolt", URL: "bolt://cypher-db:7687", Default: true},
		{Name: "graph", Engine: "redisgraph", URL: "redis://graph:6379"},
	}, dbs)
}

func TestAPIRenderCreate(t *testing.T) {
	router, _ := newTestRouter(t)

	w := serve(router, http.MethodPost, "/api/render/create", testManifest)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, createAnnBob, resp["statement"])

	w = serve(router, http.MethodPost, "/api/render/create?extras=true", testManifest)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nick")

	w = serve(router, http.MethodPost, "/api/render/create", "nodes:\n  - {model: Ghost}\n")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = serve(router, http.MethodPost, "/api/render/create", "colours: [red]\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t)
	getMetrics()

	w := serve(router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = serve(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
