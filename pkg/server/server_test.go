package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/strata"
	"github.com/soundprediction/strata/pkg/config"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := strata.NewClient(nil, nil, nil, logger)
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "localhost", Port: 8080, Mode: "test"},
	}
	srv := New(cfg, client, nil)
	srv.Setup()
	return srv
}

func do(srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestSetup(t *testing.T) {
	srv := testServer(t)
	assert.NotNil(t, srv.router)
	assert.Equal(t, "localhost:8080", srv.server.Addr)
}

func TestHealthEndpoints(t *testing.T) {
	srv := testServer(t)
	for _, path := range []string{"/health", "/ready", "/live"} {
		w := do(srv, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestIngestEndpoint(t *testing.T) {
	srv := testServer(t)

	body := map[string]any{
		"nodes": []map[string]any{
			{"id": "preload", "level": 0},
			{"id": "afterload", "level": 0},
		},
		"edges": []map[string]any{
			{"source": "preload", "target": "afterload", "label": "opposes"},
		},
	}
	w := do(srv, http.MethodPost, "/api/v1/ingest", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(srv, http.MethodGet, "/api/v1/nodes/preload", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(srv, http.MethodGet, "/api/v1/nodes/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngestRejectsEmptyBatch(t *testing.T) {
	srv := testServer(t)
	w := do(srv, http.MethodPost, "/api/v1/ingest", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestGovernanceBlocked(t *testing.T) {
	srv := testServer(t)

	body := map[string]any{
		"nodes": []map[string]any{{"id": "x", "level": 0}},
		"operation": map[string]any{
			"type":      "write",
			"agent":     "tester",
			"rationale": "load",
			"logged":    true,
			// No power position, so the write must be refused.
			"positions": []string{},
		},
	}
	w := do(srv, http.MethodPost, "/api/v1/ingest", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestValidateEndpoint(t *testing.T) {
	srv := testServer(t)
	w := do(srv, http.MethodGet, "/api/v1/validate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Valid bool `json:"valid"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.True(t, result.Data.Valid)
}

func TestRefineEndpoint(t *testing.T) {
	srv := testServer(t)

	body := map[string]any{
		"nodes": []map[string]any{
			{"id": "a", "level": 0},
			{"id": "b", "level": 0},
		},
	}
	w := do(srv, http.MethodPost, "/api/v1/ingest", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(srv, http.MethodPost, "/api/v1/refine", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		Data struct {
			State string `json:"state"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "exhausted", result.Data.State)
}

func TestDecohereEndpoint(t *testing.T) {
	srv := testServer(t)

	body := map[string]any{
		"nodes": []map[string]any{{"id": "co", "level": 0}, {"id": "heart", "level": 0}},
	}
	w := do(srv, http.MethodPost, "/api/v1/ingest", body)
	require.Equal(t, http.StatusOK, w.Code)

	req := map[string]any{
		"query": "cardiac blood pressure",
		"polysemous": []map[string]any{{
			"node_id": "co",
			"interpretations": []map[string]any{
				{"meaning": "cardiac output", "domain": "hemodynamic", "confidence": 0.9},
				{"meaning": "flow rate", "domain": "fluid dynamics", "confidence": 0.6},
			},
		}},
	}
	w = do(srv, http.MethodPost, "/api/v1/decohere", req)
	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		Data struct {
			Context  strata.QueryContext              `json:"context"`
			Resolved map[string]strata.Interpretation `json:"resolved"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "hemodynamic", result.Data.Context.Domain)
	assert.Equal(t, "cardiac output", result.Data.Resolved["co"].Meaning)
}

func TestExportEndpoint(t *testing.T) {
	srv := testServer(t)

	body := map[string]any{
		"nodes": []map[string]any{{"id": "a", "level": 0}},
	}
	w := do(srv, http.MethodPost, "/api/v1/ingest", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(srv, http.MethodGet, "/api/v1/export", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(srv, http.MethodGet, "/api/v1/export?format=yaml", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "id: a")
}
