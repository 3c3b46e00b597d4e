package web_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/comfyflow/pkg/executor"
	"github.com/dukex/comfyflow/pkg/mocks"
	"github.com/dukex/comfyflow/pkg/models"
	"github.com/dukex/comfyflow/pkg/monitor"
	"github.com/dukex/comfyflow/pkg/registry"
	"github.com/dukex/comfyflow/pkg/testutil"
	"github.com/dukex/comfyflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixedReadiness struct {
	status monitor.Status
	err    error
}

func (r fixedReadiness) Last() (monitor.Status, error) {
	return r.status, r.err
}

func setupTestApp(t *testing.T, node *mocks.MockNode, readiness web.Readiness) *fiber.App {
	t.Helper()

	logger := testutil.Logger()

	factory := &mocks.MockNodeFactory{
		Node:     node,
		NodeType: "mock",
		JSONSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"api_url": map[string]any{"type": "string"}},
			"required":   []string{"api_url"},
		},
	}
	factory.On("Create", mock.Anything, mock.Anything).Return(nil)

	reg := registry.NewRegistry(logger)
	reg.RegisterNode(factory)

	handlers := web.NewAPIHandlers(
		reg,
		executor.New(reg, executor.WithLogger(logger)),
		validator.New(validator.WithRequiredStructEnabled()),
		readiness,
	)

	return handlers.App()
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}

	return resp, out
}

func TestAPIHandlers_ListNodes(t *testing.T) {
	app := setupTestApp(t, &mocks.MockNode{}, nil)

	resp, body := doJSON(t, app, http.MethodGet, "/nodes", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	nodes, ok := body["nodes"].([]any)
	require.True(t, ok)
	require.Len(t, nodes, 1)
	assert.Equal(t, "mock", nodes[0].(map[string]any)["id"])
}

func TestAPIHandlers_GetNode(t *testing.T) {
	app := setupTestApp(t, &mocks.MockNode{}, nil)

	resp, body := doJSON(t, app, http.MethodGet, "/nodes/mock", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "schema")

	resp, body = doJSON(t, app, http.MethodGet, "/nodes/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "node_type_not_found", body["type"])
}

func TestAPIHandlers_ExecuteNode(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		body           any
		result         map[string]models.NodeResult
		err            error
		expectedStatus int
		expectedType   string
	}{
		{
			name: "success",
			path: "/nodes/mock/execute",
			body: web.ExecuteNodeRequest{ID: "gen", Config: map[string]any{"api_url": "http://comfy:8188"}},
			result: map[string]models.NodeResult{
				"success": models.NewSuccessResult("gen", map[string]any{"count": 1}, nil),
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing config",
			path:           "/nodes/mock/execute",
			body:           map[string]any{"id": "gen"},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "schema violation",
			path:           "/nodes/mock/execute",
			body:           web.ExecuteNodeRequest{Config: map[string]any{}},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "invalid_node_config",
		},
		{
			name:           "unknown node type",
			path:           "/nodes/missing/execute",
			body:           web.ExecuteNodeRequest{Config: map[string]any{}},
			expectedStatus: http.StatusNotFound,
			expectedType:   "node_type_not_found",
		},
		{
			name:           "node failure",
			path:           "/nodes/mock/execute",
			body:           web.ExecuteNodeRequest{Config: map[string]any{"api_url": "http://comfy:8188"}},
			err:            models.NewNodeError("mock", "mock", "ComfyUI API Error", errors.New("job execution failed")),
			expectedStatus: http.StatusBadGateway,
			expectedType:   "node_execution_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &mocks.MockNode{NodeID: "gen", NodeType: "mock"}
			if tt.err != nil {
				node.On("Execute", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)
			} else {
				node.On("Execute", mock.Anything, mock.Anything, mock.Anything).Return(tt.result, nil)
			}

			resp, body := doJSON(t, setupTestApp(t, node, nil), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedType != "" {
				assert.Equal(t, tt.expectedType, body["type"])

				return
			}

			assert.NotEmpty(t, body["execution_id"])
			results := body["results"].(map[string]any)
			assert.Contains(t, results, "success")
		})
	}
}

func TestAPIHandlers_Ready(t *testing.T) {
	tests := []struct {
		name           string
		readiness      web.Readiness
		expectedStatus int
		expected       string
	}{
		{name: "no monitor", readiness: nil, expectedStatus: http.StatusOK, expected: "ready"},
		{name: "ready", readiness: fixedReadiness{status: monitor.Status{Ready: true}}, expectedStatus: http.StatusOK, expected: "ready"},
		{name: "not ready", readiness: fixedReadiness{status: monitor.Status{Error: "refused"}}, expectedStatus: http.StatusServiceUnavailable, expected: "not_ready"},
		{name: "not probed", readiness: fixedReadiness{err: monitor.ErrNotProbed}, expectedStatus: http.StatusServiceUnavailable, expected: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, setupTestApp(t, &mocks.MockNode{}, tt.readiness), http.MethodGet, "/readyz", nil)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Equal(t, tt.expected, body["status"])
		})
	}
}
