package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/dukex/comfyflow/pkg/models"
	"github.com/dukex/comfyflow/pkg/nodes/comfyui"
	"github.com/dukex/comfyflow/pkg/nodes/xmediaupload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNode struct {
	id string
}

func (n *stubNode) ID() string   { return n.id }
func (n *stubNode) Type() string { return "stub" }

func (n *stubNode) Execute(ctx context.Context, execCtx models.ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	return nil, nil
}

func (n *stubNode) GetInputPorts() []models.InputPort   { return nil }
func (n *stubNode) GetOutputPorts() []models.OutputPort { return nil }
func (n *stubNode) Validate(config map[string]any) error { return nil }

type stubFactory struct {
	created map[string]any
}

func (f *stubFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	f.created = config

	return &stubNode{id: id}, nil
}

func (f *stubFactory) ID() string          { return "stub" }
func (f *stubFactory) Name() string        { return "Stub" }
func (f *stubFactory) Description() string { return "Stub node" }

func (f *stubFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer", "minimum": 1},
		},
		"required": []string{"name"},
	}
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegistry_CreateNode(t *testing.T) {
	r := newTestRegistry()
	factory := &stubFactory{}
	r.RegisterNode(factory)

	node, err := r.CreateNode(context.Background(), "stub", "n1", map[string]any{"name": "a", "count": 2})
	require.NoError(t, err)
	assert.Equal(t, "n1", node.ID())
	assert.Equal(t, map[string]any{"name": "a", "count": 2}, factory.created)
}

func TestRegistry_CreateNode_SchemaViolation(t *testing.T) {
	r := newTestRegistry()
	r.RegisterNode(&stubFactory{})

	_, err := r.CreateNode(context.Background(), "stub", "n1", map[string]any{"count": 0})

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "stub", cfgErr.NodeType)
	assert.Len(t, cfgErr.Problems, 2)
	assert.Contains(t, err.Error(), "name")
}

func TestRegistry_CreateNode_Unknown(t *testing.T) {
	_, err := newTestRegistry().CreateNode(context.Background(), "missing", "n1", nil)
	require.ErrorIs(t, err, ErrNodeNotRegistered)
}

func TestRegistry_DefaultNodes(t *testing.T) {
	r := newTestRegistry()
	r.RegisterDefaultNodes()

	ids := make([]string, 0)
	for _, info := range r.ListNodes() {
		ids = append(ids, info.ID)
	}

	assert.Equal(t, []string{
		comfyui.TypeImageToVideo,
		comfyui.TypeStatus,
		comfyui.TypeUpload,
		comfyui.TypeVideoToVideo,
		comfyui.TypeWorkflow,
		xmediaupload.Type,
	}, ids)

	_, err := r.CreateNode(context.Background(), comfyui.TypeWorkflow, "wf", map[string]any{
		"api_url":  "http://127.0.0.1:8188",
		"workflow": `{"1": {"class_type": "SaveImage", "inputs": {}}}`,
		"timeout":  5,
	})
	require.NoError(t, err)

	_, err = r.CreateNode(context.Background(), comfyui.TypeWorkflow, "wf", map[string]any{
		"api_url": "http://127.0.0.1:8188",
	})

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)

	_, err = r.CreateNode(context.Background(), xmediaupload.Type, "x", map[string]any{
		"access_token": "token",
		"input_type":   "ftp",
	})
	require.ErrorAs(t, err, &cfgErr)
}

func TestRegistry_LoadNodePlugins_EmptyDir(t *testing.T) {
	r := newTestRegistry()

	require.NoError(t, r.LoadNodePlugins(t.TempDir()))
	assert.Empty(t, r.ListNodes())
}
