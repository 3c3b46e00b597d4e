package mocks

import (
	"context"

	"github.com/dukex/comfyflow/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockNode is a mock implementation of models.Node interface.
type MockNode struct {
	mock.Mock

	NodeID   string
	NodeType   string
}

func (m *MockNode) ID() string   { return m.NodeID }
func (m *MockNode) Type() string { return m.NodeType }

func (m *MockNode) Execute(ctx context.Context, execCtx models.ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	args := m.Called(ctx, execCtx, inputs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string]models.NodeResult), args.Error(1)
}

func (m *MockNode) GetInputPorts() []models.InputPort   { return nil }
func (m *MockNode) GetOutputPorts() []models.OutputPort { return nil }

func (m *MockNode) Validate(config map[string]any) error {
	return nil
}

// MockNodeFactory hands out Node for every Create call.
type MockNodeFactory struct {
	mock.Mock

	Node       *MockNode
	NodeType   string
	JSONSchema map[string]any
}

func (f *MockNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	args := f.Called(id, config)
	if err := args.Error(0); err != nil {
		return nil, err
	}

	return f.Node, nil
}

func (f *MockNodeFactory) ID() string          { return f.NodeType }
func (f *MockNodeFactory) Name() string        { return f.NodeType }
func (f *MockNodeFactory) Description() string { return "mock " + f.NodeType }

func (f *MockNodeFactory) Schema() map[string]any {
	if f.JSONSchema != nil {
		return f.JSONSchema
	}

	return map[string]any{"type": "object"}
}
