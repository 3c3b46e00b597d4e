package comfyui

import (
	"context"

	"github.com/dukex/comfyflow/pkg/models"
)

const TypeStatus = "comfyui_status"

// StatusConfig configures the status node.
type StatusConfig struct {
	Credentials
}

// StatusNode probes the ComfyUI root endpoint. It reports the outcome as
// data and never fails.
type StatusNode struct {
	base
	config StatusConfig
}

func NewStatusNode(id string, config map[string]any) (*StatusNode, error) {
	var cfg StatusConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	return &StatusNode{base: newBase(id, TypeStatus), config: cfg}, nil
}

func (n *StatusNode) Execute(ctx context.Context, execCtx models.ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	data, err := n.probe(ctx, execCtx)
	if err != nil {
		n.logger.WarnContext(ctx, "ComfyUI is not ready", "error", err)

		data = map[string]any{
			"ready": false,
			"error": err.Error(),
		}
	}

	return map[string]models.NodeResult{
		OutputPortSuccess: models.NewSuccessResult(n.id, data, []models.Item{{JSON: data}}),
	}, nil
}

func (n *StatusNode) probe(ctx context.Context, execCtx models.ExecutionContext) (map[string]any, error) {
	creds, err := n.config.render(execCtx)
	if err != nil {
		return nil, err
	}

	client, err := n.client(creds)
	if err != nil {
		return nil, err
	}

	response, err := client.Ping(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"ready": true,
		"data":  response,
	}, nil
}

func (n *StatusNode) GetOutputPorts() []models.OutputPort {
	return n.outputPorts(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ready": map[string]any{"type": "boolean"},
			"data":  map[string]any{"description": "ComfyUI root response"},
			"error": map[string]any{"type": "string"},
		},
	})
}

func (n *StatusNode) Validate(config map[string]any) error {
	return decodeConfig(config, &StatusConfig{})
}
