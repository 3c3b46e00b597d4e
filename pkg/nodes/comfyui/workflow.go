package comfyui

import (
	"context"
	"fmt"

	"github.com/dukex/comfyflow/pkg/comfyui"
	"github.com/dukex/comfyflow/pkg/models"
	"github.com/dukex/comfyflow/pkg/template"
)

const TypeWorkflow = "comfyui_workflow"

// WorkflowConfig configures the workflow node.
type WorkflowConfig struct {
	Credentials
	RunConfig
}

// WorkflowNode runs a workflow as is and returns every media output,
// videos first, one item each.
type WorkflowNode struct {
	base
	config WorkflowConfig
}

func NewWorkflowNode(id string, config map[string]any) (*WorkflowNode, error) {
	var cfg WorkflowConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	return &WorkflowNode{base: newBase(id, TypeWorkflow), config: cfg}, nil
}

func (n *WorkflowNode) Execute(ctx context.Context, execCtx models.ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	creds, err := n.config.render(execCtx)
	if err != nil {
		return nil, n.fail(err)
	}

	client, err := n.client(creds)
	if err != nil {
		return nil, n.fail(err)
	}

	wf, err := parseWorkflow(n.config.Workflow, execCtx)
	if err != nil {
		return nil, n.fail(err)
	}

	pipeline := comfyui.NewPipeline(client, n.config.pipelineOptions(n.logger)...)

	result, err := pipeline.Run(ctx, wf, comfyui.PolicyAll, n.config.timeout())
	if err != nil {
		return nil, n.fail(err)
	}

	return runResult(n.id, result, n.config.outputProperty(DefaultOutputProperty)), nil
}

func (n *WorkflowNode) GetOutputPorts() []models.OutputPort {
	return n.outputPorts(mediaItemsSchema)
}

func (n *WorkflowNode) Validate(config map[string]any) error {
	return decodeConfig(config, &WorkflowConfig{})
}

func parseWorkflow(text string, execCtx models.ExecutionContext) (comfyui.Workflow, error) {
	rendered, err := template.RenderString(text, execCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render workflow: %w", err)
	}

	return comfyui.ParseWorkflow(rendered)
}
