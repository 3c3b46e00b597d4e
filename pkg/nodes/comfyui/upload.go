package comfyui

import (
	"context"
	"fmt"

	"github.com/dukex/comfyflow/pkg/input"
	"github.com/dukex/comfyflow/pkg/models"
	"github.com/dukex/comfyflow/pkg/template"
)

const TypeUpload = "comfyui_upload"

// UploadConfig configures the media upload node.
type UploadConfig struct {
	Credentials
	input.Source

	Filename string `json:"filename" validate:"required"`
}

// UploadNode stores an input image on the ComfyUI server.
type UploadNode struct {
	base
	config UploadConfig
}

func NewUploadNode(id string, config map[string]any) (*UploadNode, error) {
	var cfg UploadConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	return &UploadNode{base: newBase(id, TypeUpload), config: cfg}, nil
}

func (n *UploadNode) Execute(ctx context.Context, execCtx models.ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	creds, err := n.config.render(execCtx)
	if err != nil {
		return nil, n.fail(err)
	}

	client, err := n.client(creds)
	if err != nil {
		return nil, n.fail(err)
	}

	filename, err := template.RenderString(n.config.Filename, execCtx)
	if err != nil {
		return nil, n.fail(fmt.Errorf("failed to render filename: %w", err))
	}

	buf, err := resolveInput(ctx, n.config.Source, execCtx, inputs, client)
	if err != nil {
		return nil, n.fail(err)
	}

	info, err := client.UploadImage(ctx, buf, filename)
	if err != nil {
		return nil, n.fail(err)
	}

	n.logger.InfoContext(ctx, "Media uploaded", "name", info.Name, "bytes", len(buf))

	data := map[string]any{
		"file_name": info.Name,
		"subfolder": info.Subfolder,
		"type":      info.Type,
	}

	return map[string]models.NodeResult{
		OutputPortSuccess: models.NewSuccessResult(n.id, data, []models.Item{{JSON: data}}),
	}, nil
}

func (n *UploadNode) GetOutputPorts() []models.OutputPort {
	return n.outputPorts(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_name": map[string]any{"type": "string"},
			"subfolder": map[string]any{"type": "string"},
			"type":      map[string]any{"type": "string"},
		},
	})
}

func (n *UploadNode) Validate(config map[string]any) error {
	return decodeConfig(config, &UploadConfig{})
}

// resolveInput renders the templated input value and reads the bytes it points at.
func resolveInput(ctx context.Context, src input.Source, execCtx models.ExecutionContext, inputs map[string]models.NodeResult, fetcher input.Fetcher) ([]byte, error) {
	value, err := template.RenderString(src.Value, execCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render input_image: %w", err)
	}

	src.Value = value

	resolver, err := input.NewResolver(src, execCtx.Attachments(inputs), fetcher)
	if err != nil {
		return nil, err
	}

	return resolver.Buffer(ctx)
}
