package comfyui

import (
	"context"
	"fmt"

	"github.com/dukex/comfyflow/pkg/comfyui"
	"github.com/dukex/comfyflow/pkg/input"
	"github.com/dukex/comfyflow/pkg/models"
	"github.com/dukex/comfyflow/pkg/template"
)

const (
	TypeImageToVideo = "comfyui_image_to_video"
	TypeVideoToVideo = "comfyui_video_to_video"

	// DefaultImageToVideoDelay is waited before the first status check, in seconds.
	DefaultImageToVideoDelay = 5

	videoOutputProperty = "video"
)

// GenerateConfig configures the nodes that feed an input into a LoadImage
// node and return the first video produced.
type GenerateConfig struct {
	Credentials
	RunConfig
	input.Source

	// UploadFilename is the name the input is stored under on the server.
	UploadFilename string `json:"upload_filename"`
}

// GenerateNode probes the server, uploads the input, injects it into the
// workflow and returns the first video output.
type GenerateNode struct {
	base
	config          GenerateConfig
	defaultProperty string
}

// NewImageToVideoNode builds the image to video node. Its poller waits
// five seconds before the first status check unless initial_delay is set.
func NewImageToVideoNode(id string, config map[string]any) (*GenerateNode, error) {
	node, err := newGenerateNode(id, TypeImageToVideo, config, DefaultOutputProperty)
	if err != nil {
		return nil, err
	}

	if _, ok := config["initial_delay"]; !ok {
		node.config.InitialDelay = DefaultImageToVideoDelay
	}

	return node, nil
}

// NewVideoToVideoNode builds the video to video node. Its output is stored
// under the "video" binary property by default.
func NewVideoToVideoNode(id string, config map[string]any) (*GenerateNode, error) {
	return newGenerateNode(id, TypeVideoToVideo, config, videoOutputProperty)
}

func newGenerateNode(id, nodeType string, config map[string]any, property string) (*GenerateNode, error) {
	var cfg GenerateConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	return &GenerateNode{base: newBase(id, nodeType), config: cfg, defaultProperty: property}, nil
}

func (n *GenerateNode) Execute(ctx context.Context, execCtx models.ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	result, err := n.generate(ctx, execCtx, inputs)
	if err != nil {
		return nil, n.fail(err)
	}

	return runResult(n.id, result, n.config.outputProperty(n.defaultProperty)), nil
}

func (n *GenerateNode) generate(ctx context.Context, execCtx models.ExecutionContext, inputs map[string]models.NodeResult) (*comfyui.RunResult, error) {
	creds, err := n.config.render(execCtx)
	if err != nil {
		return nil, err
	}

	client, err := n.client(creds)
	if err != nil {
		return nil, err
	}

	n.logger.InfoContext(ctx, "Checking API connection", "api_url", client.BaseURL())

	if _, err := client.SystemStats(ctx); err != nil {
		return nil, fmt.Errorf("connection check failed: %w", err)
	}

	wf, err := parseWorkflow(n.config.Workflow, execCtx)
	if err != nil {
		return nil, err
	}

	buf, err := resolveInput(ctx, n.config.Source, execCtx, inputs, client)
	if err != nil {
		return nil, err
	}

	filename, err := template.RenderString(n.config.UploadFilename, execCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render upload_filename: %w", err)
	}

	if filename == "" {
		filename = DefaultUploadFilename
	}

	info, err := client.UploadImage(ctx, buf, filename)
	if err != nil {
		return nil, err
	}

	n.logger.InfoContext(ctx, "Input uploaded", "name", info.Name, "bytes", len(buf))

	if err := wf.InjectImage(info.Name); err != nil {
		return nil, err
	}

	pipeline := comfyui.NewPipeline(client, n.config.pipelineOptions(n.logger)...)

	return pipeline.Run(ctx, wf, comfyui.PolicyVideo, n.config.timeout())
}

func (n *GenerateNode) GetOutputPorts() []models.OutputPort {
	return n.outputPorts(mediaItemsSchema)
}

func (n *GenerateNode) Validate(config map[string]any) error {
	return decodeConfig(config, &GenerateConfig{})
}
