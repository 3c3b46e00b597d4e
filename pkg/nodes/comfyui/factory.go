package comfyui

import (
	"context"
	"maps"

	"github.com/dukex/comfyflow/pkg/models"
	"github.com/dukex/comfyflow/pkg/protocol"
)

// StatusNodeFactory creates StatusNode instances.
type StatusNodeFactory struct{}

func NewStatusNodeFactory() protocol.NodeFactory {
	return &StatusNodeFactory{}
}

func (f *StatusNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewStatusNode(id, config)
}

func (f *StatusNodeFactory) ID() string {
	return TypeStatus
}

func (f *StatusNodeFactory) Name() string {
	return "ComfyUI Status"
}

func (f *StatusNodeFactory) Description() string {
	return "Checks whether the ComfyUI server answers; reports ready or the error without failing"
}

func (f *StatusNodeFactory) Schema() map[string]any {
	return objectSchema(credentialProperties(), "api_url")
}

// UploadNodeFactory creates UploadNode instances.
type UploadNodeFactory struct{}

func NewUploadNodeFactory() protocol.NodeFactory {
	return &UploadNodeFactory{}
}

func (f *UploadNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewUploadNode(id, config)
}

func (f *UploadNodeFactory) ID() string {
	return TypeUpload
}

func (f *UploadNodeFactory) Name() string {
	return "ComfyUI Media Upload"
}

func (f *UploadNodeFactory) Description() string {
	return "Uploads an image from a URL, base64 text or a binary attachment to the ComfyUI input folder"
}

func (f *UploadNodeFactory) Schema() map[string]any {
	props := credentialProperties()
	maps.Copy(props, inputProperties())
	props["filename"] = map[string]any{
		"type":        "string",
		"description": "Name the uploaded file is stored under",
		"examples":    []string{"input.png", "{{.trigger_data.name}}.png"},
	}

	return objectSchema(props, "api_url", "filename")
}

// WorkflowNodeFactory creates WorkflowNode instances.
type WorkflowNodeFactory struct{}

func NewWorkflowNodeFactory() protocol.NodeFactory {
	return &WorkflowNodeFactory{}
}

func (f *WorkflowNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewWorkflowNode(id, config)
}

func (f *WorkflowNodeFactory) ID() string {
	return TypeWorkflow
}

func (f *WorkflowNodeFactory) Name() string {
	return "ComfyUI Workflow"
}

func (f *WorkflowNodeFactory) Description() string {
	return "Runs a ComfyUI workflow and returns every video and image it produces"
}

func (f *WorkflowNodeFactory) Schema() map[string]any {
	props := credentialProperties()
	maps.Copy(props, runProperties())

	return objectSchema(props, "api_url", "workflow")
}

// ImageToVideoNodeFactory creates image to video GenerateNode instances.
type ImageToVideoNodeFactory struct{}

func NewImageToVideoNodeFactory() protocol.NodeFactory {
	return &ImageToVideoNodeFactory{}
}

func (f *ImageToVideoNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewImageToVideoNode(id, config)
}

func (f *ImageToVideoNodeFactory) ID() string {
	return TypeImageToVideo
}

func (f *ImageToVideoNodeFactory) Name() string {
	return "ComfyUI Image to Video"
}

func (f *ImageToVideoNodeFactory) Description() string {
	return "Feeds an image into the LoadImage node of a workflow and returns the first video produced"
}

func (f *ImageToVideoNodeFactory) Schema() map[string]any {
	return generateSchema()
}

// VideoToVideoNodeFactory creates video to video GenerateNode instances.
type VideoToVideoNodeFactory struct{}

func NewVideoToVideoNodeFactory() protocol.NodeFactory {
	return &VideoToVideoNodeFactory{}
}

func (f *VideoToVideoNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewVideoToVideoNode(id, config)
}

func (f *VideoToVideoNodeFactory) ID() string {
	return TypeVideoToVideo
}

func (f *VideoToVideoNodeFactory) Name() string {
	return "ComfyUI Video to Video"
}

func (f *VideoToVideoNodeFactory) Description() string {
	return "Feeds a video or frame into the LoadImage node of a workflow and returns the first video produced"
}

func (f *VideoToVideoNodeFactory) Schema() map[string]any {
	return generateSchema()
}

// Factories returns the factories of every ComfyUI node.
func Factories() []protocol.NodeFactory {
	return []protocol.NodeFactory{
		NewStatusNodeFactory(),
		NewUploadNodeFactory(),
		NewWorkflowNodeFactory(),
		NewImageToVideoNodeFactory(),
		NewVideoToVideoNodeFactory(),
	}
}

func generateSchema() map[string]any {
	props := credentialProperties()
	maps.Copy(props, runProperties())
	maps.Copy(props, inputProperties())
	props["upload_filename"] = map[string]any{
		"type":        "string",
		"description": "Name the input is uploaded under",
		"default":     DefaultUploadFilename,
	}

	return objectSchema(props, "api_url", "workflow")
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func credentialProperties() map[string]any {
	return map[string]any{
		"api_url": map[string]any{
			"type":        "string",
			"description": "ComfyUI base URL. Supports templating",
			"examples":    []string{"http://127.0.0.1:8188", "{{.env.COMFYUI_API_URL}}"},
		},
		"api_key": map[string]any{
			"type":        "string",
			"description": "Optional API key sent as a bearer token",
		},
	}
}

func inputProperties() map[string]any {
	return map[string]any{
		"input_type": map[string]any{
			"type":        "string",
			"description": "Where the input media comes from",
			"enum":        []string{"url", "base64", "binary"},
			"default":     "url",
		},
		"input_image": map[string]any{
			"type":        "string",
			"description": "URL or base64 data of the input, for the url and base64 input types",
		},
		"binary_property": map[string]any{
			"type":        "string",
			"description": "Binary attachment holding the input, for the binary input type",
			"default":     "data",
		},
	}
}

func runProperties() map[string]any {
	return map[string]any{
		"workflow": map[string]any{
			"type":        "string",
			"description": "The ComfyUI workflow in API JSON format",
		},
		"timeout": map[string]any{
			"type":        "number",
			"description": "Maximum time in minutes to wait for the job",
			"default":     DefaultTimeoutMinutes,
			"minimum":     0,
		},
		"poll_interval": map[string]any{
			"type":        "number",
			"description": "Seconds between status checks",
			"default":     1,
			"minimum":     0,
		},
		"initial_delay": map[string]any{
			"type":        "number",
			"description": "Seconds to wait before the first status check",
			"minimum":     0,
		},
		"download_attempts": map[string]any{
			"type":        "integer",
			"description": "Attempts per output download",
			"default":     3,
			"minimum":     0,
			"maximum":     10,
		},
		"retry_delay": map[string]any{
			"type":        "integer",
			"description": "Delay between download attempts in milliseconds",
			"default":     2000,
			"minimum":     0,
			"maximum":     60000,
		},
		"output_property": map[string]any{
			"type":        "string",
			"description": "Binary property name of each output item",
		},
	}
}
