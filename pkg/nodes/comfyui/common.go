// Package comfyui provides the ComfyUI nodes: status probe, media upload,
// workflow execution and the image/video generation nodes.
package comfyui

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/comfyflow/pkg/comfyui"
	"github.com/dukex/comfyflow/pkg/models"
	"github.com/dukex/comfyflow/pkg/template"
	"github.com/go-playground/validator/v10"
)

const (
	InputPortMain     = "main"
	OutputPortSuccess = "success"
	OutputPortError   = "error"

	// ErrorPrefix starts the message of every error these nodes report.
	ErrorPrefix = "ComfyUI API Error"

	DefaultTimeoutMinutes = 30
	DefaultOutputProperty = "data"
	DefaultUploadFilename = "input.png"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Credentials is the ComfyUI credential bundle. Both values are templated.
type Credentials struct {
	APIURL string `json:"api_url" validate:"required"`
	APIKey string `json:"api_key,omitempty"`
}

// render resolves the templated credentials into client credentials.
func (c Credentials) render(execCtx models.ExecutionContext) (comfyui.Credentials, error) {
	apiURL, err := template.RenderString(c.APIURL, execCtx)
	if err != nil {
		return comfyui.Credentials{}, fmt.Errorf("failed to render api_url: %w", err)
	}

	apiKey, err := template.RenderString(c.APIKey, execCtx)
	if err != nil {
		return comfyui.Credentials{}, fmt.Errorf("failed to render api_key: %w", err)
	}

	return comfyui.Credentials{APIURL: apiURL, APIKey: apiKey}, nil
}

// RunConfig holds the settings shared by the nodes that run a workflow.
type RunConfig struct {
	Workflow string `json:"workflow" validate:"required"`

	// Timeout is in minutes.
	Timeout float64 `json:"timeout" validate:"gte=0"`

	// PollInterval and InitialDelay are in seconds.
	PollInterval float64 `json:"poll_interval" validate:"gte=0"`
	InitialDelay float64 `json:"initial_delay" validate:"gte=0"`

	DownloadAttempts int `json:"download_attempts" validate:"gte=0,lte=10"`
	// RetryDelay is in milliseconds.
	RetryDelay int `json:"retry_delay" validate:"gte=0,lte=60000"`

	// OutputProperty names the binary property of every output item.
	OutputProperty string `json:"output_property"`
}

func (c RunConfig) timeout() time.Duration {
	minutes := c.Timeout
	if minutes == 0 {
		minutes = DefaultTimeoutMinutes
	}

	return time.Duration(minutes * float64(time.Minute))
}

func (c RunConfig) pipelineOptions(logger *slog.Logger) []comfyui.PipelineOption {
	var (
		pollerOpts     []comfyui.PollerOption
		downloaderOpts []comfyui.DownloaderOption
	)

	if c.PollInterval > 0 {
		pollerOpts = append(pollerOpts, comfyui.WithInterval(seconds(c.PollInterval)))
	}

	if c.InitialDelay > 0 {
		pollerOpts = append(pollerOpts, comfyui.WithInitialDelay(seconds(c.InitialDelay)))
	}

	if c.DownloadAttempts > 0 {
		downloaderOpts = append(downloaderOpts, comfyui.WithAttempts(c.DownloadAttempts))
	}

	if c.RetryDelay > 0 {
		downloaderOpts = append(downloaderOpts, comfyui.WithRetryDelay(time.Duration(c.RetryDelay)*time.Millisecond))
	}

	return []comfyui.PipelineOption{
		comfyui.WithPollerOptions(pollerOpts...),
		comfyui.WithDownloaderOptions(downloaderOpts...),
		comfyui.WithPipelineLogger(logger),
	}
}

func (c RunConfig) outputProperty(fallback string) string {
	if c.OutputProperty != "" {
		return c.OutputProperty
	}

	return fallback
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// decodeConfig maps a raw node configuration onto v and validates it.
func decodeConfig(config map[string]any, v any) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// mediaItem packages a downloaded output as an item with one binary property.
func mediaItem(m *comfyui.Media, property string) models.Item {
	return models.Item{
		JSON: map[string]any{
			"file_name":      m.Output.Filename,
			"subfolder":      m.Output.Subfolder,
			"type":           m.Output.Type,
			"url":            m.Output.URL,
			"mime_type":      m.MimeType,
			"file_extension": m.FileExtension,
			"file_type":      m.FileType(),
			"file_size":      m.FileSize,
			"size_bytes":     m.SizeBytes,
			"status":         m.JobStatus,
		},
		Binary: map[string]models.BinaryData{
			property: {
				Data:          m.Data,
				MimeType:      m.MimeType,
				FileName:      m.Output.Filename,
				FileExtension: m.FileExtension,
				FileType:      m.FileType(),
				FileSize:      m.FileSize,
			},
		},
	}
}

func runResult(nodeID string, result *comfyui.RunResult, property string) map[string]models.NodeResult {
	items := make([]models.Item, 0, len(result.Media))
	for _, m := range result.Media {
		items = append(items, mediaItem(m, property))
	}

	data := map[string]any{
		"prompt_id": result.PromptID,
		"count":     len(items),
	}

	return map[string]models.NodeResult{
		OutputPortSuccess: models.NewSuccessResult(nodeID, data, items),
	}
}

// base carries the identity and ports every ComfyUI node shares.
type base struct {
	id       string
	nodeType string
	logger   *slog.Logger
}

func newBase(id, nodeType string) base {
	return base{
		id:       id,
		nodeType: nodeType,
		logger:   slog.Default().With("module", nodeType, "node_id", id),
	}
}

func (b base) ID() string {
	return b.id
}

func (b base) Type() string {
	return b.nodeType
}

func (b base) fail(err error) error {
	return models.NewNodeError(b.id, b.nodeType, ErrorPrefix, err)
}

func (b base) client(creds comfyui.Credentials) (*comfyui.Client, error) {
	return comfyui.NewClient(creds, comfyui.WithLogger(b.logger))
}

func (b base) GetInputPorts() []models.InputPort {
	return []models.InputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(b.id, InputPortMain),
				NodeID:      b.id,
				Name:        InputPortMain,
				Description: "Main input, binary attachments of its items are available to the node",
			},
		},
	}
}

func (b base) outputPorts(success map[string]any) []models.OutputPort {
	return []models.OutputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(b.id, OutputPortSuccess),
				NodeID:      b.id,
				Name:        OutputPortSuccess,
				Description: "Node output",
				Schema:      success,
			},
		},
		{
			Port: models.Port{
				ID:          models.MakePortID(b.id, OutputPortError),
				NodeID:      b.id,
				Name:        OutputPortError,
				Description: "Error information when the node fails",
				Schema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"error":   map[string]any{"type": "string"},
						"success": map[string]any{"type": "boolean"},
					},
				},
			},
		},
	}
}

var mediaItemsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"prompt_id": map[string]any{"type": "string"},
		"count":     map[string]any{"type": "number"},
	},
}
