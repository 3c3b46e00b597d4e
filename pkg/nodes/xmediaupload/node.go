// Package xmediaupload provides the node that uploads media to X.
package xmediaupload

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukex/comfyflow/pkg/input"
	"github.com/dukex/comfyflow/pkg/models"
	"github.com/dukex/comfyflow/pkg/template"
	"github.com/dukex/comfyflow/pkg/xmedia"
	"github.com/go-playground/validator/v10"
)

const (
	Type = "x_media_upload"

	InputPortMain     = "main"
	OutputPortSuccess = "success"
	OutputPortError   = "error"

	ErrorPrefix = "X API Error"

	DefaultMediaType = "video/mp4"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config defines the configuration for X media upload nodes.
type Config struct {
	input.Source

	AccessToken string `json:"access_token" validate:"required"`
	MediaType   string `json:"media_type"`

	// Endpoint and ChunkSize override the upload API defaults.
	Endpoint  string `json:"endpoint" validate:"omitempty,url"`
	ChunkSize int    `json:"chunk_size" validate:"gte=0"`
}

// Node uploads a resolved input to X and returns the media id.
type Node struct {
	id      string
	config  Config
	fetcher input.Fetcher
	logger  *slog.Logger
}

func NewNode(id string, config map[string]any) (*Node, error) {
	cfg, err := parseConfig(config)
	if err != nil {
		return nil, err
	}

	if cfg.Mode == "" {
		cfg.Mode = input.ModeURL
	}

	if cfg.MediaType == "" {
		cfg.MediaType = DefaultMediaType
	}

	return &Node{
		id:      id,
		config:  cfg,
		fetcher: input.NewHTTPFetcher(),
		logger:  slog.Default().With("module", Type, "node_id", id),
	}, nil
}

func parseConfig(config map[string]any) (Config, error) {
	var cfg Config

	raw, err := json.Marshal(config)
	if err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (n *Node) ID() string {
	return n.id
}

func (n *Node) Type() string {
	return Type
}

func (n *Node) Execute(ctx context.Context, execCtx models.ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	media, err := n.upload(ctx, execCtx, inputs)
	if err != nil {
		return nil, models.NewNodeError(n.id, Type, ErrorPrefix, err)
	}

	data := map[string]any{
		"media_id": media.MediaIDString,
		"media":    media,
	}

	return map[string]models.NodeResult{
		OutputPortSuccess: models.NewSuccessResult(n.id, data, []models.Item{{JSON: data}}),
	}, nil
}

func (n *Node) upload(ctx context.Context, execCtx models.ExecutionContext, inputs map[string]models.NodeResult) (*xmedia.Media, error) {
	token, err := template.RenderString(n.config.AccessToken, execCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render access_token: %w", err)
	}

	src := n.config.Source

	src.Value, err = template.RenderString(src.Value, execCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render input_image: %w", err)
	}

	resolver, err := input.NewResolver(src, execCtx.Attachments(inputs), n.fetcher)
	if err != nil {
		return nil, err
	}

	buf, err := resolver.Buffer(ctx)
	if err != nil {
		return nil, err
	}

	opts := []xmedia.Option{xmedia.WithLogger(n.logger)}
	if n.config.Endpoint != "" {
		opts = append(opts, xmedia.WithEndpoint(n.config.Endpoint))
	}

	if n.config.ChunkSize > 0 {
		opts = append(opts, xmedia.WithChunkSize(n.config.ChunkSize))
	}

	uploader, err := xmedia.NewUploader(token, opts...)
	if err != nil {
		return nil, err
	}

	media, err := uploader.Upload(ctx, buf, n.config.MediaType)
	if err != nil {
		return nil, err
	}

	n.logger.InfoContext(ctx, "Media uploaded to X", "media_id", media.MediaIDString, "bytes", len(buf))

	return media, nil
}

func (n *Node) GetInputPorts() []models.InputPort {
	return []models.InputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, InputPortMain),
				NodeID:      n.id,
				Name:        InputPortMain,
				Description: "Main input, binary attachments of its items are available to the node",
			},
		},
	}
}

func (n *Node) GetOutputPorts() []models.OutputPort {
	return []models.OutputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, OutputPortSuccess),
				NodeID:      n.id,
				Name:        OutputPortSuccess,
				Description: "Uploaded media reference",
				Schema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"media_id": map[string]any{"type": "string"},
						"media":    map[string]any{"type": "object"},
					},
				},
			},
		},
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, OutputPortError),
				NodeID:      n.id,
				Name:        OutputPortError,
				Description: "Error information when the upload fails",
			},
		},
	}
}

func (n *Node) Validate(config map[string]any) error {
	_, err := parseConfig(config)

	return err
}
