package xmediaupload

import (
	"context"

	"github.com/dukex/comfyflow/pkg/models"
	"github.com/dukex/comfyflow/pkg/protocol"
)

// NodeFactory creates X media upload nodes.
type NodeFactory struct{}

func NewNodeFactory() protocol.NodeFactory {
	return &NodeFactory{}
}

func (f *NodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewNode(id, config)
}

func (f *NodeFactory) ID() string {
	return Type
}

func (f *NodeFactory) Name() string {
	return "X Media Upload"
}

func (f *NodeFactory) Description() string {
	return "Uploads a video or image to X.com with an OAuth2 access token and returns the media id"
}

func (f *NodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"access_token": map[string]any{
				"type":        "string",
				"description": "OAuth2 user access token. Supports templating",
				"examples":    []string{"{{.env.X_ACCESS_TOKEN}}"},
			},
			"input_type": map[string]any{
				"type":    "string",
				"enum":    []string{"url", "base64", "binary"},
				"default": "url",
			},
			"input_image": map[string]any{
				"type":        "string",
				"description": "URL or base64 data of the media",
			},
			"binary_property": map[string]any{
				"type":        "string",
				"description": "Binary attachment holding the media",
				"default":     "data",
			},
			"media_type": map[string]any{
				"type":        "string",
				"description": "MIME type of the media",
				"default":     DefaultMediaType,
			},
			"endpoint": map[string]any{
				"type":        "string",
				"description": "Upload endpoint override",
			},
			"chunk_size": map[string]any{
				"type":        "integer",
				"description": "APPEND segment size in bytes",
				"minimum":     0,
			},
		},
		"required": []string{"access_token"},
	}
}
