// Package protocol defines the contracts between the host runtime and pluggable nodes.
package protocol

import (
	"context"

	"github.com/dukex/comfyflow/pkg/models"
)

// NodeFactory creates node instances and describes the node type.
type NodeFactory interface {
	// Create builds a node instance for the given configuration.
	Create(ctx context.Context, id string, config map[string]any) (models.Node, error)

	// ID is the node type identifier, e.g. "comfyui_workflow".
	ID() string

	Name() string
	Description() string

	// Schema returns the JSON schema the configuration must satisfy.
	Schema() map[string]any
}
