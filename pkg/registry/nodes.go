package registry

import (
	"github.com/dukex/comfyflow/pkg/nodes/comfyui"
	"github.com/dukex/comfyflow/pkg/nodes/xmediaupload"
)

// RegisterDefaultNodes registers all built-in node factories with the registry.
func (r *Registry) RegisterDefaultNodes() {
	for _, factory := range comfyui.Factories() {
		r.RegisterNode(factory)
	}

	r.RegisterNode(xmediaupload.NewNodeFactory())
}
