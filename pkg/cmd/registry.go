package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/comfyflow/pkg/registry"
)

// NewRegistry registers the native nodes and then the plugins found in
// pluginsPath, a plugin replaces a native node of the same type.
func NewRegistry(log *slog.Logger, pluginsPath string) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)
	reg.RegisterDefaultNodes()

	if pluginsPath != "" {
		if err := reg.LoadNodePlugins(pluginsPath); err != nil {
			return nil, fmt.Errorf("failed to load node plugins: %w", err)
		}
	}

	return reg, nil
}
