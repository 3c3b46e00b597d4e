// Package config loads node configurations and execution contexts from YAML
// or JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dukex/comfyflow/pkg/models"
	"gopkg.in/yaml.v3"
)

// LoadNodeConfig reads a node configuration. JSON files parse as YAML.
func LoadNodeConfig(path string) (map[string]any, error) {
	var config map[string]any
	if err := load(path, &config); err != nil {
		return nil, err
	}

	if config == nil {
		config = map[string]any{}
	}

	return config, nil
}

// LoadExecutionContext reads an execution context. Keys follow the JSON
// field names of models.ExecutionContext, binary data is base64.
func LoadExecutionContext(path string) (models.ExecutionContext, error) {
	var execCtx models.ExecutionContext
	if err := load(path, &execCtx); err != nil {
		return models.ExecutionContext{}, err
	}

	return execCtx, nil
}

// load decodes YAML into out through its JSON tags.
func load(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	return nil
}
