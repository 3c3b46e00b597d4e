// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"io"
	"log/slog"

	"github.com/dukex/comfyflow/pkg/models"
	"github.com/google/uuid"
)

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewExecutionContext creates an ExecutionContext with default values that can be overridden.
func NewExecutionContext(overrides ...func(*models.ExecutionContext)) models.ExecutionContext {
	execCtx := models.ExecutionContext{
		ID:          uuid.New().String(),
		WorkflowID:  "wf-test",
		Variables:   map[string]any{},
		NodeResults: map[string]models.NodeResult{},
	}

	for _, override := range overrides {
		override(&execCtx)
	}

	return execCtx
}

// WithVariable sets one workflow variable.
func WithVariable(name string, value any) func(*models.ExecutionContext) {
	return func(c *models.ExecutionContext) {
		c.Variables[name] = value
	}
}

// WithAttachment adds a binary attachment under property.
func WithAttachment(property string, data []byte, mimeType string) func(*models.ExecutionContext) {
	return func(c *models.ExecutionContext) {
		if c.Binary == nil {
			c.Binary = map[string]models.BinaryData{}
		}

		c.Binary[property] = models.BinaryData{Data: data, MimeType: mimeType}
	}
}

// WithNodeResult records the output data of a previous node.
func WithNodeResult(nodeID string, data map[string]any) func(*models.ExecutionContext) {
	return func(c *models.ExecutionContext) {
		c.NodeResults[nodeID] = models.NewSuccessResult(nodeID, data, nil)
	}
}
