package web

import "github.com/dukex/comfyflow/pkg/models"

// ExecuteNodeRequest is the body of POST /nodes/:type/execute.
type ExecuteNodeRequest struct {
	ID      string                       `json:"id,omitempty"`
	Config  map[string]any               `json:"config"  validate:"required"`
	Context models.ExecutionContext      `json:"context"`
	Inputs  map[string]models.NodeResult `json:"inputs,omitempty"`
}

// ExecuteNodeResponse carries the results keyed by output port.
type ExecuteNodeResponse struct {
	ExecutionID string                       `json:"execution_id"`
	Results     map[string]models.NodeResult `json:"results"`
}
