// Package models defines the node contract and the data exchanged between nodes and the host runtime.
package models

import (
	"context"
	"time"
)

// Node is one executable step hosted by the workflow runtime.
type Node interface {
	ID() string
	Type() string

	// Execute runs the node and returns results keyed by output port name.
	Execute(ctx context.Context, execCtx ExecutionContext, inputs map[string]NodeResult) (map[string]NodeResult, error)

	GetInputPorts() []InputPort
	GetOutputPorts() []OutputPort
	Validate(config map[string]any) error
}

// Item is one output record, the unit a node hands to the next node.
type Item struct {
	JSON   map[string]any        `json:"json"`
	Binary map[string]BinaryData `json:"binary,omitempty"`
}

// NodeResult represents the result of a node execution.
type NodeResult struct {
	NodeID    string         `json:"node_id"`
	Data      map[string]any `json:"data"`
	Items     []Item         `json:"items,omitempty"`
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Error     string         `json:"error,omitempty"`
}

// NodeStatus defines the possible states of a node execution.
type NodeStatus string

const (
	NodeStatusPending NodeStatus = "pending"
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusError   NodeStatus = "error"
)

// NewSuccessResult builds a success result stamped with the current time.
func NewSuccessResult(nodeID string, data map[string]any, items []Item) NodeResult {
	return NodeResult{
		NodeID:    nodeID,
		Data:      data,
		Items:     items,
		Status:    string(NodeStatusSuccess),
		Timestamp: time.Now().UTC(),
	}
}
