// Package events defines the notifications published while nodes run.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every comfyflow event.
const Topic = "comfyflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	NodeExecutionStartedEvent  EventType = "node.execution.started"
	NodeExecutionFinishedEvent EventType = "node.execution.finished"
	NodeExecutionFailedEvent   EventType = "node.execution.failed"

	ComfyUIProbedEvent EventType = "comfyui.probed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a new event with a fresh id and the current time.
func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// NodeExecutionStarted is published before a node runs.
type NodeExecutionStarted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	NodeType    string         `json:"node_type"`
	Config      map[string]any `json:"config,omitempty"`
}

func (e NodeExecutionStarted) GetType() EventType {
	return NodeExecutionStartedEvent
}

// NodeExecutionFinished is published after a node succeeded. Binary
// payloads are not part of the event, only their descriptions.
type NodeExecutionFinished struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	NodeType    string         `json:"node_type"`
	OutputData  map[string]any `json:"output_data,omitempty"`
	ItemCount   int            `json:"item_count"`
	DurationMs  int64          `json:"duration_ms"`
}

func (e NodeExecutionFinished) GetType() EventType {
	return NodeExecutionFinishedEvent
}

// NodeExecutionFailed is published after a node returned an error.
type NodeExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	NodeType    string `json:"node_type"`
	Error       string `json:"error"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e NodeExecutionFailed) GetType() EventType {
	return NodeExecutionFailedEvent
}

// ComfyUIProbed reports one scheduled readiness check of a ComfyUI server.
type ComfyUIProbed struct {
	BaseEvent

	APIURL    string `json:"api_url"`
	Ready     bool   `json:"ready"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

func (e ComfyUIProbed) GetType() EventType {
	return ComfyUIProbedEvent
}

// New returns an empty event for eventType to decode into.
func New(eventType EventType) (any, bool) {
	switch eventType {
	case NodeExecutionStartedEvent:
		return &NodeExecutionStarted{}, true
	case NodeExecutionFinishedEvent:
		return &NodeExecutionFinished{}, true
	case NodeExecutionFailedEvent:
		return &NodeExecutionFailed{}, true
	case ComfyUIProbedEvent:
		return &ComfyUIProbed{}, true
	default:
		return nil, false
	}
}
