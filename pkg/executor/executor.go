// Package executor runs a single node with tracing and lifecycle events.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/comfyflow/pkg/eventbus"
	"github.com/dukex/comfyflow/pkg/events"
	"github.com/dukex/comfyflow/pkg/models"
	"github.com/dukex/comfyflow/pkg/otelhelper"
	"github.com/dukex/comfyflow/pkg/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const redacted = "[redacted]"

// Request describes one node invocation.
type Request struct {
	NodeType string                       `json:"node_type"`
	NodeID   string                       `json:"node_id,omitempty"`
	Config   map[string]any               `json:"config"`
	Context  models.ExecutionContext      `json:"context"`
	Inputs   map[string]models.NodeResult `json:"inputs,omitempty"`
}

type Executor struct {
	registry  *registry.Registry
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	workerID  string
	logger    *slog.Logger
}

type Option func(*Executor)

// WithPublisher publishes lifecycle events of every execution.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Executor) {
		e.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

func WithWorkerID(id string) Option {
	return func(e *Executor) {
		e.workerID = id
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func New(reg *registry.Registry, opts ...Option) *Executor {
	e := &Executor{
		registry: reg,
		tracer:   otel.Tracer("github.com/dukex/comfyflow/pkg/executor"),
		workerID: "worker-" + uuid.New().String()[:8],
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("module", "executor", "worker_id", e.workerID)

	return e
}

// Execute creates the node and runs it. On failure the error port result is
// returned together with the node error.
func (e *Executor) Execute(ctx context.Context, req Request) (map[string]models.NodeResult, error) {
	if req.Context.ID == "" {
		req.Context.ID = uuid.New().String()
	}

	if req.NodeID == "" {
		req.NodeID = req.NodeType
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "node.execute",
		attribute.String(otelhelper.NodeIDKey, req.NodeID),
		attribute.String(otelhelper.NodeTypeKey, req.NodeType),
		attribute.String(otelhelper.ExecutionIDKey, req.Context.ID),
		attribute.String(otelhelper.WorkflowIDKey, req.Context.WorkflowID))
	defer span.End()

	logger := e.logger.With("node_id", req.NodeID, "node_type", req.NodeType, "execution_id", req.Context.ID)

	node, err := e.registry.CreateNode(ctx, req.NodeType, req.NodeID, req.Config)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("create node: %w", err)
	}

	e.publish(ctx, logger, req.NodeID, events.NodeExecutionStarted{
		BaseEvent:   e.baseEvent(events.NodeExecutionStartedEvent, req.Context.WorkflowID),
		ExecutionID: req.Context.ID,
		NodeID:      req.NodeID,
		NodeType:    req.NodeType,
		Config:      Redact(req.Config),
	})

	logger.InfoContext(ctx, "Executing node")

	start := time.Now()
	results, err := node.Execute(ctx, req.Context, req.Inputs)
	duration := time.Since(start)

	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Node execution failed", "error", err, "duration", duration)

		e.publish(ctx, logger, req.NodeID, events.NodeExecutionFailed{
			BaseEvent:   e.baseEvent(events.NodeExecutionFailedEvent, req.Context.WorkflowID),
			ExecutionID: req.Context.ID,
			NodeID:      req.NodeID,
			NodeType:    req.NodeType,
			Error:       err.Error(),
			DurationMs:  duration.Milliseconds(),
		})

		return map[string]models.NodeResult{"error": errorResult(req.NodeID, err)}, err
	}

	success := results["success"]

	logger.InfoContext(ctx, "Node execution finished", "items", len(success.Items), "duration", duration)

	e.publish(ctx, logger, req.NodeID, events.NodeExecutionFinished{
		BaseEvent:   e.baseEvent(events.NodeExecutionFinishedEvent, req.Context.WorkflowID),
		ExecutionID: req.Context.ID,
		NodeID:      req.NodeID,
		NodeType:    req.NodeType,
		OutputData:  success.Data,
		ItemCount:   len(success.Items),
		DurationMs:  duration.Milliseconds(),
	})

	return results, nil
}

func (e *Executor) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, workflowID)
	base.WorkerID = e.workerID

	return base
}

// publish never fails the execution, a lost event is only logged.
func (e *Executor) publish(ctx context.Context, logger *slog.Logger, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func errorResult(nodeID string, err error) models.NodeResult {
	return models.NodeResult{
		NodeID: nodeID,
		Data: map[string]any{
			"error":   err.Error(),
			"success": false,
		},
		Status:    string(models.NodeStatusError),
		Timestamp: time.Now().UTC(),
		Error:     err.Error(),
	}
}

// Redact copies config with credential values replaced.
func Redact(config map[string]any) map[string]any {
	if config == nil {
		return nil
	}

	out := make(map[string]any, len(config))

	for k, v := range config {
		key := strings.ToLower(k)
		if strings.Contains(key, "key") || strings.Contains(key, "token") || strings.Contains(key, "secret") {
			out[k] = redacted

			continue
		}

		out[k] = v
	}

	return out
}
