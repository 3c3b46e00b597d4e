// Package web exposes the registered nodes over HTTP.
package web

import (
	"time"

	"github.com/dukex/comfyflow/pkg/executor"
	"github.com/dukex/comfyflow/pkg/monitor"
	"github.com/dukex/comfyflow/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/google/uuid"
)

// Readiness reports the latest ComfyUI probe.
type Readiness interface {
	Last() (monitor.Status, error)
}

type APIHandlers struct {
	registry  *registry.Registry
	executor  *executor.Executor
	validator *validator.Validate
	readiness Readiness
}

// NewAPIHandlers builds the handlers. readiness may be nil, the server is
// then ready as soon as it listens.
func NewAPIHandlers(
	registry *registry.Registry,
	executor *executor.Executor,
	validator *validator.Validate,
	readiness Readiness,
) *APIHandlers {
	return &APIHandlers{
		registry:  registry,
		executor:  executor,
		validator: validator,
		readiness: readiness,
	}
}

// App wires the handlers into a fiber application.
func (h *APIHandlers) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get("/readyz", h.Ready)

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("comfyflow")
	})

	n := app.Group("/nodes")
	n.Get("/", h.ListNodes)
	n.Get("/:type", h.GetNode)
	n.Post("/:type/execute", h.ExecuteNode)

	return app
}

func (h *APIHandlers) ListNodes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"nodes": h.registry.ListNodes(),
	})
}

func (h *APIHandlers) GetNode(c fiber.Ctx) error {
	nodeType := c.Params("type")

	factory, ok := h.registry.Get(nodeType)
	if !ok {
		return notFound(c, "node type '"+nodeType+"' is not registered")
	}

	return c.JSON(registry.NodeInfo{
		ID:          factory.ID(),
		Name:        factory.Name(),
		Description: factory.Description(),
		Schema:      factory.Schema(),
	})
}

func (h *APIHandlers) ExecuteNode(c fiber.Ctx) error {
	var req ExecuteNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.Context.ID == "" {
		req.Context.ID = uuid.New().String()
	}

	results, err := h.executor.Execute(c.Context(), executor.Request{
		NodeType: c.Params("type"),
		NodeID:   req.ID,
		Config:   req.Config,
		Context:  req.Context,
		Inputs:   req.Inputs,
	})
	if err != nil {
		return handleExecutionError(c, err)
	}

	return c.JSON(ExecuteNodeResponse{
		ExecutionID: req.Context.ID,
		Results:     results,
	})
}

func (h *APIHandlers) Ready(c fiber.Ctx) error {
	if h.readiness == nil {
		return c.JSON(fiber.Map{"status": "ready", "timestamp": time.Now().UTC()})
	}

	status, err := h.readiness.Last()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unknown",
			"error":  err.Error(),
		})
	}

	if !status.Ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "not_ready",
			"comfyui": status,
		})
	}

	return c.JSON(fiber.Map{
		"status":  "ready",
		"comfyui": status,
	})
}
