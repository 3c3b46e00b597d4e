package web

import (
	"errors"

	"github.com/dukex/comfyflow/pkg/models"
	"github.com/dukex/comfyflow/pkg/registry"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType("node_type_not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

// handleExecutionError maps executor errors to problem responses. Node
// failures come from the upstream service and are reported as 502.
func handleExecutionError(c fiber.Ctx, err error) error {
	var (
		cfgErr  *registry.ConfigError
		nodeErr *models.NodeError
	)

	switch {
	case errors.Is(err, registry.ErrNodeNotRegistered):
		return notFound(c, err.Error())

	case errors.As(err, &cfgErr):
		problem := problems.NewStatusProblem(fiber.StatusBadRequest).
			WithInstance(c.Path()).
			WithType("invalid_node_config").
			WithDetail(cfgErr.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case errors.As(err, &nodeErr):
		problem := problems.NewStatusProblem(fiber.StatusBadGateway).
			WithInstance(c.Path()).
			WithType("node_execution_failed").
			WithDetail(nodeErr.Error())

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	default:
		problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
