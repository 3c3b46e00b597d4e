package cmd

import (
	"context"
	"log/slog"

	"github.com/dukex/comfyflow/pkg/otelhelper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// NewTracer returns an OTLP exporting tracer when enabled, the global no-op
// tracer otherwise. The returned shutdown function is never nil.
//
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, enabled bool, logger *slog.Logger) (trace.Tracer, func(context.Context) error) {
	noop := func(context.Context) error { return nil }

	if !enabled {
		return otel.Tracer(serviceName), noop
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		logger.WarnContext(ctx, "Tracing disabled", "error", err)

		return otel.Tracer(serviceName), noop
	}

	return tracer, shutdown
}
