package cmd

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/comfyflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return testutil.Logger()
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus("gochannel", "", discard())
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = NewEventBus("kafka", "", discard())
	require.ErrorContains(t, err, "KAFKA_BROKERS")

	_, err = NewEventBus("rabbitmq", "", discard())
	require.ErrorContains(t, err, "unsupported event bus provider")
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(discard(), t.TempDir())
	require.NoError(t, err)

	_, ok := reg.Get("comfyui_workflow")
	assert.True(t, ok)

	_, ok = reg.Get("x_media_upload")
	assert.True(t, ok)
}

func TestNewTracer_Disabled(t *testing.T) {
	tracer, shutdown := NewTracer(context.Background(), false, discard())
	assert.NotNil(t, tracer)
	require.NoError(t, shutdown(context.Background()))
}
