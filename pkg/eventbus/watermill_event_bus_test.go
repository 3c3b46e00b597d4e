package eventbus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/comfyflow/pkg/channels/gochannel"
	"github.com/dukex/comfyflow/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := newTestBus(t)
	received := make(chan *events.NodeExecutionFinished, 1)

	require.NoError(t, bus.Handle(events.NodeExecutionFinishedEvent, func(ctx context.Context, event any) error {
		finished, ok := event.(*events.NodeExecutionFinished)
		require.True(t, ok)

		received <- finished

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	// no handler for this type, it is acked and skipped
	require.NoError(t, bus.Publish(ctx, "n1", events.NodeExecutionStarted{
		BaseEvent: events.NewBaseEvent(events.NodeExecutionStartedEvent, "wf-1"),
		NodeID:    "n1",
	}))

	require.NoError(t, bus.Publish(ctx, "n1", events.NodeExecutionFinished{
		BaseEvent:   events.NewBaseEvent(events.NodeExecutionFinishedEvent, "wf-1"),
		ExecutionID: "exec-1",
		NodeID:      "n1",
		NodeType:    "comfyui_workflow",
		ItemCount:   2,
	}))

	select {
	case finished := <-received:
		assert.Equal(t, "exec-1", finished.ExecutionID)
		assert.Equal(t, "comfyui_workflow", finished.NodeType)
		assert.Equal(t, 2, finished.ItemCount)
		assert.Equal(t, "wf-1", finished.WorkflowID)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
