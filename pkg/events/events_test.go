package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	a := NewBaseEvent(NodeExecutionStartedEvent, "wf-1")
	b := NewBaseEvent(NodeExecutionStartedEvent, "wf-1")

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, NodeExecutionStartedEvent, a.Type)
	assert.Equal(t, "wf-1", a.WorkflowID)
	assert.False(t, a.Timestamp.IsZero())
}

func TestNew_DecodesEveryType(t *testing.T) {
	published := []interface{ GetType() EventType }{
		NodeExecutionStarted{BaseEvent: NewBaseEvent(NodeExecutionStartedEvent, ""), NodeID: "n1", NodeType: "comfyui_status"},
		NodeExecutionFinished{BaseEvent: NewBaseEvent(NodeExecutionFinishedEvent, ""), NodeID: "n1", ItemCount: 2, DurationMs: 10},
		NodeExecutionFailed{BaseEvent: NewBaseEvent(NodeExecutionFailedEvent, ""), NodeID: "n1", Error: "ComfyUI API Error: boom"},
		ComfyUIProbed{BaseEvent: NewBaseEvent(ComfyUIProbedEvent, ""), APIURL: "http://comfy", Ready: true},
	}

	for _, event := range published {
		t.Run(string(event.GetType()), func(t *testing.T) {
			payload, err := json.Marshal(event)
			require.NoError(t, err)

			target, ok := New(event.GetType())
			require.True(t, ok)
			require.NoError(t, json.Unmarshal(payload, target))

			decoded, ok := target.(interface{ GetType() EventType })
			require.True(t, ok)
			assert.Equal(t, event.GetType(), decoded.GetType())
		})
	}

	_, ok := New("workflow.unknown")
	assert.False(t, ok)
}
