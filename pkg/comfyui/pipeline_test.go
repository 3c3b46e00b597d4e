package comfyui

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, server *fakeServer) *Pipeline {
	t.Helper()

	return NewPipeline(server.client(t),
		WithPollerOptions(WithInterval(time.Millisecond)),
		WithDownloaderOptions(WithRetryDelay(time.Millisecond)))
}

func fillWorkflow(t *testing.T) Workflow {
	t.Helper()

	wf, err := ParseWorkflow(imageToVideoWorkflow)
	require.NoError(t, err)

	return wf
}

func mixedOutputs() map[string]any {
	return map[string]any{
		"9": map[string]any{"images": []any{
			map[string]any{"filename": "still_00001.png", "subfolder": "", "type": "output"},
		}},
		"14": map[string]any{"gifs": []any{
			map[string]any{"filename": "clip_00001.mp4", "subfolder": "", "type": "output"},
			map[string]any{"filename": "clip_00001.webp", "subfolder": "", "type": "temp"},
		}},
	}
}

func TestPipeline_Run_All(t *testing.T) {
	server := newFakeServer(t)
	server.history = []map[string]any{
		{},
		completedEntry("prompt-1", mixedOutputs()),
	}
	server.files["still_00001.png"] = []byte("png")
	server.files["clip_00001.mp4"] = []byte("mp4")
	server.files["clip_00001.webp"] = []byte("webp")

	result, err := newTestPipeline(t, server).Run(context.Background(), fillWorkflow(t), PolicyAll, time.Second)
	require.NoError(t, err)

	assert.Equal(t, "prompt-1", result.PromptID)
	assert.Equal(t, "success", result.Status.StatusStr)
	assert.Equal(t, 2, server.historyCalls())

	require.Len(t, result.Media, 3)
	// videos first, then images
	assert.Equal(t, "clip_00001.mp4", result.Media[0].Output.Filename)
	assert.Equal(t, "clip_00001.webp", result.Media[1].Output.Filename)
	assert.Equal(t, "still_00001.png", result.Media[2].Output.Filename)
	assert.Equal(t, []byte("png"), result.Media[2].Data)
	assert.Equal(t, "image/webp", result.Media[1].MimeType)
}

func TestPipeline_Run_VideoTakesFirstVideo(t *testing.T) {
	server := newFakeServer(t)
	server.history = []map[string]any{completedEntry("prompt-1", mixedOutputs())}
	server.files["clip_00001.mp4"] = []byte("mp4")

	result, err := newTestPipeline(t, server).Run(context.Background(), fillWorkflow(t), PolicyVideo, time.Second)
	require.NoError(t, err)

	require.Len(t, result.Media, 1)
	assert.Equal(t, "clip_00001.mp4", result.Media[0].Output.Filename)
	assert.Equal(t, "video/mp4", result.Media[0].MimeType)
}

func TestPipeline_Run_NoVideoOutputs(t *testing.T) {
	server := newFakeServer(t)
	server.history = []map[string]any{completedEntry("prompt-1", map[string]any{
		"9": map[string]any{"images": []any{
			map[string]any{"filename": "still.png", "subfolder": "", "type": "output"},
		}},
	})}

	_, err := newTestPipeline(t, server).Run(context.Background(), fillWorkflow(t), PolicyVideo, time.Second)
	require.ErrorIs(t, err, ErrNoVideoOutputs)
}

func TestPipeline_Run_NoOutputs(t *testing.T) {
	server := newFakeServer(t)
	server.history = []map[string]any{completedEntry("prompt-1", map[string]any{"9": map[string]any{}})}

	_, err := newTestPipeline(t, server).Run(context.Background(), fillWorkflow(t), PolicyAll, time.Second)
	require.ErrorIs(t, err, ErrNoOutputs)
}

func TestPipeline_Run_NoPartialResults(t *testing.T) {
	server := newFakeServer(t)
	server.history = []map[string]any{completedEntry("prompt-1", mixedOutputs())}
	server.files["clip_00001.mp4"] = []byte("mp4")
	// the webp and png are missing on the server

	result, err := newTestPipeline(t, server).Run(context.Background(), fillWorkflow(t), PolicyAll, time.Second)
	require.ErrorIs(t, err, ErrDownload)
	assert.Nil(t, result)
}

func TestPipeline_Run_JobFailed(t *testing.T) {
	server := newFakeServer(t)
	server.history = []map[string]any{{
		"prompt-1": map[string]any{
			"status":  map[string]any{"completed": true, "status_str": "error"},
			"outputs": map[string]any{},
		},
	}}

	_, err := newTestPipeline(t, server).Run(context.Background(), fillWorkflow(t), PolicyAll, time.Second)
	require.ErrorIs(t, err, ErrJobFailed)
}

func TestPipeline_Run_UnknownPolicy(t *testing.T) {
	server := newFakeServer(t)
	server.history = []map[string]any{completedEntry("prompt-1", mixedOutputs())}

	_, err := newTestPipeline(t, server).Run(context.Background(), fillWorkflow(t), Policy("first"), time.Second)
	require.Error(t, err)
}
