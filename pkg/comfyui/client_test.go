package comfyui

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_InvalidCredentials(t *testing.T) {
	_, err := NewClient(Credentials{})
	require.Error(t, err)

	_, err = NewClient(Credentials{APIURL: "not a url"})
	require.Error(t, err)

	c, err := NewClient(Credentials{APIURL: "http://comfy:8188/"})
	require.NoError(t, err)
	assert.Equal(t, "http://comfy:8188", c.BaseURL())
}

func TestClient_QueuePrompt(t *testing.T) {
	server := newFakeServer(t)
	client := server.client(t)

	wf, err := ParseWorkflow(imageToVideoWorkflow)
	require.NoError(t, err)

	promptID, err := client.QueuePrompt(context.Background(), wf)
	require.NoError(t, err)
	assert.Equal(t, "prompt-1", promptID)

	require.Len(t, server.prompts, 1)
	prompt, ok := server.prompts[0]["prompt"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, prompt, "12")
	assert.Equal(t, []string{"Bearer secret"}, server.auth)
}

func TestClient_QueuePrompt_NilWorkflow(t *testing.T) {
	server := newFakeServer(t)

	_, err := server.client(t).QueuePrompt(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidWorkflow)
	assert.Empty(t, server.prompts)
}

func TestClient_QueuePrompt_MissingPromptID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"error": "invalid prompt", "node_errors": map[string]any{}})
	}))
	defer server.Close()

	client, err := NewClient(Credentials{APIURL: server.URL})
	require.NoError(t, err)

	_, err = client.QueuePrompt(context.Background(), Workflow{})
	require.ErrorIs(t, err, ErrSubmission)
}

func TestClient_QueuePrompt_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"type": "prompt_no_outputs"}}`))
	}))
	defer server.Close()

	client, err := NewClient(Credentials{APIURL: server.URL})
	require.NoError(t, err)

	_, err = client.QueuePrompt(context.Background(), Workflow{})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "prompt_no_outputs")
}

func TestClient_History(t *testing.T) {
	server := newFakeServer(t)
	client := server.client(t)

	entry, err := client.History(context.Background(), "prompt-1")
	require.NoError(t, err)
	assert.Nil(t, entry)

	server.history = []map[string]any{completedEntry("prompt-1", map[string]any{
		"9": map[string]any{"images": []any{map[string]any{"filename": "a.png", "subfolder": "", "type": "output"}}},
	})}

	entry, err = client.History(context.Background(), "prompt-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Status.Completed)
	assert.Equal(t, "a.png", entry.Outputs["9"].Images[0].Filename)
}

func TestClient_UploadImage(t *testing.T) {
	var fields map[string]string

	var fileName, fileBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload/image", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		fields = map[string]string{
			"subfolder": r.FormValue("subfolder"),
			"overwrite": r.FormValue("overwrite"),
		}

		file, header, err := r.FormFile("image")
		require.NoError(t, err)

		body, err := io.ReadAll(file)
		require.NoError(t, err)

		fileName = header.Filename
		fileBody = string(body)

		_ = json.NewEncoder(w).Encode(ImageInfo{Name: header.Filename, Subfolder: "", Type: "input"})
	}))
	defer server.Close()

	client, err := NewClient(Credentials{APIURL: server.URL})
	require.NoError(t, err)

	info, err := client.UploadImage(context.Background(), []byte("png-bytes"), "input.png")
	require.NoError(t, err)

	assert.Equal(t, "input.png", info.Name)
	assert.Equal(t, "input", info.Type)
	assert.Equal(t, "input.png", fileName)
	assert.Equal(t, "png-bytes", fileBody)
	assert.Equal(t, map[string]string{"subfolder": "", "overwrite": "true"}, fields)
}

func TestClient_Fetch_NoAuthForForeignHost(t *testing.T) {
	var gotAuth string

	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("raw"))
	}))
	defer foreign.Close()

	client, err := NewClient(Credentials{APIURL: "http://comfy.invalid:8188", APIKey: "secret"})
	require.NoError(t, err)

	body, _, err := client.Fetch(context.Background(), foreign.URL+"/image.png")
	require.NoError(t, err)
	assert.Equal(t, "raw", string(body))
	assert.Empty(t, gotAuth)
}

func TestClient_SystemStatsAndPing(t *testing.T) {
	server := newFakeServer(t)
	client := server.client(t)

	stats, err := client.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Contains(t, stats, "system")

	_, err = client.Ping(context.Background())

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}
