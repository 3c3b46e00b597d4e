package comfyui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeServer is a scripted ComfyUI server.
type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	prompts  []map[string]any
	history  []map[string]any // served in order, last one repeats
	historyN int
	files    map[string][]byte
	auth     []string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	fs := &fakeServer{files: map[string][]byte{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /prompt", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		fs.mu.Lock()
		fs.prompts = append(fs.prompts, body)
		fs.mu.Unlock()

		writeJSON(w, map[string]any{"prompt_id": "prompt-1", "number": 1, "node_errors": map[string]any{}})
	})
	mux.HandleFunc("GET /history/{id}", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)

		fs.mu.Lock()
		defer fs.mu.Unlock()

		fs.historyN++

		if len(fs.history) == 0 {
			writeJSON(w, map[string]any{})

			return
		}

		idx := min(fs.historyN-1, len(fs.history)-1)
		writeJSON(w, fs.history[idx])
	})
	mux.HandleFunc("GET /view", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)

		fs.mu.Lock()
		data, ok := fs.files[r.URL.Query().Get("filename")]
		fs.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		_, _ = w.Write(data)
	})
	mux.HandleFunc("GET /system_stats", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		writeJSON(w, map[string]any{"system": map[string]any{"os": "posix"}})
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)

	return fs
}

func (fs *fakeServer) record(r *http.Request) {
	fs.mu.Lock()
	fs.auth = append(fs.auth, r.Header.Get("Authorization"))
	fs.mu.Unlock()
}

func (fs *fakeServer) historyCalls() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.historyN
}

func (fs *fakeServer) client(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(Credentials{APIURL: fs.URL, APIKey: "secret"})
	require.NoError(t, err)

	return c
}

func completedEntry(promptID string, outputs map[string]any) map[string]any {
	return map[string]any{
		promptID: map[string]any{
			"status":  map[string]any{"completed": true, "status_str": "success"},
			"outputs": outputs,
		},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
