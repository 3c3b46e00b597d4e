// Package comfyui implements the ComfyUI job-queue protocol: prompt submission,
// completion polling, output extraction and media download.
package comfyui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultRequestTimeout = 5 * time.Minute

var validate = validator.New(validator.WithRequiredStructEnabled())

// Credentials is the ComfyUI credential bundle supplied by the host.
type Credentials struct {
	APIURL string `json:"api_url" validate:"required,url"`
	APIKey string `json:"api_key"`
}

// ImageInfo describes an asset stored by /upload/image.
type ImageInfo struct {
	Name      string `json:"name"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// Client talks to a single ComfyUI server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient validates creds and returns a client for creds.APIURL.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	if err := validate.Struct(creds); err != nil {
		return nil, fmt.Errorf("invalid ComfyUI credentials: %w", err)
	}

	c := &Client{
		baseURL: strings.TrimRight(creds.APIURL, "/"),
		apiKey:  creds.APIKey,
		httpClient: &http.Client{
			Timeout:   defaultRequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("module", "comfyui_client", "api_url", c.baseURL)

	return c, nil
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SystemStats queries /system_stats, used as a liveness probe before work is queued.
func (c *Client) SystemStats(ctx context.Context) (map[string]any, error) {
	var stats map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/system_stats", nil, &stats); err != nil {
		return nil, fmt.Errorf("check API connection: %w", err)
	}

	return stats, nil
}

// Ping queries the server root. The decoded JSON body is returned when the
// server answers with JSON, the raw text otherwise.
func (c *Client) Ping(ctx context.Context) (any, error) {
	body, _, err := c.Fetch(ctx, c.baseURL)
	if err != nil {
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		return decoded, nil
	}

	return string(body), nil
}

// QueuePrompt submits wf to /prompt and returns the prompt id.
func (c *Client) QueuePrompt(ctx context.Context, wf Workflow) (string, error) {
	if wf == nil {
		return "", fmt.Errorf("%w: workflow must be a JSON object", ErrInvalidWorkflow)
	}

	var resp struct {
		PromptID   string         `json:"prompt_id"`
		Number     int            `json:"number"`
		NodeErrors map[string]any `json:"node_errors"`
	}

	if err := c.doJSON(ctx, http.MethodPost, "/prompt", map[string]any{"prompt": wf}, &resp); err != nil {
		return "", fmt.Errorf("queue prompt: %w", err)
	}

	if resp.PromptID == "" {
		return "", ErrSubmission
	}

	c.logger.DebugContext(ctx, "Prompt queued", "prompt_id", resp.PromptID, "number", resp.Number)

	return resp.PromptID, nil
}

// History returns the history entry of promptID, or nil when the server has
// no record of it yet.
func (c *Client) History(ctx context.Context, promptID string) (*HistoryEntry, error) {
	var history map[string]HistoryEntry
	if err := c.doJSON(ctx, http.MethodGet, "/history/"+url.PathEscape(promptID), nil, &history); err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	entry, ok := history[promptID]
	if !ok {
		return nil, nil
	}

	return &entry, nil
}

// UploadImage stores data under filename in the server input folder,
// overwriting any existing file of that name.
func (c *Client) UploadImage(ctx context.Context, data []byte, filename string) (*ImageInfo, error) {
	var buf bytes.Buffer

	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}

	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}

	if err := form.WriteField("subfolder", ""); err != nil {
		return nil, err
	}

	if err := form.WriteField("overwrite", "true"); err != nil {
		return nil, err
	}

	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/upload/image", &buf)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", form.FormDataContentType())

	body, _, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	var info ImageInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("upload image: decode response: %w", err)
	}

	c.logger.DebugContext(ctx, "Image uploaded", "name", info.Name, "subfolder", info.Subfolder, "type", info.Type)

	return &info, nil
}

// Fetch GETs rawURL and returns the body as raw bytes. The API key is only
// sent to URLs on the configured server.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, http.Header, error) {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}

	if !c.sameServer(req.URL) {
		req.Header.Del("Authorization")
	}

	return c.do(req)
}

func (c *Client) sameServer(u *url.URL) bool {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}

	return base.Scheme == u.Scheme && base.Host == u.Host
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		reqBody = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, _, err := c.do(req)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}

	return nil
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, http.Header, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.Header, &HTTPError{
			StatusCode: resp.StatusCode,
			URL:        req.URL.String(),
			Body:       truncate(string(body), 512),
		}
	}

	return body, resp.Header, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
