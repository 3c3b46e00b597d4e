// Package xmedia uploads media to X with the chunked media upload API.
package xmedia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const (
	DefaultEndpoint  = "https://upload.twitter.com/1.1/media/upload.json"
	DefaultChunkSize = 4 * 1024 * 1024

	maxStatusChecks = 120
)

var (
	ErrUpload     = errors.New("media upload failed")
	ErrProcessing = errors.New("media processing failed")
)

// Processing states reported by FINALIZE and STATUS.
const (
	StatePending    = "pending"
	StateInProgress = "in_progress"
	StateSucceeded  = "succeeded"
	StateFailed     = "failed"
)

// ProcessingInfo is the asynchronous processing state of an uploaded video.
type ProcessingInfo struct {
	State           string `json:"state"`
	CheckAfterSecs  int    `json:"check_after_secs,omitempty"`
	ProgressPercent int    `json:"progress_percent,omitempty"`
	Error           *ProcessingError `json:"error,omitempty"`
}

type ProcessingError struct {
	Code    int    `json:"code"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Media is the upload response.
type Media struct {
	MediaID        int64           `json:"media_id"`
	MediaIDString  string          `json:"media_id_string"`
	Size           int             `json:"size,omitempty"`
	ExpiresAfter   int             `json:"expires_after_secs,omitempty"`
	ProcessingInfo *ProcessingInfo `json:"processing_info,omitempty"`
}

// Uploader performs INIT, APPEND, FINALIZE and STATUS calls for one account.
type Uploader struct {
	endpoint   string
	chunkSize  int
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *slog.Logger
}

type Option func(*Uploader)

// WithEndpoint overrides the upload endpoint.
func WithEndpoint(endpoint string) Option {
	return func(u *Uploader) {
		u.endpoint = endpoint
	}
}

// WithChunkSize sets the APPEND segment size in bytes.
func WithChunkSize(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.chunkSize = n
		}
	}
}

// WithClock replaces the clock used to wait between status checks.
func WithClock(clock clockwork.Clock) Option {
	return func(u *Uploader) {
		u.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) {
		u.logger = logger
	}
}

// NewUploader authorizes every request with the OAuth2 access token.
func NewUploader(accessToken string, opts ...Option) (*Uploader, error) {
	if accessToken == "" {
		return nil, errors.New("access token is required")
	}

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})

	u := &Uploader{
		endpoint:  DefaultEndpoint,
		chunkSize: DefaultChunkSize,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &oauth2.Transport{
				Source: source,
				Base:   otelhttp.NewTransport(http.DefaultTransport),
			},
		},
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(u)
	}

	u.logger = u.logger.With("module", "x_media_upload")

	return u, nil
}

// Category maps a MIME type to the media_category X expects.
func Category(mediaType string) string {
	switch {
	case mediaType == "image/gif":
		return "tweet_gif"
	case strings.HasPrefix(mediaType, "video/"):
		return "tweet_video"
	default:
		return "tweet_image"
	}
}

// Upload sends data and waits for server side processing to finish.
func (u *Uploader) Upload(ctx context.Context, data []byte, mediaType string) (*Media, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty media", ErrUpload)
	}

	media, err := u.init(ctx, len(data), mediaType)
	if err != nil {
		return nil, err
	}

	u.logger.InfoContext(ctx, "Upload initialized", "media_id", media.MediaIDString, "total_bytes", len(data))

	for segment, offset := 0, 0; offset < len(data); segment, offset = segment+1, offset+u.chunkSize {
		end := min(offset+u.chunkSize, len(data))

		if err := u.appendChunk(ctx, media.MediaIDString, segment, data[offset:end]); err != nil {
			return nil, err
		}
	}

	media, err = u.command(ctx, http.MethodPost, url.Values{
		"command":  {"FINALIZE"},
		"media_id": {media.MediaIDString},
	})
	if err != nil {
		return nil, err
	}

	return u.awaitProcessing(ctx, media)
}

func (u *Uploader) init(ctx context.Context, total int, mediaType string) (*Media, error) {
	media, err := u.command(ctx, http.MethodPost, url.Values{
		"command":        {"INIT"},
		"total_bytes":    {strconv.Itoa(total)},
		"media_type":     {mediaType},
		"media_category": {Category(mediaType)},
	})
	if err != nil {
		return nil, err
	}

	if media.MediaIDString == "" {
		return nil, fmt.Errorf("%w: INIT returned no media id", ErrUpload)
	}

	return media, nil
}

func (u *Uploader) appendChunk(ctx context.Context, mediaID string, segment int, chunk []byte) error {
	var body bytes.Buffer

	writer := multipart.NewWriter(&body)

	fields := map[string]string{
		"command":       "APPEND",
		"media_id":      mediaID,
		"segment_index": strconv.Itoa(segment),
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("%w: %w", ErrUpload, err)
		}
	}

	part, err := writer.CreateFormFile("media", "blob")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpload, err)
	}

	if _, err := part.Write(chunk); err != nil {
		return fmt.Errorf("%w: %w", ErrUpload, err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrUpload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	if _, err := u.do(req, "APPEND"); err != nil {
		return err
	}

	u.logger.DebugContext(ctx, "Chunk appended", "media_id", mediaID, "segment_index", segment, "bytes", len(chunk))

	return nil
}

func (u *Uploader) awaitProcessing(ctx context.Context, media *Media) (*Media, error) {
	for range maxStatusChecks {
		info := media.ProcessingInfo
		if info == nil || info.State == StateSucceeded {
			return media, nil
		}

		switch info.State {
		case StateFailed:
			msg := "unknown error"
			if info.Error != nil {
				msg = info.Error.Message
			}

			return nil, fmt.Errorf("%w: %s", ErrProcessing, msg)
		case StatePending, StateInProgress:
		default:
			return nil, fmt.Errorf("%w: unexpected state %q", ErrProcessing, info.State)
		}

		wait := time.Duration(max(info.CheckAfterSecs, 1)) * time.Second

		u.logger.DebugContext(ctx, "Waiting for media processing",
			"media_id", media.MediaIDString,
			"state", info.State,
			"progress", info.ProgressPercent,
			"wait", wait)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-u.clock.After(wait):
		}

		next, err := u.command(ctx, http.MethodGet, url.Values{
			"command":  {"STATUS"},
			"media_id": {media.MediaIDString},
		})
		if err != nil {
			return nil, err
		}

		if next.MediaIDString == "" {
			next.MediaIDString = media.MediaIDString
			next.MediaID = media.MediaID
		}

		media = next
	}

	return nil, fmt.Errorf("%w: processing did not finish after %d checks", ErrProcessing, maxStatusChecks)
}

func (u *Uploader) command(ctx context.Context, method string, params url.Values) (*Media, error) {
	target := u.endpoint

	var body io.Reader

	if method == http.MethodGet {
		target += "?" + params.Encode()
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	command := params.Get("command")

	payload, err := u.do(req, command)
	if err != nil {
		return nil, err
	}

	var media Media
	if err := json.Unmarshal(payload, &media); err != nil {
		return nil, fmt.Errorf("%w: %s: decode response: %w", ErrUpload, command, err)
	}

	return &media, nil
}

func (u *Uploader) do(req *http.Request, command string) ([]byte, error) {
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUpload, command, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to read response: %w", ErrUpload, command, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned HTTP %d: %s", ErrUpload, command, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
