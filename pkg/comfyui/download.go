package comfyui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultDownloadAttempts = 3
	DefaultRetryDelay       = 2000 * time.Millisecond
)

// Fetcher GETs a URL as raw bytes.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, http.Header, error)
}

// Downloader fetches media outputs with a bounded, fixed-delay retry.
type Downloader struct {
	fetcher  Fetcher
	attempts int
	delay    time.Duration
	onRetry  func(err error, wait time.Duration)
	logger   *slog.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithAttempts sets the total number of attempts, initial request included.
func WithAttempts(n int) DownloaderOption {
	return func(d *Downloader) {
		if n > 0 {
			d.attempts = n
		}
	}
}

// WithRetryDelay sets the wait between two attempts.
func WithRetryDelay(delay time.Duration) DownloaderOption {
	return func(d *Downloader) {
		d.delay = delay
	}
}

// WithRetryNotify registers fn, called before every wait between attempts.
func WithRetryNotify(fn func(err error, wait time.Duration)) DownloaderOption {
	return func(d *Downloader) {
		d.onRetry = fn
	}
}

// WithDownloaderLogger sets the downloader logger.
func WithDownloaderLogger(logger *slog.Logger) DownloaderOption {
	return func(d *Downloader) {
		d.logger = logger
	}
}

func NewDownloader(fetcher Fetcher, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		fetcher:  fetcher,
		attempts: DefaultDownloadAttempts,
		delay:    DefaultRetryDelay,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Download fetches out.URL. 403 and 404 responses fail at once; any other
// failure is retried until the attempts are used up.
func (d *Downloader) Download(ctx context.Context, out MediaOutput, status *Status) (*Media, error) {
	var (
		data    []byte
		attempt int
	)

	operation := func() error {
		attempt++

		d.logger.DebugContext(ctx, "Download attempt", "url", out.URL, "attempt", attempt, "max_attempts", d.attempts)

		body, _, err := d.fetcher.Fetch(ctx, out.URL)
		if err != nil {
			var httpErr *HTTPError
			if errors.As(err, &httpErr) && httpErr.Permanent() {
				return backoff.Permanent(err)
			}

			return err
		}

		data = body

		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(d.delay), uint64(d.attempts-1)),
		ctx,
	)

	notify := func(err error, wait time.Duration) {
		d.logger.WarnContext(ctx, "Download attempt failed, retrying",
			"url", out.URL,
			"attempt", attempt,
			"retry_in", wait,
			"error", err)

		if d.onRetry != nil {
			d.onRetry(err, wait)
		}
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.Permanent() {
			return nil, fmt.Errorf("%w: file not available at %s: %w", ErrDownload, out.URL, err)
		}

		return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrDownload, out.URL, attempt, err)
	}

	media := &Media{
		Output:        out,
		Data:          data,
		MimeType:      MimeType(out.Filename),
		FileExtension: Extension(out.Filename),
		FileSize:      FormatSize(len(data)),
		SizeBytes:     len(data),
		JobStatus:     status,
	}

	d.logger.InfoContext(ctx, "Media downloaded",
		"filename", out.Filename,
		"size", media.FileSize,
		"mime_type", media.MimeType)

	return media, nil
}
