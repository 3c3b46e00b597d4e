package comfyui

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dukex/comfyflow/pkg/input"
)

// Error kinds reported by the client, poller, extractor and downloader.
var (
	ErrInvalidWorkflow = errors.New("invalid workflow")
	ErrSubmission      = errors.New("failed to get prompt ID from ComfyUI")
	ErrTimeout         = errors.New("timed out waiting for job completion")
	ErrJobFailed       = errors.New("job execution failed")
	ErrNoOutputs       = errors.New("no media outputs found in results")
	ErrNoVideoOutputs  = errors.New("no video outputs found in results")
	ErrDownload        = errors.New("download failed")

	// Input resolution kinds, shared with the input resolvers.
	ErrFetch    = input.ErrFetch
	ErrNotFound = input.ErrNotFound
	ErrDecode   = input.ErrDecode

	// ErrNoLoadImageNode also matches ErrNotFound.
	ErrNoLoadImageNode = fmt.Errorf("no LoadImage node found in the workflow: %w", ErrNotFound)
)

// HTTPError is a non-2xx response from a remote endpoint.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	}

	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Permanent reports whether retrying the same request cannot succeed.
func (e *HTTPError) Permanent() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusForbidden
}

// IsTimeout checks if an error indicates the poll budget was exceeded.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsJobFailed checks if an error indicates the remote job reported an error status.
func IsJobFailed(err error) bool {
	return errors.Is(err, ErrJobFailed)
}

// IsValidationError checks if an error was caused by caller input rather than the remote service.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidWorkflow) ||
		errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrNotFound)
}
