// Package input resolves node input media into a byte buffer.
package input

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/dukex/comfyflow/pkg/models"
)

// Input modes accepted by NewResolver.
const (
	ModeURL    = "url"
	ModeBase64 = "base64"
	ModeBinary = "binary"
)

var (
	ErrFetch    = errors.New("fetch failed")
	ErrDecode   = errors.New("decode failed")
	ErrNotFound = errors.New("not found")

	ErrUnknownMode = errors.New("unknown input type")
)

// Resolver produces the bytes of one input.
type Resolver interface {
	Buffer(ctx context.Context) ([]byte, error)
}

// Fetcher GETs a URL and returns its body.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, http.Header, error)
}

// URLResolver downloads the input from a remote URL.
type URLResolver struct {
	URL     string
	Fetcher Fetcher
}

func (r URLResolver) Buffer(ctx context.Context) ([]byte, error) {
	if r.URL == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrFetch)
	}

	body, _, err := r.Fetcher.Fetch(ctx, r.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, r.URL, err)
	}

	return body, nil
}

// Base64Resolver decodes inline base64 text. A data URL prefix is ignored.
type Base64Resolver struct {
	Data string
}

func (r Base64Resolver) Buffer(ctx context.Context) ([]byte, error) {
	data := strings.TrimSpace(r.Data)

	if strings.HasPrefix(data, "data:") {
		_, payload, ok := strings.Cut(data, ";base64,")
		if !ok {
			return nil, fmt.Errorf("%w: data URL is not base64 encoded", ErrDecode)
		}

		data = payload
	}

	buf, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return buf, nil
}

// BinaryResolver picks an attachment supplied by the previous node.
type BinaryResolver struct {
	Property    string
	Attachments map[string]models.BinaryData
}

// Attachment returns the named attachment, or else the first image
// attachment in property name order.
func (r BinaryResolver) Attachment() (string, models.BinaryData, error) {
	if data, ok := r.Attachments[r.Property]; ok {
		return r.Property, data, nil
	}

	for _, name := range slices.Sorted(maps.Keys(r.Attachments)) {
		if data := r.Attachments[name]; strings.HasPrefix(data.MimeType, "image/") {
			return name, data, nil
		}
	}

	return "", models.BinaryData{}, fmt.Errorf("%w: no binary data found, expected property %q or an image attachment", ErrNotFound, r.Property)
}

func (r BinaryResolver) Buffer(ctx context.Context) ([]byte, error) {
	_, data, err := r.Attachment()
	if err != nil {
		return nil, err
	}

	return data.Data, nil
}

// Source describes where a node reads its input media from.
type Source struct {
	Mode     string `json:"input_type" validate:"omitempty,oneof=url base64 binary"`
	Value    string `json:"input_image"`
	Property string `json:"binary_property"`
}

// NewResolver selects the resolver for src.Mode. Binary mode reads from attachments.
func NewResolver(src Source, attachments map[string]models.BinaryData, fetcher Fetcher) (Resolver, error) {
	switch src.Mode {
	case ModeURL:
		return URLResolver{URL: src.Value, Fetcher: fetcher}, nil
	case ModeBase64:
		return Base64Resolver{Data: src.Value}, nil
	case ModeBinary, "":
		property := src.Property
		if property == "" {
			property = "data"
		}

		return BinaryResolver{Property: property, Attachments: attachments}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, src.Mode)
	}
}
