package comfyui

import (
	"math"
	"strconv"
	"strings"
)

const mebibyte = 1024 * 1024

// Media is a downloaded output ready to be handed to the host.
type Media struct {
	Output        MediaOutput `json:"output"`
	Data          []byte      `json:"-"`
	MimeType      string      `json:"mime_type"`
	FileExtension string      `json:"file_extension"`
	FileSize      string      `json:"file_size"`
	SizeBytes     int         `json:"size_bytes"`
	JobStatus     *Status     `json:"status,omitempty"`
}

// FileType is "video" or "image" following the output classification.
func (m Media) FileType() string {
	if m.Output.Kind == KindUnknown {
		return "file"
	}

	return string(m.Output.Kind)
}

// MimeType derives the content type from the filename suffix.
func MimeType(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(filename, ".gif"):
		return "image/gif"
	case strings.HasSuffix(filename, ".webp"):
		return "image/webp"
	case strings.HasSuffix(filename, ".png"):
		return "image/png"
	case strings.HasSuffix(filename, ".jpg"), strings.HasSuffix(filename, ".jpeg"):
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the text after the last dot of filename, or "" when there is none.
func Extension(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 || i == len(filename)-1 {
		return ""
	}

	return filename[i+1:]
}

// FormatSize renders a byte count as kB, or MB from one mebibyte up, with one decimal.
func FormatSize(n int) string {
	if n >= mebibyte {
		return roundOne(float64(n)/mebibyte) + " MB"
	}

	return roundOne(float64(n)/1024) + " kB"
}

func roundOne(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
