package comfyui

import (
	"encoding/json"
	"maps"
	"net/url"
	"slices"
	"strings"
)

// StatusError is the status_str a finished job reports when execution failed.
const StatusError = "error"

// Status is the execution status block of a history entry.
type Status struct {
	Completed bool            `json:"completed"`
	StatusStr string          `json:"status_str,omitempty"`
	Messages  json.RawMessage `json:"messages,omitempty"`
}

// Failed reports whether the job finished with an error.
func (s *Status) Failed() bool {
	return s != nil && s.Completed && s.StatusStr == StatusError
}

// HistoryEntry is the record /history keeps for one prompt.
type HistoryEntry struct {
	Status  *Status               `json:"status"`
	Outputs map[string]NodeOutput `json:"outputs"`
}

// NodeOutput lists the files one workflow node produced.
type NodeOutput struct {
	Images []OutputFile `json:"images,omitempty"`
	Gifs   []OutputFile `json:"gifs,omitempty"`
}

// OutputFile references a file the server can return from /view.
type OutputFile struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// MediaKind is the category of a media output.
type MediaKind string

const (
	KindVideo   MediaKind = "video"
	KindImage   MediaKind = "image"
	KindUnknown MediaKind = ""
)

var (
	videoSuffixes = []string{".mp4", ".gif", ".webp"}
	imageSuffixes = []string{".png", ".jpg", ".jpeg"}
)

// MediaOutput is a downloadable output file.
type MediaOutput struct {
	OutputFile

	URL  string    `json:"url"`
	Kind MediaKind `json:"kind"`
}

// Classify maps a filename to its media kind by exact, case-sensitive suffix.
func Classify(filename string) MediaKind {
	for _, suffix := range videoSuffixes {
		if strings.HasSuffix(filename, suffix) {
			return KindVideo
		}
	}

	for _, suffix := range imageSuffixes {
		if strings.HasSuffix(filename, suffix) {
			return KindImage
		}
	}

	return KindUnknown
}

// ViewURL builds the /view retrieval URL of f on baseURL.
func ViewURL(baseURL string, f OutputFile) string {
	q := url.Values{}
	q.Set("filename", f.Filename)
	q.Set("subfolder", f.Subfolder)
	q.Set("type", f.Type)

	// Encode sorts keys; the server expects filename, subfolder, type which
	// happens to be alphabetical.
	return strings.TrimRight(baseURL, "/") + "/view?" + q.Encode()
}

// ExtractOutputs flattens the images and gifs of every node output, in node id
// order, keeping only output and temp files.
func ExtractOutputs(baseURL string, entry *HistoryEntry) ([]MediaOutput, error) {
	if entry == nil {
		return nil, ErrNoOutputs
	}

	var outputs []MediaOutput

	for _, id := range slices.SortedFunc(maps.Keys(entry.Outputs), compareIDs) {
		nodeOutput := entry.Outputs[id]

		files := make([]OutputFile, 0, len(nodeOutput.Images)+len(nodeOutput.Gifs))
		files = append(files, nodeOutput.Images...)
		files = append(files, nodeOutput.Gifs...)

		for _, f := range files {
			if f.Type != "output" && f.Type != "temp" {
				continue
			}

			outputs = append(outputs, MediaOutput{
				OutputFile: f,
				URL:        ViewURL(baseURL, f),
				Kind:       Classify(f.Filename),
			})
		}
	}

	if len(outputs) == 0 {
		return nil, ErrNoOutputs
	}

	return outputs, nil
}

// Partition splits outputs into videos and images, preserving order. Files of
// unknown kind are in neither list.
func Partition(outputs []MediaOutput) (videos, images []MediaOutput) {
	for _, o := range outputs {
		switch o.Kind {
		case KindVideo:
			videos = append(videos, o)
		case KindImage:
			images = append(images, o)
		}
	}

	return videos, images
}
