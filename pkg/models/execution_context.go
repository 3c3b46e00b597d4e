package models

import (
	"maps"
	"slices"
)

// ExecutionContext carries everything the host runtime hands to a node invocation.
type ExecutionContext struct {
	ID          string                `json:"id"`
	WorkflowID  string                `json:"workflow_id"`
	TriggerData map[string]any        `json:"trigger_data,omitempty"`
	Variables   map[string]any        `json:"variables,omitempty"`
	NodeResults map[string]NodeResult `json:"node_results,omitempty"`
	Metadata    map[string]any        `json:"metadata,omitempty"`

	// Binary holds attachments supplied by the previous node, keyed by property name.
	Binary map[string]BinaryData `json:"binary,omitempty"`
}

// BinaryData is a binary attachment. Data is base64 encoded when marshalled to JSON.
type BinaryData struct {
	Data          []byte `json:"data"`
	MimeType      string `json:"mime_type"`
	FileName      string `json:"file_name,omitempty"`
	FileExtension string `json:"file_extension,omitempty"`
	FileType      string `json:"file_type,omitempty"`
	FileSize      string `json:"file_size,omitempty"`
}

// Attachments collects the binary data available to an invocation: the
// context attachments, then those carried by the items of inputs in port
// name order. The first occurrence of a property name wins.
func (c ExecutionContext) Attachments(inputs map[string]NodeResult) map[string]BinaryData {
	out := make(map[string]BinaryData, len(c.Binary))
	maps.Copy(out, c.Binary)

	for _, port := range slices.Sorted(maps.Keys(inputs)) {
		for _, item := range inputs[port].Items {
			for name, data := range item.Binary {
				if _, ok := out[name]; !ok {
					out[name] = data
				}
			}
		}
	}

	return out
}
