package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortID(t *testing.T) {
	id := MakePortID("upload", "success")
	assert.Equal(t, "upload:success", id)

	nodeID, port, ok := ParsePortID(id)
	require.True(t, ok)
	assert.Equal(t, "upload", nodeID)
	assert.Equal(t, "success", port)

	_, _, ok = ParsePortID("no-colon")
	assert.False(t, ok)
}

func TestNodeError(t *testing.T) {
	sentinel := errors.New("no media outputs found")

	err := NewNodeError("n1", "comfyui_workflow", "ComfyUI API Error", sentinel)

	assert.Equal(t, "ComfyUI API Error: no media outputs found", err.Error())
	assert.ErrorIs(t, err, sentinel)

	bare := NewNodeError("n1", "comfyui_workflow", "", sentinel)
	assert.Equal(t, "no media outputs found", bare.Error())
}

func TestBinaryData_JSON(t *testing.T) {
	bin := BinaryData{Data: []byte("abc"), MimeType: "image/png"}

	raw, err := json.Marshal(bin)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":"YWJj","mime_type":"image/png"}`, string(raw))
}

func TestExecutionContext_Attachments(t *testing.T) {
	execCtx := ExecutionContext{Binary: map[string]BinaryData{
		"data": {Data: []byte("ctx"), MimeType: "image/png"},
	}}

	inputs := map[string]NodeResult{
		"main": {Items: []Item{
			{Binary: map[string]BinaryData{"data": {Data: []byte("input")}}},
			{Binary: map[string]BinaryData{"video": {Data: []byte("first")}}},
			{Binary: map[string]BinaryData{"video": {Data: []byte("second")}}},
		}},
	}

	got := execCtx.Attachments(inputs)

	require.Len(t, got, 2)
	assert.Equal(t, []byte("ctx"), got["data"].Data)
	assert.Equal(t, []byte("first"), got["video"].Data)

	assert.Empty(t, ExecutionContext{}.Attachments(nil))
}
