package comfyui

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// ClassLoadImage is the class_type of the node that reads an uploaded input image.
const ClassLoadImage = "LoadImage"

// Workflow is a ComfyUI prompt in API format: node id to node descriptor.
type Workflow map[string]*WorkflowNode

// NodeMeta is the optional _meta block of a workflow node.
type NodeMeta struct {
	Title string `json:"title,omitempty"`
}

// WorkflowNode is one step of the remote processing graph. Only inputs,
// class_type and _meta are interpreted; any other key is kept verbatim.
type WorkflowNode struct {
	Inputs    map[string]any
	ClassType string
	Meta      *NodeMeta

	extra map[string]json.RawMessage
}

func (n *WorkflowNode) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw == nil {
		return fmt.Errorf("%w: workflow node must be a JSON object", ErrInvalidWorkflow)
	}

	*n = WorkflowNode{}

	if v, ok := raw["inputs"]; ok {
		if err := json.Unmarshal(v, &n.Inputs); err != nil {
			return fmt.Errorf("inputs: %w", err)
		}

		delete(raw, "inputs")
	}

	if v, ok := raw["class_type"]; ok {
		if err := json.Unmarshal(v, &n.ClassType); err != nil {
			return fmt.Errorf("class_type: %w", err)
		}

		delete(raw, "class_type")
	}

	if v, ok := raw["_meta"]; ok {
		if err := json.Unmarshal(v, &n.Meta); err != nil {
			return fmt.Errorf("_meta: %w", err)
		}

		delete(raw, "_meta")
	}

	if len(raw) > 0 {
		n.extra = raw
	}

	return nil
}

func (n WorkflowNode) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.extra)+3)
	for k, v := range n.extra {
		out[k] = v
	}

	inputs := n.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}

	out["inputs"] = inputs
	out["class_type"] = n.ClassType

	if n.Meta != nil {
		out["_meta"] = n.Meta
	}

	return json.Marshal(out)
}

// ParseWorkflow decodes workflow JSON text. The document must be a JSON object
// whose values are node objects.
func ParseWorkflow(text string) (Workflow, error) {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: the workflow must be a valid JSON object", ErrInvalidWorkflow)
	}

	var wf Workflow
	if err := json.Unmarshal(trimmed, &wf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}

	for id, node := range wf {
		if node == nil {
			return nil, fmt.Errorf("%w: node %q is null", ErrInvalidWorkflow, id)
		}
	}

	return wf, nil
}

// NodeIDs returns the node ids in execution-like order: numeric ids ascending,
// then the remaining ids lexically.
func (wf Workflow) NodeIDs() []string {
	return slices.SortedFunc(maps.Keys(wf), compareIDs)
}

// FindByClass returns the id and node of the first node with classType.
func (wf Workflow) FindByClass(classType string) (string, *WorkflowNode, bool) {
	for _, id := range wf.NodeIDs() {
		if node := wf[id]; node != nil && node.ClassType == classType {
			return id, node, true
		}
	}

	return "", nil, false
}

// InjectImage points the first LoadImage node at the uploaded asset name.
// The workflow is left untouched when no such node exists.
func (wf Workflow) InjectImage(imageName string) error {
	_, node, ok := wf.FindByClass(ClassLoadImage)
	if !ok {
		return ErrNoLoadImageNode
	}

	if node.Inputs == nil {
		node.Inputs = make(map[string]any)
	}

	node.Inputs["image"] = imageName

	return nil
}

func compareIDs(a, b string) int {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)

	switch {
	case aErr == nil && bErr == nil:
		return cmp.Compare(ai, bi)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}
