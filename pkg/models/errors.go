package models

import (
	"errors"
	"fmt"
)

// NodeError is the single failure a node reports to the host runtime.
// Prefix is prepended to the message of the underlying error.
type NodeError struct {
	NodeID   string
	NodeType string
	Prefix   string
	Err      error
}

func (e *NodeError) Error() string {
	if e.Prefix == "" {
		return e.Err.Error()
	}

	return fmt.Sprintf("%s: %v", e.Prefix, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

func (e *NodeError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewNodeError wraps err for the node identified by nodeID.
func NewNodeError(nodeID, nodeType, prefix string, err error) *NodeError {
	return &NodeError{
		NodeID:   nodeID,
		NodeType: nodeType,
		Prefix:   prefix,
		Err:      err,
	}
}
