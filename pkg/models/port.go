package models

// Port represents a connection point on a node.
type Port struct {
	ID          string         `json:"id"`      // "{nodeID}:{portName}"
	NodeID      string         `json:"node_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
}

// InputPort is a port receiving data.
type InputPort struct {
	Port
}

// OutputPort is a port emitting data.
type OutputPort struct {
	Port
}

// MakePortID creates a port ID from node ID and port name.
func MakePortID(nodeID, portName string) string {
	return nodeID + ":" + portName
}

// ParsePortID splits a port ID at the first colon.
func ParsePortID(portID string) (nodeID, portName string, ok bool) {
	for i := range len(portID) {
		if portID[i] == ':' {
			return portID[:i], portID[i+1:], true
		}
	}

	return "", "", false
}
