package capture

import (
	"github.com/go-rod/rod/lib/proto"
)

// A11ySnapshot is the simplified accessibility tree for one capture. Only
// role, name, and value survive; node ids and backend handles are per-run
// noise and never serialized.
type A11ySnapshot struct {
	Root *A11yNode `json:"root,omitempty"`
}

type A11yNode struct {
	Role     string      `json:"role,omitempty"`
	Name     string      `json:"name,omitempty"`
	Value    string      `json:"value,omitempty"`
	Children []*A11yNode `json:"children,omitempty"`
}

// SimplifyAXTree converts the flat CDP node list into the nested snapshot.
// Ignored nodes disappear and their children are promoted in place, matching
// what assistive technology actually observes.
func SimplifyAXTree(nodes []*proto.AccessibilityAXNode) *A11ySnapshot {
	if len(nodes) == 0 {
		return &A11ySnapshot{}
	}

	byID := make(map[proto.AccessibilityAXNodeID]*proto.AccessibilityAXNode, len(nodes))
	hasParent := make(map[proto.AccessibilityAXNodeID]bool)
	for _, n := range nodes {
		byID[n.NodeID] = n
		for _, c := range n.ChildIDs {
			hasParent[c] = true
		}
	}

	// The root is the node nothing points at; fall back to the first node
	// when the list is malformed.
	root := nodes[0]
	for _, n := range nodes {
		if !hasParent[n.NodeID] {
			root = n
			break
		}
	}

	converted := convertAXNode(root, byID)
	if len(converted) == 1 {
		return &A11ySnapshot{Root: converted[0]}
	}
	// Ignored root: wrap the promoted children.
	return &A11ySnapshot{Root: &A11yNode{Role: "group", Children: converted}}
}

// convertAXNode returns the node's simplified form, or, when the node is
// ignored, its converted children.
func convertAXNode(n *proto.AccessibilityAXNode, byID map[proto.AccessibilityAXNodeID]*proto.AccessibilityAXNode) []*A11yNode {
	var children []*A11yNode
	for _, id := range n.ChildIDs {
		child, ok := byID[id]
		if !ok {
			continue
		}
		children = append(children, convertAXNode(child, byID)...)
	}

	if n.Ignored {
		return children
	}

	out := &A11yNode{
		Role:     axValueString(n.Role),
		Name:     axValueString(n.Name),
		Value:    axValueString(n.Value),
		Children: children,
	}
	return []*A11yNode{out}
}

func axValueString(v *proto.AccessibilityAXValue) string {
	if v == nil {
		return ""
	}
	return v.Value.Str()
}
