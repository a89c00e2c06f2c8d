package capture

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"
)

func axValue(s string) *proto.AccessibilityAXValue {
	return &proto.AccessibilityAXValue{Value: gson.New(s)}
}

func TestSimplifyAXTree(t *testing.T) {
	nodes := []*proto.AccessibilityAXNode{
		{
			NodeID:   "1",
			Role:     axValue("RootWebArea"),
			Name:     axValue("desktop"),
			ChildIDs: []proto.AccessibilityAXNodeID{"2", "3"},
		},
		{
			NodeID:  "2",
			Ignored: true,
			ChildIDs: []proto.AccessibilityAXNodeID{
				"4",
			},
		},
		{
			NodeID: "3",
			Role:   axValue("toolbar"),
			Name:   axValue("taskbar"),
		},
		{
			NodeID: "4",
			Role:   axValue("button"),
			Name:   axValue("Start"),
		},
	}

	snap := SimplifyAXTree(nodes)
	require.NotNil(t, snap.Root)
	assert.Equal(t, "RootWebArea", snap.Root.Role)
	assert.Equal(t, "desktop", snap.Root.Name)

	// The ignored wrapper vanishes and its button child is promoted.
	require.Len(t, snap.Root.Children, 2)
	assert.Equal(t, "button", snap.Root.Children[0].Role)
	assert.Equal(t, "Start", snap.Root.Children[0].Name)
	assert.Equal(t, "toolbar", snap.Root.Children[1].Role)
}

func TestSimplifyAXTreeEmpty(t *testing.T) {
	snap := SimplifyAXTree(nil)
	assert.Nil(t, snap.Root)
}

func TestSimplifyAXTreeIgnoredRoot(t *testing.T) {
	nodes := []*proto.AccessibilityAXNode{
		{NodeID: "1", Ignored: true, ChildIDs: []proto.AccessibilityAXNodeID{"2", "3"}},
		{NodeID: "2", Role: axValue("toolbar")},
		{NodeID: "3", Role: axValue("main")},
	}

	snap := SimplifyAXTree(nodes)
	require.NotNil(t, snap.Root)
	assert.Equal(t, "group", snap.Root.Role)
	require.Len(t, snap.Root.Children, 2)
}
