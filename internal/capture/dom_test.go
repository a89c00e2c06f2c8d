package capture

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinrayshort/os-sub001/internal/canonical"
)

const shellDoc = `<!DOCTYPE html>
<html><head>
<title>desktop</title>
<style>.taskbar { height: 40px; }</style>
</head><body>
<div class="desktop-shell" data-instance-id="a81f" style="--wallpaper-offset: 3px">
  <div class="desktop-backdrop"></div>
  <div class="taskbar" role="toolbar">
    <button class="taskbar-start-button">
      Start
    </button>
    <script>console.log("boot");</script>
  </div>
</div>
</body></html>`

func TestNormalizeDOM(t *testing.T) {
	snap, err := NormalizeDOM(shellDoc, ".desktop-shell")
	require.NoError(t, err)
	require.NotNil(t, snap.Root)

	root := snap.Root
	assert.Equal(t, "div", root.Tag)
	assert.Equal(t, "desktop-shell", root.Attrs["class"])
	assert.NotContains(t, root.Attrs, "data-instance-id")
	assert.NotContains(t, root.Attrs, "style")
	require.Len(t, root.Children, 2)

	taskbar := root.Children[1]
	assert.Equal(t, "toolbar", taskbar.Attrs["role"])
	// Script child dropped, button kept.
	require.Len(t, taskbar.Children, 1)
	assert.Equal(t, "button", taskbar.Children[0].Tag)
	assert.Equal(t, "Start", taskbar.Children[0].Text)
}

func TestNormalizeDOMMissingRoot(t *testing.T) {
	_, err := NormalizeDOM(shellDoc, ".not-present")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracked root")
}

func TestNormalizeDOMSelectorForms(t *testing.T) {
	doc := `<body><main id="surface"><p>hi</p></main></body>`

	byID, err := NormalizeDOM(doc, "#surface")
	require.NoError(t, err)
	assert.Equal(t, "main", byID.Root.Tag)

	byTag, err := NormalizeDOM(doc, "main")
	require.NoError(t, err)
	assert.Equal(t, "main", byTag.Root.Tag)
}

func TestNormalizeDOMDeterministic(t *testing.T) {
	a, err := NormalizeDOM(shellDoc, ".desktop-shell")
	require.NoError(t, err)
	b, err := NormalizeDOM(shellDoc, ".desktop-shell")
	require.NoError(t, err)

	aJSON, err := canonical.MarshalStruct(a)
	require.NoError(t, err)
	bJSON, err := canonical.MarshalStruct(b)
	require.NoError(t, err)
	assert.Equal(t, aJSON, bJSON)
	assert.Equal(t, canonical.Hash(aJSON), canonical.Hash(bJSON))
}

func TestNormalizeDOMIdempotent(t *testing.T) {
	first, err := NormalizeDOM(shellDoc, ".desktop-shell")
	require.NoError(t, err)

	// Serialize the snapshot back to HTML and normalize again: the result
	// must be a fixpoint.
	second, err := NormalizeDOM(renderSnapshot(first.Root), ".desktop-shell")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	firstJSON, err := canonical.MarshalStruct(first)
	require.NoError(t, err)
	secondJSON, err := canonical.MarshalStruct(second)
	require.NoError(t, err)
	assert.Equal(t, canonical.Hash(firstJSON), canonical.Hash(secondJSON))
}

// renderSnapshot writes a snapshot back out as HTML. Text precedes element
// children, matching how normalization merges text runs.
func renderSnapshot(n *DOMNode) string {
	var b strings.Builder
	writeSnapshotNode(&b, n)
	return b.String()
}

func writeSnapshotNode(b *strings.Builder, n *DOMNode) {
	b.WriteString("<" + n.Tag)
	for k, v := range n.Attrs {
		fmt.Fprintf(b, " %s=%q", k, v)
	}
	b.WriteString(">")
	b.WriteString(n.Text)
	for _, c := range n.Children {
		writeSnapshotNode(b, c)
	}
	fmt.Fprintf(b, "</%s>", n.Tag)
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", collapseWhitespace("  a \n\t b   c "))
	assert.Equal(t, "", collapseWhitespace("  \n "))
}
