package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinrayshort/os-sub001/internal/config"
	"github.com/justinrayshort/os-sub001/internal/session"
)

type fakePage struct {
	events        *session.EventLog
	axRoot        string
	evalSelectors []string
}

func newFakePage() *fakePage {
	ev := session.NewEventLog(10)
	ev.AddConsole(session.ConsoleEntry{Level: "log", Text: "shell ready"})
	ev.AddNetwork(session.NetworkEntry{Phase: "response", URL: "http://app.test/", Status: 200})
	return &fakePage{events: ev}
}

func (f *fakePage) Screenshot() ([]byte, error) { return []byte("png-bytes"), nil }
func (f *fakePage) HTML() (string, error)       { return shellDoc, nil }

func (f *fakePage) AXTree(selector string) ([]*proto.AccessibilityAXNode, error) {
	f.axRoot = selector
	return []*proto.AccessibilityAXNode{
		{NodeID: "1", Role: axValue("RootWebArea"), Name: axValue("desktop")},
	}, nil
}

func (f *fakePage) Eval(js string, args ...any) (any, error) {
	if len(args) > 0 {
		if sels, ok := args[0].([]string); ok {
			f.evalSelectors = sels
		}
	}
	return []any{
		map[string]any{"selector": ".desktop-shell", "missing": false,
			"rect": map[string]any{"x": 0.0, "y": 0.0, "width": 1920.0, "height": 1080.0}},
	}, nil
}

func (f *fakePage) Events() *session.EventLog { return f.events }

func fullCaptureConfig() *config.RunConfig {
	return &config.RunConfig{
		CaptureDOM:     true,
		CaptureA11y:    true,
		CaptureLayout:  true,
		CaptureConsole: true,
		CaptureNetwork: true,
	}
}

func TestCaptureFullSet(t *testing.T) {
	c := NewCapturer(fullCaptureConfig())

	set, err := c.Capture(newFakePage(), ".desktop-shell")
	require.NoError(t, err)

	assert.Equal(t, []byte("png-bytes"), set.Screenshot)
	assert.Len(t, set.ScreenshotSHA, 64)
	require.NotNil(t, set.DOM)
	assert.Equal(t, "div", set.DOM.Root.Tag)
	require.NotNil(t, set.A11y)
	assert.Equal(t, "RootWebArea", set.A11y.Root.Role)
	require.NotNil(t, set.Layout)
	require.Len(t, set.Layout.Elements, 1)
	require.Len(t, set.Console, 1)
	require.Len(t, set.Network, 1)

	// Canonical bytes hash consistently.
	set2, err := c.Capture(newFakePage(), ".desktop-shell")
	require.NoError(t, err)
	assert.Equal(t, set.DOMSHA, set2.DOMSHA)
	assert.Equal(t, set.A11ySHA, set2.A11ySHA)
	assert.Equal(t, set.LayoutSHA, set2.LayoutSHA)
}

func TestCaptureEmptyTrackedRootScopesToBody(t *testing.T) {
	c := NewCapturer(fullCaptureConfig())
	page := newFakePage()

	set, err := c.Capture(page, "")
	require.NoError(t, err)

	require.NotNil(t, set.DOM)
	assert.Equal(t, "body", set.DOM.Root.Tag)
	assert.Equal(t, "body", page.axRoot)
	require.NotEmpty(t, page.evalSelectors)
	assert.Equal(t, "body", page.evalSelectors[0])
}

func TestCaptureHonorsToggles(t *testing.T) {
	cfg := fullCaptureConfig()
	cfg.CaptureDOM = false
	cfg.CaptureA11y = false
	cfg.CaptureNetwork = false
	c := NewCapturer(cfg)

	set, err := c.Capture(newFakePage(), ".desktop-shell")
	require.NoError(t, err)

	assert.NotEmpty(t, set.Screenshot)
	assert.Nil(t, set.DOM)
	assert.Nil(t, set.A11y)
	assert.NotNil(t, set.Layout)
	assert.Nil(t, set.Network)
	assert.NotEmpty(t, set.Console)
}

func TestWriteArtifacts(t *testing.T) {
	cfg := fullCaptureConfig()
	cfg.ArtifactDir = filepath.Join(t.TempDir(), "art")
	cfg.ManifestPath = filepath.Join(cfg.ArtifactDir, "manifest.json")
	rc := config.NewRunContext(cfg)
	require.NoError(t, rc.EnsureDirs())

	c := NewCapturer(cfg)
	set, err := c.Capture(newFakePage(), ".desktop-shell")
	require.NoError(t, err)

	name := config.ArtifactName("shell", "shell-default", "chromium", "desktop")
	paths, err := c.Write(rc, name, set)
	require.NoError(t, err)

	for _, kind := range []string{"screenshot", "dom", "a11y", "layout", "console", "network"} {
		p, ok := paths[kind]
		require.True(t, ok, "missing artifact path for %s", kind)
		assert.FileExists(t, p)
	}
	// No page errors were buffered, so no error log is written.
	assert.NotContains(t, paths, "pageerrors")

	domBytes, err := os.ReadFile(paths["dom"])
	require.NoError(t, err)
	assert.Equal(t, set.DOMJSON, domBytes)
}
