// Package capture turns a settled page into the artifact set a slice
// attempt produces: screenshot, normalized DOM, accessibility tree, layout
// metrics, and the buffered console/network logs. Everything that feeds the
// diff engine is serialized canonically and content-hashed here, so "same
// artifact" always means "same bytes".
package capture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-rod/rod/lib/proto"

	"github.com/justinrayshort/os-sub001/internal/canonical"
	"github.com/justinrayshort/os-sub001/internal/config"
	"github.com/justinrayshort/os-sub001/internal/session"
)

// Page is the surface the capturer needs from a live session. AXTree takes
// the tracked-root selector so the session can scope the tree at the source.
type Page interface {
	Screenshot() ([]byte, error)
	HTML() (string, error)
	AXTree(selector string) ([]*proto.AccessibilityAXNode, error)
	Eval(js string, args ...any) (any, error)
	Events() *session.EventLog
}

// ArtifactSet is everything captured from one slice attempt, with canonical
// bytes and content hashes for the compared artifacts.
type ArtifactSet struct {
	Screenshot    []byte
	ScreenshotSHA string

	DOM     *DOMSnapshot
	DOMJSON []byte
	DOMSHA  string

	A11y     *A11ySnapshot
	A11yJSON []byte
	A11ySHA  string

	Layout     *LayoutSnapshot
	LayoutJSON []byte
	LayoutSHA  string

	Console    []session.ConsoleEntry
	PageErrors []session.PageError
	Network    []session.NetworkEntry

	DroppedConsole int
	DroppedNetwork int
}

// Capturer drives artifact capture according to the run's toggles.
type Capturer struct {
	cfg *config.RunConfig
}

func NewCapturer(cfg *config.RunConfig) *Capturer {
	return &Capturer{cfg: cfg}
}

// Capture collects the configured artifacts from a settled page. The
// screenshot is unconditional; everything else honors its toggle. A failure
// in any capture aborts the attempt: a partial artifact set would poison
// baseline comparison.
//
// An empty tracked root scopes DOM, accessibility, and layout capture to the
// document body.
func (c *Capturer) Capture(p Page, trackedRoot string) (*ArtifactSet, error) {
	if trackedRoot == "" {
		trackedRoot = "body"
	}
	set := &ArtifactSet{}

	shot, err := p.Screenshot()
	if err != nil {
		return nil, err
	}
	set.Screenshot = shot
	set.ScreenshotSHA = canonical.Hash(shot)

	if c.cfg.CaptureDOM {
		src, err := p.HTML()
		if err != nil {
			return nil, err
		}
		dom, err := NormalizeDOM(src, trackedRoot)
		if err != nil {
			return nil, err
		}
		set.DOM = dom
		if set.DOMJSON, err = canonical.MarshalStruct(dom); err != nil {
			return nil, fmt.Errorf("capture: canonicalize dom: %w", err)
		}
		set.DOMSHA = canonical.Hash(set.DOMJSON)
	}

	if c.cfg.CaptureA11y {
		nodes, err := p.AXTree(trackedRoot)
		if err != nil {
			return nil, err
		}
		set.A11y = SimplifyAXTree(nodes)
		if set.A11yJSON, err = canonical.MarshalStruct(set.A11y); err != nil {
			return nil, fmt.Errorf("capture: canonicalize a11y tree: %w", err)
		}
		set.A11ySHA = canonical.Hash(set.A11yJSON)
	}

	if c.cfg.CaptureLayout {
		raw, err := p.Eval(layoutScript, LayoutSelectors(trackedRoot))
		if err != nil {
			return nil, err
		}
		layout, err := decodeLayout(raw)
		if err != nil {
			return nil, err
		}
		set.Layout = layout
		if set.LayoutJSON, err = canonical.MarshalStruct(layout); err != nil {
			return nil, fmt.Errorf("capture: canonicalize layout: %w", err)
		}
		set.LayoutSHA = canonical.Hash(set.LayoutJSON)
	}

	ev := p.Events()
	if c.cfg.CaptureConsole {
		set.Console = ev.Console()
		set.PageErrors = ev.PageErrors()
	}
	if c.cfg.CaptureNetwork {
		set.Network = ev.Network()
	}
	set.DroppedConsole, set.DroppedNetwork = ev.Dropped()

	return set, nil
}

// Write persists the artifact set under the run's directory layout and
// returns artifact kind -> relative path for the manifest.
func (c *Capturer) Write(rc *config.RunContext, name string, set *ArtifactSet) (map[string]string, error) {
	paths := make(map[string]string)

	shotPath := filepath.Join(rc.ScreenshotsDir, name+".png")
	if err := os.WriteFile(shotPath, set.Screenshot, 0o644); err != nil {
		return nil, fmt.Errorf("capture: write screenshot: %w", err)
	}
	paths["screenshot"] = shotPath

	if set.DOMJSON != nil {
		p := filepath.Join(rc.DOMDir, name+".json")
		if err := os.WriteFile(p, set.DOMJSON, 0o644); err != nil {
			return nil, fmt.Errorf("capture: write dom snapshot: %w", err)
		}
		paths["dom"] = p
	}
	if set.A11yJSON != nil {
		p := filepath.Join(rc.A11yDir, name+".json")
		if err := os.WriteFile(p, set.A11yJSON, 0o644); err != nil {
			return nil, fmt.Errorf("capture: write a11y snapshot: %w", err)
		}
		paths["a11y"] = p
	}
	if set.LayoutJSON != nil {
		p := filepath.Join(rc.LayoutDir, name+".json")
		if err := os.WriteFile(p, set.LayoutJSON, 0o644); err != nil {
			return nil, fmt.Errorf("capture: write layout metrics: %w", err)
		}
		paths["layout"] = p
	}

	if c.cfg.CaptureConsole {
		p := filepath.Join(rc.LogsDir, name+".console.ndjson")
		if err := writeNDJSON(p, set.Console); err != nil {
			return nil, err
		}
		paths["console"] = p

		if len(set.PageErrors) > 0 {
			ep := filepath.Join(rc.LogsDir, name+".errors.ndjson")
			if err := writeNDJSON(ep, set.PageErrors); err != nil {
				return nil, err
			}
			paths["pageerrors"] = ep
		}
	}
	if c.cfg.CaptureNetwork {
		p := filepath.Join(rc.NetworkDir, name+".ndjson")
		if err := writeNDJSON(p, set.Network); err != nil {
			return nil, err
		}
		paths["network"] = p
	}

	return paths, nil
}

func writeNDJSON[T any](path string, items []T) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("capture: encode log entry: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("capture: write %s: %w", path, err)
	}
	return nil
}
