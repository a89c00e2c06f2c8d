package capture

import (
	"encoding/json"
	"fmt"
)

// wellKnownSelectors are the shell surfaces measured on every capture, in
// addition to the slice's tracked root. A selector with no match is recorded
// as missing rather than omitted, so baselines notice surfaces disappearing.
var wellKnownSelectors = []string{
	".desktop-backdrop",
	".taskbar",
	".window-frame",
	".context-menu",
	".taskbar-start-button",
}

// LayoutSnapshot holds bounding-box geometry for the tracked root and the
// well-known shell surfaces.
type LayoutSnapshot struct {
	Elements []ElementMetrics `json:"elements"`
}

type ElementMetrics struct {
	Selector string      `json:"selector"`
	Missing  bool        `json:"missing"`
	Rect     *Rect       `json:"rect,omitempty"`
	Scroll   *BoxSize    `json:"scroll,omitempty"`
	Client   *BoxSize    `json:"client,omitempty"`
	Style    *StyleProps `json:"style,omitempty"`
}

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type BoxSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// StyleProps is the small computed-style subset that tends to regress when
// shell chrome breaks: clipping, stacking, visibility.
type StyleProps struct {
	OverflowX string `json:"overflow_x"`
	OverflowY string `json:"overflow_y"`
	ZIndex    string `json:"z_index"`
	Opacity   string `json:"opacity"`
	Display   string `json:"display"`
}

// layoutScript measures the given selectors in one round trip.
const layoutScript = `(selectors) => selectors.map((sel) => {
	const el = document.querySelector(sel);
	if (!el) return { selector: sel, missing: true };
	const r = el.getBoundingClientRect();
	const cs = getComputedStyle(el);
	return {
		selector: sel,
		missing: false,
		rect: { x: r.x, y: r.y, width: r.width, height: r.height },
		scroll: { width: el.scrollWidth, height: el.scrollHeight },
		client: { width: el.clientWidth, height: el.clientHeight },
		style: {
			overflow_x: cs.overflowX,
			overflow_y: cs.overflowY,
			z_index: cs.zIndex,
			opacity: cs.opacity,
			display: cs.display,
		},
	};
})`

// LayoutSelectors returns the measurement list for a slice: the tracked root
// first, then the well-known surfaces, with duplicates removed.
func LayoutSelectors(trackedRoot string) []string {
	out := []string{trackedRoot}
	for _, sel := range wellKnownSelectors {
		if sel != trackedRoot {
			out = append(out, sel)
		}
	}
	return out
}

// decodeLayout converts the raw Eval result into a LayoutSnapshot.
func decodeLayout(raw any) (*LayoutSnapshot, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("capture: encode layout result: %w", err)
	}
	var elements []ElementMetrics
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("capture: decode layout result: %w", err)
	}
	return &LayoutSnapshot{Elements: elements}, nil
}
