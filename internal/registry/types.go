package registry

// DiffStrategy selects which artifact kinds are compared against baseline.
type DiffStrategy string

const (
	// DiffNone captures artifacts without any baseline comparison.
	DiffNone DiffStrategy = "none"

	// DiffDOM compares only the normalized DOM snapshot.
	DiffDOM DiffStrategy = "dom"

	// DiffHybrid compares the screenshot by content hash plus the DOM,
	// accessibility, and layout snapshots by structural equality.
	DiffHybrid DiffStrategy = "hybrid"
)

// AssertionKind identifies a read-only check evaluated against a live session.
type AssertionKind string

const (
	AssertSelectorPresence AssertionKind = "selector-presence"
	AssertTextPresence     AssertionKind = "text-presence"
)

// Assertion is evaluated read-only against the live session after setup.
// Assertions never mutate application state.
type Assertion struct {
	Kind   AssertionKind `yaml:"kind" json:"kind"`
	Target string        `yaml:"target" json:"target"`
}

// ActionKind identifies a setup action variant.
type ActionKind string

const (
	ActionNavigate        ActionKind = "navigate"
	ActionSetStorageKey   ActionKind = "set-storage-key"
	ActionClick           ActionKind = "click"
	ActionKeypress        ActionKind = "keypress"
	ActionWaitForSelector ActionKind = "wait-for-selector"
)

// SetupAction is one step of a slice's setup routine. Setup logic is data,
// not closures: each action is a tagged record so catalogs can be serialized,
// validated, and reused.
//
// Field usage per kind:
//   - navigate:          Path (relative to the run's base URL)
//   - set-storage-key:   Key, Value (localStorage)
//   - click:             Selector
//   - keypress:          Key (e.g. "Tab", "Enter", "Escape")
//   - wait-for-selector: Selector
type SetupAction struct {
	Kind     ActionKind `yaml:"kind" json:"kind"`
	Path     string     `yaml:"path,omitempty" json:"path,omitempty"`
	Key      string     `yaml:"key,omitempty" json:"key,omitempty"`
	Value    string     `yaml:"value,omitempty" json:"value,omitempty"`
	Selector string     `yaml:"selector,omitempty" json:"selector,omitempty"`
}

// Slice is the smallest independently diffable unit: one setup routine, one
// tracked DOM root, one assertion set, applicable across one or more
// viewports.
type Slice struct {
	// ID must be unique across the full registry: artifact file paths are
	// keyed by it.
	ID string `yaml:"id" json:"id"`

	// TrackedRoot is the selector of the DOM subtree that DOM, accessibility,
	// and layout artifacts are scoped to. Empty means document body.
	TrackedRoot string `yaml:"tracked_root,omitempty" json:"tracked_root,omitempty"`

	// BaselineEligible gates baseline comparison. Ineligible slices exist
	// purely to validate assertions and capture artifacts; they never invoke
	// the diff engine regardless of configured strategy.
	BaselineEligible bool `yaml:"baseline_eligible" json:"baseline_eligible"`

	// DiffStrategy overrides the run-level strategy when non-empty.
	DiffStrategy DiffStrategy `yaml:"diff_strategy,omitempty" json:"diff_strategy,omitempty"`

	Assertions []Assertion   `yaml:"assertions,omitempty" json:"assertions,omitempty"`
	Setup      []SetupAction `yaml:"setup" json:"setup"`

	// Viewports lists applicable viewport ids, resolved against the run's
	// configured viewport set.
	Viewports []string `yaml:"viewports" json:"viewports"`
}

// Scenario is a named group of slices. Immutable, defined at startup.
type Scenario struct {
	ID string `yaml:"id" json:"id"`

	// Family is an optional tag for legacy grouping.
	Family string `yaml:"family,omitempty" json:"family,omitempty"`

	Slices []Slice `yaml:"slices" json:"slices"`
}

// Viewport is a fixed rendering size resolved by identifier lookup.
type Viewport struct {
	ID     string `yaml:"id" json:"id"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Catalog is the full scenario registry plus the named viewport sets.
// Catalog entries are pure data: registration has no side effects, and
// adding a scenario or slice requires no changes to the execution pipeline.
type Catalog struct {
	Scenarios    []Scenario            `yaml:"scenarios" json:"scenarios"`
	ViewportSets map[string][]Viewport `yaml:"viewport_sets" json:"viewport_sets"`
}
