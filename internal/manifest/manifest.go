// Package manifest accumulates per-slice results into the run manifest and
// flushes it to disk after every slice. A crash mid-run leaves a valid JSON
// manifest listing exactly the slices completed so far, still marked
// running.
package manifest

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion identifies the manifest layout. Bump on any breaking field
// change so downstream report consumers can dispatch.
const SchemaVersion = 1

// Run status values.
const (
	StatusRunning         = "running"
	StatusPassed          = "passed"
	StatusFailed          = "failed"
	StatusCaptureComplete = "capture-complete"
)

// Failure codes carried on slice results.
const (
	CodeSetupFailed      = "setup_failed"
	CodeAssertionFailed  = "assertion_failed"
	CodeConsoleError     = "console_error_detected"
	CodePixelDiffFailed  = "pixel_diff_failed"
	CodeDOMDiffFailed    = "dom_diff_failed"
	CodeA11yDiffFailed   = "a11y_diff_failed"
	CodeLayoutDiffFailed = "layout_diff_failed"
)

// Failure is one recorded failure on a slice result. Detail is free-form
// context: diff hashes, divergent paths, the raw setup error.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
}

// SliceResult is the outcome of one (browser, scenario, slice, viewport)
// combination after retries resolved. Artifact paths point at the final
// attempt's files.
type SliceResult struct {
	ScenarioID string `json:"scenario_id"`
	SliceID    string `json:"slice_id"`
	Browser    string `json:"browser"`
	ViewportID string `json:"viewport_id"`

	Status   string `json:"status"` // passed | failed
	Attempts int    `json:"attempts"`

	Failures  []Failure         `json:"failures,omitempty"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
	TracePath string            `json:"trace_path,omitempty"`

	ConsoleErrorCount int   `json:"console_error_count"`
	DurationMS        int64 `json:"duration_ms"`
}

// Passed reports whether the slice concluded without failures.
func (r *SliceResult) Passed() bool { return len(r.Failures) == 0 }

// Summary holds the aggregate counters recomputed on every append.
type Summary struct {
	ScenarioCount     int `json:"scenario_count"`
	SliceCount        int `json:"slice_count"`
	Passed            int `json:"passed"`
	Failed            int `json:"failed"`
	DiffFailures      int `json:"diff_failures"`
	AssertionFailures int `json:"assertion_failures"`
	ConsoleErrors     int `json:"console_errors"`
}

// RunManifest is the top-level run record.
type RunManifest struct {
	SchemaVersion int    `json:"schema_version"`
	RunID         string `json:"run_id"`
	Profile       string `json:"profile"`
	Mode          string `json:"mode"`
	BaseURL       string `json:"base_url"`
	StartedAt     string `json:"started_at"`
	FinishedAt    string `json:"finished_at,omitempty"`
	Status        string `json:"status"`
	ArtifactRoot  string `json:"artifact_root"`

	Summary   Summary       `json:"summary"`
	Scenarios []SliceResult `json:"scenarios"`
}

// NewRunManifest starts a manifest in the running state.
func NewRunManifest(profile, mode, baseURL, artifactRoot string, now time.Time) *RunManifest {
	return &RunManifest{
		SchemaVersion: SchemaVersion,
		RunID:         uuid.NewString(),
		Profile:       profile,
		Mode:          mode,
		BaseURL:       baseURL,
		StartedAt:     now.UTC().Format(time.RFC3339),
		Status:        StatusRunning,
		ArtifactRoot:  artifactRoot,
		Scenarios:     []SliceResult{},
	}
}

// recompute rebuilds the summary from scratch. Result lists are small enough
// that recomputing beats maintaining incremental counters correctly.
func (m *RunManifest) recompute() {
	s := Summary{}
	scenarios := make(map[string]struct{})
	for i := range m.Scenarios {
		r := &m.Scenarios[i]
		scenarios[r.ScenarioID] = struct{}{}
		s.SliceCount++
		if r.Passed() {
			s.Passed++
		} else {
			s.Failed++
		}
		s.ConsoleErrors += r.ConsoleErrorCount
		for _, f := range r.Failures {
			switch f.Code {
			case CodeAssertionFailed:
				s.AssertionFailures++
			case CodePixelDiffFailed, CodeDOMDiffFailed, CodeA11yDiffFailed, CodeLayoutDiffFailed:
				s.DiffFailures++
			}
		}
	}
	s.ScenarioCount = len(scenarios)
	m.Summary = s
}

// resolveStatus decides the final run status. Any failed slice fails the
// run; otherwise a run with diffing disabled is capture-complete.
func (m *RunManifest) resolveStatus(diffingDisabled bool) string {
	if m.Summary.Failed > 0 {
		return StatusFailed
	}
	if diffingDisabled {
		return StatusCaptureComplete
	}
	return StatusPassed
}
