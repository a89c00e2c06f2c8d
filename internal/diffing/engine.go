package diffing

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/justinrayshort/os-sub001/internal/capture"
	"github.com/justinrayshort/os-sub001/internal/canonical"
	"github.com/justinrayshort/os-sub001/internal/config"
	"github.com/justinrayshort/os-sub001/internal/registry"
)

// Failure is one artifact-level divergence from the baseline.
type Failure struct {
	Artifact string   `json:"artifact"`
	Reason   string   `json:"reason"`
	Expected string   `json:"expected,omitempty"`
	Actual   string   `json:"actual,omitempty"`
	Detail   []string `json:"detail,omitempty"`
	DiffPath string   `json:"diff_path,omitempty"`
}

// Failure reasons.
const (
	ReasonHashMismatch    = "hash-mismatch"
	ReasonMissingBaseline = "missing-baseline"
	ReasonArtifactAbsent  = "baseline-artifact-absent"
)

// Result is the outcome of comparing one attempt's artifacts.
type Result struct {
	Strategy      registry.DiffStrategy `json:"strategy"`
	BaselineFound bool                  `json:"baseline_found"`
	Skipped       string                `json:"skipped,omitempty"`
	Failures      []Failure             `json:"failures,omitempty"`
}

// Passed reports whether the comparison found no divergence.
func (r *Result) Passed() bool { return len(r.Failures) == 0 }

// Engine compares artifact sets against the baseline store and writes diff
// artifacts for divergences.
type Engine struct {
	rc *config.RunContext
}

func NewEngine(rc *config.RunContext) *Engine {
	return &Engine{rc: rc}
}

// Key identifies the baseline a comparison targets.
type Key struct {
	Profile    string
	ScenarioID string
	SliceID    string
	Browser    string
	ViewportID string
}

// Compare evaluates the artifact set under the given strategy.
//
// Strategy "none" never consults the store. Non-eligible slices pass through
// untouched. A missing baseline is a failure for eligible slices, with a
// marker file under the diffs directory. A baseline recorded under a
// different profile is never compared and never fails the slice: that is a
// cross-environment gap, not a regression.
func (e *Engine) Compare(key Key, strategy registry.DiffStrategy, eligible bool, set *capture.ArtifactSet) (*Result, error) {
	res := &Result{Strategy: strategy}
	if strategy == registry.DiffNone || !eligible {
		return res, nil
	}

	name := config.ArtifactName(key.ScenarioID, key.SliceID, key.Browser, key.ViewportID)

	dir := e.rc.BaselineDir(key.ScenarioID, key.SliceID, key.Browser, key.ViewportID)
	base, err := LoadBaseline(dir)
	if errors.Is(err, ErrBaselineMissing) {
		f := Failure{
			Artifact: "screenshot",
			Reason:   ReasonMissingBaseline,
			Actual:   set.ScreenshotSHA,
		}
		f.DiffPath = e.writeMissingBaseline(name, dir)
		res.Failures = append(res.Failures, f)
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	if base.Manifest.Profile != key.Profile {
		res.Skipped = fmt.Sprintf("baseline recorded under profile %q, run is %q",
			base.Manifest.Profile, key.Profile)
		return res, nil
	}
	res.BaselineFound = true

	// "dom" compares the normalized DOM alone; "hybrid" adds the
	// accessibility and layout snapshots plus the exact screenshot hash.
	e.compareJSON(res, "dom", name, base.DOMJSON, set.DOMJSON)
	if strategy == registry.DiffHybrid {
		e.compareJSON(res, "a11y", name, base.A11yJSON, set.A11yJSON)
		e.compareJSON(res, "layout", name, base.LayoutJSON, set.LayoutJSON)
		e.compareScreenshot(res, name, base, set)
	}
	return res, nil
}

func (e *Engine) compareJSON(res *Result, artifact, name string, baseline, actual []byte) {
	if actual == nil {
		// Capture toggle off for this artifact; nothing to compare.
		return
	}
	if baseline == nil {
		res.Failures = append(res.Failures, Failure{
			Artifact: artifact,
			Reason:   ReasonArtifactAbsent,
		})
		return
	}
	if bytes.Equal(baseline, actual) {
		return
	}

	f := Failure{
		Artifact: artifact,
		Reason:   ReasonHashMismatch,
		Expected: canonical.Hash(baseline),
		Actual:   canonical.Hash(actual),
		Detail:   structuralDiff(baseline, actual),
	}
	f.DiffPath = e.writeDiff(name, artifact, f.Detail, baseline, actual)
	res.Failures = append(res.Failures, f)
}

func (e *Engine) compareScreenshot(res *Result, name string, base *Baseline, set *capture.ArtifactSet) {
	if base.Screenshot == nil {
		res.Failures = append(res.Failures, Failure{
			Artifact: "screenshot",
			Reason:   ReasonArtifactAbsent,
		})
		return
	}
	actualSHA := set.ScreenshotSHA
	baseSHA := canonical.Hash(base.Screenshot)
	if actualSHA == baseSHA {
		return
	}

	f := Failure{
		Artifact: "screenshot",
		Reason:   ReasonHashMismatch,
		Expected: baseSHA,
		Actual:   actualSHA,
	}
	// Keep the expected pixels next to the actual ones for review.
	expectedPath := filepath.Join(e.rc.DiffsDir, name+".expected.png")
	if err := os.WriteFile(expectedPath, base.Screenshot, 0o644); err == nil {
		f.DiffPath = expectedPath
	}
	res.Failures = append(res.Failures, f)
}

// writeMissingBaseline leaves a marker under the diffs directory pointing at
// where the baseline was expected, so review tooling sees the gap.
func (e *Engine) writeMissingBaseline(name, expectedDir string) string {
	path := filepath.Join(e.rc.DiffsDir, name+".baseline-missing.txt")
	body := fmt.Sprintf("no baseline found\nexpected location: %s\n", expectedDir)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return ""
	}
	return path
}

// writeDiff persists a small human-readable diff report. Failure to write it
// is not worth failing the comparison over; the hashes already tell the
// story.
func (e *Engine) writeDiff(name, artifact string, detail []string, baseline, actual []byte) string {
	path := filepath.Join(e.rc.DiffsDir, fmt.Sprintf("%s.%s.diff.txt", name, artifact))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "artifact: %s\n", artifact)
	fmt.Fprintf(&buf, "expected sha256: %s\n", canonical.Hash(baseline))
	fmt.Fprintf(&buf, "actual sha256:   %s\n\n", canonical.Hash(actual))
	for _, d := range detail {
		fmt.Fprintf(&buf, "  %s\n", d)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return ""
	}
	return path
}
