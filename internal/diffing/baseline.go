// Package diffing compares captured artifacts against the stored baseline
// for a slice. Comparison is exact: artifacts are canonical bytes, so two
// captures of the same UI state hash identically and anything else is a
// regression (or an intended change awaiting baseline promotion).
package diffing

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/justinrayshort/os-sub001/internal/capture"
	"github.com/justinrayshort/os-sub001/internal/canonical"
)

// ErrBaselineMissing reports that no baseline exists for a combination.
var ErrBaselineMissing = errors.New("diffing: baseline missing")

// BaselineManifest records the provenance and content hashes of one stored
// baseline. The profile field is a hard guard: baselines captured under a
// different profile are never compared, only reported as absent.
type BaselineManifest struct {
	Profile    string `json:"profile"`
	ScenarioID string `json:"scenario_id"`
	SliceID    string `json:"slice_id"`
	Browser    string `json:"browser"`
	ViewportID string `json:"viewport_id"`
	CreatedAt  string `json:"created_at"`

	ScreenshotSHA string `json:"screenshot_sha256"`
	DOMSHA        string `json:"dom_sha256,omitempty"`
	A11ySHA       string `json:"a11y_sha256,omitempty"`
	LayoutSHA     string `json:"layout_sha256,omitempty"`
}

// Baseline is one loaded baseline: its manifest plus whichever artifact
// bodies exist on disk.
type Baseline struct {
	Dir      string
	Manifest BaselineManifest

	Screenshot []byte
	DOMJSON    []byte
	A11yJSON   []byte
	LayoutJSON []byte
}

// LoadBaseline reads the baseline stored in dir. A missing directory or
// manifest yields ErrBaselineMissing; a present but unreadable baseline is a
// real error.
func LoadBaseline(dir string) (*Baseline, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBaselineMissing, dir)
		}
		return nil, fmt.Errorf("diffing: read baseline manifest: %w", err)
	}

	b := &Baseline{Dir: dir}
	if err := json.Unmarshal(data, &b.Manifest); err != nil {
		return nil, fmt.Errorf("diffing: parse baseline manifest %s: %w", dir, err)
	}

	if b.Screenshot, err = readOptional(filepath.Join(dir, "screenshot.png")); err != nil {
		return nil, err
	}
	if b.DOMJSON, err = readOptional(filepath.Join(dir, "dom.json")); err != nil {
		return nil, err
	}
	if b.A11yJSON, err = readOptional(filepath.Join(dir, "a11y.json")); err != nil {
		return nil, err
	}
	if b.LayoutJSON, err = readOptional(filepath.Join(dir, "layout.json")); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteBaseline stores an artifact set as the new baseline for dir,
// replacing whatever was there. The manifest is written last so a crash
// mid-write leaves a baseline that loads as missing, not as corrupt.
func WriteBaseline(dir string, m BaselineManifest, set *capture.ArtifactSet) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("diffing: create baseline dir: %w", err)
	}

	// Stale manifest must not describe the new artifacts mid-write.
	if err := os.Remove(filepath.Join(dir, "manifest.json")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("diffing: clear baseline manifest: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "screenshot.png"), set.Screenshot, 0o644); err != nil {
		return fmt.Errorf("diffing: write baseline screenshot: %w", err)
	}
	files := map[string][]byte{
		"dom.json":    set.DOMJSON,
		"a11y.json":   set.A11yJSON,
		"layout.json": set.LayoutJSON,
	}
	for name, body := range files {
		if body == nil {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
			return fmt.Errorf("diffing: write baseline %s: %w", name, err)
		}
	}

	m.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	m.ScreenshotSHA = set.ScreenshotSHA
	m.DOMSHA = set.DOMSHA
	m.A11ySHA = set.A11ySHA
	m.LayoutSHA = set.LayoutSHA

	manifest, err := canonical.MarshalStruct(m)
	if err != nil {
		return fmt.Errorf("diffing: encode baseline manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), manifest, 0o644); err != nil {
		return fmt.Errorf("diffing: write baseline manifest: %w", err)
	}
	return nil
}

func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("diffing: read %s: %w", path, err)
	}
	return data, nil
}
