package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// RunContext resolves the directory layout of one run. It is built from a
// validated RunConfig and treated as read-only by everything downstream.
type RunContext struct {
	ArtifactDir string

	ScreenshotsDir string
	DOMDir         string
	A11yDir        string
	LayoutDir      string
	LogsDir        string
	NetworkDir     string
	TracesDir      string
	DiffsDir       string
	ReportsDir     string

	ManifestPath string
	ReportPath   string
	DigestPath   string

	BaselineRoot string
}

// NewRunContext derives all artifact paths from the configuration.
// It does not touch the filesystem; call EnsureDirs before writing.
func NewRunContext(cfg *RunConfig) *RunContext {
	art := cfg.ArtifactDir
	// Captured artifacts live one level down under artifacts/; the manifest
	// and reports stay at the artifact-dir root.
	sub := filepath.Join(art, "artifacts")
	return &RunContext{
		ArtifactDir:    art,
		ScreenshotsDir: filepath.Join(sub, "screenshots"),
		DOMDir:         filepath.Join(sub, "dom"),
		A11yDir:        filepath.Join(sub, "a11y"),
		LayoutDir:      filepath.Join(sub, "layout"),
		LogsDir:        filepath.Join(sub, "logs"),
		NetworkDir:     filepath.Join(sub, "network"),
		TracesDir:      filepath.Join(sub, "traces"),
		DiffsDir:       filepath.Join(sub, "diffs"),
		ReportsDir:     filepath.Join(art, "reports"),
		ManifestPath:   cfg.ManifestPath,
		ReportPath:     filepath.Join(art, "reports", "report.json"),
		DigestPath:     filepath.Join(art, "reports", "failures.txt"),
		BaselineRoot:   cfg.BaselineRoot,
	}
}

// EnsureDirs creates every artifact directory, including the manifest's
// parent. Existing directories are left as-is; stale artifacts from earlier
// runs are the caller's problem.
func (rc *RunContext) EnsureDirs() error {
	dirs := []string{
		rc.ArtifactDir,
		rc.ScreenshotsDir,
		rc.DOMDir,
		rc.A11yDir,
		rc.LayoutDir,
		rc.LogsDir,
		rc.NetworkDir,
		rc.TracesDir,
		rc.DiffsDir,
		rc.ReportsDir,
		filepath.Dir(rc.ManifestPath),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", d, err)
		}
	}
	return nil
}

// ArtifactName builds the canonical artifact file stem for one slice attempt:
// <scenario>--<slice>--<browser>--<viewport>.
func ArtifactName(scenarioID, sliceID, browser, viewportID string) string {
	return fmt.Sprintf("%s--%s--%s--%s", scenarioID, sliceID, browser, viewportID)
}

// BaselineDir resolves the baseline directory for one slice/browser/viewport
// combination under the baseline root.
func (rc *RunContext) BaselineDir(scenarioID, sliceID, browser, viewportID string) string {
	return filepath.Join(rc.BaselineRoot, scenarioID, sliceID, browser, viewportID)
}
