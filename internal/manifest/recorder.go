package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/justinrayshort/os-sub001/internal/config"
)

// Recorder owns the run manifest and its on-disk copies. Every Append
// rewrites both the canonical manifest path and the duplicate report path
// atomically, so readers never observe a torn file.
type Recorder struct {
	rc  *config.RunContext
	m   *RunManifest
	now func() time.Time
}

// NewRecorder starts a recorder for a fresh run and flushes the initial
// running manifest immediately, so even a run that crashes before its first
// slice leaves a record.
func NewRecorder(rc *config.RunContext, m *RunManifest) (*Recorder, error) {
	r := &Recorder{rc: rc, m: m, now: time.Now}
	if err := r.flush(); err != nil {
		return nil, err
	}
	return r, nil
}

// Manifest exposes the live manifest for inspection.
func (r *Recorder) Manifest() *RunManifest { return r.m }

// Append records one slice result, recomputes the summary, and flushes.
func (r *Recorder) Append(res SliceResult) error {
	r.m.Scenarios = append(r.m.Scenarios, res)
	r.m.recompute()
	return r.flush()
}

// Finish resolves the final status, stamps the finish time, flushes, and
// writes the plain-text failure digest when the run failed.
func (r *Recorder) Finish(diffingDisabled bool) (string, error) {
	r.m.recompute()
	r.m.Status = r.m.resolveStatus(diffingDisabled)
	r.m.FinishedAt = r.now().UTC().Format(time.RFC3339)
	if err := r.flush(); err != nil {
		return "", err
	}

	if r.m.Status == StatusFailed {
		if err := r.writeDigest(); err != nil {
			return "", err
		}
	}
	return r.m.Status, nil
}

func (r *Recorder) flush() error {
	data, err := json.MarshalIndent(r.m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	data = append(data, '\n')

	if err := writeAtomic(r.rc.ManifestPath, data); err != nil {
		return err
	}
	return writeAtomic(r.rc.ReportPath, data)
}

// writeDigest emits one line per failing slice listing every accumulated
// failure, for humans scanning CI output.
func (r *Recorder) writeDigest() error {
	var b strings.Builder
	for i := range r.m.Scenarios {
		res := &r.m.Scenarios[i]
		if res.Passed() {
			continue
		}
		parts := make([]string, 0, len(res.Failures))
		for _, f := range res.Failures {
			parts = append(parts, fmt.Sprintf("%s: %s", f.Code, f.Message))
		}
		fmt.Fprintf(&b, "%s/%s [%s/%s]: %s\n",
			res.ScenarioID, res.SliceID, res.Browser, res.ViewportID,
			strings.Join(parts, "; "))
	}
	return writeAtomic(r.rc.DigestPath, []byte(b.String()))
}

// writeAtomic writes via a temp file in the target directory plus rename, so
// a crash mid-write never leaves a partial file at the final path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("manifest: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("manifest: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("manifest: replace %s: %w", path, err)
	}
	return nil
}
