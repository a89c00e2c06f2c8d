package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "run failed")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "inner", errors.New("cause")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
}

func TestExitErrorMessage(t *testing.T) {
	assert.Equal(t, "bad flag", NewExitError(ExitCommandError, "bad flag").Error())
	assert.Equal(t, "bad flag: cause",
		WrapExitError(ExitCommandError, "bad flag", errors.New("cause")).Error())
}

func TestOutputFormatterText(t *testing.T) {
	var out bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &out}
	require.NoError(t, f.Success("2 scenarios"))
	assert.Equal(t, "2 scenarios\n", out.String())
}

func TestOutputFormatterJSON(t *testing.T) {
	var out bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out}
	require.NoError(t, f.Success(map[string]int{"scenarios": 2}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestRootRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "list", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "xml")
}

func TestListText(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)

	assert.Contains(t, out, "shell")
	assert.Contains(t, out, "shell-default")
	assert.Contains(t, out, "viewport set default:")
	assert.Contains(t, out, "desktop=1920x1080")
}

func TestListJSON(t *testing.T) {
	out, err := execute(t, "list", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   catalogListing `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotEmpty(t, resp.Data.Scenarios)
	assert.Equal(t, "shell", resp.Data.Scenarios[0].ID)
	assert.Contains(t, resp.Data.ViewportSets, "default")
}

func TestListRejectsMissingCatalogFile(t *testing.T) {
	_, err := execute(t, "list", "--catalog", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDoctorChecks(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OS_E2E_ARTIFACT_DIR", filepath.Join(dir, "artifacts"))
	t.Setenv("OS_E2E_BASELINE_ROOT", filepath.Join(dir, "baselines"))
	t.Setenv("OS_E2E_BROWSERS", "chromium")

	report := runDoctor()

	names := make(map[string]doctorCheck, len(report.Checks))
	for _, c := range report.Checks {
		names[c.Name] = c
	}
	assert.True(t, names["configuration"].OK)
	assert.True(t, names["scenario catalog"].OK)
	assert.True(t, names["browser chromium"].OK)
	assert.True(t, names["artifact dir"].OK)

	// An absent baseline root is reported, not failed: runs degrade to
	// missing-baseline failures per slice instead of refusing to start.
	base := names["baseline root"]
	assert.True(t, base.OK)
	assert.Contains(t, base.Detail, "absent")
}

func TestDoctorRenderMarksFailures(t *testing.T) {
	report := doctorReport{Checks: []doctorCheck{
		{Name: "configuration", OK: true, Detail: "ok"},
		{Name: "browser chrome", OK: false, Detail: "no local Chrome installation found"},
	}}
	text := renderDoctor(report)
	assert.Contains(t, text, "[FAIL] browser chrome")
	assert.Contains(t, text, "one or more checks failed")
}

func TestHistoryListEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	out, err := execute(t, "history", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "no runs recorded")
}

func TestRunRequiresBaseURL(t *testing.T) {
	t.Setenv("OS_E2E_BASE_URL", "")
	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, strings.ToLower(err.Error()), "base url")
}

func TestRunRejectsUnresolvableViewport(t *testing.T) {
	artifacts := filepath.Join(t.TempDir(), "artifacts")
	t.Setenv("OS_E2E_BASE_URL", "http://127.0.0.1:5173")
	t.Setenv("OS_E2E_ARTIFACT_DIR", artifacts)
	// The wide set has no tablet/mobile entries, so slices referencing them
	// cannot resolve.
	t.Setenv("OS_E2E_VIEWPORT_SET", "wide")

	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "viewport")

	// Rejected before any manifest or artifact directory was created.
	assert.NoDirExists(t, artifacts)
}

func TestRunRejectsUnknownScenario(t *testing.T) {
	t.Setenv("OS_E2E_BASE_URL", "http://127.0.0.1:5173")
	t.Setenv("OS_E2E_ARTIFACT_DIR", filepath.Join(t.TempDir(), "artifacts"))

	_, err := execute(t, "run", "--scenario", "nonexistent")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
