package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultCatalog(t *testing.T) {
	catalog, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, catalog.Scenarios)
	assert.Contains(t, catalog.ViewportSets, "default")

	// The shell scenario carries the idle-surface slice.
	scenarios, err := catalog.ScenariosByIDs([]string{"shell"})
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "shell", scenarios[0].ID)

	var ids []string
	for _, sl := range scenarios[0].Slices {
		ids = append(ids, sl.ID)
	}
	assert.Contains(t, ids, "shell-default")
}

func TestSliceIDsUniqueAcrossRegistry(t *testing.T) {
	catalog, err := Load()
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, s := range catalog.Scenarios {
		for _, sl := range s.Slices {
			assert.False(t, seen[sl.ID], "slice id %q defined twice", sl.ID)
			seen[sl.ID] = true
		}
	}
}

func TestScenariosByIDsPreservesOrder(t *testing.T) {
	catalog, err := Load()
	require.NoError(t, err)

	scenarios, err := catalog.ScenariosByIDs([]string{"settings", "shell"})
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "settings", scenarios[0].ID)
	assert.Equal(t, "shell", scenarios[1].ID)
}

func TestScenariosByIDsUnknown(t *testing.T) {
	catalog, err := Load()
	require.NoError(t, err)

	_, err = catalog.ScenariosByIDs([]string{"shell", "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported scenario "bogus"`)
}

func TestFilterSlice(t *testing.T) {
	catalog, err := Load()
	require.NoError(t, err)

	scenarios, err := catalog.ScenariosByIDs([]string{"shell", "settings"})
	require.NoError(t, err)

	filtered, err := FilterSlice(scenarios, "settings-appearance")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "settings", filtered[0].ID)
	require.Len(t, filtered[0].Slices, 1)
	assert.Equal(t, "settings-appearance", filtered[0].Slices[0].ID)
}

func TestFilterSliceUnknown(t *testing.T) {
	catalog, err := Load()
	require.NoError(t, err)

	scenarios, err := catalog.ScenariosByIDs([]string{"shell"})
	require.NoError(t, err)

	_, err = FilterSlice(scenarios, "no-such-slice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported slice")
}

func TestResolveViewport(t *testing.T) {
	catalog, err := Load()
	require.NoError(t, err)

	vp, err := catalog.ResolveViewport("default", "desktop")
	require.NoError(t, err)
	assert.Equal(t, 1920, vp.Width)
	assert.Equal(t, 1080, vp.Height)
}

func TestResolveViewportUnknownID(t *testing.T) {
	catalog, err := Load()
	require.NoError(t, err)

	// "ultrawide" exists in the wide set but must NOT be found through the
	// default set; viewport resolution never scans other sets.
	_, err = catalog.ResolveViewport("default", "ultrawide")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown viewport "ultrawide"`)

	_, err = catalog.ResolveViewport("wide", "ultrawide")
	require.NoError(t, err)
}

func TestResolveViewportUnknownSet(t *testing.T) {
	catalog, err := Load()
	require.NoError(t, err)

	_, err = catalog.ResolveViewport("bogus-set", "desktop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown viewport set")
}

func TestEffectiveStrategy(t *testing.T) {
	tests := []struct {
		name     string
		override DiffStrategy
		run      DiffStrategy
		want     DiffStrategy
	}{
		{"no override uses run strategy", "", DiffHybrid, DiffHybrid},
		{"override wins", DiffDOM, DiffHybrid, DiffDOM},
		{"none override wins", DiffNone, DiffHybrid, DiffNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sl := Slice{DiffStrategy: tt.override}
			assert.Equal(t, tt.want, sl.EffectiveStrategy(tt.run))
		})
	}
}

func TestLoadFileRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "duplicate slice id across scenarios",
			yaml: `
viewport_sets:
  default:
    - { id: desktop, width: 1920, height: 1080 }
scenarios:
  - id: a
    slices:
      - id: dup
        baseline_eligible: true
        setup: [{ kind: navigate, path: "/" }]
        viewports: [desktop]
  - id: b
    slices:
      - id: dup
        baseline_eligible: true
        setup: [{ kind: navigate, path: "/" }]
        viewports: [desktop]
`,
			wantErr: `slice id "dup"`,
		},
		{
			name: "empty setup routine",
			yaml: `
viewport_sets:
  default:
    - { id: desktop, width: 1920, height: 1080 }
scenarios:
  - id: a
    slices:
      - id: s1
        baseline_eligible: true
        setup: []
        viewports: [desktop]
`,
			wantErr: "setup routine must not be empty",
		},
		{
			name: "unknown diff strategy caught by schema",
			yaml: `
viewport_sets:
  default:
    - { id: desktop, width: 1920, height: 1080 }
scenarios:
  - id: a
    slices:
      - id: s1
        baseline_eligible: true
        diff_strategy: fuzzy
        setup: [{ kind: navigate, path: "/" }]
        viewports: [desktop]
`,
			wantErr: "catalog schema",
		},
		{
			name: "navigate without path",
			yaml: `
viewport_sets:
  default:
    - { id: desktop, width: 1920, height: 1080 }
scenarios:
  - id: a
    slices:
      - id: s1
        baseline_eligible: true
        setup: [{ kind: navigate }]
        viewports: [desktop]
`,
			wantErr: "path is required",
		},
		{
			name: "negative viewport dimension caught by schema",
			yaml: `
viewport_sets:
  default:
    - { id: desktop, width: -5, height: 1080 }
scenarios:
  - id: a
    slices:
      - id: s1
        baseline_eligible: true
        setup: [{ kind: navigate, path: "/" }]
        viewports: [desktop]
`,
			wantErr: "catalog schema",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "catalog.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			_, err := LoadFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFileValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `
viewport_sets:
  default:
    - { id: desktop, width: 1280, height: 720 }
scenarios:
  - id: custom
    family: custom
    slices:
      - id: custom-home
        tracked_root: "#app"
        baseline_eligible: true
        diff_strategy: hybrid
        setup:
          - { kind: set-storage-key, key: "flag", value: "on" }
          - { kind: navigate, path: "/home" }
          - { kind: wait-for-selector, selector: "#app" }
          - { kind: click, selector: "#open" }
          - { kind: keypress, key: "Escape" }
        assertions:
          - { kind: text-presence, target: "Welcome" }
        viewports: [desktop]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	catalog, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, catalog.Scenarios, 1)

	sl := catalog.Scenarios[0].Slices[0]
	assert.Equal(t, "#app", sl.TrackedRoot)
	assert.Equal(t, DiffHybrid, sl.DiffStrategy)
	require.Len(t, sl.Setup, 5)
	assert.Equal(t, ActionSetStorageKey, sl.Setup[0].Kind)
	assert.Equal(t, ActionKeypress, sl.Setup[4].Kind)
}
