package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinrayshort/os-sub001/internal/manifest"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testManifest(runID, status string, started time.Time) *manifest.RunManifest {
	return &manifest.RunManifest{
		SchemaVersion: manifest.SchemaVersion,
		RunID:         runID,
		Profile:       "local",
		Mode:          "validate",
		Status:        status,
		StartedAt:     started.UTC().Format(time.RFC3339),
		FinishedAt:    started.Add(time.Minute).UTC().Format(time.RFC3339),
		Summary:       manifest.Summary{SliceCount: 4, Passed: 3, Failed: 1},
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestRecordAndRecent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordRun(ctx, testManifest("run-a", "passed", base), "a/manifest.json"))
	require.NoError(t, s.RecordRun(ctx, testManifest("run-b", "failed", base.Add(time.Hour)), "b/manifest.json"))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "run-b", entries[0].RunID)
	assert.Equal(t, "failed", entries[0].Status)
	assert.Equal(t, "run-a", entries[1].RunID)
	assert.Equal(t, 4, entries[1].SliceCount)
	assert.Equal(t, 3, entries[1].Passed)
	assert.Equal(t, "a/manifest.json", entries[1].ManifestPath)
}

func TestRecordRunIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	m := testManifest("run-a", "passed", time.Now())

	require.NoError(t, s.RecordRun(ctx, m, "a/manifest.json"))
	require.NoError(t, s.RecordRun(ctx, m, "a/manifest.json"))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecentLimit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		id := "run-" + string(rune('a'+i))
		require.NoError(t, s.RecordRun(ctx, testManifest(id, "passed", base.Add(time.Duration(i)*time.Hour)), ""))
	}

	entries, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "run-e", entries[0].RunID)
}

func TestPrune(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordRun(ctx, testManifest("old", "passed", base), ""))
	require.NoError(t, s.RecordRun(ctx, testManifest("new", "passed", base.Add(48*time.Hour)), ""))

	n, err := s.Prune(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].RunID)
}
