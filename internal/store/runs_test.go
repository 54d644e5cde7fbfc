package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkmend/internal/run"
	"checkmend/internal/validate"
)

func testSummary(runID string, started time.Time) *run.Summary {
	return &run.Summary{
		RunID:             runID,
		TerminalState:     run.StateCompleted,
		InitialErrorCount: 12,
		FinalErrorCount:   2,
		FixedCount:        10,
		History: []run.ExecutionResult{
			{Phase: "syntax", Success: true, FixedCount: 6, Attempts: 1, ExecutionTime: 250 * time.Millisecond},
			{Phase: "unused", Success: true, FixedCount: 4, Attempts: 2, ExecutionTime: 120 * time.Millisecond},
		},
		Validation: &validate.Summary{
			Results: []validate.Result{
				{Name: "recompile", Kind: validate.KindCompile, Passed: true, Required: true},
				{Name: "test", Kind: validate.KindTest, Skipped: true},
			},
			Passed:         1,
			Skipped:        1,
			OverallSuccess: true,
		},
		BackupEnabled: true,
		StartedAt:     started,
		FinishedAt:    started.Add(3 * time.Second),
	}
}

func TestRunStore_SaveAndGet(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	defer s.Close()

	started := time.Now().UTC().Truncate(time.Second)
	sum := testSummary("run-1", started)
	require.NoError(t, s.SaveRun(sum))

	got, err := s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, run.StateCompleted, got.TerminalState)
	assert.Equal(t, 12, got.InitialErrorCount)
	assert.Equal(t, 10, got.FixedCount)
	require.Len(t, got.History, 2)
	assert.Equal(t, "syntax", got.History[0].Phase)
	assert.Equal(t, 2, got.History[1].Attempts)
	require.NotNil(t, got.Validation)
	assert.True(t, got.Validation.OverallSuccess)
}

func TestRunStore_ListNewestFirst(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	defer s.Close()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SaveRun(testSummary("run-old", base.Add(-time.Hour))))
	require.NoError(t, s.SaveRun(testSummary("run-new", base)))

	rows, err := s.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "run-new", rows[0].RunID)
	assert.Equal(t, "run-old", rows[1].RunID)

	rows, err = s.ListRuns(1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "run-new", rows[0].RunID)
}

func TestRunStore_DuplicateRunRejected(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	defer s.Close()

	sum := testSummary("run-1", time.Now().UTC())
	require.NoError(t, s.SaveRun(sum))
	assert.Error(t, s.SaveRun(sum))
}

func TestRunStore_GetMissing(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetRun("nope")
	assert.Error(t, err)
}

func TestRunStore_LatestRun(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.LatestRun()
	assert.Error(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SaveRun(testSummary("run-a", base.Add(-time.Minute))))
	require.NoError(t, s.SaveRun(testSummary("run-b", base)))

	got, err := s.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, "run-b", got.RunID)
}

func TestRunStore_ReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(testSummary("run-1", time.Now().UTC())))
	require.NoError(t, s.Close())

	s2, err := Open(path, nil)
	require.NoError(t, err)
	defer s2.Close()

	rows, err := s2.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "run-1", rows[0].RunID)
}
