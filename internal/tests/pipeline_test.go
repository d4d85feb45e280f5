package tests

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipclass/internal/fileingest"
	"shipclass/internal/models"
)

func TestProcessSource_EndToEnd(t *testing.T) {
	completion := &scriptedCompletion{}
	a := newTestApp(t, completion)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "inventory.csv")
	writeInventory(t, src, "bilge pump", "hull plate", "fuel pump", "deck plate", "ballast pump")

	results, err := a.ClassificationService.ProcessSource(ctx, src)
	require.NoError(t, err)
	require.Len(t, results, 2, "five rows in chunks of three")
	for _, res := range results {
		assert.False(t, res.Skipped)
		assert.Equal(t, models.RunStatusCompleted, res.Run.Status)
	}
	// Two batches for the first chunk, one for the second.
	assert.Equal(t, 3, completion.calls())

	first, err := fileingest.ReadTable(results[0].OutputPath, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Part Name", "equipment", "type", "category", "id"}, first.Headers)
	assert.Equal(t, []string{"bilge pump", "main engine", "component", "Ship Common Systems", "8.100.100"}, first.Rows[0])
	assert.Equal(t, []string{"hull plate", "main engine", "component", "Hull", "2.100.100"}, first.Rows[1])
	assert.Equal(t, []string{"fuel pump", "main engine", "component", "Ship Common Systems", "8.100.101"}, first.Rows[2])

	// Codes restart per output file.
	second, err := fileingest.ReadTable(results[1].OutputPath, "")
	require.NoError(t, err)
	assert.Equal(t, "2.100.100", second.Rows[0][4])
	assert.Equal(t, "8.100.100", second.Rows[1][4])

	runs, err := a.RunService.ListRuns(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	// A second pass finds every output in place and calls nothing.
	again, err := a.ClassificationService.ProcessSource(ctx, "")
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.True(t, again[0].Skipped)
	assert.True(t, again[1].Skipped)
	assert.Equal(t, 3, completion.calls())
}

func TestProcessFile_ProviderDown(t *testing.T) {
	completion := &scriptedCompletion{failing: true}
	a := newTestApp(t, completion)
	ctx := context.Background()

	dir := t.TempDir()
	in := filepath.Join(dir, "inventory.csv")
	writeInventory(t, in, "bilge pump", "hull plate", "fuel pump")

	res, err := a.ClassificationService.ProcessFile(ctx, in, filepath.Join(dir, "out.csv"))
	require.NoError(t, err, "batch failures become error rows, not a failed file")
	assert.Equal(t, 3, res.Stats.ErrorRows)
	assert.Equal(t, 2, res.Stats.FailedBatches)
	assert.Equal(t, models.RunStatusPartial, res.Run.Status)

	stored, err := a.RunService.GetRun(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPartial, stored.Status)
	assert.Equal(t, 3, stored.ErrorRows)

	out, err := fileingest.ReadTable(filepath.Join(dir, "out.csv"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"error", "error", "0.100.100"}, out.Rows[0][2:])
	assert.Equal(t, []string{"error", "error", "0.100.101"}, out.Rows[1][2:])
	assert.Equal(t, []string{"error", "error", "0.100.102"}, out.Rows[2][2:])
}

func TestProcessFile_MissingColumnRecordsNothing(t *testing.T) {
	completion := &scriptedCompletion{}
	a := newTestApp(t, completion)
	ctx := context.Background()

	in := filepath.Join(t.TempDir(), "inventory.csv")
	require.NoError(t, os.WriteFile(in, []byte("Part Name\nbilge pump\n"), 0o644))

	_, err := a.ClassificationService.ProcessFile(ctx, in, filepath.Join(t.TempDir(), "out.csv"))
	assert.ErrorIs(t, err, models.ErrMissingColumn)
	assert.Zero(t, completion.calls())

	runs, err := a.RunService.ListRuns(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
