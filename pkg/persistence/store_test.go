package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndQuerySteps(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := &StepRecord{TaskID: "task-1", Actor: "Max Dillon", IssueID: 1, StopReason: "activity_produced", Output: "resolved issue #1"}
	require.NoError(t, store.RecordStep(ctx, first))
	assert.NotEmpty(t, first.ID, "RecordStep should mint an id")
	assert.False(t, first.CreatedAt.IsZero())

	second := &StepRecord{ID: NewStepID(), TaskID: "task-1", Actor: "Norman Osborn", IssueID: 1, StopReason: "activity_produced", Output: "closed issue #1", IsLast: true}
	require.NoError(t, store.RecordStep(ctx, second))

	// Unrelated task should not show up.
	require.NoError(t, store.RecordStep(ctx, &StepRecord{TaskID: "task-2", Actor: "Max Dillon", StopReason: "empty_reply"}))

	steps, err := store.StepsForTask(ctx, "task-1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, first.ID, steps[0].ID)
	assert.Equal(t, "Max Dillon", steps[0].Actor)
	assert.False(t, steps[0].IsLast)
	assert.Equal(t, second.ID, steps[1].ID)
	assert.True(t, steps[1].IsLast)
}

func TestRecordChatAndActivities(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	step := &StepRecord{TaskID: "task-1", Actor: "Max Dillon", IssueID: 2, StopReason: "activity_produced"}
	require.NoError(t, store.RecordStep(ctx, step))

	chat := []ChatRecord{
		{StepID: step.ID, Role: "system", Content: "You are Max Dillon."},
		{StepID: step.ID, Role: "assistant", Content: "Calling write_file."},
		{StepID: step.ID, Role: "function", Name: "write_file", Content: "Wrote main.py."},
	}
	require.NoError(t, store.RecordChat(ctx, chat))

	acts := []ActivityRecord{
		{StepID: step.ID, IssueID: 2, Kind: "Attachment Upload", Actor: "Max Dillon", Summary: "Max Dillon uploaded main.py"},
		{StepID: step.ID, IssueID: 2, Kind: "Status Change", Actor: "Max Dillon", Summary: "Max Dillon changed the Status In Progress -> Resolved"},
	}
	require.NoError(t, store.RecordActivities(ctx, acts))

	got, err := store.ActivitiesForIssue(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Attachment Upload", got[0].Kind)
	assert.Equal(t, step.ID, got[0].StepID)
	assert.Equal(t, "Status Change", got[1].Kind)
	assert.False(t, got[1].CreatedAt.IsZero())

	none, err := store.ActivitiesForIssue(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOpenCreatesFileAndSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.RecordStep(context.Background(), &StepRecord{TaskID: "t", Actor: "a", StopReason: "empty_reply"}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	steps, err := reopened.StepsForTask(context.Background(), "t")
	require.NoError(t, err)
	assert.Len(t, steps, 1)
}
