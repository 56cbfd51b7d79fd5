package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"preptracker/internal/model"
)

var now = time.Date(2025, 9, 1, 18, 30, 0, 0, time.UTC)

func newTask() model.Task {
	return model.Task{
		ID:          "t-1",
		Date:        "2025-09-01",
		Category:    model.CategoryDSA,
		Description: "2 Easy problems",
		Priority:    2,
		WeekNumber:  1,
		Phase:       "Foundation",
		Status:      model.StatusPending,
		CreatedAt:   now.Add(-time.Hour),
	}
}

func TestSetStatus_CompletedAtInvariant(t *testing.T) {
	for _, from := range model.Statuses {
		for _, to := range model.Statuses {
			task := newTask()
			require.NoError(t, SetStatus(&task, from, now.Add(-time.Minute)))
			require.NoError(t, SetStatus(&task, to, now))

			assert.Equal(t, to, task.Status)
			if to == model.StatusCompleted {
				assert.NotNil(t, task.CompletedAt, "%s -> %s", from, to)
			} else {
				assert.Nil(t, task.CompletedAt, "%s -> %s", from, to)
			}
		}
	}
}

func TestSetStatus_EnteringCompletedStampsNow(t *testing.T) {
	task := newTask()
	require.NoError(t, SetStatus(&task, model.StatusCompleted, now))
	require.NotNil(t, task.CompletedAt)
	assert.True(t, task.CompletedAt.Equal(now))
}

func TestSetStatus_StayingCompletedKeepsStamp(t *testing.T) {
	task := newTask()
	require.NoError(t, SetStatus(&task, model.StatusCompleted, now))
	require.NoError(t, SetStatus(&task, model.StatusCompleted, now.Add(time.Hour)))
	assert.True(t, task.CompletedAt.Equal(now))
}

func TestSetStatus_OnlyStatusFieldsChange(t *testing.T) {
	task := newTask()
	before := task
	require.NoError(t, SetStatus(&task, model.StatusCompleted, now))

	task.Status = before.Status
	task.CompletedAt = nil
	assert.Equal(t, before, task)
}

func TestSetStatus_Invalid(t *testing.T) {
	task := newTask()
	err := SetStatus(&task, "DONE", now)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, model.StatusPending, task.Status)
}

func TestAdvance_Cycle(t *testing.T) {
	task := newTask()

	require.NoError(t, Advance(&task, now))
	assert.Equal(t, model.StatusInProgress, task.Status)
	assert.Nil(t, task.CompletedAt)

	require.NoError(t, Advance(&task, now))
	assert.Equal(t, model.StatusCompleted, task.Status)
	assert.NotNil(t, task.CompletedAt)

	require.NoError(t, Advance(&task, now))
	assert.Equal(t, model.StatusPending, task.Status)
	assert.Nil(t, task.CompletedAt)
}

func TestNext_CoversEveryStatus(t *testing.T) {
	for _, s := range model.Statuses {
		n, err := Next(s)
		require.NoError(t, err)
		assert.True(t, n.Valid())
	}
	_, err := Next("ARCHIVED")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestParse(t *testing.T) {
	s, err := Parse(" in_progress ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, s)

	_, err = Parse("finished")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
