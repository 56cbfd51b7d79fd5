// Package storetest is a conformance suite every task store driver runs.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"preptracker/internal/model"
	"preptracker/internal/repository"
	"preptracker/internal/status"
)

type Store interface {
	InsertSchedule(ctx context.Context, h model.Horizon, tasks []model.Task) (bool, error)
	ReplaceSchedule(ctx context.Context, h model.Horizon, tasks []model.Task) (int, error)
	ListTasks(ctx context.Context, f model.TaskFilter) ([]model.Task, error)
	GetTask(ctx context.Context, id string) (model.Task, error)
	UpdateTask(ctx context.Context, id string, fn func(*model.Task) error) (model.Task, error)
	Ping(ctx context.Context) error
	AppendRecommendation(ctx context.Context, rec model.RecommendationRecord) error
	ListRecommendations(ctx context.Context, limit int) ([]model.RecommendationRecord, error)
}

var created = time.Date(2025, 8, 30, 10, 0, 0, 0, time.UTC)

func horizon(t *testing.T) model.Horizon {
	t.Helper()
	h, err := model.NewHorizon("2025-09-01", "2025-09-14")
	require.NoError(t, err)
	return h
}

// Tasks builds two tasks per weekday of the two-week test horizon.
func Tasks(t *testing.T) []model.Task {
	t.Helper()
	h := horizon(t)
	var tasks []model.Task
	for d := h.Start; !d.After(h.End); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		week := int(d.Sub(h.Start).Hours()/24)/7 + 1
		for _, c := range []model.Category{model.CategoryDSA, model.CategoryApply} {
			draft := model.TaskDraft{
				Date:        d.Format(model.DateLayout),
				Category:    c,
				Description: fmt.Sprintf("%s on %s", c, d.Format(model.DateLayout)),
				Priority:    2,
				WeekNumber:  week,
				Phase:       "Foundation",
			}
			task := model.NewTask(uuid.NewString(), draft, created)
			task.Seq = len(tasks)
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// Run exercises s, which must start empty.
func Run(t *testing.T, s Store) {
	ctx := context.Background()
	h := horizon(t)
	tasks := Tasks(t)

	t.Run("empty store", func(t *testing.T) {
		got, err := s.ListTasks(ctx, model.TaskFilter{})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
		assert.NoError(t, s.Ping(ctx))
	})

	t.Run("insert once", func(t *testing.T) {
		inserted, err := s.InsertSchedule(ctx, h, tasks)
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = s.InsertSchedule(ctx, h, Tasks(t))
		require.NoError(t, err)
		assert.False(t, inserted)

		all, err := s.ListTasks(ctx, model.TaskFilter{})
		require.NoError(t, err)
		assert.Len(t, all, len(tasks))
	})

	t.Run("ordering and round trip", func(t *testing.T) {
		all, err := s.ListTasks(ctx, model.TaskFilter{})
		require.NoError(t, err)
		require.Len(t, all, len(tasks))
		for i := range tasks {
			assert.Equal(t, tasks[i].ID, all[i].ID)
			assert.Equal(t, tasks[i].Date, all[i].Date)
			assert.Equal(t, tasks[i].Category, all[i].Category)
			assert.Equal(t, tasks[i].Description, all[i].Description)
			assert.Equal(t, tasks[i].WeekNumber, all[i].WeekNumber)
			assert.Equal(t, model.StatusPending, all[i].Status)
			assert.Nil(t, all[i].CompletedAt)
			assert.True(t, tasks[i].CreatedAt.Equal(all[i].CreatedAt))
		}
	})

	t.Run("filters", func(t *testing.T) {
		day, err := s.ListTasks(ctx, model.TaskFilter{Date: "2025-09-01"})
		require.NoError(t, err)
		require.Len(t, day, 2)
		assert.Equal(t, model.CategoryDSA, day[0].Category)
		assert.Equal(t, model.CategoryApply, day[1].Category)

		dsa, err := s.ListTasks(ctx, model.TaskFilter{Category: model.CategoryDSA, Week: 2})
		require.NoError(t, err)
		assert.Len(t, dsa, 5)

		rng, err := s.ListTasks(ctx, model.TaskFilter{From: "2025-09-02", To: "2025-09-03"})
		require.NoError(t, err)
		assert.Len(t, rng, 4)

		none, err := s.ListTasks(ctx, model.TaskFilter{Status: model.StatusCompleted})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("update", func(t *testing.T) {
		now := time.Date(2025, 9, 1, 18, 0, 0, 0, time.UTC)
		updated, err := s.UpdateTask(ctx, tasks[0].ID, func(task *model.Task) error {
			return status.SetStatus(task, model.StatusCompleted, now)
		})
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, updated.Status)
		require.NotNil(t, updated.CompletedAt)

		got, err := s.GetTask(ctx, tasks[0].ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)
		assert.True(t, got.CompletedAt.Equal(now))
		assert.Equal(t, tasks[0].Description, got.Description)

		done, err := s.ListTasks(ctx, model.TaskFilter{Status: model.StatusCompleted})
		require.NoError(t, err)
		assert.Len(t, done, 1)
	})

	t.Run("failed mutation is not stored", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := s.UpdateTask(ctx, tasks[1].ID, func(task *model.Task) error {
			task.Status = model.StatusInProgress
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := s.GetTask(ctx, tasks[1].ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, got.Status)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.GetTask(ctx, uuid.NewString())
		assert.ErrorIs(t, err, repository.ErrTaskNotFound)

		_, err = s.UpdateTask(ctx, uuid.NewString(), func(*model.Task) error { return nil })
		assert.ErrorIs(t, err, repository.ErrTaskNotFound)
	})

	t.Run("concurrent advances on one task", func(t *testing.T) {
		id := tasks[2].ID
		const n = 9
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.UpdateTask(ctx, id, func(task *model.Task) error {
					return status.Advance(task, time.Now())
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		// Nine serialized advances bring the cycle back to PENDING.
		got, err := s.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, got.Status)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("replace", func(t *testing.T) {
		fresh := Tasks(t)
		removed, err := s.ReplaceSchedule(ctx, h, fresh)
		require.NoError(t, err)
		assert.Equal(t, len(tasks), removed)

		all, err := s.ListTasks(ctx, model.TaskFilter{})
		require.NoError(t, err)
		require.Len(t, all, len(fresh))
		assert.Equal(t, fresh[0].ID, all[0].ID)
		for _, task := range all {
			assert.Equal(t, model.StatusPending, task.Status)
		}
	})

	t.Run("recommendations newest first", func(t *testing.T) {
		empty, err := s.ListRecommendations(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, empty)

		for i := 0; i < 12; i++ {
			require.NoError(t, s.AppendRecommendation(ctx, model.RecommendationRecord{
				ID:              uuid.NewString(),
				Date:            "2025-09-01",
				UserPrompt:      fmt.Sprintf("prompt %d", i),
				Recommendations: []string{"a", "b"},
				CreatedAt:       created.Add(time.Duration(i) * time.Minute),
			}))
		}

		recs, err := s.ListRecommendations(ctx, 0)
		require.NoError(t, err)
		require.Len(t, recs, repository.DefaultHistoryLimit)
		assert.Equal(t, "prompt 11", recs[0].UserPrompt)
		assert.Equal(t, []string{"a", "b"}, recs[0].Recommendations)

		recs, err = s.ListRecommendations(ctx, 3)
		require.NoError(t, err)
		assert.Len(t, recs, 3)
		assert.Equal(t, "prompt 9", recs[2].UserPrompt)
	})
}
