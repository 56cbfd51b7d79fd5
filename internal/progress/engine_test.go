package progress

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"preptracker/internal/model"
	"preptracker/internal/schedule"
	"preptracker/internal/status"
)

func horizon(t *testing.T) model.Horizon {
	t.Helper()
	h, err := model.NewHorizon("2025-09-01", "2026-05-31")
	require.NoError(t, err)
	return h
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return d
}

// fixture generates the default catalog and completes every third task.
func fixture(t *testing.T) []model.Task {
	t.Helper()
	c, err := schedule.DefaultCatalog()
	require.NoError(t, err)
	drafts, err := schedule.Generate(horizon(t), c)
	require.NoError(t, err)

	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	tasks := make([]model.Task, len(drafts))
	for i, d := range drafts {
		tasks[i] = model.NewTask(fmt.Sprintf("t-%d", i), d, now)
		switch i % 3 {
		case 0:
			require.NoError(t, status.SetStatus(&tasks[i], model.StatusCompleted, now))
		case 1:
			require.NoError(t, status.SetStatus(&tasks[i], model.StatusInProgress, now))
		}
	}
	return tasks
}

func TestPercentage_ZeroGuard(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(0, 0))
	assert.Equal(t, 50.0, Percentage(1, 2))
	assert.Equal(t, 100.0, Percentage(3, 3))
}

func TestEmptyCollection(t *testing.T) {
	h := horizon(t)
	today := day(t, "2025-09-03")

	assert.Equal(t, model.Metrics{}, Overall(nil))
	assert.Equal(t, model.Metrics{}, Today(nil, today))
	assert.Equal(t, model.WeekBlock{WeekNumber: 1}, CurrentWeek(nil, h, today))

	trend := WeeklyTrend(nil, h)
	assert.NotNil(t, trend)
	assert.Empty(t, trend)

	breakdown := CategoryBreakdown(nil)
	require.Len(t, breakdown, len(model.Categories))
	for _, s := range breakdown {
		assert.Zero(t, s.Total)
		assert.Zero(t, s.Percentage)
	}
}

func TestCategoryBreakdown_SumsToOverall(t *testing.T) {
	tasks := fixture(t)
	overall := Overall(tasks)

	sumCompleted, sumTotal := 0, 0
	for _, s := range CategoryBreakdown(tasks) {
		sumCompleted += s.Completed
		sumTotal += s.Total
		assert.LessOrEqual(t, s.Completed, s.Total)
	}
	assert.Equal(t, overall.CompletedTasks, sumCompleted)
	assert.Equal(t, overall.TotalTasks, sumTotal)
}

func TestWeeklyTrend_SortedAndBounded(t *testing.T) {
	tasks := fixture(t)
	trend := WeeklyTrend(tasks, horizon(t))
	require.Len(t, trend, 39)

	total := 0
	for i, wp := range trend {
		assert.Equal(t, i+1, wp.WeekNumber)
		assert.LessOrEqual(t, wp.CompletedTasks, wp.TotalTasks)
		assert.LessOrEqual(t, wp.DSACompleted+wp.ProjectsCompleted+wp.ApplicationsSent, wp.CompletedTasks)
		assert.NotEmpty(t, wp.Phase)
		total += wp.TotalTasks
	}
	assert.Equal(t, len(tasks), total)
	assert.Equal(t, "2025-09-01", trend[0].StartDate)
	assert.Equal(t, "2025-09-07", trend[0].EndDate)
}

func TestWeeklyTrend_CategoryCounters(t *testing.T) {
	h := horizon(t)
	completed := time.Now()
	tasks := []model.Task{
		{ID: "1", Date: "2025-09-08", Category: model.CategoryDSA, WeekNumber: 2, Phase: "F", Status: model.StatusCompleted, CompletedAt: &completed},
		{ID: "2", Date: "2025-09-08", Category: model.CategoryDSA, WeekNumber: 2, Phase: "F", Status: model.StatusPending},
		{ID: "3", Date: "2025-09-09", Category: model.CategoryApply, WeekNumber: 2, Phase: "F", Status: model.StatusCompleted, CompletedAt: &completed},
		{ID: "4", Date: "2025-09-09", Category: model.CategoryProject, WeekNumber: 2, Phase: "F", Status: model.StatusCompleted, CompletedAt: &completed},
		{ID: "5", Date: "2025-09-01", Category: model.CategoryOps, WeekNumber: 1, Phase: "F", Status: model.StatusCompleted, CompletedAt: &completed},
	}
	trend := WeeklyTrend(tasks, h)
	require.Len(t, trend, 2)
	assert.Equal(t, 1, trend[0].WeekNumber)
	assert.Equal(t, 1, trend[0].CompletedTasks)
	assert.Zero(t, trend[0].DSACompleted)

	w2 := trend[1]
	assert.Equal(t, 4, w2.TotalTasks)
	assert.Equal(t, 3, w2.CompletedTasks)
	assert.Equal(t, 1, w2.DSACompleted)
	assert.Equal(t, 1, w2.ProjectsCompleted)
	assert.Equal(t, 1, w2.ApplicationsSent)
	assert.Equal(t, 75.0, w2.CompletionPercentage)
}

func TestToday(t *testing.T) {
	tasks := fixture(t)
	m := Today(tasks, day(t, "2025-09-01"))
	assert.Greater(t, m.TotalTasks, 0)
	assert.LessOrEqual(t, m.CompletedTasks, m.TotalTasks)

	// A Saturday carries no tasks in the default catalog.
	assert.Equal(t, model.Metrics{}, Today(tasks, day(t, "2025-09-06")))
}

func TestCurrentWeek_OutsideHorizon(t *testing.T) {
	tasks := fixture(t)
	h := horizon(t)
	assert.Equal(t, model.WeekBlock{}, CurrentWeek(tasks, h, day(t, "2025-08-31")))
	assert.Equal(t, model.WeekBlock{}, CurrentWeek(tasks, h, day(t, "2026-06-01")))
}

func TestCurrentWeek_InsideHorizon(t *testing.T) {
	tasks := fixture(t)
	block := CurrentWeek(tasks, horizon(t), day(t, "2025-09-10"))
	assert.Equal(t, 2, block.WeekNumber)
	assert.Equal(t, "Launch & Foundation", block.Phase)

	want := 0
	for _, task := range tasks {
		if task.WeekNumber == 2 {
			want++
		}
	}
	assert.Equal(t, want, block.TotalTasks)
}

func TestDashboard(t *testing.T) {
	tasks := fixture(t)
	today := day(t, "2025-09-01")
	d := Dashboard(tasks, horizon(t), today)

	assert.Equal(t, Overall(tasks), d.Overview)
	assert.Equal(t, "2025-09-01", d.Today.Date)
	assert.Equal(t, Today(tasks, today), d.Today.Metrics)
	assert.Len(t, d.Today.Tasks, d.Today.TotalTasks)
	assert.Equal(t, 1, d.CurrentWeek.WeekNumber)
	assert.Len(t, d.CategoryDistribution, len(model.Categories))
}
