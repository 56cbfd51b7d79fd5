package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"preptracker/internal/model"
	"preptracker/internal/progress"
	"preptracker/internal/schedule"
	"preptracker/internal/status"
)

func init() {
	color.NoColor = true
}

func previewDrafts(t *testing.T) []model.TaskDraft {
	t.Helper()
	h, err := model.NewHorizon("2025-09-01", "2026-05-31")
	require.NoError(t, err)
	c, err := schedule.DefaultCatalog()
	require.NoError(t, err)
	drafts, err := schedule.Generate(h, c)
	require.NoError(t, err)
	return drafts
}

func TestRenderPreview_Range(t *testing.T) {
	drafts := previewDrafts(t)
	var buf bytes.Buffer

	n := renderPreview(&buf, drafts, model.TaskFilter{From: "2025-09-08", To: "2025-09-08"})
	out := buf.String()

	assert.Greater(t, n, 0)
	assert.Contains(t, out, "Week 2")
	assert.Contains(t, out, "2025-09-08 Mon")
	assert.NotContains(t, out, "2025-09-09")
	assert.Equal(t, n, strings.Count(out, "\n    "))
}

func TestRenderPreview_Category(t *testing.T) {
	drafts := previewDrafts(t)
	var buf bytes.Buffer

	n := renderPreview(&buf, drafts, model.TaskFilter{Category: model.CategoryApply, From: "2025-09-01", To: "2025-09-07"})
	assert.Greater(t, n, 0)
	assert.Contains(t, buf.String(), "APPLY")
}

func TestRenderDashboard(t *testing.T) {
	h, err := model.NewHorizon("2025-09-01", "2026-05-31")
	require.NoError(t, err)
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	var tasks []model.Task
	for i, d := range previewDrafts(t) {
		if d.Date != "2025-09-01" {
			continue
		}
		tasks = append(tasks, model.NewTask(string(rune('a'+i)), d, now))
	}
	require.NotEmpty(t, tasks)
	require.NoError(t, status.SetStatus(&tasks[0], model.StatusCompleted, now))

	var buf bytes.Buffer
	renderDashboard(&buf, progress.Dashboard(tasks, h, now))
	out := buf.String()

	assert.Contains(t, out, "Today 2025-09-01")
	assert.Contains(t, out, "[x]")
	assert.Contains(t, out, "Week 1")
	assert.Contains(t, out, "Overall")

	buf.Reset()
	renderDashboard(&buf, progress.Dashboard(tasks, h, now.AddDate(1, 0, 0)))
	assert.Contains(t, buf.String(), "outside the plan horizon")
}

func TestCategoryTag_EveryCategoryHasColour(t *testing.T) {
	for _, c := range model.Categories {
		_, ok := colorNames[model.CategoryDescriptors[c].Color]
		assert.True(t, ok, "category %s", c)
		assert.Contains(t, categoryTag(c), string(c))
	}
}
