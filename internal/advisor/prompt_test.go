package advisor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"preptracker/internal/model"
)

func TestBuildContext(t *testing.T) {
	s := Snapshot{
		Date:  "2025-09-01",
		Today: model.Metrics{TotalTasks: 3, CompletedTasks: 1, CompletionPercentage: 100.0 / 3},
		Week: model.WeekBlock{
			WeekNumber: 1,
			Phase:      "Launch & Foundation",
			Metrics:    model.Metrics{TotalTasks: 15, CompletedTasks: 1, CompletionPercentage: 100.0 / 15},
		},
		Overall: model.Metrics{TotalTasks: 900, CompletedTasks: 1, CompletionPercentage: 100.0 / 900},
		Tasks: []model.Task{
			{Category: model.CategoryDSA, Description: "2 Easy problems", Status: model.StatusCompleted},
			{Category: model.CategoryProject, Description: "Scaffold repo", Status: model.StatusInProgress},
			{Category: model.CategoryApply, Description: "5 applications", Status: model.StatusPending},
		},
		Extra: "  interviewing next week ",
	}

	got := BuildContext(s)
	assert.Contains(t, got, "Today's tasks (2025-09-01):\n")
	assert.Contains(t, got, "[x] DSA: 2 Easy problems\n")
	assert.Contains(t, got, "[~] PROJECT: Scaffold repo\n")
	assert.Contains(t, got, "[ ] APPLY: 5 applications\n")
	assert.Contains(t, got, "Today: 1/3 completed (33.3%)")
	assert.Contains(t, got, "Week 1 (Launch & Foundation): 1/15 completed (6.7%)")
	assert.Contains(t, got, "Overall: 1/900 completed (0.1%)")
	assert.Contains(t, got, "Additional context: interviewing next week\n")
}

func TestBuildContext_OutsideHorizon(t *testing.T) {
	got := BuildContext(Snapshot{Date: "2027-01-01"})
	assert.Contains(t, got, "(no tasks scheduled)")
	assert.Contains(t, got, "Week: outside the plan horizon")
	assert.NotContains(t, got, "Additional context")
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("CTX\n", "  What should I focus on today? ")
	assert.True(t, strings.HasPrefix(got, "Based on my preparation progress"))
	assert.Contains(t, got, "Context:\nCTX\n")
	assert.Contains(t, got, "User question/request: What should I focus on today?\n")
	assert.Contains(t, got, "1. Top 3 priority tasks for today")
	assert.Contains(t, got, "4. Time management tips")
}
