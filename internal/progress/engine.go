// Package progress computes completion metrics from a snapshot of tasks.
// Every function is pure and returns zero-valued blocks for empty input.
package progress

import (
	"sort"
	"time"

	"preptracker/internal/model"
	"preptracker/internal/schedule"
)

// Percentage is completed/total*100, or 0 when total is 0.
func Percentage(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

func metricsOf(tasks []model.Task, keep func(model.Task) bool) model.Metrics {
	var m model.Metrics
	for _, t := range tasks {
		if !keep(t) {
			continue
		}
		m.TotalTasks++
		if t.Status == model.StatusCompleted {
			m.CompletedTasks++
		}
	}
	m.CompletionPercentage = Percentage(m.CompletedTasks, m.TotalTasks)
	return m
}

func Overall(tasks []model.Task) model.Metrics {
	return metricsOf(tasks, func(model.Task) bool { return true })
}

func Today(tasks []model.Task, today time.Time) model.Metrics {
	date := model.Day(today).Format(model.DateLayout)
	return metricsOf(tasks, func(t model.Task) bool { return t.Date == date })
}

// CurrentWeek aggregates the week of the horizon containing today.
// A today outside the horizon yields a zero block.
func CurrentWeek(tasks []model.Task, h model.Horizon, today time.Time) model.WeekBlock {
	if !h.Contains(today) {
		return model.WeekBlock{}
	}
	week := schedule.WeekNumber(h.Start, today)
	block := model.WeekBlock{
		WeekNumber: week,
		Metrics:    metricsOf(tasks, func(t model.Task) bool { return t.WeekNumber == week }),
	}
	for _, t := range tasks {
		if t.WeekNumber == week {
			block.Phase = t.Phase
			break
		}
	}
	return block
}

// WeeklyTrend returns one entry per task-bearing week, ascending by week number.
func WeeklyTrend(tasks []model.Task, h model.Horizon) []model.WeeklyProgress {
	byWeek := make(map[int]*model.WeeklyProgress)
	for _, t := range tasks {
		wp, ok := byWeek[t.WeekNumber]
		if !ok {
			first, last := schedule.WeekSpan(h, t.WeekNumber)
			wp = &model.WeeklyProgress{
				WeekNumber: t.WeekNumber,
				Phase:      t.Phase,
				StartDate:  first.Format(model.DateLayout),
				EndDate:    last.Format(model.DateLayout),
			}
			byWeek[t.WeekNumber] = wp
		}
		wp.TotalTasks++
		if t.Status != model.StatusCompleted {
			continue
		}
		wp.CompletedTasks++
		switch t.Category {
		case model.CategoryDSA:
			wp.DSACompleted++
		case model.CategoryProject:
			wp.ProjectsCompleted++
		case model.CategoryApply:
			wp.ApplicationsSent++
		}
	}

	trend := make([]model.WeeklyProgress, 0, len(byWeek))
	for _, wp := range byWeek {
		wp.CompletionPercentage = Percentage(wp.CompletedTasks, wp.TotalTasks)
		trend = append(trend, *wp)
	}
	sort.Slice(trend, func(i, j int) bool { return trend[i].WeekNumber < trend[j].WeekNumber })
	return trend
}

// CategoryBreakdown reports every category, including those without tasks.
func CategoryBreakdown(tasks []model.Task) []model.CategoryStats {
	counts := make(map[model.Category]*model.CategoryStats, len(model.Categories))
	stats := make([]model.CategoryStats, len(model.Categories))
	for i, c := range model.Categories {
		stats[i].Category = c
		counts[c] = &stats[i]
	}
	for _, t := range tasks {
		s, ok := counts[t.Category]
		if !ok {
			continue
		}
		s.Total++
		if t.Status == model.StatusCompleted {
			s.Completed++
		}
	}
	for i := range stats {
		stats[i].Percentage = Percentage(stats[i].Completed, stats[i].Total)
	}
	return stats
}

// Daily reports the metrics, category stats and tasks of a single date.
func Daily(tasks []model.Task, date time.Time) model.DailyProgress {
	day := model.Day(date).Format(model.DateLayout)
	dayTasks := make([]model.Task, 0)
	for _, t := range tasks {
		if t.Date == day {
			dayTasks = append(dayTasks, t)
		}
	}
	return model.DailyProgress{
		Date:          day,
		Metrics:       Overall(dayTasks),
		CategoryStats: CategoryBreakdown(dayTasks),
		Tasks:         dayTasks,
	}
}

// Dashboard assembles the overview from a single snapshot.
func Dashboard(tasks []model.Task, h model.Horizon, today time.Time) model.DashboardOverview {
	daily := Daily(tasks, today)
	return model.DashboardOverview{
		Overview: Overall(tasks),
		Today: model.TodayBlock{
			Date:    daily.Date,
			Metrics: daily.Metrics,
			Tasks:   daily.Tasks,
		},
		CurrentWeek:          CurrentWeek(tasks, h, today),
		CategoryDistribution: CategoryBreakdown(tasks),
	}
}
