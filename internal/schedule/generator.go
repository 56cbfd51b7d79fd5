package schedule

import (
	"fmt"
	"time"

	"preptracker/internal/model"
)

// WeekNumber returns the 1-indexed 7-day bucket of date counted from start.
// Dates before start have no week and yield 0.
func WeekNumber(start, date time.Time) int {
	days := daysBetween(start, date)
	if days < 0 {
		return 0
	}
	return days/7 + 1
}

// WeekSpan returns the first and last calendar day of week inside the horizon.
func WeekSpan(h model.Horizon, week int) (time.Time, time.Time) {
	first := h.Start.AddDate(0, 0, (week-1)*7)
	last := first.AddDate(0, 0, 6)
	if last.After(h.End) {
		last = h.End
	}
	return first, last
}

func daysBetween(from, to time.Time) int {
	return int(model.Day(to).Sub(model.Day(from)).Hours() / 24)
}

// Generate derives every task draft of the horizon from the catalog.
//
// Drafts come out in ascending date order and, within a date, in template
// declaration order. Descriptions rotate through each template's pool by
// emission position, so identical inputs always produce identical output.
func Generate(h model.Horizon, c Catalog) ([]model.TaskDraft, error) {
	start, end := model.Day(h.Start), model.Day(h.End)
	if end.Before(start) {
		return nil, ErrInvalidHorizon
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	weeks := WeekNumber(start, end)
	if c.lastWeek() < weeks {
		return nil, fmt.Errorf("%w: phase table covers %d weeks, horizon spans %d", ErrInvalidCatalog, c.lastWeek(), weeks)
	}

	templates := make([]compiledTemplate, 0, len(c.Templates))
	for _, t := range c.Templates {
		ct, err := t.compile()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
		}
		templates = append(templates, ct)
	}

	positions := make([]int, len(templates))
	var drafts []model.TaskDraft
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		week := WeekNumber(start, day)
		phase, _ := c.PhaseFor(week)
		date := day.Format(model.DateLayout)

		for i, t := range templates {
			if !t.days[day.Weekday()] {
				continue
			}
			for n := 0; n < t.perDay; n++ {
				drafts = append(drafts, model.TaskDraft{
					Date:        date,
					Category:    t.category,
					Description: t.descriptions[positions[i]%len(t.descriptions)],
					Priority:    t.priorityFor(phase),
					WeekNumber:  week,
					Phase:       phase,
				})
				positions[i]++
			}
		}
	}

	if len(drafts) == 0 {
		return nil, ErrEmptyCatalog
	}
	return drafts, nil
}
