package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"preptracker/internal/model"
	"preptracker/internal/schedule"
)

func previewCmd() *cobra.Command {
	var from, to, category string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the generated calendar without touching the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			h, err := cfg.Horizon()
			if err != nil {
				return err
			}
			catalog, err := cfg.Catalog()
			if err != nil {
				return err
			}

			drafts, err := schedule.Generate(h, catalog)
			if err != nil {
				return err
			}

			filter := model.TaskFilter{From: from, To: to}
			if category != "" {
				c, err := model.ParseCategory(category)
				if err != nil {
					return err
				}
				filter.Category = c
			}
			renderPreview(os.Stdout, drafts, filter)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First date to print (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last date to print (YYYY-MM-DD)")
	cmd.Flags().StringVar(&category, "category", "", "Only print one category")

	return cmd
}

// renderPreview prints drafts grouped by week and date. Week numbers and
// description rotation come from the full horizon, so a narrowed range
// shows exactly what initialize would store for those dates.
func renderPreview(w io.Writer, drafts []model.TaskDraft, filter model.TaskFilter) int {
	week, date, printed := 0, "", 0
	for _, d := range drafts {
		if !filter.Matches(model.Task{Date: d.Date, Category: d.Category, WeekNumber: d.WeekNumber}) {
			continue
		}
		if d.WeekNumber != week {
			week = d.WeekNumber
			fmt.Fprintf(w, "\n%s %d  %s\n", boldCyan("Week"), week, dim(d.Phase))
		}
		if d.Date != date {
			date = d.Date
			day, _ := model.ParseDate(date)
			fmt.Fprintf(w, "  %s %s\n", bold(date), dim(day.Weekday().String()[:3]))
		}
		fmt.Fprintf(w, "    %s P%d  %s\n", categoryTag(d.Category), d.Priority, d.Description)
		printed++
	}
	fmt.Fprintf(w, "\n%s tasks\n", bold(printed))
	return printed
}
