package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"preptracker/internal/app"
	"preptracker/internal/model"
	"preptracker/internal/service"
)

func initializeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initialize",
		Short: "Generate and store the schedule unless it already exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *service.ScheduleService, _ *app.Stores) error {
				res, err := svc.Initialize(cmd.Context())
				if err != nil {
					return err
				}
				if res.Created {
					fmt.Printf("%s schedule initialized with %s tasks\n", boldGreen("✓"), bold(len(res.Tasks)))
				} else {
					fmt.Printf("%s schedule already holds %s tasks, nothing stored\n", yellow("•"), bold(len(res.Tasks)))
				}
				return nil
			})
		},
	}
}

func reinitializeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reinitialize",
		Short: "Delete the horizon's tasks, including progress, and regenerate",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reinitialize discards all progress; pass --yes to confirm")
			}
			return withService(cmd.Context(), func(svc *service.ScheduleService, _ *app.Stores) error {
				res, err := svc.Reinitialize(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("%s removed %s tasks, stored %s\n", boldRed("!"), bold(res.Removed), bold(len(res.Tasks)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the destructive reset")
	return cmd
}

func statsCmd() *cobra.Command {
	var weekly bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print today's, this week's and overall progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *service.ScheduleService, _ *app.Stores) error {
				d, err := svc.Dashboard(cmd.Context())
				if err != nil {
					return err
				}
				renderDashboard(os.Stdout, d)

				if weekly {
					weeks, err := svc.WeeklyProgress(cmd.Context())
					if err != nil {
						return err
					}
					renderWeekly(os.Stdout, weeks)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&weekly, "weekly", false, "Also print the per-week trend")
	return cmd
}

func metricsLine(m model.Metrics) string {
	return fmt.Sprintf("%d/%d (%.1f%%)", m.CompletedTasks, m.TotalTasks, m.CompletionPercentage)
}

func renderDashboard(w io.Writer, d model.DashboardOverview) {
	fmt.Fprintf(w, "%s %s  %s\n", boldCyan("Today"), d.Today.Date, metricsLine(d.Today.Metrics))
	for _, t := range d.Today.Tasks {
		fmt.Fprintf(w, "  %s %s %s\n", statusMarker(t.Status), categoryTag(t.Category), t.Description)
	}

	if d.CurrentWeek.WeekNumber > 0 {
		fmt.Fprintf(w, "%s %d %s  %s\n", boldCyan("Week"), d.CurrentWeek.WeekNumber, dim(d.CurrentWeek.Phase), metricsLine(d.CurrentWeek.Metrics))
	} else {
		fmt.Fprintf(w, "%s %s\n", boldCyan("Week"), dim("outside the plan horizon"))
	}
	fmt.Fprintf(w, "%s  %s\n", boldCyan("Overall"), metricsLine(d.Overview))

	for _, s := range d.CategoryDistribution {
		fmt.Fprintf(w, "  %s %d/%d (%.1f%%)\n", categoryTag(s.Category), s.Completed, s.Total, s.Percentage)
	}
}

func renderWeekly(w io.Writer, weeks []model.WeeklyProgress) {
	fmt.Fprintln(w)
	for _, wp := range weeks {
		fmt.Fprintf(w, "%s %2d  %s..%s  %d/%d (%.1f%%)  dsa=%d projects=%d applications=%d\n",
			dim("week"), wp.WeekNumber, wp.StartDate, wp.EndDate,
			wp.CompletedTasks, wp.TotalTasks, wp.CompletionPercentage,
			wp.DSACompleted, wp.ProjectsCompleted, wp.ApplicationsSent)
	}
}
