// Package advisor turns a progress snapshot into a prompt and sends it to a
// language model backend.
package advisor

import (
	"fmt"
	"strings"

	"preptracker/internal/model"
)

const SystemMessage = "You are an assistant helping a candidate work through a long-horizon software " +
	"engineering preparation plan. You analyze daily tasks and progress and give focused " +
	"recommendations for frontend, backend and fullstack roles. Be concise and actionable."

const instructions = `Please provide:
1. Top 3 priority tasks for today
2. Focus areas that need attention
3. Specific actionable recommendations
4. Time management tips

Keep it concise and actionable.`

var statusMarkers = map[model.Status]string{
	model.StatusPending:    "[ ]",
	model.StatusInProgress: "[~]",
	model.StatusCompleted:  "[x]",
}

// Snapshot is the slice of progress an advisor sees.
type Snapshot struct {
	Date    string
	Today   model.Metrics
	Week    model.WeekBlock
	Overall model.Metrics
	Tasks   []model.Task
	// Extra is free-form context supplied by the caller.
	Extra string
}

// BuildContext renders the snapshot as the plain-text context block that is
// both sent to the model and echoed back to the client.
func BuildContext(s Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Today's tasks (%s):\n", s.Date)
	if len(s.Tasks) == 0 {
		b.WriteString("(no tasks scheduled)\n")
	}
	for _, t := range s.Tasks {
		fmt.Fprintf(&b, "%s %s: %s\n", statusMarkers[t.Status], t.Category, t.Description)
	}

	fmt.Fprintf(&b, "\nToday: %d/%d completed (%.1f%%)\n",
		s.Today.CompletedTasks, s.Today.TotalTasks, s.Today.CompletionPercentage)
	if s.Week.WeekNumber > 0 {
		fmt.Fprintf(&b, "Week %d (%s): %d/%d completed (%.1f%%)\n",
			s.Week.WeekNumber, s.Week.Phase, s.Week.CompletedTasks, s.Week.TotalTasks, s.Week.CompletionPercentage)
	} else {
		b.WriteString("Week: outside the plan horizon\n")
	}
	fmt.Fprintf(&b, "Overall: %d/%d completed (%.1f%%)\n",
		s.Overall.CompletedTasks, s.Overall.TotalTasks, s.Overall.CompletionPercentage)

	if extra := strings.TrimSpace(s.Extra); extra != "" {
		fmt.Fprintf(&b, "\nAdditional context: %s\n", extra)
	}
	return b.String()
}

// BuildPrompt combines the rendered context with the user's request.
func BuildPrompt(context, userPrompt string) string {
	return fmt.Sprintf(
		"Based on my preparation progress, provide focused recommendations for today.\n\n"+
			"Context:\n%s\nUser question/request: %s\n\n%s",
		context, strings.TrimSpace(userPrompt), instructions,
	)
}
