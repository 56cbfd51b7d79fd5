package main

import (
	"github.com/fatih/color"

	"preptracker/internal/model"
)

var (
	bold      = color.New(color.Bold).SprintFunc()
	dim       = color.New(color.Faint).SprintFunc()
	green     = color.New(color.FgGreen).SprintFunc()
	yellow    = color.New(color.FgYellow).SprintFunc()
	boldCyan  = color.New(color.Bold, color.FgCyan).SprintFunc()
	boldGreen = color.New(color.Bold, color.FgGreen).SprintFunc()
	boldRed   = color.New(color.Bold, color.FgRed).SprintFunc()
)

var colorNames = map[string]color.Attribute{
	"red":     color.FgRed,
	"green":   color.FgGreen,
	"yellow":  color.FgYellow,
	"blue":    color.FgBlue,
	"magenta": color.FgMagenta,
	"cyan":    color.FgCyan,
	"white":   color.FgWhite,
}

// categoryTag renders a category in the colour its descriptor names.
func categoryTag(c model.Category) string {
	attr, ok := colorNames[model.CategoryDescriptors[c].Color]
	if !ok {
		attr = color.FgWhite
	}
	return color.New(color.Bold, attr).Sprintf("%-7s", c)
}

func statusMarker(s model.Status) string {
	switch s {
	case model.StatusCompleted:
		return green("[x]")
	case model.StatusInProgress:
		return yellow("[~]")
	default:
		return dim("[ ]")
	}
}
