// Package repository holds what the task stores share; the drivers live in
// the postgres, sqlite and memory subpackages.
package repository

import "errors"

var ErrTaskNotFound = errors.New("task not found")

const (
	// DefaultHistoryLimit and MaxHistoryLimit bound recommendation history reads.
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

// ClampLimit maps a requested history size onto [1, MaxHistoryLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
