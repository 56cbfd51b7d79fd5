// Package status holds the task lifecycle rules.
package status

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"preptracker/internal/model"
)

var ErrInvalidStatus = errors.New("invalid status")

// next is the click-to-advance cycle. It is only consulted by Advance;
// SetStatus accepts any valid target.
var next = map[model.Status]model.Status{
	model.StatusPending:    model.StatusInProgress,
	model.StatusInProgress: model.StatusCompleted,
	model.StatusCompleted:  model.StatusPending,
}

// Parse validates a wire value.
func Parse(raw string) (model.Status, error) {
	s := model.Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// Next returns the state following s in the advance cycle.
func Next(s model.Status) (model.Status, error) {
	n, ok := next[s]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return n, nil
}

// SetStatus moves task to requested and keeps completed_at in step with it:
// entering COMPLETED stamps now, remaining COMPLETED keeps the original stamp,
// any other target clears it. No other field is touched.
func SetStatus(task *model.Task, requested model.Status, now time.Time) error {
	if !requested.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, requested)
	}

	switch {
	case requested != model.StatusCompleted:
		task.CompletedAt = nil
	case task.Status != model.StatusCompleted || task.CompletedAt == nil:
		stamp := now.UTC()
		task.CompletedAt = &stamp
	}
	task.Status = requested
	return nil
}

// Advance applies the next state of the cycle to task.
func Advance(task *model.Task, now time.Time) error {
	n, err := Next(task.Status)
	if err != nil {
		return err
	}
	return SetStatus(task, n, now)
}
