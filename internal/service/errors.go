package service

import (
	"errors"
	"fmt"

	"preptracker/internal/repository"
)

var (
	ErrNotFound        = errors.New("task not found")
	ErrUpstreamAdvisor = errors.New("advisor unavailable")
)

// ValidationError reports a malformed caller-supplied value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Message: err.Error()}
}

// StoreError wraps a persistence failure. It is returned unchanged to the
// caller; nothing in the service retries it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// storeErr maps a store failure onto the service taxonomy.
func storeErr(op, id string, err error) error {
	if errors.Is(err, repository.ErrTaskNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &StoreError{Op: op, Err: err}
}
