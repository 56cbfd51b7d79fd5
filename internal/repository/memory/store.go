// Package memory is a process-local task and recommendation store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"preptracker/internal/model"
	"preptracker/internal/repository"
)

type Store struct {
	mu    sync.RWMutex
	tasks map[string]model.Task
	recs  []model.RecommendationRecord
}

func NewStore() *Store {
	return &Store{tasks: make(map[string]model.Task)}
}

// clone detaches the CompletedAt pointer so callers never share state with the store.
func clone(t model.Task) model.Task {
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		t.CompletedAt = &at
	}
	return t
}

func (s *Store) populated(h model.Horizon) bool {
	from, to := h.Start.Format(model.DateLayout), h.End.Format(model.DateLayout)
	for _, t := range s.tasks {
		if t.Date >= from && t.Date <= to {
			return true
		}
	}
	return false
}

// InsertSchedule stores tasks only if no task of the horizon exists yet.
func (s *Store) InsertSchedule(_ context.Context, h model.Horizon, tasks []model.Task) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.populated(h) {
		return false, nil
	}
	for _, t := range tasks {
		if _, dup := s.tasks[t.ID]; dup {
			return false, fmt.Errorf("duplicate task id %s", t.ID)
		}
	}
	for _, t := range tasks {
		s.tasks[t.ID] = clone(t)
	}
	return true, nil
}

// ReplaceSchedule drops every task of the horizon and stores tasks in their place.
func (s *Store) ReplaceSchedule(_ context.Context, h model.Horizon, tasks []model.Task) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, to := h.Start.Format(model.DateLayout), h.End.Format(model.DateLayout)
	removed := 0
	for id, t := range s.tasks {
		if t.Date >= from && t.Date <= to {
			delete(s.tasks, id)
			removed++
		}
	}
	for _, t := range tasks {
		s.tasks[t.ID] = clone(t)
	}
	return removed, nil
}

func (s *Store) ListTasks(_ context.Context, f model.TaskFilter) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Task, 0)
	for _, t := range s.tasks {
		if f.Matches(t) {
			out = append(out, clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return model.Less(out[i], out[j]) })
	return out, nil
}

func (s *Store) GetTask(_ context.Context, id string) (model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, repository.ErrTaskNotFound
	}
	return clone(t), nil
}

// UpdateTask applies fn to a copy of the task under the write lock and
// stores the result only if fn succeeds.
func (s *Store) UpdateTask(_ context.Context, id string, fn func(*model.Task) error) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, repository.ErrTaskNotFound
	}
	t = clone(t)
	if err := fn(&t); err != nil {
		return model.Task{}, err
	}
	s.tasks[id] = t
	return clone(t), nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) AppendRecommendation(_ context.Context, rec model.RecommendationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Recommendations = append([]string(nil), rec.Recommendations...)
	s.recs = append(s.recs, rec)
	return nil
}

// ListRecommendations returns the newest records first.
func (s *Store) ListRecommendations(_ context.Context, limit int) ([]model.RecommendationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = repository.ClampLimit(limit)
	out := make([]model.RecommendationRecord, 0, limit)
	for i := len(s.recs) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.recs[i]
		rec.Recommendations = append([]string(nil), rec.Recommendations...)
		out = append(out, rec)
	}
	return out, nil
}
