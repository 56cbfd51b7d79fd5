// Package service orchestrates the generator, the status machine and the
// aggregation engine against the task and recommendation stores.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"preptracker/internal/advisor"
	"preptracker/internal/clock"
	"preptracker/internal/model"
	"preptracker/internal/progress"
	"preptracker/internal/repository"
	"preptracker/internal/schedule"
	"preptracker/internal/status"
	"preptracker/pkg/logger"
	"preptracker/pkg/metrics"
)

// MaxPromptLength bounds the user prompt of a recommendation request.
const MaxPromptLength = 500

type TaskStore interface {
	// InsertSchedule stores tasks unless the horizon already holds a task,
	// as one atomic step. It reports whether the tasks were stored.
	InsertSchedule(ctx context.Context, h model.Horizon, tasks []model.Task) (bool, error)
	// ReplaceSchedule removes the horizon's tasks and stores tasks instead.
	ReplaceSchedule(ctx context.Context, h model.Horizon, tasks []model.Task) (int, error)
	ListTasks(ctx context.Context, f model.TaskFilter) ([]model.Task, error)
	// UpdateTask applies fn to the task with no concurrent writer in between.
	UpdateTask(ctx context.Context, id string, fn func(*model.Task) error) (model.Task, error)
	Ping(ctx context.Context) error
}

type RecommendationStore interface {
	AppendRecommendation(ctx context.Context, rec model.RecommendationRecord) error
	ListRecommendations(ctx context.Context, limit int) ([]model.RecommendationRecord, error)
}

type Advisor interface {
	Advise(ctx context.Context, system, prompt string) (string, error)
}

// Locker guards schedule writes across processes.
type Locker interface {
	Acquire(ctx context.Context, name string) (release func(), err error)
}

type InitResult struct {
	Created bool
	Removed int
	Tasks   []model.Task
}

type RecommendationResult struct {
	Date            string `json:"date"`
	Recommendations string `json:"recommendations"`
	ContextUsed     string `json:"context_used"`
}

type ScheduleService struct {
	tasks   TaskStore
	recs    RecommendationStore
	advisor Advisor
	clock   clock.Clock
	locker  Locker
	horizon model.Horizon
	catalog schedule.Catalog
	logger  *zap.Logger
	newID   func() string

	// initMu keeps generate+persist single-writer within the process.
	initMu sync.Mutex
}

func NewScheduleService(
	tasks TaskStore,
	recs RecommendationStore,
	clk clock.Clock,
	horizon model.Horizon,
	catalog schedule.Catalog,
	logger *zap.Logger,
) *ScheduleService {
	return &ScheduleService{
		tasks:   tasks,
		recs:    recs,
		clock:   clk,
		horizon: horizon,
		catalog: catalog,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

func (s *ScheduleService) WithAdvisor(a Advisor) *ScheduleService {
	s.advisor = a
	return s
}

func (s *ScheduleService) WithLocker(l Locker) *ScheduleService {
	s.locker = l
	return s
}

func (s *ScheduleService) Horizon() model.Horizon { return s.horizon }

func (s *ScheduleService) log(ctx context.Context) *zap.Logger {
	return logger.WithTrace(ctx, s.logger)
}

// ParseTaskFilter validates the optional listing parameters.
func ParseTaskFilter(category, state, date, week string) (model.TaskFilter, error) {
	var f model.TaskFilter
	if category != "" {
		c, err := model.ParseCategory(category)
		if err != nil {
			return f, invalid("category", err)
		}
		f.Category = c
	}
	if state != "" {
		st, err := status.Parse(state)
		if err != nil {
			return f, invalid("status", err)
		}
		f.Status = st
	}
	if date != "" {
		d, err := model.ParseDate(date)
		if err != nil {
			return f, invalid("date", err)
		}
		f.Date = d.Format(model.DateLayout)
	}
	if week != "" {
		w, err := strconv.Atoi(week)
		if err != nil || w < 1 {
			return f, &ValidationError{Field: "week", Message: fmt.Sprintf("%q is not a positive week number", week)}
		}
		f.Week = w
	}
	return f, nil
}

func (s *ScheduleService) ListTasks(ctx context.Context, f model.TaskFilter) ([]model.Task, error) {
	tasks, err := s.tasks.ListTasks(ctx, f)
	if err != nil {
		return nil, storeErr("list tasks", "", err)
	}
	return tasks, nil
}

// UpdateStatus sets the task's status to any valid value.
func (s *ScheduleService) UpdateStatus(ctx context.Context, id, requested string) (model.Task, error) {
	target, err := status.Parse(requested)
	if err != nil {
		return model.Task{}, invalid("status", err)
	}
	return s.mutate(ctx, id, func(t *model.Task) error {
		return status.SetStatus(t, target, s.clock.Now())
	})
}

// AdvanceStatus moves the task one step along the click-to-advance cycle.
func (s *ScheduleService) AdvanceStatus(ctx context.Context, id string) (model.Task, error) {
	return s.mutate(ctx, id, func(t *model.Task) error {
		return status.Advance(t, s.clock.Now())
	})
}

func (s *ScheduleService) mutate(ctx context.Context, id string, fn func(*model.Task) error) (model.Task, error) {
	var from model.Status
	updated, err := s.tasks.UpdateTask(ctx, id, func(t *model.Task) error {
		from = t.Status
		return fn(t)
	})
	if err != nil {
		if errors.Is(err, status.ErrInvalidStatus) {
			return model.Task{}, invalid("status", err)
		}
		return model.Task{}, storeErr("update task", id, err)
	}

	metrics.IncrementStatusTransition(string(from), string(updated.Status))
	s.log(ctx).Info("Task status changed",
		zap.String("task_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(updated.Status)),
	)
	return updated, nil
}

func (s *ScheduleService) horizonFilter() model.TaskFilter {
	return model.TaskFilter{
		From: s.horizon.Start.Format(model.DateLayout),
		To:   s.horizon.End.Format(model.DateLayout),
	}
}

// materialize generates the horizon's drafts and assigns identities.
func (s *ScheduleService) materialize() ([]model.Task, error) {
	drafts, err := schedule.Generate(s.horizon, s.catalog)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	tasks := make([]model.Task, len(drafts))
	for i, d := range drafts {
		tasks[i] = model.NewTask(s.newID(), d, now)
		tasks[i].Seq = i
	}
	return tasks, nil
}

func (s *ScheduleService) lock(ctx context.Context) (func(), error) {
	s.initMu.Lock()
	if s.locker == nil {
		return s.initMu.Unlock, nil
	}
	release, err := s.locker.Acquire(ctx, "schedule:"+s.horizon.Fingerprint())
	if err != nil {
		s.initMu.Unlock()
		return nil, &StoreError{Op: "lock horizon", Err: err}
	}
	return func() {
		release()
		s.initMu.Unlock()
	}, nil
}

// Initialize generates and stores the horizon's schedule. If any task of
// the horizon already exists it stores nothing and returns the existing set.
func (s *ScheduleService) Initialize(ctx context.Context) (InitResult, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return InitResult{}, err
	}
	defer unlock()

	existing, err := s.tasks.ListTasks(ctx, s.horizonFilter())
	if err != nil {
		return InitResult{}, storeErr("list tasks", "", err)
	}
	if len(existing) > 0 {
		metrics.IncrementScheduleInitialization("existing")
		return InitResult{Tasks: existing}, nil
	}

	tasks, err := s.materialize()
	if err != nil {
		metrics.IncrementScheduleInitialization("invalid")
		s.log(ctx).Error("Failed to generate schedule", zap.Error(err))
		return InitResult{}, err
	}

	inserted, err := s.tasks.InsertSchedule(ctx, s.horizon, tasks)
	if err != nil {
		metrics.IncrementScheduleInitialization("error")
		return InitResult{}, storeErr("insert schedule", "", err)
	}
	if !inserted {
		// Another process won the race between our check and insert.
		metrics.IncrementScheduleInitialization("existing")
		existing, err := s.tasks.ListTasks(ctx, s.horizonFilter())
		if err != nil {
			return InitResult{}, storeErr("list tasks", "", err)
		}
		return InitResult{Tasks: existing}, nil
	}

	s.recordGenerated(tasks)
	metrics.IncrementScheduleInitialization("created")
	s.log(ctx).Info("Schedule initialized",
		zap.String("horizon", s.horizon.Fingerprint()),
		zap.Int("count", len(tasks)),
	)
	return InitResult{Created: true, Tasks: tasks}, nil
}

// Reinitialize discards the horizon's tasks, including their progress, and
// generates a fresh schedule.
func (s *ScheduleService) Reinitialize(ctx context.Context) (InitResult, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return InitResult{}, err
	}
	defer unlock()

	tasks, err := s.materialize()
	if err != nil {
		metrics.IncrementScheduleInitialization("invalid")
		return InitResult{}, err
	}

	removed, err := s.tasks.ReplaceSchedule(ctx, s.horizon, tasks)
	if err != nil {
		metrics.IncrementScheduleInitialization("error")
		return InitResult{}, storeErr("replace schedule", "", err)
	}

	s.recordGenerated(tasks)
	metrics.IncrementScheduleInitialization("reset")
	s.log(ctx).Warn("Schedule reinitialized",
		zap.String("horizon", s.horizon.Fingerprint()),
		zap.Int("removed", removed),
		zap.Int("count", len(tasks)),
	)
	return InitResult{Created: true, Removed: removed, Tasks: tasks}, nil
}

func (s *ScheduleService) recordGenerated(tasks []model.Task) {
	counts := make(map[model.Category]int, len(model.Categories))
	for _, t := range tasks {
		counts[t.Category]++
	}
	for c, n := range counts {
		metrics.AddTasksGenerated(string(c), n)
	}
}

func (s *ScheduleService) snapshot(ctx context.Context) ([]model.Task, error) {
	tasks, err := s.tasks.ListTasks(ctx, model.TaskFilter{})
	if err != nil {
		return nil, storeErr("list tasks", "", err)
	}
	return tasks, nil
}

func (s *ScheduleService) Dashboard(ctx context.Context) (model.DashboardOverview, error) {
	tasks, err := s.snapshot(ctx)
	if err != nil {
		return model.DashboardOverview{}, err
	}
	return progress.Dashboard(tasks, s.horizon, s.clock.Now()), nil
}

func (s *ScheduleService) WeeklyProgress(ctx context.Context) ([]model.WeeklyProgress, error) {
	tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return progress.WeeklyTrend(tasks, s.horizon), nil
}

// DailyProgress reports one date; an empty date means today.
func (s *ScheduleService) DailyProgress(ctx context.Context, date string) (model.DailyProgress, error) {
	day := model.Day(s.clock.Now())
	if date != "" {
		d, err := model.ParseDate(date)
		if err != nil {
			return model.DailyProgress{}, invalid("date", err)
		}
		day = d
	}

	tasks, err := s.tasks.ListTasks(ctx, model.TaskFilter{Date: day.Format(model.DateLayout)})
	if err != nil {
		return model.DailyProgress{}, storeErr("list tasks", "", err)
	}
	return progress.Daily(tasks, day), nil
}

func (s *ScheduleService) CategoryBreakdown(ctx context.Context) ([]model.CategoryStats, error) {
	tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return progress.CategoryBreakdown(tasks), nil
}

// Recommend asks the advisor about today's plan. The exchange is recorded
// only after the advisor answers.
func (s *ScheduleService) Recommend(ctx context.Context, userPrompt, extra string) (RecommendationResult, error) {
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return RecommendationResult{}, &ValidationError{Field: "user_prompt", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(userPrompt) > MaxPromptLength {
		return RecommendationResult{}, &ValidationError{
			Field:   "user_prompt",
			Message: fmt.Sprintf("must be at most %d characters", MaxPromptLength),
		}
	}
	if s.advisor == nil {
		metrics.IncrementRecommendation("unconfigured")
		return RecommendationResult{}, fmt.Errorf("%w: no advisor configured", ErrUpstreamAdvisor)
	}

	tasks, err := s.snapshot(ctx)
	if err != nil {
		return RecommendationResult{}, err
	}
	now := s.clock.Now()
	daily := progress.Daily(tasks, now)
	contextUsed := advisor.BuildContext(advisor.Snapshot{
		Date:    daily.Date,
		Today:   daily.Metrics,
		Week:    progress.CurrentWeek(tasks, s.horizon, now),
		Overall: progress.Overall(tasks),
		Tasks:   daily.Tasks,
		Extra:   extra,
	})

	text, err := s.advisor.Advise(ctx, advisor.SystemMessage, advisor.BuildPrompt(contextUsed, userPrompt))
	if err != nil {
		metrics.IncrementRecommendation("failed")
		s.log(ctx).Error("Advisor call failed", zap.Error(err))
		return RecommendationResult{}, fmt.Errorf("%w: %v", ErrUpstreamAdvisor, err)
	}

	rec := model.RecommendationRecord{
		ID:              s.newID(),
		Date:            daily.Date,
		UserPrompt:      userPrompt,
		Recommendations: []string{text},
		CreatedAt:       now.UTC(),
	}
	if err := s.recs.AppendRecommendation(ctx, rec); err != nil {
		metrics.IncrementRecommendation("failed")
		return RecommendationResult{}, storeErr("append recommendation", "", err)
	}

	metrics.IncrementRecommendation("success")
	return RecommendationResult{
		Date:            daily.Date,
		Recommendations: text,
		ContextUsed:     contextUsed,
	}, nil
}

// RecommendationHistory returns recent records, newest first.
func (s *ScheduleService) RecommendationHistory(ctx context.Context, limit int) ([]model.RecommendationRecord, error) {
	recs, err := s.recs.ListRecommendations(ctx, repository.ClampLimit(limit))
	if err != nil {
		return nil, storeErr("list recommendations", "", err)
	}
	return recs, nil
}

// Ping reports whether the task store is reachable.
func (s *ScheduleService) Ping(ctx context.Context) error {
	if err := s.tasks.Ping(ctx); err != nil {
		return &StoreError{Op: "ping", Err: err}
	}
	return nil
}
