// Package postgres is the production task store on PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"preptracker/internal/model"
	"preptracker/internal/repository"
	"preptracker/pkg/mq"
	"preptracker/pkg/otel"
	"preptracker/pkg/outbox"
	"preptracker/pkg/trace"
)

const system = "postgresql"

//go:embed schema.sql
var schema string

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

type ScheduleInitializedEvent struct {
	Horizon string `json:"horizon"`
	Count   int    `json:"count"`
	Removed int    `json:"removed,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type TaskStatusChangedEvent struct {
	TaskID      string     `json:"task_id"`
	Date        string     `json:"date"`
	Category    string     `json:"category"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	CompletedAt *time.Time `json:"completed_at"`
	TraceID     string     `json:"trace_id,omitempty"`
}

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

const taskColumns = `id, to_char(task_date, 'YYYY-MM-DD'), seq, category, description, priority,
        week_number, phase, status, completed_at, created_at`

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	var category, status string
	err := row.Scan(
		&t.ID,
		&t.Date,
		&t.Seq,
		&category,
		&t.Description,
		&t.Priority,
		&t.WeekNumber,
		&t.Phase,
		&status,
		&t.CompletedAt,
		&t.CreatedAt,
	)
	t.Category = model.Category(category)
	t.Status = model.Status(status)
	if t.CompletedAt != nil {
		at := t.CompletedAt.UTC()
		t.CompletedAt = &at
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, err
}

func (r *TaskRepository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

func insertTasks(ctx context.Context, tx pgx.Tx, tasks []model.Task) error {
	batch := &pgx.Batch{}
	for _, t := range tasks {
		batch.Queue(`
            INSERT INTO tasks (id, task_date, seq, category, description, priority,
                               week_number, phase, status, completed_at, created_at)
            VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        `, t.ID, t.Date, t.Seq, string(t.Category), t.Description, t.Priority,
			t.WeekNumber, t.Phase, string(t.Status), t.CompletedAt, t.CreatedAt)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// lockHorizon serializes schedule writers for the horizon until the tx ends.
func lockHorizon(ctx context.Context, tx pgx.Tx, h model.Horizon) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, h.Fingerprint())
	return err
}

// InsertSchedule inserts tasks only if the horizon holds no task yet. The
// check and the insert run under an advisory lock keyed by the horizon
// fingerprint, so concurrent initializers cannot both succeed.
func (r *TaskRepository) InsertSchedule(ctx context.Context, h model.Horizon, tasks []model.Task) (bool, error) {
	r.logger.Debug("Inserting schedule",
		zap.String("horizon", h.Fingerprint()),
		zap.Int("count", len(tasks)),
	)

	inserted := false
	err := otel.Query(ctx, system, "insert_schedule", "tasks", func(ctx context.Context) error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			if err := lockHorizon(ctx, tx, h); err != nil {
				return fmt.Errorf("failed to lock horizon: %w", err)
			}

			var populated bool
			err := tx.QueryRow(ctx, `
                SELECT EXISTS (SELECT 1 FROM tasks WHERE task_date BETWEEN $1::date AND $2::date)
            `, h.Start.Format(model.DateLayout), h.End.Format(model.DateLayout)).Scan(&populated)
			if err != nil {
				return fmt.Errorf("failed to check horizon: %w", err)
			}
			if populated {
				return nil
			}

			if err := insertTasks(ctx, tx, tasks); err != nil {
				return fmt.Errorf("failed to insert tasks: %w", err)
			}
			inserted = true

			return outbox.Append(ctx, tx, "schedule", h.Fingerprint(), mq.RoutingScheduleInitialized,
				ScheduleInitializedEvent{
					Horizon: h.Fingerprint(),
					Count:   len(tasks),
					TraceID: trace.FromContext(ctx),
				})
		})
	})
	if err != nil {
		r.logger.Error("Failed to insert schedule",
			zap.Error(err),
			zap.String("horizon", h.Fingerprint()),
		)
		return false, err
	}

	r.logger.Info("Insert schedule finished",
		zap.String("horizon", h.Fingerprint()),
		zap.Bool("inserted", inserted),
	)
	return inserted, nil
}

// ReplaceSchedule deletes the horizon's tasks and inserts tasks in one tx.
func (r *TaskRepository) ReplaceSchedule(ctx context.Context, h model.Horizon, tasks []model.Task) (int, error) {
	r.logger.Debug("Replacing schedule", zap.String("horizon", h.Fingerprint()))

	var removed int64
	err := otel.Query(ctx, system, "replace_schedule", "tasks", func(ctx context.Context) error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			if err := lockHorizon(ctx, tx, h); err != nil {
				return fmt.Errorf("failed to lock horizon: %w", err)
			}

			tag, err := tx.Exec(ctx, `
                DELETE FROM tasks WHERE task_date BETWEEN $1::date AND $2::date
            `, h.Start.Format(model.DateLayout), h.End.Format(model.DateLayout))
			if err != nil {
				return fmt.Errorf("failed to delete tasks: %w", err)
			}
			removed = tag.RowsAffected()

			if err := insertTasks(ctx, tx, tasks); err != nil {
				return fmt.Errorf("failed to insert tasks: %w", err)
			}

			return outbox.Append(ctx, tx, "schedule", h.Fingerprint(), mq.RoutingScheduleReset,
				ScheduleInitializedEvent{
					Horizon: h.Fingerprint(),
					Count:   len(tasks),
					Removed: int(removed),
					TraceID: trace.FromContext(ctx),
				})
		})
	})
	if err != nil {
		r.logger.Error("Failed to replace schedule",
			zap.Error(err),
			zap.String("horizon", h.Fingerprint()),
		)
		return 0, err
	}

	r.logger.Info("Schedule replaced",
		zap.String("horizon", h.Fingerprint()),
		zap.Int64("removed", removed),
		zap.Int("count", len(tasks)),
	)
	return int(removed), nil
}

func (r *TaskRepository) ListTasks(ctx context.Context, f model.TaskFilter) ([]model.Task, error) {
	r.logger.Debug("Listing tasks", zap.Any("filter", f))

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE TRUE`
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+clause, len(args))
	}
	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Date != "" {
		add("task_date = $%d::date", f.Date)
	}
	if f.Week != 0 {
		add("week_number = $%d", f.Week)
	}
	if f.From != "" {
		add("task_date >= $%d::date", f.From)
	}
	if f.To != "" {
		add("task_date <= $%d::date", f.To)
	}
	query += ` ORDER BY task_date ASC, seq ASC`

	tasks := []model.Task{}
	err := otel.Query(ctx, system, "list", "tasks", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return err
			}
			tasks = append(tasks, t)
		}
		return rows.Err()
	})
	if err != nil {
		r.logger.Error("Failed to list tasks", zap.Error(err))
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	r.logger.Debug("Tasks listed successfully", zap.Int("count", len(tasks)))
	return tasks, nil
}

func (r *TaskRepository) GetTask(ctx context.Context, id string) (model.Task, error) {
	var t model.Task
	err := otel.Query(ctx, system, "get", "tasks", func(ctx context.Context) error {
		var err error
		t, err = scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, repository.ErrTaskNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get task", zap.Error(err), zap.String("task_id", id))
		return model.Task{}, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// UpdateTask locks the row, applies fn and writes the status fields back.
// A status change also records a task.status_changed outbox event.
func (r *TaskRepository) UpdateTask(ctx context.Context, id string, fn func(*model.Task) error) (model.Task, error) {
	r.logger.Debug("Updating task", zap.String("task_id", id))

	var updated model.Task
	err := otel.Query(ctx, system, "update", "tasks", func(ctx context.Context) error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			current, err := scanTask(tx.QueryRow(ctx,
				`SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrTaskNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to load task: %w", err)
			}

			updated = current
			if err := fn(&updated); err != nil {
				return err
			}

			if _, err := tx.Exec(ctx, `
                UPDATE tasks SET status = $2, completed_at = $3 WHERE id = $1
            `, id, string(updated.Status), updated.CompletedAt); err != nil {
				return fmt.Errorf("failed to update task: %w", err)
			}

			if updated.Status == current.Status {
				return nil
			}
			return outbox.Append(ctx, tx, "task", id, mq.RoutingTaskStatusChanged, TaskStatusChangedEvent{
				TaskID:      id,
				Date:        updated.Date,
				Category:    string(updated.Category),
				From:        string(current.Status),
				To:          string(updated.Status),
				CompletedAt: updated.CompletedAt,
				TraceID:     trace.FromContext(ctx),
			})
		})
	})
	if err != nil {
		if !errors.Is(err, repository.ErrTaskNotFound) {
			r.logger.Error("Failed to update task", zap.Error(err), zap.String("task_id", id))
		}
		return model.Task{}, err
	}

	r.logger.Info("Task updated successfully",
		zap.String("task_id", id),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

func (r *TaskRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
