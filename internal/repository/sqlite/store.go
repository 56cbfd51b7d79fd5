// Package sqlite is the single-file task store used for local runs and the
// operator CLI.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"preptracker/internal/model"
	"preptracker/internal/repository"
	"preptracker/pkg/otel"
)

const system = "sqlite"

type taskRow struct {
	ID          string `gorm:"primaryKey"`
	Date        string `gorm:"index;not null"`
	Seq         int    `gorm:"not null"`
	Category    string `gorm:"index;not null"`
	Description string `gorm:"not null"`
	Priority    int    `gorm:"not null"`
	WeekNumber  int    `gorm:"index;not null"`
	Phase       string `gorm:"not null"`
	Status      string `gorm:"index;not null"`
	CompletedAt *time.Time
	CreatedAt   time.Time
}

func (taskRow) TableName() string { return "tasks" }

type recommendationRow struct {
	ID              string    `gorm:"primaryKey"`
	Date            string    `gorm:"not null"`
	UserPrompt      string    `gorm:"not null"`
	Recommendations string    `gorm:"not null"`
	CreatedAt       time.Time `gorm:"index"`
}

func (recommendationRow) TableName() string { return "recommendations" }

func toRow(t model.Task) taskRow {
	return taskRow{
		ID:          t.ID,
		Date:        t.Date,
		Seq:         t.Seq,
		Category:    string(t.Category),
		Description: t.Description,
		Priority:    t.Priority,
		WeekNumber:  t.WeekNumber,
		Phase:       t.Phase,
		Status:      string(t.Status),
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
	}
}

func (r taskRow) toModel() model.Task {
	t := model.Task{
		ID:          r.ID,
		Date:        r.Date,
		Seq:         r.Seq,
		Category:    model.Category(r.Category),
		Description: r.Description,
		Priority:    r.Priority,
		WeekNumber:  r.WeekNumber,
		Phase:       r.Phase,
		Status:      model.Status(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.CompletedAt != nil {
		at := r.CompletedAt.UTC()
		t.CompletedAt = &at
	}
	return t
}

type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at dsn and migrates it.
func Open(dsn string, log *zap.Logger) (*Store, error) {
	if dsn == "" {
		dsn = "preptracker.db"
	}
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	gormLogger := logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// One connection: sqlite allows a single writer, and ":memory:" databases
	// are per connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&taskRow{}, &recommendationRow{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return &Store{db: db, logger: log}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

func horizonScope(h model.Horizon) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("date BETWEEN ? AND ?", h.Start.Format(model.DateLayout), h.End.Format(model.DateLayout))
	}
}

func rowsOf(tasks []model.Task) []taskRow {
	rows := make([]taskRow, len(tasks))
	for i, t := range tasks {
		rows[i] = toRow(t)
	}
	return rows
}

func (s *Store) InsertSchedule(ctx context.Context, h model.Horizon, tasks []model.Task) (bool, error) {
	inserted := false
	err := otel.Query(ctx, system, "insert_schedule", "tasks", func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing int64
			if err := tx.Model(&taskRow{}).Scopes(horizonScope(h)).Count(&existing).Error; err != nil {
				return fmt.Errorf("count tasks: %w", err)
			}
			if existing > 0 {
				return nil
			}
			if len(tasks) > 0 {
				if err := tx.CreateInBatches(rowsOf(tasks), 100).Error; err != nil {
					return fmt.Errorf("insert tasks: %w", err)
				}
			}
			inserted = true
			return nil
		})
	})
	if err != nil {
		s.logger.Error("Failed to insert schedule", zap.String("horizon", h.Fingerprint()), zap.Error(err))
		return false, err
	}
	s.logger.Info("Insert schedule finished",
		zap.String("horizon", h.Fingerprint()),
		zap.Bool("inserted", inserted),
		zap.Int("count", len(tasks)),
	)
	return inserted, nil
}

func (s *Store) ReplaceSchedule(ctx context.Context, h model.Horizon, tasks []model.Task) (int, error) {
	var removed int64
	err := otel.Query(ctx, system, "replace_schedule", "tasks", func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Scopes(horizonScope(h)).Delete(&taskRow{})
			if res.Error != nil {
				return fmt.Errorf("delete tasks: %w", res.Error)
			}
			removed = res.RowsAffected
			if len(tasks) > 0 {
				if err := tx.CreateInBatches(rowsOf(tasks), 100).Error; err != nil {
					return fmt.Errorf("insert tasks: %w", err)
				}
			}
			return nil
		})
	})
	if err != nil {
		s.logger.Error("Failed to replace schedule", zap.String("horizon", h.Fingerprint()), zap.Error(err))
		return 0, err
	}
	s.logger.Info("Schedule replaced",
		zap.String("horizon", h.Fingerprint()),
		zap.Int64("removed", removed),
		zap.Int("count", len(tasks)),
	)
	return int(removed), nil
}

func (s *Store) ListTasks(ctx context.Context, f model.TaskFilter) ([]model.Task, error) {
	var rows []taskRow
	err := otel.Query(ctx, system, "list", "tasks", func(ctx context.Context) error {
		q := s.db.WithContext(ctx).Model(&taskRow{})
		if f.Category != "" {
			q = q.Where("category = ?", string(f.Category))
		}
		if f.Status != "" {
			q = q.Where("status = ?", string(f.Status))
		}
		if f.Date != "" {
			q = q.Where("date = ?", f.Date)
		}
		if f.Week != 0 {
			q = q.Where("week_number = ?", f.Week)
		}
		if f.From != "" {
			q = q.Where("date >= ?", f.From)
		}
		if f.To != "" {
			q = q.Where("date <= ?", f.To)
		}
		return q.Order("date ASC, seq ASC").Find(&rows).Error
	})
	if err != nil {
		s.logger.Error("Failed to list tasks", zap.Error(err))
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]model.Task, len(rows))
	for i, r := range rows {
		tasks[i] = r.toModel()
	}
	return tasks, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (model.Task, error) {
	var row taskRow
	err := otel.Query(ctx, system, "get", "tasks", func(ctx context.Context) error {
		return s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Task{}, repository.ErrTaskNotFound
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("get task: %w", err)
	}
	return row.toModel(), nil
}

// UpdateTask runs the read-modify-write inside one transaction; with a single
// connection that serializes concurrent updates.
func (s *Store) UpdateTask(ctx context.Context, id string, fn func(*model.Task) error) (model.Task, error) {
	var updated model.Task
	err := otel.Query(ctx, system, "update", "tasks", func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var row taskRow
			if err := tx.First(&row, "id = ?", id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return repository.ErrTaskNotFound
				}
				return fmt.Errorf("load task: %w", err)
			}
			task := row.toModel()
			if err := fn(&task); err != nil {
				return err
			}
			if err := tx.Save(ptr(toRow(task))).Error; err != nil {
				return fmt.Errorf("save task: %w", err)
			}
			updated = task
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, repository.ErrTaskNotFound) {
			s.logger.Error("Failed to update task", zap.String("task_id", id), zap.Error(err))
		}
		return model.Task{}, err
	}
	s.logger.Debug("Task updated", zap.String("task_id", id), zap.String("status", string(updated.Status)))
	return updated, nil
}

func ptr[T any](v T) *T { return &v }

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) AppendRecommendation(ctx context.Context, rec model.RecommendationRecord) error {
	body, err := json.Marshal(rec.Recommendations)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	row := recommendationRow{
		ID:              rec.ID,
		Date:            rec.Date,
		UserPrompt:      rec.UserPrompt,
		Recommendations: string(body),
		CreatedAt:       rec.CreatedAt,
	}
	err = otel.Query(ctx, system, "insert", "recommendations", func(ctx context.Context) error {
		return s.db.WithContext(ctx).Create(&row).Error
	})
	if err != nil {
		s.logger.Error("Failed to append recommendation", zap.Error(err))
		return fmt.Errorf("append recommendation: %w", err)
	}
	return nil
}

func (s *Store) ListRecommendations(ctx context.Context, limit int) ([]model.RecommendationRecord, error) {
	var rows []recommendationRow
	err := otel.Query(ctx, system, "list", "recommendations", func(ctx context.Context) error {
		return s.db.WithContext(ctx).
			Order("created_at DESC").
			Limit(repository.ClampLimit(limit)).
			Find(&rows).Error
	})
	if err != nil {
		s.logger.Error("Failed to list recommendations", zap.Error(err))
		return nil, fmt.Errorf("list recommendations: %w", err)
	}

	recs := make([]model.RecommendationRecord, len(rows))
	for i, r := range rows {
		recs[i] = model.RecommendationRecord{
			ID:         r.ID,
			Date:       r.Date,
			UserPrompt: r.UserPrompt,
			CreatedAt:  r.CreatedAt.UTC(),
		}
		if err := json.Unmarshal([]byte(r.Recommendations), &recs[i].Recommendations); err != nil {
			return nil, fmt.Errorf("decode recommendations %s: %w", r.ID, err)
		}
	}
	return recs, nil
}
