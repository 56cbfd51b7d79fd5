// Package app wires configuration into stores, the advisor and the schedule
// service. It is shared by the server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"preptracker/internal/advisor"
	"preptracker/internal/clock"
	"preptracker/internal/config"
	"preptracker/internal/repository/memory"
	"preptracker/internal/repository/postgres"
	"preptracker/internal/repository/sqlite"
	"preptracker/internal/service"
	"preptracker/pkg/db"
	"preptracker/pkg/outbox"
	"preptracker/pkg/redis"
	"preptracker/pkg/util"
)

// Stores holds the persistence side chosen by store.driver.
type Stores struct {
	Tasks service.TaskStore
	Recs  service.RecommendationStore

	// Outbox is set only for postgres, the one driver that records events.
	Outbox *outbox.Repository

	closers []func()
}

func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := db.NewConnection(ctx, cfg.DB, logger)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("Using PostgreSQL store", zap.String("host", cfg.DB.Host), zap.String("db", cfg.DB.Name))
		return &Stores{
			Tasks:   postgres.NewTaskRepository(pool, logger),
			Recs:    postgres.NewRecommendationRepository(pool, logger),
			Outbox:  outbox.NewRepository(pool),
			closers: []func(){pool.Close},
		}, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Using SQLite store", zap.String("path", cfg.Store.SQLitePath))
		return &Stores{
			Tasks: store,
			Recs:  store,
			closers: []func(){func() {
				if err := store.Close(); err != nil {
					logger.Warn("Failed to close sqlite store", zap.Error(err))
				}
			}},
		}, nil

	case config.DriverMemory:
		logger.Warn("Using in-memory store, data is lost on exit")
		store := memory.NewStore()
		return &Stores{Tasks: store, Recs: store}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// NewAdvisor builds the configured advisor backend. It returns nil, with a
// warning, when the agent backend has no URL.
func NewAdvisor(cfg *config.Config, logger *zap.Logger) (service.Advisor, error) {
	switch cfg.Advisor.Backend {
	case config.AdvisorAnthropic:
		c, err := advisor.NewAnthropicClient(cfg.Advisor.APIKey, cfg.Advisor.Model, cfg.Advisor.MaxTokens, cfg.AdvisorTimeout())
		if err != nil {
			return nil, err
		}
		logger.Info("Using Anthropic advisor", zap.String("model", cfg.Advisor.Model))
		return c, nil
	case config.AdvisorAgent:
		if cfg.Advisor.URL == "" {
			logger.Warn("No advisor configured, recommendations are disabled")
			return nil, nil
		}
		return advisor.NewAgentClient(cfg.Advisor.URL, cfg.AdvisorTimeout(), logger), nil
	}
	return nil, fmt.Errorf("unknown advisor backend %q", cfg.Advisor.Backend)
}

// NewLocker connects to redis for the cross-process initialize lock. An
// empty address yields no locker.
func NewLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.Locker, *goredis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil, nil
	}
	rdb, err := redis.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Redis horizon lock enabled", zap.String("addr", cfg.Redis.Addr))
	return util.NewRedisLock(rdb, 30*time.Second, logger), rdb, nil
}

// NewService assembles the schedule service from cfg.
func NewService(cfg *config.Config, stores *Stores, logger *zap.Logger) (*service.ScheduleService, error) {
	h, err := cfg.Horizon()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	return service.NewScheduleService(stores.Tasks, stores.Recs, clock.NewSystem(loc), h, catalog, logger), nil
}
