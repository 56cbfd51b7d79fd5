package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"preptracker/internal/model"
	"preptracker/internal/repository/storetest"
	"preptracker/pkg/outbox"
)

// store joins the two repositories into the shape the conformance suite expects.
type store struct {
	*TaskRepository
	*RecommendationRepository
}

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "prep",
			"POSTGRES_PASSWORD": "prep",
			"POSTGRES_DB":       "preptracker",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://prep:prep@%s:%s/preptracker?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func pendingEvents(t *testing.T, pool *pgxpool.Pool) map[string]int {
	t.Helper()
	events, err := outbox.NewRepository(pool).GetPendingEvents(context.Background(), 1000)
	require.NoError(t, err)
	byKey := map[string]int{}
	for _, e := range events {
		byKey[e.RoutingKey]++
	}
	return byKey
}

func TestPostgresStore(t *testing.T) {
	pool := startPostgres(t)
	logger := zap.NewNop()
	s := store{
		TaskRepository:           NewTaskRepository(pool, logger),
		RecommendationRepository: NewRecommendationRepository(pool, logger),
	}

	storetest.Run(t, s)

	events := pendingEvents(t, pool)
	assert.Equal(t, 1, events["schedule.initialized"])
	assert.Equal(t, 1, events["schedule.reset"])
	// one completion plus nine advances
	assert.Equal(t, 10, events["task.status_changed"])
}

func TestPostgresStore_ConcurrentInsertSchedule(t *testing.T) {
	pool := startPostgres(t)
	repo := NewTaskRepository(pool, zap.NewNop())
	ctx := context.Background()
	h, err := model.NewHorizon("2025-09-01", "2025-09-14")
	require.NoError(t, err)

	const n = 5
	var wg sync.WaitGroup
	wins := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := repo.InsertSchedule(ctx, h, storetest.Tasks(t))
			assert.NoError(t, err)
			wins <- inserted
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	assert.Equal(t, 1, won)

	all, err := repo.ListTasks(ctx, model.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, len(storetest.Tasks(t)))
}
