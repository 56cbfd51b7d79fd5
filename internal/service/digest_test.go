package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"preptracker/internal/model"
)

type recordingPublisher struct {
	keys     []string
	payloads []any
}

func (p *recordingPublisher) PublishWithContext(_ context.Context, key string, payload any) error {
	p.keys = append(p.keys, key)
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestDigestJob_Run(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Initialize(ctx)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, res.Tasks[0].ID, string(model.StatusCompleted))
	require.NoError(t, err)

	pub := &recordingPublisher{}
	job := NewDigestJob(f.svc, time.UTC, zap.NewNop()).WithPublisher(pub)

	d, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-09-01", d.Date)
	assert.Equal(t, 1, d.Today.CompletedTasks)
	assert.Len(t, d.Open, 2)
	assert.Equal(t, []string{"progress.daily_digest"}, pub.keys)
}

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec("07:30")
	require.NoError(t, err)
	assert.Equal(t, "0 30 7 * * *", spec)

	for _, bad := range []string{"7", "24:00", "07:60", "aa:bb"} {
		_, err := buildDailySpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestDigestJob_ScheduleDaily(t *testing.T) {
	f := newFixture(t)
	job := NewDigestJob(f.svc, time.UTC, zap.NewNop())
	_, err := job.ScheduleDaily("21:00")
	require.NoError(t, err)
	_, err = job.ScheduleDaily("nine")
	assert.Error(t, err)
}
