package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"preptracker/internal/model"
	"preptracker/pkg/mq"
)

// EventPublisher is the outgoing side of the digest job, usually *mq.Publisher.
type EventPublisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// Digest summarizes one day of progress.
type Digest struct {
	Date        string          `json:"date"`
	Today       model.Metrics   `json:"today"`
	CurrentWeek model.WeekBlock `json:"current_week"`
	Overall     model.Metrics   `json:"overall"`
	Open        []model.Task    `json:"open_tasks"`
}

// DigestJob logs, and optionally publishes, a daily progress digest on a
// cron schedule.
type DigestJob struct {
	svc       *ScheduleService
	publisher EventPublisher
	cron      *cron.Cron
	logger    *zap.Logger
	timeout   time.Duration
}

func NewDigestJob(svc *ScheduleService, loc *time.Location, logger *zap.Logger) *DigestJob {
	return &DigestJob{
		svc:     svc,
		cron:    cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

func (j *DigestJob) WithPublisher(p EventPublisher) *DigestJob {
	j.publisher = p
	return j
}

// ScheduleDaily registers the digest at the given HH:MM.
func (j *DigestJob) ScheduleDaily(timeStr string) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return j.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		if _, err := j.Run(ctx); err != nil {
			j.logger.Error("Daily digest failed", zap.Error(err))
		}
	})
}

func (j *DigestJob) Start() {
	j.cron.Start()
}

func (j *DigestJob) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// Run builds today's digest, logs it and publishes it when a publisher is set.
func (j *DigestJob) Run(ctx context.Context) (Digest, error) {
	overview, err := j.svc.Dashboard(ctx)
	if err != nil {
		return Digest{}, err
	}

	d := Digest{
		Date:        overview.Today.Date,
		Today:       overview.Today.Metrics,
		CurrentWeek: overview.CurrentWeek,
		Overall:     overview.Overview,
		Open:        make([]model.Task, 0),
	}
	for _, t := range overview.Today.Tasks {
		if t.Status != model.StatusCompleted {
			d.Open = append(d.Open, t)
		}
	}

	j.logger.Info("Daily digest",
		zap.String("date", d.Date),
		zap.Int("today_completed", d.Today.CompletedTasks),
		zap.Int("today_total", d.Today.TotalTasks),
		zap.Int("week", d.CurrentWeek.WeekNumber),
		zap.Float64("overall_pct", d.Overall.CompletionPercentage),
		zap.Int("open", len(d.Open)),
	)

	if j.publisher != nil {
		if err := j.publisher.PublishWithContext(ctx, mq.RoutingProgressDigest, d); err != nil {
			return d, fmt.Errorf("publish digest: %w", err)
		}
	}
	return d, nil
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
