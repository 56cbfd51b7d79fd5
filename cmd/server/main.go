package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"preptracker/internal/app"
	"preptracker/internal/config"
	"preptracker/internal/handler"
	"preptracker/internal/httpserver"
	"preptracker/internal/service"
	"preptracker/pkg/logger"
	"preptracker/pkg/mq"
	"preptracker/pkg/otel"
	"preptracker/pkg/outbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger 尚未初始化
		panic(err)
	}

	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()

	log.Info("Starting preptracker...",
		zap.String("env", cfg.Env),
		zap.String("store", cfg.Store.Driver),
		zap.String("horizon", cfg.Schedule.Start+".."+cfg.Schedule.End),
		zap.String("timezone", cfg.Schedule.Timezone),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// OpenTelemetry
	shutdownOtel, err := otel.Init(otel.Config{
		ServiceName:    "preptracker",
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.Otel.Endpoint,
		Enabled:        cfg.Otel.Enabled,
		SampleRatio:    1,
	}, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownOtel()

	// Store
	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to init store", zap.Error(err))
	}
	defer stores.Close()

	svc, err := app.NewService(cfg, stores, log)
	if err != nil {
		log.Fatal("Failed to init schedule service", zap.Error(err))
	}

	adv, err := app.NewAdvisor(cfg, log)
	if err != nil {
		log.Fatal("Failed to init advisor", zap.Error(err))
	}
	if adv != nil {
		svc.WithAdvisor(adv)
	}

	// Redis (optional cross-process lock)
	locker, rdb, err := app.NewLocker(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to init redis", zap.Error(err))
	}
	if locker != nil {
		svc.WithLocker(locker)
		defer rdb.Close()
	}

	// MQ publisher + outbox dispatcher
	var publisher *mq.Publisher
	var checks []httpserver.ReadinessCheck
	if cfg.MQ.URL != "" {
		publisher, err = mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		defer publisher.Close()
		checks = append(checks, httpserver.ReadinessCheck{
			Name:  "mq",
			Check: func(context.Context) bool { return publisher.IsConnected() },
		})

		if stores.Outbox != nil {
			dispatcher := outbox.NewDispatcher(stores.Outbox, publisher, log).
				WithInterval(cfg.OutboxInterval()).
				WithMaxRetries(cfg.Outbox.MaxRetries).
				WithBatchSize(cfg.Outbox.BatchSize)
			go dispatcher.Start(ctx)
			log.Info("Outbox dispatcher started", zap.Duration("interval", cfg.OutboxInterval()))
		}
	} else if stores.Outbox != nil {
		log.Warn("MQ not configured, outbox events stay pending")
	}

	// Daily digest
	var digest *service.DigestJob
	if cfg.Digest.Enabled {
		loc, _ := cfg.Location()
		digest = service.NewDigestJob(svc, loc, log)
		if publisher != nil {
			digest.WithPublisher(publisher)
		}
		if _, err := digest.ScheduleDaily(cfg.Digest.Time); err != nil {
			log.Fatal("Invalid digest time", zap.String("time", cfg.Digest.Time), zap.Error(err))
		}
		digest.Start()
		log.Info("Daily digest scheduled", zap.String("time", cfg.Digest.Time))
	}

	// HTTP
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	handlers := httpserver.Handlers{
		Tasks:    handler.NewTaskHandler(svc, log),
		Progress: handler.NewProgressHandler(svc, log),
		Advisor:  handler.NewAdvisorHandler(svc, cfg.Advisor.QuickPrompts, log),
	}
	if stores.Outbox != nil {
		handlers.Admin = handler.NewAdminHandler(stores.Outbox, log)
	}
	router := httpserver.NewRouter(handlers, svc, log, checks...)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("preptracker is fully initialized and running")

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down preptracker gracefully...")

	if digest != nil {
		digest.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	// 停止 outbox dispatcher
	cancel()

	log.Info("preptracker shutdown complete")
}
