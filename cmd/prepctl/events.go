package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"preptracker/internal/app"
	"preptracker/internal/service"
	"preptracker/pkg/mq"
)

func eventsCmd() *cobra.Command {
	var binding string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail domain events from the message broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.MQ.URL == "" {
				return fmt.Errorf("mq.url is not configured")
			}
			log := newLogger()
			defer log.Sync()

			// 临时队列：连接断开即删除
			consumer, err := mq.NewConsumer(cfg.MQ.URL, "", binding, log)
			if err != nil {
				return err
			}
			defer consumer.Close()

			consumer.SetHandler(func(_ context.Context, routingKey string, data json.RawMessage) error {
				fmt.Printf("%s %s %s\n", dim(time.Now().Format(time.TimeOnly)), boldCyan(routingKey), string(data))
				return nil
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Printf("tailing %s on %s, ctrl-c to stop\n", bold(binding), mq.ExchangeName)
			if err := consumer.StartConsuming(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&binding, "binding", "#", "Topic pattern, e.g. task.* or schedule.#")
	return cmd
}

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and repair the event outbox (postgres only)",
	}

	var id int64
	requeue := &cobra.Command{
		Use:   "requeue",
		Short: "Move failed events back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(_ *service.ScheduleService, stores *app.Stores) error {
				if stores.Outbox == nil {
					return fmt.Errorf("the configured store does not keep an outbox")
				}
				n, err := stores.Outbox.Requeue(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Printf("%s requeued %s events\n", boldGreen("✓"), bold(n))
				return nil
			})
		},
	}
	requeue.Flags().Int64Var(&id, "id", 0, "Requeue one event; 0 requeues every failed event")

	failed := &cobra.Command{
		Use:   "failed",
		Short: "List events that exhausted their retries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(_ *service.ScheduleService, stores *app.Stores) error {
				if stores.Outbox == nil {
					return fmt.Errorf("the configured store does not keep an outbox")
				}
				events, err := stores.Outbox.GetFailedEvents(cmd.Context(), 100)
				if err != nil {
					return err
				}
				for _, e := range events {
					fmt.Printf("%d  %s  %s  retries=%d\n", e.ID, boldRed(e.RoutingKey), e.AggregateID, e.RetryCount)
				}
				fmt.Printf("%s failed events\n", bold(len(events)))
				return nil
			})
		},
	}

	cmd.AddCommand(requeue, failed)
	return cmd
}
