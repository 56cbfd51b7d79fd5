package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"preptracker/internal/app"
	"preptracker/internal/config"
	"preptracker/internal/service"
	pkgconfig "preptracker/pkg/config"
	"preptracker/pkg/logger"
)

var (
	flagEnv       string
	flagConfigDir string
	flagVerbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "prepctl",
		Short: "Operate the preparation plan tracker",
		Long: `prepctl previews the generated calendar, initializes or resets the
schedule in the configured store, prints progress and tails domain events.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", pkgconfig.GetConfigEnv(), "Config environment (base.yaml + <env>.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "config", "Config directory")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(initializeCmd())
	rootCmd.AddCommand(reinitializeCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(outboxCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.LoadFrom(flagEnv, flagConfigDir)
}

func newLogger() *zap.Logger {
	level := "warn"
	if flagVerbose {
		level = "debug"
	}
	return logger.NewLogger(level)
}

// withService opens the configured store and runs fn against the service.
func withService(ctx context.Context, fn func(*service.ScheduleService, *app.Stores) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()
	defer log.Sync()

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	svc, err := app.NewService(cfg, stores, log)
	if err != nil {
		return err
	}
	locker, rdb, err := app.NewLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	if locker != nil {
		svc.WithLocker(locker)
		defer rdb.Close()
	}
	return fn(svc, stores)
}
