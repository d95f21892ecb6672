package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sftsync/internal/config"
	"sftsync/internal/model"
	"sftsync/internal/reconcile"
)

func main() {
	root := &cobra.Command{
		Use:          "syncer",
		Short:        "SFT and vault event log reconciler",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass",
		RunE:  runSync,
	}
	addSyncFlags(syncCmd.Flags())
	root.AddCommand(syncCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run reconciliation on a schedule and expose metrics",
		RunE:  runServe,
	}
	addSyncFlags(serveCmd.Flags())
	serveCmd.Flags().String("schedule", "@every 5m", "cron schedule for sync runs")
	serveCmd.Flags().String("metrics-addr", ":9090", "metrics listen address")
	serveCmd.Flags().Bool("run-on-start", true, "run once immediately on start")
	root.AddCommand(serveCmd)

	migrateCmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the Postgres schema",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE:      runMigrate,
	}
	migrateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	migrateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(migrateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSyncFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "RPC URL")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.Uint64("batch-size", 2000, "blocks per eth_getLogs call")
	flags.Int("max-retries", 5, "maximum retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.Duration("run-retention", 72*time.Hour, "age after which fulfilled cron run logs are pruned")
	flags.String("lock", config.LockAdvisory, "run lock backend (advisory, redis, none)")
	flags.String("redis-addr", "", "redis address for the redis run lock")
	flags.Duration("lock-ttl", 10*time.Minute, "redis run lock expiry")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.ValidateSync(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newApp(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer svc.Close()

	run, err := svc.engine.Run(ctx, model.TriggerManual)
	if err != nil && !errors.Is(err, reconcile.ErrRunInProgress) {
		return err
	}
	if run.Status == model.RunStatusRejected {
		return fmt.Errorf("sync rejected: %s", run.Message)
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
