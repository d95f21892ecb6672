package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sftsync/internal/model"
	"sftsync/internal/reconcile"
	"sftsync/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.ValidateSync(); err != nil {
		return err
	}
	runOnStart, _ := cmd.Flags().GetBool("run-on-start")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := newApp(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer svc.Close()

	sched, err := scheduler.New(cfg.Schedule, func(ctx context.Context, scheduled bool) error {
		trigger := model.TriggerManual
		if scheduled {
			trigger = model.TriggerCronJob
		}
		_, err := svc.engine.Run(ctx, trigger)
		if errors.Is(err, reconcile.ErrRunInProgress) {
			return nil
		}
		return err
	}, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sched.Start()
	if runOnStart {
		sched.TriggerAsync()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err = <-serverErr:
		logger.Error("metrics server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if stopErr := sched.Stop(shutdownCtx); stopErr != nil {
		logger.Warn("scheduler stop", zap.Error(stopErr))
	}
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("metrics server shutdown", zap.Error(shutdownErr))
	}
	return err
}
