package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sftsync/internal/chain"
	"sftsync/internal/config"
	"sftsync/internal/lock"
	"sftsync/internal/reconcile"
	"sftsync/internal/sft"
	"sftsync/internal/storage/postgres"
)

// app owns the engine and the connections behind it.
type app struct {
	engine  *reconcile.Engine
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.closers = append(a.closers, chainClient.Close)

	chainID, err := chainClient.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	st, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, st.Close)

	classifier, err := sft.NewClassifier()
	if err != nil {
		return nil, err
	}

	diag, err := reconcile.NewDiagnostics(reg, logger)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	fetcher := chain.NewLogFetcher(chain.FetcherConfig{
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, logger)

	opts := []reconcile.Option{
		reconcile.WithEarningRecorder(st),
		reconcile.WithDiagnostics(diag),
	}
	switch cfg.Lock {
	case config.LockAdvisory:
		opts = append(opts, reconcile.WithLocker(st.AdvisoryLock()))
	case config.LockRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		opts = append(opts, reconcile.WithLocker(lock.NewRedisLock(rdb)))
	}

	a.engine, err = reconcile.NewEngine(reconcile.Config{
		RunRetention: cfg.RunRetention,
		LockTTL:      cfg.LockTTL,
	}, st, fetcher, classifier, logger, opts...)
	if err != nil {
		return nil, err
	}

	logger.Info("syncer ready",
		zap.String("rpc", cfg.RPCURL),
		zap.String("chain_id", chainID.String()),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("lock", cfg.Lock),
		zap.Duration("run_retention", cfg.RunRetention),
	)
	return a, nil
}
