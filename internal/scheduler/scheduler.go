// Package scheduler triggers sync runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const flightKey = "sync"

// RunFunc performs one sync pass. scheduled is true for cron ticks.
type RunFunc func(ctx context.Context, scheduled bool) error

// Scheduler runs RunFunc on a cron spec. Manual triggers and ticks share a
// single in-flight run.
type Scheduler struct {
	cron   *cron.Cron
	group  singleflight.Group
	run    RunFunc
	logger *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
	mu      sync.Mutex
	stopped bool
	pending sync.WaitGroup
}

// New builds a Scheduler. spec accepts standard cron expressions and
// descriptors such as "@every 5m".
func New(spec string, run RunFunc, logger *zap.Logger) (*Scheduler, error) {
	if run == nil {
		return nil, fmt.Errorf("run func is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		run:    run,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	cronLog := cronLogger{logger: logger.Sugar()}
	s.cron = cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		cancel()
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop halts new ticks and waits for in-flight runs, both scheduled and
// started by TriggerAsync. If ctx ends first, the runs are cancelled and
// Stop waits for them to return before reporting ctx's error.
func (s *Scheduler) Stop(ctx context.Context) error {
	var cronDone context.Context
	s.once.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		cronDone = s.cron.Stop()
	})
	if cronDone == nil {
		return nil
	}

	idle := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.pending.Wait()
		close(idle)
	}()

	select {
	case <-idle:
		s.cancel()
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		<-idle
		return fmt.Errorf("wait for in-flight run: %w", ctx.Err())
	}
}

// Trigger runs immediately, joining a run already in flight. shared reports
// whether the result came from another caller's run.
func (s *Scheduler) Trigger(ctx context.Context) (shared bool, err error) {
	return s.trigger(ctx, false)
}

// TriggerAsync starts an unscheduled run in the background. Stop waits for it.
func (s *Scheduler) TriggerAsync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if shared, err := s.trigger(s.ctx, false); err != nil {
			s.logger.Error("triggered sync failed", zap.Error(err), zap.Bool("shared", shared))
		}
	}()
}

func (s *Scheduler) trigger(ctx context.Context, scheduled bool) (bool, error) {
	_, err, shared := s.group.Do(flightKey, func() (interface{}, error) {
		return nil, s.run(ctx, scheduled)
	})
	return shared, err
}

func (s *Scheduler) tick() {
	shared, err := s.trigger(s.ctx, true)
	if err != nil {
		s.logger.Error("scheduled sync failed", zap.Error(err), zap.Bool("shared", shared))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
