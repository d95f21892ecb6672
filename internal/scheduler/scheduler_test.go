package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New("not a schedule", func(context.Context, bool) error { return nil }, nil)
	require.Error(t, err)

	_, err = New("@every 5m", nil, nil)
	require.Error(t, err)
}

func TestTriggerSharesInFlightRun(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	started := make(chan struct{})
	s, err := New("@every 1h", func(context.Context, bool) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return nil
	}, nil)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = s.Trigger(context.Background())
	}()
	<-started

	results := make(chan bool, 1)
	go func() {
		shared, _ := s.Trigger(context.Background())
		results <- shared
	}()

	// Give the second caller time to join the flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, firstErr)
	require.True(t, <-results)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTriggerReturnsRunError(t *testing.T) {
	boom := errors.New("boom")
	s, err := New("@every 1h", func(context.Context, bool) error { return boom }, nil)
	require.NoError(t, err)

	shared, err := s.Trigger(context.Background())
	require.ErrorIs(t, err, boom)
	require.False(t, shared)
}

func TestStopIsIdempotent(t *testing.T) {
	s, err := New("@every 1h", func(context.Context, bool) error { return nil }, nil)
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestTriggerIsUnscheduled(t *testing.T) {
	var got []bool
	s, err := New("@every 1h", func(_ context.Context, scheduled bool) error {
		got = append(got, scheduled)
		return nil
	}, nil)
	require.NoError(t, err)

	_, err = s.Trigger(context.Background())
	require.NoError(t, err)
	s.tick()
	require.Equal(t, []bool{false, true}, got)
}

func TestStopWaitsForAsyncTrigger(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	s, err := New("@every 1h", func(context.Context, bool) error {
		close(started)
		<-release
		finished.Store(true)
		return nil
	}, nil)
	require.NoError(t, err)
	s.Start()

	s.TriggerAsync()
	<-started

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-stopped)
	require.True(t, finished.Load())
}

func TestStopCancelsRunOnTimeout(t *testing.T) {
	started := make(chan struct{})
	var runErr atomic.Value
	s, err := New("@every 1h", func(ctx context.Context, _ bool) error {
		close(started)
		<-ctx.Done()
		runErr.Store(ctx.Err())
		return ctx.Err()
	}, nil)
	require.NoError(t, err)
	s.Start()

	s.TriggerAsync()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = s.Stop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, runErr.Load().(error), context.Canceled)
}

func TestTriggerAsyncAfterStopIsNoop(t *testing.T) {
	var calls int32
	s, err := New("@every 1h", func(context.Context, bool) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, nil)
	require.NoError(t, err)
	s.Start()
	require.NoError(t, s.Stop(context.Background()))

	s.TriggerAsync()
	require.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
