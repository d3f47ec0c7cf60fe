package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/logger"
	timeadapter "github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/time"
)

func newTestScheduler() *Scheduler {
	return NewScheduler(logger.NewNoopLogger(), timeadapter.NewRealTimeProvider())
}

func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler()
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Register(Task{Interval: time.Second, Run: noop}))
	assert.Error(t, s.Register(Task{Name: "no-run", Interval: time.Second}))
	assert.Error(t, s.Register(Task{Name: "no-interval", Run: noop}))
	require.NoError(t, s.Register(Task{Name: "ok", Interval: time.Second, Run: noop}))

	s.Start(context.Background())
	defer s.Shutdown()

	assert.ErrorContains(t, s.Register(Task{Name: "late", Interval: time.Second, Run: noop}), "already started")
}

func TestScheduler_RunsTasksUntilShutdown(t *testing.T) {
	s := newTestScheduler()

	var runs atomic.Int32
	require.NoError(t, s.Register(Task{
		Name:     "counter",
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)

	s.Shutdown()
	stopped := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())
}

func TestScheduler_SurvivesFailuresAndPanics(t *testing.T) {
	s := newTestScheduler()

	var runs atomic.Int32
	require.NoError(t, s.Register(Task{
		Name:     "flaky",
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) error {
			switch runs.Add(1) {
			case 1:
				return errors.New("database unavailable")
			case 2:
				panic("unexpected nil")
			}
			return nil
		},
	}))

	s.Start(context.Background())
	defer s.Shutdown()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestScheduler_StopsWithParentContext(t *testing.T) {
	s := newTestScheduler()

	running := make(chan struct{})
	var calls atomic.Int32
	require.NoError(t, s.Register(Task{
		Name:     "blocking",
		Interval: time.Millisecond,
		Run: func(ctx context.Context) error {
			if calls.Add(1) == 1 {
				close(running)
			}
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	select {
	case <-running:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestScheduler_ShutdownWithoutStart(t *testing.T) {
	s := newTestScheduler()
	s.Shutdown()
}
