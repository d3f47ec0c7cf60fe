package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
)

// Task is a periodic background job
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each registered task on its own goroutine and ticker.
// A task never overlaps with itself; a slow run delays the next tick.
type Scheduler struct {
	logger       coreport.Logger
	timeProvider coreport.TimeProvider

	mu      sync.Mutex
	tasks   []Task
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with no tasks
func NewScheduler(logger coreport.Logger, timeProvider coreport.TimeProvider) *Scheduler {
	return &Scheduler{
		logger:       logger,
		timeProvider: timeProvider,
	}
}

// Register adds a task. Tasks must be registered before Start.
func (s *Scheduler) Register(task Task) error {
	if task.Name == "" || task.Run == nil {
		return errors.New("task needs a name and a run function")
	}
	if task.Interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive, got: %s", task.Name, task.Interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("task %s: scheduler already started", task.Name)
	}
	s.tasks = append(s.tasks, task)
	return nil
}

// Start launches one worker per task. The workers stop when ctx is done or Shutdown is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runTask(ctx, task)
	}

	s.logger.Info("Background scheduler started", map[string]any{
		"tasks": len(s.tasks),
	})
}

// Shutdown cancels running tasks and waits for every worker to exit
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	s.logger.Info("Shutting down background scheduler", nil)
	cancel()
	s.wg.Wait()
	s.logger.Info("Background scheduler shut down successfully", nil)
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	defer s.wg.Done()

	s.logger.Info("Background task started", map[string]any{
		"task":     task.Name,
		"interval": task.Interval.String(),
	})

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Background task stopped", map[string]any{
				"task": task.Name,
			})
			return
		case <-ticker.C:
			s.runOnce(ctx, task)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, task Task) {
	start := s.timeProvider.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Background task panicked", map[string]any{
				"task":  task.Name,
				"panic": fmt.Sprint(r),
			})
		}
	}()

	if err := task.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("Background task failed", map[string]any{
			"task":     task.Name,
			"error":    err.Error(),
			"duration": s.timeProvider.Since(start).Std().String(),
		})
		return
	}

	s.logger.Debug("Background task finished", map[string]any{
		"task":     task.Name,
		"duration": s.timeProvider.Since(start).Std().String(),
	})
}
