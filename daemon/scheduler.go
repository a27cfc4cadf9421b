package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/petal-labs/toolrun/core"
	"github.com/petal-labs/toolrun/engine"
)

// SchedulerConfig configures the background schedule runner.
type SchedulerConfig struct {
	Engine *engine.Engine
	Config Config
	Logger *slog.Logger
}

// Scheduler executes configured tool schedules on their cron cadence.
// Overlapping fires of the same schedule are skipped while a prior run
// is still active.
type Scheduler struct {
	engine *engine.Engine
	config Config
	logger *slog.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	active  map[string]struct{}
	results map[string]core.ToolResult
}

// NewScheduler creates a scheduler instance. The config must already be
// validated against the engine's registry.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("daemon: scheduler engine is nil")
	}
	if len(cfg.Config.Schedules) == 0 {
		return nil, errors.New("daemon: scheduler config declares no schedules")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Scheduler{
		engine:  cfg.Engine,
		config:  cfg.Config,
		logger:  cfg.Logger,
		cron:    cron.New(cron.WithParser(standardCronParser), cron.WithLocation(time.UTC)),
		active:  map[string]struct{}{},
		results: map[string]core.ToolResult{},
	}

	for _, schedule := range cfg.Config.Schedules {
		schedule := schedule
		if _, err := s.cron.AddFunc(schedule.Cron, func() {
			s.fire(schedule)
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start begins cron dispatch in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts dispatch and waits for in-flight runs started by cron to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce fires every configured schedule immediately, synchronously.
// Useful for tests and for --once daemon invocations.
func (s *Scheduler) RunOnce() {
	for _, schedule := range s.config.Schedules {
		s.fire(schedule)
	}
}

// LastResult returns the most recent result for a schedule, if any.
func (s *Scheduler) LastResult(id string) (core.ToolResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[id]
	return result, ok
}

func (s *Scheduler) fire(schedule Schedule) {
	id := schedule.ID()

	s.mu.Lock()
	if _, busy := s.active[id]; busy {
		s.mu.Unlock()
		s.logger.Warn("schedule skipped, prior run still active", "schedule", id)
		return
	}
	s.active[id] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.active, id)
		s.mu.Unlock()
	}()

	ctx := context.Background()
	var result core.ToolResult
	if schedule.Mode == ModeSuspending {
		result = s.engine.RunSuspending(ctx, schedule.Tool, schedule.Args)
	} else {
		result = s.engine.RunBlocking(ctx, schedule.Tool, schedule.Args)
	}

	s.mu.Lock()
	s.results[id] = result
	s.mu.Unlock()

	if result.OK {
		s.logger.Info("schedule run completed", "schedule", id, "tool", schedule.Tool, "attempts", result.Attempts, "cached", result.Cached)
	} else {
		s.logger.Error("schedule run failed", "schedule", id, "tool", schedule.Tool, "error", result.ErrorMessage)
	}
}
