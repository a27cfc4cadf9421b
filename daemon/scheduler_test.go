package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petal-labs/toolrun/cache"
	"github.com/petal-labs/toolrun/core"
	"github.com/petal-labs/toolrun/engine"
	"github.com/petal-labs/toolrun/trace"
)

func newSchedulerEngine(tools ...core.Tool) *engine.Engine {
	return engine.New(engine.Config{
		Registry: core.NewRegistry(tools...),
		Cache:    cache.NewMemoryStore(),
		Sink:     trace.NewMemorySink(),
	})
}

func TestNewSchedulerRejectsBadConfig(t *testing.T) {
	if _, err := NewScheduler(SchedulerConfig{}); err == nil {
		t.Error("nil engine should be rejected")
	}

	eng := newSchedulerEngine()
	if _, err := NewScheduler(SchedulerConfig{Engine: eng}); err == nil {
		t.Error("empty schedule list should be rejected")
	}
}

func TestSchedulerRunOnce(t *testing.T) {
	var calls atomic.Int32
	eng := newSchedulerEngine(core.Tool{
		Name: "ping",
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			calls.Add(1)
			return map[string]any{"pong": true}, nil
		},
	})

	s, err := NewScheduler(SchedulerConfig{
		Engine: eng,
		Config: Config{Schedules: []Schedule{
			{Name: "ping-job", Tool: "ping", Cron: "* * * * *"},
		}},
	})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	s.RunOnce()

	if calls.Load() != 1 {
		t.Errorf("tool ran %d times, want 1", calls.Load())
	}
	result, ok := s.LastResult("ping-job")
	if !ok || !result.OK || result.Attempts != 1 {
		t.Errorf("LastResult = %+v, ok = %v", result, ok)
	}
}

func TestSchedulerSuspendingMode(t *testing.T) {
	eng := newSchedulerEngine(core.Tool{
		Name: "async",
		AsyncFn: func(ctx context.Context, args map[string]any) (any, error) {
			return "done", nil
		},
	})

	s, err := NewScheduler(SchedulerConfig{
		Engine: eng,
		Config: Config{Schedules: []Schedule{
			{Tool: "async", Cron: "* * * * *", Mode: ModeSuspending},
		}},
	})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	s.RunOnce()

	result, ok := s.LastResult("async")
	if !ok || !result.OK || result.Output != "done" {
		t.Errorf("LastResult = %+v, ok = %v", result, ok)
	}
}

func TestSchedulerRecordsFailures(t *testing.T) {
	eng := newSchedulerEngine()

	s, err := NewScheduler(SchedulerConfig{
		Engine: eng,
		Config: Config{Schedules: []Schedule{
			{Tool: "ghost", Cron: "* * * * *"},
		}},
	})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	s.RunOnce()

	result, ok := s.LastResult("ghost")
	if !ok || result.OK || result.ErrorMessage != "unknown_tool" {
		t.Errorf("LastResult = %+v, ok = %v", result, ok)
	}
}

func TestSchedulerSkipsOverlappingFire(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	eng := newSchedulerEngine(core.Tool{
		Name: "slow",
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			calls.Add(1)
			<-release
			return nil, nil
		},
	})

	s, err := NewScheduler(SchedulerConfig{
		Engine: eng,
		Config: Config{Schedules: []Schedule{
			{Tool: "slow", Cron: "* * * * *"},
		}},
	})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.RunOnce()
	}()

	// Wait for the first fire to be in flight, then fire again: the overlap
	// must be skipped rather than queued.
	deadline := time.After(time.Second)
	for calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first fire never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	s.RunOnce()

	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("tool ran %d times, want 1 (overlap skipped)", calls.Load())
	}
}

func TestSchedulerStartStop(t *testing.T) {
	eng := newSchedulerEngine(core.Tool{
		Name: "noop",
		Fn:   func(ctx context.Context, args map[string]any) (any, error) { return nil, nil },
	})

	s, err := NewScheduler(SchedulerConfig{
		Engine: eng,
		Config: Config{Schedules: []Schedule{{Tool: "noop", Cron: "* * * * *"}}},
	})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
