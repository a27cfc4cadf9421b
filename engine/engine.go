// Package engine implements the tool-invocation pipeline: resolve, parse and
// coerce arguments, check the result cache, run input guards, invoke with
// bounded retries under a blocking or suspending strategy, normalize the
// output, run output guards, and store the result. Every stage emits trace
// events in a fixed order, and every failure is reported to the caller as a
// classified ToolResult rather than an error.
package engine

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/petal-labs/toolrun/cache"
	"github.com/petal-labs/toolrun/core"
	"github.com/petal-labs/toolrun/trace"
)

// DefaultAsyncTimeout bounds a single suspending attempt when neither the
// tool nor the engine configures one.
const DefaultAsyncTimeout = 200 * time.Millisecond

// Config configures an Engine. Zero-value fields get defaults in New.
type Config struct {
	// Registry resolves tool names. Required.
	Registry *core.Registry

	// Cache is the result cache. Defaults to cache.Shared, so engines built
	// without an explicit cache observe each other's entries within the
	// process.
	Cache cache.Store

	// Sink records trace events. Defaults to a fresh MemorySink per engine.
	Sink trace.Sink

	// InputGuards run against the parsed arguments before invocation,
	// in order.
	InputGuards []core.Guard

	// OutputGuards run against the normalized output after invocation,
	// in order.
	OutputGuards []core.Guard

	// Observer receives invocation and retry observations. Optional.
	Observer Observer

	// AsyncTimeout bounds suspending attempts for tools without their own
	// Timeout. Defaults to DefaultAsyncTimeout.
	AsyncTimeout time.Duration
}

// Engine orchestrates the invocation pipeline. The two entry points,
// RunBlocking and RunSuspending, share every stage except the invocation
// strategy.
type Engine struct {
	registry     *core.Registry
	cache        cache.Store
	sink         trace.Sink
	inputGuards  []core.Guard
	outputGuards []core.Guard
	observer     Observer
	asyncTimeout time.Duration
}

// New creates an engine from the given configuration.
func New(cfg Config) *Engine {
	if cfg.Registry == nil {
		cfg.Registry = core.NewRegistry()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.Shared
	}
	if cfg.Sink == nil {
		cfg.Sink = trace.NewMemorySink()
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	if cfg.AsyncTimeout <= 0 {
		cfg.AsyncTimeout = DefaultAsyncTimeout
	}

	return &Engine{
		registry:     cfg.Registry,
		cache:        cfg.Cache,
		sink:         cfg.Sink,
		inputGuards:  cfg.InputGuards,
		outputGuards: cfg.OutputGuards,
		observer:     cfg.Observer,
		asyncTimeout: cfg.AsyncTimeout,
	}
}

// Sink returns the engine's trace sink.
func (e *Engine) Sink() trace.Sink {
	return e.sink
}

// RunBlocking executes the pipeline on the calling goroutine. Async-only
// tools are driven to completion in place unless a suspending call is
// already active on ctx, which fails deterministically instead of nesting.
func (e *Engine) RunBlocking(ctx context.Context, toolName, rawArgs string) core.ToolResult {
	return e.run(ctx, toolName, rawArgs, blockingStrategy{})
}

// RunSuspending executes the pipeline with the timeout-bounded suspending
// strategy: the callable runs on its own goroutine and the call converts a
// deadline expiry into tool_error:timeout, cancelling the in-flight work.
func (e *Engine) RunSuspending(ctx context.Context, toolName, rawArgs string) core.ToolResult {
	return e.run(ctx, toolName, rawArgs, suspendingStrategy{defaultTimeout: e.asyncTimeout})
}

// run is the single ordered pipeline behind both entry points.
func (e *Engine) run(ctx context.Context, toolName, rawArgs string, strat strategy) core.ToolResult {
	callID := uuid.NewString()

	// Stage 1: resolution. Failure short-circuits everything else.
	tool, ok := e.registry.Resolve(toolName)
	if !ok {
		e.emit(trace.NewEvent(trace.EventToolResolveFail, callID, toolName))
		return core.ToolResult{
			ToolName:     toolName,
			ErrorMessage: core.KindUnknownTool.String(),
		}
	}
	e.emit(trace.NewEvent(trace.EventToolResolveOK, callID, tool.Name))

	// Stage 2: parse and coerce.
	args, ierr := parseArgs(tool.Spec, rawArgs)
	if ierr != nil {
		e.emit(trace.NewEvent(trace.EventArgsParseFail, callID, tool.Name).
			WithPayload("err", ierr.Detail))
		return failure(tool.Name, 0, ierr)
	}
	e.emit(trace.NewEvent(trace.EventArgsParseOK, callID, tool.Name).
		WithPayload("keys", sortedKeys(args)))

	// Stage 3: cache lookup on the exact raw string. A hit terminates the
	// call; no guard or invoke events may follow.
	if cached, hit, err := e.cache.Get(ctx, tool.Name, rawArgs); err == nil && hit {
		e.emit(trace.NewEvent(trace.EventCacheHit, callID, tool.Name))
		return core.ToolResult{
			ToolName: tool.Name,
			OK:       true,
			Output:   cached,
			Cached:   true,
		}
	}
	e.emit(trace.NewEvent(trace.EventCacheMiss, callID, tool.Name))

	// Stage 4: input guards over the parsed arguments.
	if gerr := runGuards(ctx, e.inputGuards, tool.Name, args); gerr != nil {
		e.emit(trace.NewEvent(trace.EventGuardInputBlock, callID, tool.Name).
			WithPayload("reason", gerr.Detail))
		return failure(tool.Name, 0, gerr)
	}
	e.emit(trace.NewEvent(trace.EventGuardInputOK, callID, tool.Name))

	// Stage 5: invoke with bounded retries.
	out, attempts, ierr := e.invokeWithRetry(ctx, strat, tool, args, callID)
	if ierr != nil {
		return failure(tool.Name, attempts, ierr)
	}

	// Stage 6: normalize. No failure mode of its own.
	norm := normalize(tool.Name, out, rawArgs)

	// Stage 7: output guards over the normalized output.
	if gerr := runGuards(ctx, e.outputGuards, tool.Name, core.Output{Value: norm, Attempts: attempts}); gerr != nil {
		e.emit(trace.NewEvent(trace.EventGuardOutputBlock, callID, tool.Name).
			WithPayload("reason", gerr.Detail))
		return failure(tool.Name, attempts, gerr)
	}
	e.emit(trace.NewEvent(trace.EventGuardOutputOK, callID, tool.Name))

	// Stage 8: cache store, only after a fully successful, guard-passing call.
	if err := e.cache.Set(ctx, tool.Name, rawArgs, norm); err == nil {
		e.emit(trace.NewEvent(trace.EventCacheStore, callID, tool.Name))
	}

	return core.ToolResult{
		ToolName: tool.Name,
		OK:       true,
		Output:   norm,
		Attempts: attempts,
	}
}

// runGuards executes guards in order, short-circuiting on the first failure.
func runGuards(ctx context.Context, guards []core.Guard, tool string, value any) *core.InvokeError {
	for _, g := range guards {
		if err := g.Check(ctx, tool, value); err != nil {
			return core.NewInvokeError(core.KindGuardrail, err.Error(), false, err)
		}
	}
	return nil
}

func (e *Engine) emit(ev trace.Event) {
	e.sink.Emit(ev)
}

func failure(tool string, attempts int, ierr *core.InvokeError) core.ToolResult {
	return core.ToolResult{
		ToolName:     tool,
		Attempts:     attempts,
		ErrorMessage: ierr.Error(),
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Deterministic payload for tests and stored events.
	slices.Sort(keys)
	return keys
}
