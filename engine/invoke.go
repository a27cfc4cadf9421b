package engine

import (
	"context"
	"errors"
	"time"

	"github.com/petal-labs/toolrun/core"
	"github.com/petal-labs/toolrun/trace"
)

// strategy is the per-entry-point half of invocation: how one attempt drives
// the underlying callable. Retry counting, classification, and tracing are
// shared in invokeWithRetry and must not be duplicated per strategy.
type strategy interface {
	name() string
	invoke(ctx context.Context, tool core.Tool, args map[string]any) (any, error)
}

type suspendMarkKey struct{}

func markSuspending(ctx context.Context) context.Context {
	return context.WithValue(ctx, suspendMarkKey{}, true)
}

func suspendingActive(ctx context.Context) bool {
	active, _ := ctx.Value(suspendMarkKey{}).(bool)
	return active
}

// blockingStrategy runs the callable on the calling goroutine. An async-only
// tool is driven to completion in place, unless a suspending call is already
// active on the context: nesting would hand the blocked goroutine's work to
// itself, so that case fails immediately instead of deadlocking.
type blockingStrategy struct{}

func (blockingStrategy) name() string { return "blocking" }

func (blockingStrategy) invoke(ctx context.Context, tool core.Tool, args map[string]any) (any, error) {
	if tool.Fn != nil {
		return tool.Fn(ctx, args)
	}
	if tool.AsyncFn == nil {
		return nil, core.NewInvokeError(core.KindToolError, "tool has no callable", false, nil)
	}
	if suspendingActive(ctx) {
		return nil, core.NewInvokeError(core.KindToolError,
			"nested blocking invocation of async tool inside suspending run", false, nil)
	}
	return tool.AsyncFn(ctx, args)
}

// suspendingStrategy runs the callable on its own goroutine under a deadline.
// On expiry the in-flight work is cancelled via its context and the attempt
// converts to tool_error:timeout.
type suspendingStrategy struct {
	defaultTimeout time.Duration
}

func (suspendingStrategy) name() string { return "suspending" }

func (s suspendingStrategy) invoke(ctx context.Context, tool core.Tool, args map[string]any) (any, error) {
	fn := tool.AsyncFn
	if fn == nil {
		if tool.Fn == nil {
			return nil, core.NewInvokeError(core.KindToolError, "tool has no callable", false, nil)
		}
		fn = core.AsyncFunc(tool.Fn)
	}

	timeout := tool.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}

	cctx, cancel := context.WithTimeout(markSuspending(ctx), timeout)
	defer cancel()

	type outcome struct {
		out any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := fn(cctx, args)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		return o.out, o.err
	case <-cctx.Done():
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, core.NewInvokeError(core.KindToolError, "timeout", false, cctx.Err())
		}
		return nil, core.NewInvokeError(core.KindToolError, "", false, cctx.Err())
	}
}

// invokeWithRetry is the shared retry and classification loop. Attempts start
// at 1; retryable and unclassified failures are retried while attempts made
// so far do not exceed the tool's retry budget. user_error, timeout, and
// reentrancy failures are never retried.
func (e *Engine) invokeWithRetry(ctx context.Context, strat strategy, tool core.Tool, args map[string]any, callID string) (any, int, *core.InvokeError) {
	start := time.Now()
	attempt := 0

	for {
		attempt++

		if err := ctx.Err(); err != nil {
			ierr := core.NewInvokeError(core.KindToolError, "", false, err)
			e.emit(trace.NewEvent(trace.EventInvokeFailure, callID, tool.Name).
				WithAttempt(attempt).
				WithPayload("kind", ierr.Kind.String()).
				WithPayload("err", ierr.Detail))
			return nil, attempt, ierr
		}

		e.emit(trace.NewEvent(trace.EventInvokeAttempt, callID, tool.Name).
			WithAttempt(attempt))

		out, err := strat.invoke(ctx, tool, args)
		if err == nil {
			e.emit(trace.NewEvent(trace.EventInvokeSuccess, callID, tool.Name).
				WithPayload("attempts", attempt))
			e.observer.ObserveInvoke(InvokeObservation{
				Tool:       tool.Name,
				Strategy:   strat.name(),
				Attempts:   attempt,
				DurationMS: time.Since(start).Milliseconds(),
				Success:    true,
			})
			return out, attempt, nil
		}

		ierr := classify(err)
		if ierr.Retryable && attempt <= tool.MaxRetries {
			e.observer.ObserveRetry(RetryObservation{
				Tool:      tool.Name,
				Strategy:  strat.name(),
				Attempt:   attempt,
				ErrorKind: ierr.Kind.String(),
			})
			continue
		}

		e.emit(trace.NewEvent(trace.EventInvokeFailure, callID, tool.Name).
			WithAttempt(attempt).
			WithPayload("kind", ierr.Kind.String()).
			WithPayload("err", ierr.Detail))
		e.observer.ObserveInvoke(InvokeObservation{
			Tool:       tool.Name,
			Strategy:   strat.name(),
			Attempts:   attempt,
			DurationMS: time.Since(start).Milliseconds(),
			Success:    false,
			ErrorKind:  ierr.Kind.String(),
		})
		return nil, attempt, ierr
	}
}

// classify maps an attempt failure to its kind and retry policy.
func classify(err error) *core.InvokeError {
	var ierr *core.InvokeError
	if errors.As(err, &ierr) {
		return ierr
	}

	var userErr *core.UserError
	if errors.As(err, &userErr) {
		return core.NewInvokeError(core.KindUserError, userErr.Error(), false, err)
	}

	var retryErr *core.RetryableError
	if errors.As(err, &retryErr) {
		return core.NewInvokeError(core.KindToolError, retryErr.Error(), true, err)
	}

	// Unclassified failures are tool errors and follow the retryable policy.
	return core.NewInvokeError(core.KindToolError, err.Error(), true, err)
}
