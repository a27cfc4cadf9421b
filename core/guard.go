package core

import "context"

// Guard validates a (context, value) pair before or after tool invocation.
// Input guards receive the parsed argument mapping; output guards receive a
// core.Output holding the normalized output and the attempt count.
//
// A non-nil error blocks the call: the engine reports guardrail:<detail>
// where detail is the error message, and no later guard or stage runs.
type Guard interface {
	// Name identifies the guard in diagnostics.
	Name() string

	// Check passes by returning nil or fails with a detail error.
	Check(ctx context.Context, tool string, value any) error
}

// GuardFunc wraps a function as a Guard.
type GuardFunc struct {
	name string
	fn   func(ctx context.Context, tool string, value any) error
}

// NewGuard creates a function-backed guard.
func NewGuard(name string, fn func(ctx context.Context, tool string, value any) error) *GuardFunc {
	return &GuardFunc{name: name, fn: fn}
}

// Name returns the guard's name.
func (g *GuardFunc) Name() string {
	return g.name
}

// Check runs the wrapped function.
func (g *GuardFunc) Check(ctx context.Context, tool string, value any) error {
	if g.fn == nil {
		return nil
	}
	return g.fn(ctx, tool, value)
}

// Ensure interface compliance at compile time.
var _ Guard = (*GuardFunc)(nil)
