// Package core provides the foundational types for the toolrun engine.
//
// This package contains:
//   - Tool and Spec: the descriptor for a registered callable
//   - Registry: name-to-tool lookup
//   - Guard: pre/post invocation validation
//   - InvokeError and the closed error-kind taxonomy
//   - ToolResult: the value returned to callers
package core

import (
	"context"
	"time"
)

// Type literals accepted in a tool Spec schema.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
)

// ValidType reports whether a schema type literal is recognized.
func ValidType(typeName string) bool {
	switch typeName {
	case TypeString, TypeInteger, TypeFloat, TypeBoolean:
		return true
	}
	return false
}

// SyncFunc is the synchronous execution form of a tool.
// Arguments are the parsed and coerced argument mapping.
type SyncFunc func(ctx context.Context, args map[string]any) (any, error)

// AsyncFunc is the asynchronous execution form of a tool.
// The engine drives it on its own goroutine under a deadline; implementations
// should honor ctx cancellation.
type AsyncFunc func(ctx context.Context, args map[string]any) (any, error)

// Spec describes the recognized argument names of a tool along with
// coercion types and default values. Keys absent from Schema pass through
// to the callable unchanged.
type Spec struct {
	// Schema maps argument names to type literals (string, integer, float, boolean).
	Schema map[string]string

	// Defaults are filled in for schema keys omitted from the raw arguments.
	Defaults map[string]any
}

// Tool is a named, schema-described unit of work with a sync and/or async
// execution form. Tools are immutable once registered; the registry stores
// them by value.
type Tool struct {
	// Name uniquely identifies the tool within a registry.
	Name string

	// Spec describes argument names, coercions, and defaults.
	Spec Spec

	// Fn is the synchronous callable. Optional if AsyncFn is set.
	Fn SyncFunc

	// AsyncFn is the asynchronous callable. Optional if Fn is set.
	AsyncFn AsyncFunc

	// MaxRetries is the number of extra attempts after the first for
	// retryable failures. Zero means no retries.
	MaxRetries int

	// Timeout bounds a single asynchronous attempt. Zero falls back to the
	// engine default. Ignored by the blocking strategy.
	Timeout time.Duration
}

// ToolResult is returned to the caller of the engine entry points.
// Failures are reported as data; the engine never leaks internal error
// values to the caller.
type ToolResult struct {
	// ToolName is the name the caller asked for, even if unknown.
	ToolName string

	// OK is true iff the call produced an output.
	OK bool

	// Output is the normalized tool output. Present iff OK.
	Output any

	// ErrorMessage is "<kind>:<detail>" (bare "unknown_tool" for resolution
	// failures). Present iff !OK.
	ErrorMessage string

	// Attempts is the number of invocation attempts actually made.
	// Zero when the pipeline failed before invocation or was served from cache.
	Attempts int

	// Cached is true iff the result was served from the cache without invocation.
	Cached bool
}

// Output is the value handed to output guards: the normalized tool output
// together with the attempt count that produced it.
type Output struct {
	Value    any
	Attempts int
}
