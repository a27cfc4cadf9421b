// Package trace records the ordered event stream produced by the engine
// pipeline. Every stage of a call emits exactly the events documented on the
// kind constants, in pipeline order; sinks copy payloads at emission time so
// a stored event is independent of anything the caller keeps mutating.
package trace

import "time"

// EventKind identifies the type of event emitted by the pipeline.
type EventKind string

const (
	// EventToolResolveOK is emitted when resolution finds the tool.
	EventToolResolveOK EventKind = "tool.resolve.ok"

	// EventToolResolveFail is emitted when the tool name is not registered.
	// It terminates the call; no later stage emits anything.
	EventToolResolveFail EventKind = "tool.resolve.fail"

	// EventArgsParseOK is emitted after raw arguments parse and coerce cleanly.
	EventArgsParseOK EventKind = "args.parse.ok"

	// EventArgsParseFail is emitted when parsing or coercion fails.
	EventArgsParseFail EventKind = "args.parse.fail"

	// EventCacheHit is emitted when the exact (tool, raw) key is cached.
	// It terminates the call; no guard or invoke events follow.
	EventCacheHit EventKind = "cache.hit"

	// EventCacheMiss is emitted when the key is absent and the pipeline proceeds.
	EventCacheMiss EventKind = "cache.miss"

	// EventCacheStore is emitted after a successful, guard-passing output
	// is inserted into the cache.
	EventCacheStore EventKind = "cache.store"

	// EventGuardInputOK is emitted when every input guard passes.
	EventGuardInputOK EventKind = "guard.input.ok"

	// EventGuardInputBlock is emitted when an input guard fails.
	EventGuardInputBlock EventKind = "guard.input.block"

	// EventGuardOutputOK is emitted when every output guard passes.
	EventGuardOutputOK EventKind = "guard.output.ok"

	// EventGuardOutputBlock is emitted when an output guard fails.
	EventGuardOutputBlock EventKind = "guard.output.block"

	// EventInvokeAttempt is emitted once per invocation attempt, before the
	// callable runs, in attempt order.
	EventInvokeAttempt EventKind = "tool.invoke.attempt"

	// EventInvokeSuccess is emitted when an attempt succeeds.
	EventInvokeSuccess EventKind = "tool.invoke.success"

	// EventInvokeFailure is emitted when the final attempt fails.
	EventInvokeFailure EventKind = "tool.invoke.failure"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Event is a structured, append-only record of one pipeline stage outcome.
// Events should be kept small; payloads hold stage-specific data only.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind

	// CallID is the unique identifier for the engine call that produced
	// this event.
	CallID string

	// Tool is the tool name the call targeted.
	Tool string

	// Time is when the event was emitted.
	Time time.Time

	// Attempt is the attempt number (1-indexed) for invocation events,
	// zero otherwise.
	Attempt int

	// Seq is a monotonic sequence number assigned by the sink (1-indexed).
	Seq uint64

	// Payload contains event-specific data. Sinks store a copy.
	Payload map[string]any
}

// NewEvent creates an event with the current timestamp.
func NewEvent(kind EventKind, callID, tool string) Event {
	return Event{
		Kind:   kind,
		CallID: callID,
		Tool:   tool,
		Time:   time.Now(),
	}
}

// WithAttempt sets the attempt number on the event.
func (e Event) WithAttempt(attempt int) Event {
	e.Attempt = attempt
	return e
}

// WithPayload adds a key-value pair to the event payload.
func (e Event) WithPayload(key string, value any) Event {
	if e.Payload == nil {
		e.Payload = make(map[string]any)
	}
	e.Payload[key] = value
	return e
}

// Handler is a function type for handling emitted events.
// Implementations can log, store, or forward events as needed.
type Handler func(Event)

// MultiHandler combines multiple handlers into one.
func MultiHandler(handlers ...Handler) Handler {
	return func(e Event) {
		for _, h := range handlers {
			if h != nil {
				h(e)
			}
		}
	}
}

// ChannelHandler returns a handler that sends events to a channel.
// Events are dropped if the channel is full.
func ChannelHandler(ch chan<- Event) Handler {
	return func(e Event) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full
		}
	}
}
