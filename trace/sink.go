package trace

import "sync"

// Sink is an append-only recorder of pipeline events.
// Emit must copy the event payload so that later caller mutation of the
// payload map cannot change the stored record. Implementations must be safe
// for concurrent append.
type Sink interface {
	// Emit appends an event, assigning its sequence number.
	Emit(e Event)

	// Events returns the ordered sequence recorded so far.
	Events() []Event
}

// MemorySink is an in-memory Sink. It assigns monotonic sequence numbers,
// stores a defensive copy of every payload, and optionally forwards each
// recorded event to handlers.
type MemorySink struct {
	mu       sync.Mutex
	events   []Event
	seq      uint64
	handlers []Handler
}

// SinkOption configures a MemorySink.
type SinkOption func(*MemorySink)

// WithHandler forwards every recorded event to h after it is stored.
func WithHandler(h Handler) SinkOption {
	return func(s *MemorySink) {
		if h != nil {
			s.handlers = append(s.handlers, h)
		}
	}
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink(opts ...SinkOption) *MemorySink {
	s := &MemorySink{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Emit appends the event with a copied payload.
func (s *MemorySink) Emit(e Event) {
	e.Payload = copyPayload(e.Payload)

	s.mu.Lock()
	s.seq++
	e.Seq = s.seq
	s.events = append(s.events, e)
	handlers := s.handlers
	s.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
}

// Events returns a snapshot of the recorded sequence.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Kinds returns the recorded event kinds in order. Convenient for tests.
func (s *MemorySink) Kinds() []EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]EventKind, len(s.events))
	for i, e := range s.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func copyPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}

// Ensure interface compliance at compile time.
var _ Sink = (*MemorySink)(nil)
