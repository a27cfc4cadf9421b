// Package bus persists and distributes trace events beyond the in-memory
// sink. Stores are observability storage only: the engine's result cache and
// execution semantics never depend on them.
package bus

import (
	"context"

	"github.com/petal-labs/toolrun/trace"
)

// EventStore abstracts persistence for trace events, keyed by call ID.
type EventStore interface {
	// Append stores one event.
	Append(ctx context.Context, event trace.Event) error

	// List returns events for a call with Seq greater than afterSeq,
	// in Seq order, up to limit (0 = no limit).
	List(ctx context.Context, callID string, afterSeq uint64, limit int) ([]trace.Event, error)

	// LatestSeq returns the highest Seq recorded for a call (0 if none).
	LatestSeq(ctx context.Context, callID string) (uint64, error)
}

// StoreHandler returns a trace.Handler that appends every event to store.
// Append errors are dropped: trace forwarding must never fail a call.
func StoreHandler(store EventStore) trace.Handler {
	return func(e trace.Event) {
		_ = store.Append(context.Background(), e)
	}
}
