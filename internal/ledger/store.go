package ledger

import (
	"context"
	"time"

	"registro/internal/core"
)

// Filter selects one owner's events in one sequence. Through is an inclusive
// upper bound and After an exclusive lower bound on OccurredAt; zero values
// leave the side open.
type Filter struct {
	OwnerID  string
	Sequence core.Sequence
	Through  time.Time
	After    time.Time
}

// Store is the Record Store consumed by the engine. Ordering everywhere is
// ascending by (OccurredAt, insertion order).
type Store interface {
	// Find returns every matching event in chronological order.
	Find(ctx context.Context, f Filter) ([]core.Event, error)
	// FindOne returns the last matching event, or core.ErrNotFound.
	FindOne(ctx context.Context, f Filter) (core.Event, error)
	// Get returns the owner's event with the given id, or core.ErrNotFound.
	Get(ctx context.Context, ownerID, id string) (core.Event, error)
	Insert(ctx context.Context, e core.Event) (core.Event, error)
	// UpdateBalance overwrites the stored balance of one event.
	UpdateBalance(ctx context.Context, id string, balance core.Money) error
	// Delete removes the owner's event, or returns core.ErrNotFound.
	Delete(ctx context.Context, ownerID, id string) error
	Count(ctx context.Context, f Filter) (int64, error)
}
