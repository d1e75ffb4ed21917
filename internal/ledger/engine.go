// Package ledger keeps the running balance of every monetary event
// consistent with the sequential sum of its owner's events.
//
// Each owner has three independent sequences (transactions, bank A
// transfers, bank B transfers). Inserts append optimistically from the
// preceding stored balance; deletions trigger a full recalculation pass
// because removing a middle element invalidates every later balance.
//
// There is no locking and no transaction boundary: concurrent passes for
// the same owner resolve as last write wins, and a failed pass leaves a mix
// of old and new balances until the next successful one.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"registro/internal/core"
)

// Engine is the Ledger Balance Engine.
type Engine struct {
	store  Store
	policy core.Policy
	newID  func() string
}

// NewEngine creates an engine over the given store using the sign policy.
func NewEngine(store Store, policy core.Policy) *Engine {
	if policy.Internal == "" {
		policy = core.DefaultPolicy()
	}
	return &Engine{
		store:  store,
		policy: policy,
		newID:  func() string { return uuid.NewString() },
	}
}

// RemoveResult describes what a deletion touched.
type RemoveResult struct {
	Removed            []core.Event
	CounterpartMissing bool
	Summary            core.Summary
}

// SignedDelta returns the event's contribution to its running balance.
func (e *Engine) SignedDelta(ev core.Event) core.Money {
	return e.policy.SignedDelta(ev)
}

// AssignBalanceOnInsert computes the new event's balance from the stored
// balance of the event immediately preceding it (zero if none) and persists
// the event. A backdated event, one with later events already stored, makes
// every later balance stale, so its sequence is recalculated before returning.
func (e *Engine) AssignBalanceOnInsert(ctx context.Context, ev core.Event) (core.Event, error) {
	if err := ev.Validate(); err != nil {
		return core.Event{}, err
	}
	if ev.ID == "" {
		ev.ID = e.newID()
	}

	prev, err := e.store.FindOne(ctx, Filter{OwnerID: ev.OwnerID, Sequence: ev.Sequence, Through: ev.OccurredAt})
	balance := core.Zero
	switch {
	case err == nil:
		balance = prev.Balance
	case errors.Is(err, core.ErrNotFound):
	default:
		return core.Event{}, storageErr("find previous event", err)
	}
	ev.Balance = balance.Add(e.SignedDelta(ev))

	saved, err := e.store.Insert(ctx, ev)
	if err != nil {
		return core.Event{}, storageErr("insert event", err)
	}

	later, err := e.store.Count(ctx, Filter{OwnerID: ev.OwnerID, Sequence: ev.Sequence, After: ev.OccurredAt})
	if err != nil {
		return saved, storageErr("count later events", err)
	}
	if later == 0 {
		return saved, nil
	}

	slog.InfoContext(ctx, "Backdated event inserted, recalculating sequence",
		"owner_id", ev.OwnerID,
		"sequence", ev.Sequence,
		"event_id", saved.ID,
		"later_events", later)
	if _, err := e.RecalculateSequence(ctx, ev.OwnerID, ev.Sequence); err != nil {
		return saved, err
	}
	refreshed, err := e.store.Get(ctx, ev.OwnerID, saved.ID)
	if err != nil {
		return saved, storageErr("reload event", err)
	}
	return refreshed, nil
}

// Record creates an event. An Internal transfer becomes two rows, one per
// bank sequence, linked through CounterpartID; each side is balanced in its
// own sequence. The rows are not written atomically.
func (e *Engine) Record(ctx context.Context, draft core.Event) ([]core.Event, error) {
	draft.Balance = core.Zero
	if !draft.IsInternalTransfer() {
		saved, err := e.AssignBalanceOnInsert(ctx, draft)
		if err != nil {
			return nil, err
		}
		return []core.Event{saved}, nil
	}

	if !draft.Source.IsValid() {
		return nil, &core.ValidationError{Field: "source", Reason: "missing source bank"}
	}
	src := draft
	src.ID = e.newID()
	src.Sequence = draft.Source.Sequence()
	dst := draft
	dst.ID = e.newID()
	dst.Sequence = draft.Destination.Sequence()
	src.CounterpartID, dst.CounterpartID = dst.ID, src.ID

	// Validate both sides before writing either.
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if err := dst.Validate(); err != nil {
		return nil, err
	}

	savedSrc, err := e.AssignBalanceOnInsert(ctx, src)
	if err != nil {
		return nil, err
	}
	savedDst, err := e.AssignBalanceOnInsert(ctx, dst)
	if err != nil {
		slog.ErrorContext(ctx, "Internal transfer half written",
			"owner_id", draft.OwnerID,
			"written_id", savedSrc.ID,
			"missing_id", dst.ID,
			"error", err)
		return []core.Event{savedSrc}, err
	}
	return []core.Event{savedSrc, savedDst}, nil
}

// Remove deletes an event and, for an Internal transfer, its counterpart,
// then recalculates every sequence of the owner. A missing counterpart is
// reported in the result rather than failing the deletion.
func (e *Engine) Remove(ctx context.Context, ownerID, id string) (RemoveResult, error) {
	var res RemoveResult

	ev, err := e.store.Get(ctx, ownerID, id)
	if err != nil {
		return res, storageErr("get event", err)
	}
	if err := e.store.Delete(ctx, ownerID, id); err != nil {
		return res, storageErr("delete event", err)
	}
	res.Removed = append(res.Removed, ev)

	if ev.CounterpartID != "" {
		cp, err := e.store.Get(ctx, ownerID, ev.CounterpartID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			res.CounterpartMissing = true
			slog.WarnContext(ctx, "Counterpart of internal transfer not found",
				"owner_id", ownerID,
				"event_id", id,
				"counterpart_id", ev.CounterpartID)
		case err != nil:
			return res, storageErr("get counterpart", err)
		default:
			if err := e.store.Delete(ctx, ownerID, cp.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
				return res, storageErr("delete counterpart", err)
			}
			res.Removed = append(res.Removed, cp)
		}
	}

	summary, err := e.RecalculateAll(ctx, ownerID)
	if err != nil {
		return res, err
	}
	res.Summary = summary
	return res, nil
}

// RecalculateAll re-derives every stored balance of the owner, one sequence
// at a time. It is idempotent and O(n) per call.
func (e *Engine) RecalculateAll(ctx context.Context, ownerID string) (core.Summary, error) {
	summary := core.Summary{OwnerID: ownerID}
	for _, seq := range core.Sequences() {
		sb, err := e.RecalculateSequence(ctx, ownerID, seq)
		if err != nil {
			return summary, err
		}
		summary.Sequences = append(summary.Sequences, sb)
	}
	return summary, nil
}

// RecalculateSequence folds one sequence from zero and writes the running
// balance back on every event, changed or not.
func (e *Engine) RecalculateSequence(ctx context.Context, ownerID string, seq core.Sequence) (core.SequenceBalance, error) {
	events, err := e.store.Find(ctx, Filter{OwnerID: ownerID, Sequence: seq})
	if err != nil {
		return core.SequenceBalance{}, storageErr("load sequence", err)
	}

	running := core.Zero
	for _, ev := range events {
		running = running.Add(e.SignedDelta(ev))
		if err := e.store.UpdateBalance(ctx, ev.ID, running); err != nil {
			return core.SequenceBalance{}, storageErr(fmt.Sprintf("update balance of %s", ev.ID), err)
		}
	}

	slog.DebugContext(ctx, "Sequence recalculated",
		"owner_id", ownerID,
		"sequence", seq,
		"events", len(events),
		"balance", running.String())

	return core.SequenceBalance{Sequence: seq, Balance: running, Events: len(events)}, nil
}

// Statement returns one sequence in chronological order with stored balances.
func (e *Engine) Statement(ctx context.Context, ownerID string, seq core.Sequence) (core.Statement, error) {
	events, err := e.store.Find(ctx, Filter{OwnerID: ownerID, Sequence: seq})
	if err != nil {
		return core.Statement{}, storageErr("load statement", err)
	}
	return core.Statement{OwnerID: ownerID, Sequence: seq, Events: events}, nil
}

// Summary reports the closing stored balance and event count of each sequence.
func (e *Engine) Summary(ctx context.Context, ownerID string) (core.Summary, error) {
	summary := core.Summary{OwnerID: ownerID}
	for _, seq := range core.Sequences() {
		f := Filter{OwnerID: ownerID, Sequence: seq}
		count, err := e.store.Count(ctx, f)
		if err != nil {
			return summary, storageErr("count events", err)
		}
		sb := core.SequenceBalance{Sequence: seq, Balance: core.Zero, Events: int(count)}
		if count > 0 {
			last, err := e.store.FindOne(ctx, f)
			if err != nil {
				return summary, storageErr("find closing event", err)
			}
			sb.Balance = last.Balance
		}
		summary.Sequences = append(summary.Sequences, sb)
	}
	return summary, nil
}

// storageErr wraps store failures as StorageError, leaving not-found and
// already-classified errors untouched.
func storageErr(op string, err error) error {
	if errors.Is(err, core.ErrNotFound) || core.IsStorage(err) || core.IsValidation(err) {
		return err
	}
	return &core.StorageError{Op: op, Err: err}
}
