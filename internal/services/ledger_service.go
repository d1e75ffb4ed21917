package services

import (
	"context"
	"fmt"
	"log/slog"

	"registro/internal/amqp"
	"registro/internal/core"
	"registro/internal/ledger"
)

// Publisher announces ledger changes to downstream consumers.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
}

// LedgerService orchestrates ledger operations across storage and AMQP
type LedgerService struct {
	engine    *ledger.Engine
	publisher Publisher
}

// NewLedgerService creates the service. publisher may be nil.
func NewLedgerService(engine *ledger.Engine, publisher Publisher) *LedgerService {
	return &LedgerService{
		engine:    engine,
		publisher: publisher,
	}
}

// Record saves an event (or both rows of an Internal transfer) and publishes
// a change notification for the sequences it touched.
func (s *LedgerService) Record(ctx context.Context, draft core.Event) ([]core.Event, error) {
	events, err := s.engine.Record(ctx, draft)
	if len(events) > 0 {
		// A half-written Internal pair still changed a sequence.
		s.publish(ctx, draft.OwnerID, amqp.ReasonInsert, sequencesOf(events))
	}
	if err != nil {
		return events, fmt.Errorf("record event: %w", err)
	}
	return events, nil
}

// Remove deletes an event and its counterpart, then recalculates the owner.
func (s *LedgerService) Remove(ctx context.Context, ownerID, id string) (ledger.RemoveResult, error) {
	res, err := s.engine.Remove(ctx, ownerID, id)
	if len(res.Removed) > 0 {
		s.publish(ctx, ownerID, amqp.ReasonDelete, sequencesOf(res.Removed))
	}
	if err != nil {
		return res, fmt.Errorf("remove event: %w", err)
	}
	return res, nil
}

// Recalculate re-derives every stored balance of the owner.
func (s *LedgerService) Recalculate(ctx context.Context, ownerID string) (core.Summary, error) {
	summary, err := s.engine.RecalculateAll(ctx, ownerID)
	if err != nil {
		return summary, fmt.Errorf("recalculate: %w", err)
	}
	s.publish(ctx, ownerID, amqp.ReasonRecalculate, core.Sequences())
	return summary, nil
}

func (s *LedgerService) Statement(ctx context.Context, ownerID string, seq core.Sequence) (core.Statement, error) {
	return s.engine.Statement(ctx, ownerID, seq)
}

func (s *LedgerService) Summary(ctx context.Context, ownerID string) (core.Summary, error) {
	return s.engine.Summary(ctx, ownerID)
}

// Statements returns every sequence of the owner, in recalculation order.
func (s *LedgerService) Statements(ctx context.Context, ownerID string) ([]core.Statement, error) {
	out := make([]core.Statement, 0, len(core.Sequences()))
	for _, seq := range core.Sequences() {
		st, err := s.engine.Statement(ctx, ownerID, seq)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// publish never fails the caller: the ledger is already persisted.
func (s *LedgerService) publish(ctx context.Context, ownerID, reason string, seqs []core.Sequence) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No publisher configured, skipping ledger changed message")
		return
	}

	names := make([]string, len(seqs))
	for i, seq := range seqs {
		names[i] = string(seq)
	}
	msg := amqp.NewLedgerChangedMessage(ownerID, reason, names...)
	if err := s.publisher.PublishLedgerChanged(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger changed message",
			"owner_id", ownerID,
			"reason", reason,
			"sequences", names,
			"error", err)
	}
}

func sequencesOf(events []core.Event) []core.Sequence {
	seen := make(map[core.Sequence]bool, 3)
	var out []core.Sequence
	for _, e := range events {
		if !seen[e.Sequence] {
			seen[e.Sequence] = true
			out = append(out, e.Sequence)
		}
	}
	return out
}
