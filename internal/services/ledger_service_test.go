package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"registro/internal/amqp"
	"registro/internal/core"
	"registro/internal/ledger"
	"registro/internal/storage/memory"
)

type recordingPublisher struct {
	msgs []*amqp.LedgerChangedMessage
	err  error
}

func (p *recordingPublisher) PublishLedgerChanged(_ context.Context, msg *amqp.LedgerChangedMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

func newTestService(pub Publisher) *LedgerService {
	return NewLedgerService(ledger.NewEngine(memory.New(), core.DefaultPolicy()), pub)
}

func transfer(amount string) core.Event {
	return core.Event{
		OwnerID:      "u1",
		Kind:         core.Transfer,
		TransferType: core.Internal,
		Amount:       core.MustMoney(amount),
		OccurredAt:   time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Source:       core.A,
		Destination:  core.B,
	}
}

func TestLedgerService_RecordPublishesTouchedSequences(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestService(pub)

	events, err := svc.Record(context.Background(), transfer("50"))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.OwnerID != "u1" || msg.Reason != amqp.ReasonInsert {
		t.Errorf("unexpected message: %+v", msg)
	}
	if len(msg.Sequences) != 2 || msg.Sequences[0] != "bank_a" || msg.Sequences[1] != "bank_b" {
		t.Errorf("sequences = %v, want [bank_a bank_b]", msg.Sequences)
	}
}

func TestLedgerService_PublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestService(pub)

	if _, err := svc.Record(context.Background(), transfer("10")); err != nil {
		t.Fatalf("Record should succeed when publishing fails: %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Errorf("expected a publish attempt, got %d", len(pub.msgs))
	}
}

func TestLedgerService_ValidationErrorNotPublished(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestService(pub)

	bad := transfer("10")
	bad.Destination = core.A
	_, err := svc.Record(context.Background(), bad)
	if !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(pub.msgs) != 0 {
		t.Errorf("no message expected, got %d", len(pub.msgs))
	}
}

func TestLedgerService_RemoveAndRecalculate(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := newTestService(pub)

	events, err := svc.Record(ctx, transfer("25"))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	res, err := svc.Remove(ctx, "u1", events[0].ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(res.Removed) != 2 {
		t.Errorf("removed %d, want 2", len(res.Removed))
	}
	if last := pub.msgs[len(pub.msgs)-1]; last.Reason != amqp.ReasonDelete {
		t.Errorf("reason = %s, want delete", last.Reason)
	}

	if _, err := svc.Remove(ctx, "u1", events[0].ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second remove: expected ErrNotFound, got %v", err)
	}

	summary, err := svc.Recalculate(ctx, "u1")
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if len(summary.Sequences) != 3 {
		t.Errorf("summary has %d sequences, want 3", len(summary.Sequences))
	}
	if last := pub.msgs[len(pub.msgs)-1]; last.Reason != amqp.ReasonRecalculate || len(last.Sequences) != 3 {
		t.Errorf("unexpected recalculate message: %+v", last)
	}
}

func TestLedgerService_NilPublisher(t *testing.T) {
	svc := newTestService(nil)
	if _, err := svc.Record(context.Background(), transfer("1")); err != nil {
		t.Fatalf("Record with nil publisher: %v", err)
	}
	sts, err := svc.Statements(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Statements: %v", err)
	}
	if len(sts) != 3 || len(sts[1].Events) != 1 || len(sts[2].Events) != 1 {
		t.Errorf("unexpected statements: %+v", sts)
	}
}
