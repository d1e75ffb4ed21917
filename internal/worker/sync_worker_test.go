package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"registro/internal/amqp"
	"registro/internal/core"
	"registro/internal/ledger"
	"registro/internal/sheets"
	sheetsmem "registro/internal/sheets/memory"
	"registro/internal/storage/memory"
)

func seed(t *testing.T, store *memory.Store, eng *ledger.Engine) {
	t.Helper()
	ctx := context.Background()
	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, owner := range []string{"alice", "bob"} {
		if _, err := eng.Record(ctx, core.Event{
			OwnerID: owner, Sequence: core.Transactions, Kind: core.Income,
			Amount: core.MustMoney("100"), OccurredAt: day, Category: "Salary",
		}); err != nil {
			t.Fatalf("seed income: %v", err)
		}
		if _, err := eng.Record(ctx, core.Event{
			OwnerID: owner, Kind: core.Transfer, TransferType: core.Internal,
			Amount: core.MustMoney("40"), OccurredAt: day, Source: core.A, Destination: core.B,
		}); err != nil {
			t.Fatalf("seed transfer: %v", err)
		}
	}
}

func TestSyncWorker_HandleLedgerChanged(t *testing.T) {
	store := memory.New()
	eng := ledger.NewEngine(store, core.DefaultPolicy())
	seed(t, store, eng)
	writer := sheetsmem.New()
	w := NewSyncWorker(eng, store, writer, 2)

	msg := amqp.NewLedgerChangedMessage("alice", amqp.ReasonInsert, "bank_b", "bogus")
	if err := w.HandleLedgerChanged(context.Background(), msg); err != nil {
		t.Fatalf("HandleLedgerChanged: %v", err)
	}

	if writer.Writes() != 1 {
		t.Errorf("writes = %d, want 1 (unknown sequence skipped)", writer.Writes())
	}
	rows, ok := writer.Tab(sheets.TabName("alice", core.BankB))
	if !ok || len(rows) != 2 {
		t.Fatalf("bank_b tab = %v (ok=%v)", rows, ok)
	}
	if rows[1][7] != 40.0 {
		t.Errorf("bank_b balance = %v, want 40", rows[1][7])
	}
}

func TestSyncWorker_HandleLedgerChanged_AllSequences(t *testing.T) {
	store := memory.New()
	eng := ledger.NewEngine(store, core.DefaultPolicy())
	seed(t, store, eng)
	writer := sheetsmem.New()
	w := NewSyncWorker(eng, store, writer, 1)

	if err := w.HandleLedgerChanged(context.Background(), &amqp.LedgerChangedMessage{OwnerID: "bob"}); err != nil {
		t.Fatalf("HandleLedgerChanged: %v", err)
	}
	if writer.Writes() != 3 {
		t.Errorf("writes = %d, want 3", writer.Writes())
	}
}

func TestSyncWorker_ResyncAll(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	eng := ledger.NewEngine(store, core.DefaultPolicy())
	seed(t, store, eng)

	// Corrupt a stored balance; the resync must repair it.
	events, _ := store.Find(ctx, ledger.Filter{OwnerID: "alice", Sequence: core.Transactions})
	if err := store.UpdateBalance(ctx, events[0].ID, core.MustMoney("999")); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	writer := sheetsmem.New()
	w := NewSyncWorker(eng, store, writer, 4)
	if err := w.ResyncAll(ctx); err != nil {
		t.Fatalf("ResyncAll: %v", err)
	}

	if writer.Writes() != 6 {
		t.Errorf("writes = %d, want 6 (2 owners x 3 sequences)", writer.Writes())
	}
	rows, _ := writer.Tab(sheets.TabName("alice", core.Transactions))
	if len(rows) != 2 || rows[1][7] != 100.0 {
		t.Errorf("alice transactions rows = %v", rows)
	}
}

type failingWriter struct{}

func (failingWriter) WriteSequence(context.Context, core.Statement) error {
	return errors.New("quota exceeded")
}

func TestSyncWorker_WriteFailureIsReturned(t *testing.T) {
	store := memory.New()
	eng := ledger.NewEngine(store, core.DefaultPolicy())
	seed(t, store, eng)
	w := NewSyncWorker(eng, store, failingWriter{}, 0)

	if err := w.HandleLedgerChanged(context.Background(), &amqp.LedgerChangedMessage{OwnerID: "alice"}); err == nil {
		t.Error("expected HandleLedgerChanged to fail so the message is requeued")
	}
	if err := w.ResyncAll(context.Background()); err == nil {
		t.Error("expected ResyncAll to report the failure")
	}
}

func TestSyncWorker_ResyncAllNoOwners(t *testing.T) {
	store := memory.New()
	w := NewSyncWorker(ledger.NewEngine(store, core.DefaultPolicy()), store, sheetsmem.New(), 1)
	if err := w.ResyncAll(context.Background()); err != nil {
		t.Errorf("ResyncAll on empty store: %v", err)
	}
}
