package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"registro/internal/amqp"
	"registro/internal/core"
	"registro/internal/sheets"
)

// Ledger is the part of the balance engine the worker drives.
type Ledger interface {
	RecalculateAll(ctx context.Context, ownerID string) (core.Summary, error)
	Statement(ctx context.Context, ownerID string, seq core.Sequence) (core.Statement, error)
}

// OwnerLister enumerates every owner with stored events.
type OwnerLister interface {
	Owners(ctx context.Context) ([]string, error)
}

// SyncWorker mirrors ledger sequences from storage to an external spreadsheet
type SyncWorker struct {
	ledger      Ledger
	owners      OwnerLister
	sheets      sheets.SequenceWriter
	concurrency int
}

// NewSyncWorker creates the worker. concurrency bounds how many owners are
// resynced in parallel.
func NewSyncWorker(ledger Ledger, owners OwnerLister, writer sheets.SequenceWriter, concurrency int) *SyncWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SyncWorker{
		ledger:      ledger,
		owners:      owners,
		sheets:      writer,
		concurrency: concurrency,
	}
}

// HandleLedgerChanged mirrors the sequences named in an AMQP message. An
// empty list means every sequence of the owner.
func (w *SyncWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	slog.InfoContext(ctx, "Processing ledger changed message",
		"owner_id", msg.OwnerID,
		"sequences", msg.Sequences,
		"reason", msg.Reason)

	seqs := core.Sequences()
	if len(msg.Sequences) > 0 {
		seqs = seqs[:0]
		for _, s := range msg.Sequences {
			seq, err := core.ParseSequence(s)
			if err != nil || s == "" {
				slog.WarnContext(ctx, "Skipping unknown sequence in message",
					"owner_id", msg.OwnerID,
					"sequence", s)
				continue
			}
			seqs = append(seqs, seq)
		}
	}

	for _, seq := range seqs {
		if err := w.mirror(ctx, msg.OwnerID, seq); err != nil {
			return err
		}
	}
	return nil
}

// ResyncAll recalculates every owner's balances and mirrors all of their
// sequences. Every owner is attempted; the first failure is returned.
// This is the backup mechanism for lost AMQP messages.
func (w *SyncWorker) ResyncAll(ctx context.Context) error {
	owners, err := w.owners.Owners(ctx)
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}
	if len(owners) == 0 {
		slog.DebugContext(ctx, "No owners to resync")
		return nil
	}

	start := time.Now()
	slog.InfoContext(ctx, "Resyncing all ledgers", "owners", len(owners))

	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, owner := range owners {
		g.Go(func() error {
			return w.resyncOwner(ctx, owner)
		})
	}
	err = g.Wait()

	slog.InfoContext(ctx, "Resync completed",
		"owners", len(owners),
		"duration", time.Since(start),
		"error", err)

	return err
}

func (w *SyncWorker) resyncOwner(ctx context.Context, ownerID string) error {
	if _, err := w.ledger.RecalculateAll(ctx, ownerID); err != nil {
		slog.ErrorContext(ctx, "Failed to recalculate owner", "owner_id", ownerID, "error", err)
		return fmt.Errorf("recalculate %s: %w", ownerID, err)
	}
	for _, seq := range core.Sequences() {
		if err := w.mirror(ctx, ownerID, seq); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror sequence", "owner_id", ownerID, "sequence", seq, "error", err)
			return err
		}
	}
	return nil
}

func (w *SyncWorker) mirror(ctx context.Context, ownerID string, seq core.Sequence) error {
	st, err := w.ledger.Statement(ctx, ownerID, seq)
	if err != nil {
		return fmt.Errorf("load %s/%s: %w", ownerID, seq, err)
	}
	if err := w.sheets.WriteSequence(ctx, st); err != nil {
		return fmt.Errorf("write %s/%s to sheets: %w", ownerID, seq, err)
	}

	slog.InfoContext(ctx, "Successfully mirrored sequence",
		"owner_id", ownerID,
		"sequence", seq,
		"events", len(st.Events),
		"closing_balance", st.Closing().String())
	return nil
}
