package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"registro/internal/core"
	"registro/internal/ledger"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that lexical order of the stored text equals
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Insert implements ledger.Store
func (r *SQLiteRepository) Insert(ctx context.Context, e core.Event) (core.Event, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	row, err := r.queries.CreateEvent(ctx, CreateEventParams{
		ID:              e.ID,
		OwnerID:         e.OwnerID,
		Sequence:        string(e.Sequence),
		Kind:            string(e.Kind),
		Amount:          e.Amount.Decimal.String(),
		Balance:         e.Balance.Decimal.String(),
		OccurredAt:      formatTime(e.OccurredAt),
		Category:        e.Category,
		Account:         e.Account,
		Description:     e.Description,
		TransferType:    string(e.TransferType),
		SourceBank:      string(e.Source),
		DestinationBank: string(e.Destination),
		CounterpartID:   e.CounterpartID,
		CreatedAt:       formatTime(e.CreatedAt),
	})
	if err != nil {
		return core.Event{}, fmt.Errorf("create event: %w", err)
	}

	slog.InfoContext(ctx, "Event saved to SQLite",
		"id", row.ID,
		"owner_id", row.OwnerID,
		"sequence", row.Sequence,
		"kind", row.Kind,
		"amount", row.Amount,
		"balance", row.Balance)

	return toEvent(row)
}

// Get implements ledger.Store
func (r *SQLiteRepository) Get(ctx context.Context, ownerID, id string) (core.Event, error) {
	row, err := r.queries.GetEvent(ctx, ownerID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Event{}, core.ErrNotFound
	}
	if err != nil {
		return core.Event{}, fmt.Errorf("get event %s: %w", id, err)
	}
	return toEvent(row)
}

// Find implements ledger.Store
func (r *SQLiteRepository) Find(ctx context.Context, f ledger.Filter) ([]core.Event, error) {
	rows, err := r.queries.ListEvents(ctx, rangeParams(f))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]core.Event, 0, len(rows))
	for _, row := range rows {
		e, err := toEvent(row)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// FindOne implements ledger.Store
func (r *SQLiteRepository) FindOne(ctx context.Context, f ledger.Filter) (core.Event, error) {
	row, err := r.queries.LastEvent(ctx, rangeParams(f))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Event{}, core.ErrNotFound
	}
	if err != nil {
		return core.Event{}, fmt.Errorf("last event: %w", err)
	}
	return toEvent(row)
}

// Count implements ledger.Store
func (r *SQLiteRepository) Count(ctx context.Context, f ledger.Filter) (int64, error) {
	n, err := r.queries.CountEvents(ctx, rangeParams(f))
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// UpdateBalance implements ledger.Store
func (r *SQLiteRepository) UpdateBalance(ctx context.Context, id string, balance core.Money) error {
	n, err := r.queries.UpdateEventBalance(ctx, balance.Decimal.String(), id)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Delete implements ledger.Store
func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, id string) error {
	n, err := r.queries.DeleteEvent(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Event deleted from SQLite", "id", id, "owner_id", ownerID)
	return nil
}

// Owners returns every owner with at least one stored event.
func (r *SQLiteRepository) Owners(ctx context.Context) ([]string, error) {
	owners, err := r.queries.ListOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return owners, nil
}

func rangeParams(f ledger.Filter) RangeParams {
	p := RangeParams{OwnerID: f.OwnerID, Sequence: string(f.Sequence)}
	if !f.Through.IsZero() {
		p.Through = formatTime(f.Through)
	}
	if !f.After.IsZero() {
		p.After = formatTime(f.After)
	}
	return p
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func toEvent(row EventRow) (core.Event, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Event{}, fmt.Errorf("event %s: bad amount %q: %w", row.ID, row.Amount, err)
	}
	balance, err := decimal.NewFromString(row.Balance)
	if err != nil {
		return core.Event{}, fmt.Errorf("event %s: bad balance %q: %w", row.ID, row.Balance, err)
	}
	occurred, err := time.Parse(timeLayout, row.OccurredAt)
	if err != nil {
		return core.Event{}, fmt.Errorf("event %s: bad occurred_at %q: %w", row.ID, row.OccurredAt, err)
	}
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return core.Event{}, fmt.Errorf("event %s: bad created_at %q: %w", row.ID, row.CreatedAt, err)
	}

	return core.Event{
		ID:            row.ID,
		OwnerID:       row.OwnerID,
		Sequence:      core.Sequence(row.Sequence),
		Kind:          core.Kind(row.Kind),
		Amount:        core.Money{Decimal: amount},
		Balance:       core.Money{Decimal: balance},
		OccurredAt:    occurred,
		Category:      row.Category,
		Account:       row.Account,
		Description:   row.Description,
		TransferType:  core.TransferType(row.TransferType),
		Source:        core.Bank(row.SourceBank),
		Destination:   core.Bank(row.DestinationBank),
		CounterpartID: row.CounterpartID,
		CreatedAt:     created,
	}, nil
}
