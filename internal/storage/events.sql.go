package storage

import (
	"context"
)

// EventRow mirrors one row of the events table.
type EventRow struct {
	Seq             int64
	ID              string
	OwnerID         string
	Sequence        string
	Kind            string
	Amount          string
	Balance         string
	OccurredAt      string
	Category        string
	Account         string
	Description     string
	TransferType    string
	SourceBank      string
	DestinationBank string
	CounterpartID   string
	CreatedAt       string
}

const eventColumns = `seq, id, owner_id, sequence, kind, amount, balance, occurred_at,
    category, account, description, transfer_type, source_bank, destination_bank,
    counterpart_id, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(s scanner) (EventRow, error) {
	var i EventRow
	err := s.Scan(
		&i.Seq,
		&i.ID,
		&i.OwnerID,
		&i.Sequence,
		&i.Kind,
		&i.Amount,
		&i.Balance,
		&i.OccurredAt,
		&i.Category,
		&i.Account,
		&i.Description,
		&i.TransferType,
		&i.SourceBank,
		&i.DestinationBank,
		&i.CounterpartID,
		&i.CreatedAt,
	)
	return i, err
}

const createEvent = `-- name: CreateEvent :one
INSERT INTO events (
    id, owner_id, sequence, kind, amount, balance, occurred_at,
    category, account, description, transfer_type, source_bank, destination_bank,
    counterpart_id, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + eventColumns

type CreateEventParams struct {
	ID              string
	OwnerID         string
	Sequence        string
	Kind            string
	Amount          string
	Balance         string
	OccurredAt      string
	Category        string
	Account         string
	Description     string
	TransferType    string
	SourceBank      string
	DestinationBank string
	CounterpartID   string
	CreatedAt       string
}

func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (EventRow, error) {
	row := q.db.QueryRowContext(ctx, createEvent,
		arg.ID,
		arg.OwnerID,
		arg.Sequence,
		arg.Kind,
		arg.Amount,
		arg.Balance,
		arg.OccurredAt,
		arg.Category,
		arg.Account,
		arg.Description,
		arg.TransferType,
		arg.SourceBank,
		arg.DestinationBank,
		arg.CounterpartID,
		arg.CreatedAt,
	)
	return scanEvent(row)
}

const getEvent = `-- name: GetEvent :one
SELECT ` + eventColumns + `
FROM events
WHERE owner_id = ? AND id = ?`

func (q *Queries) GetEvent(ctx context.Context, ownerID, id string) (EventRow, error) {
	return scanEvent(q.db.QueryRowContext(ctx, getEvent, ownerID, id))
}

// RangeParams bounds a sequence scan. Empty Through or After leaves that side open.
type RangeParams struct {
	OwnerID  string
	Sequence string
	Through  string
	After    string
}

const rangeWhere = `
WHERE owner_id = ? AND sequence = ?
  AND (? = '' OR occurred_at <= ?)
  AND (? = '' OR occurred_at > ?)`

func (p RangeParams) args() []interface{} {
	return []interface{}{p.OwnerID, p.Sequence, p.Through, p.Through, p.After, p.After}
}

const listEvents = `-- name: ListEvents :many
SELECT ` + eventColumns + `
FROM events` + rangeWhere + `
ORDER BY occurred_at ASC, seq ASC`

func (q *Queries) ListEvents(ctx context.Context, arg RangeParams) ([]EventRow, error) {
	rows, err := q.db.QueryContext(ctx, listEvents, arg.args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EventRow
	for rows.Next() {
		i, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const lastEvent = `-- name: LastEvent :one
SELECT ` + eventColumns + `
FROM events` + rangeWhere + `
ORDER BY occurred_at DESC, seq DESC
LIMIT 1`

func (q *Queries) LastEvent(ctx context.Context, arg RangeParams) (EventRow, error) {
	return scanEvent(q.db.QueryRowContext(ctx, lastEvent, arg.args()...))
}

const countEvents = `-- name: CountEvents :one
SELECT COUNT(*) FROM events` + rangeWhere

func (q *Queries) CountEvents(ctx context.Context, arg RangeParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countEvents, arg.args()...).Scan(&count)
	return count, err
}

const updateEventBalance = `-- name: UpdateEventBalance :execrows
UPDATE events SET balance = ? WHERE id = ?`

func (q *Queries) UpdateEventBalance(ctx context.Context, balance, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateEventBalance, balance, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteEvent = `-- name: DeleteEvent :execrows
DELETE FROM events WHERE owner_id = ? AND id = ?`

func (q *Queries) DeleteEvent(ctx context.Context, ownerID, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteEvent, ownerID, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listOwners = `-- name: ListOwners :many
SELECT DISTINCT owner_id FROM events ORDER BY owner_id`

func (q *Queries) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listOwners)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var ownerID string
		if err := rows.Scan(&ownerID); err != nil {
			return nil, err
		}
		items = append(items, ownerID)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
