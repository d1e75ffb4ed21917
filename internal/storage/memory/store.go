// Package memory is an in-process Record Store used for local development
// and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"registro/internal/core"
	"registro/internal/ledger"
)

var errDuplicateID = errors.New("duplicate event id")

type row struct {
	seq   int64
	event core.Event
}

type Store struct {
	mu   sync.Mutex
	next int64
	rows []row
	now  func() time.Time
}

func New() *Store {
	return &Store{now: time.Now}
}

func (s *Store) Insert(_ context.Context, e core.Event) (core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.event.ID == e.ID {
			return core.Event{}, &core.StorageError{Op: "insert", Err: errDuplicateID}
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	s.next++
	s.rows = append(s.rows, row{seq: s.next, event: e})
	return e, nil
}

func (s *Store) Find(_ context.Context, f ledger.Filter) ([]core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match(f), nil
}

func (s *Store) FindOne(_ context.Context, f ledger.Filter) (core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.match(f)
	if len(out) == 0 {
		return core.Event{}, core.ErrNotFound
	}
	return out[len(out)-1], nil
}

func (s *Store) Count(_ context.Context, f ledger.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.match(f))), nil
}

func (s *Store) Get(_ context.Context, ownerID, id string) (core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.event.ID == id && r.event.OwnerID == ownerID {
			return r.event, nil
		}
	}
	return core.Event{}, core.ErrNotFound
}

func (s *Store) UpdateBalance(_ context.Context, id string, balance core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].event.ID == id {
			s.rows[i].event.Balance = balance
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r.event.ID == id && r.event.OwnerID == ownerID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

// Owners lists every owner with at least one stored event.
func (s *Store) Owners(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	var out []string
	for _, r := range s.rows {
		if _, ok := seen[r.event.OwnerID]; ok {
			continue
		}
		seen[r.event.OwnerID] = struct{}{}
		out = append(out, r.event.OwnerID)
	}
	sort.Strings(out)
	return out, nil
}

// match returns copies of the matching events ordered by (OccurredAt, insertion).
// Callers must hold s.mu.
func (s *Store) match(f ledger.Filter) []core.Event {
	var hits []row
	for _, r := range s.rows {
		e := r.event
		if e.OwnerID != f.OwnerID || e.Sequence != f.Sequence {
			continue
		}
		if !f.Through.IsZero() && e.OccurredAt.After(f.Through) {
			continue
		}
		if !f.After.IsZero() && !e.OccurredAt.After(f.After) {
			continue
		}
		hits = append(hits, r)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if !a.event.OccurredAt.Equal(b.event.OccurredAt) {
			return a.event.OccurredAt.Before(b.event.OccurredAt)
		}
		return a.seq < b.seq
	})
	out := make([]core.Event, len(hits))
	for i, r := range hits {
		out[i] = r.event
	}
	return out
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }
