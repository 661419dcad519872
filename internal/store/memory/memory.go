package memory

import (
	"context"
	"sync"

	"expenselog/internal/core"
)

// Store keeps records in process memory, in insertion order.
type Store struct {
	mu     sync.Mutex
	order  []string
	byDate map[string]core.Record
}

func New() *Store {
	return &Store{byDate: make(map[string]core.Record)}
}

// Upsert replaces the items of an existing record or appends a new one.
func (s *Store) Upsert(_ context.Context, date core.Date, items []core.Item) (core.Record, bool, error) {
	rec := core.NewRecord(date, items)
	key := date.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.byDate[key]
	if !exists {
		s.order = append(s.order, key)
	}
	s.byDate[key] = rec
	return core.NewRecord(rec.Date, rec.Items), !exists, nil
}

func (s *Store) FindByDate(_ context.Context, date core.Date) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byDate[date.String()]
	if !ok {
		return core.Record{}, &core.NotFoundError{Date: date}
	}
	return core.NewRecord(rec.Date, rec.Items), nil
}

func (s *Store) FindAll(_ context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Record, 0, len(s.order))
	for _, key := range s.order {
		rec := s.byDate[key]
		out = append(out, core.NewRecord(rec.Date, rec.Items))
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}
