// Package memory is an in-process record store for tests and the memory backend.
package memory

import (
	"context"
	"sync"

	"fareboard/internal/core"
	"fareboard/internal/records"
)

type tables struct {
	journeys []core.Journey
	expenses []core.Expense
}

type Store struct {
	mu     sync.Mutex
	owners map[core.OwnerID]*tables
}

var _ records.Store = (*Store)(nil)

func New() *Store {
	return &Store{owners: make(map[core.OwnerID]*tables)}
}

func (s *Store) tablesFor(owner core.OwnerID) *tables {
	t, ok := s.owners[owner]
	if !ok {
		t = &tables{}
		s.owners[owner] = t
	}
	return t
}

func (s *Store) Initialize(_ context.Context, owner core.OwnerID) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tablesFor(owner)
	return nil
}

func (s *Store) AppendJourney(_ context.Context, owner core.OwnerID, j core.Journey) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tablesFor(owner)
	t.journeys = append(t.journeys, j)
	return nil
}

func (s *Store) AppendExpense(_ context.Context, owner core.OwnerID, e core.Expense) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tablesFor(owner)
	t.expenses = append(t.expenses, e)
	return nil
}

func (s *Store) ReadJourneys(_ context.Context, owner core.OwnerID) ([]core.Journey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Journey{}
	if t, ok := s.owners[owner]; ok {
		out = append(out, t.journeys...)
	}
	return out, nil
}

func (s *Store) ReadExpenses(_ context.Context, owner core.OwnerID) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Expense{}
	if t, ok := s.owners[owner]; ok {
		out = append(out, t.expenses...)
	}
	return out, nil
}
