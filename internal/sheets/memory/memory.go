// Package memory is an in-process sheets.Mirror used by the mirror worker
// when no spreadsheet is configured, and by tests.
package memory

import (
	"context"
	"sync"

	"fareboard/internal/core"
	"fareboard/internal/sheets"
)

var _ sheets.Mirror = (*Store)(nil)

type Store struct {
	mu       sync.Mutex
	journeys [][]string
	expenses [][]string
}

func New() *Store { return &Store{} }

func (s *Store) EnsureHeaders(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.journeys) == 0 {
		s.journeys = append(s.journeys, sheets.JourneyHeader())
	}
	if len(s.expenses) == 0 {
		s.expenses = append(s.expenses, sheets.ExpenseHeader())
	}
	return nil
}

func (s *Store) AppendJourney(_ context.Context, owner core.OwnerID, j core.Journey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journeys = append(s.journeys, sheets.JourneyValues(owner, j))
	return nil
}

func (s *Store) AppendExpense(_ context.Context, owner core.OwnerID, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, sheets.ExpenseValues(owner, e))
	return nil
}

// Journeys returns a copy of the journeys sheet, header included.
func (s *Store) Journeys() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRows(s.journeys)
}

// Expenses returns a copy of the expenses sheet, header included.
func (s *Store) Expenses() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRows(s.expenses)
}

func copyRows(in [][]string) [][]string {
	out := make([][]string, len(in))
	for i, r := range in {
		out[i] = append([]string(nil), r...)
	}
	return out
}
