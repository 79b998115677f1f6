// Package records defines the append-only record store ports shared by the
// CSV, SQLite and in-memory adapters, plus the row codec for the flat-file
// layout.
package records

import (
	"context"

	"fareboard/internal/core"
)

const (
	JourneysTable = "journeys"
	ExpensesTable = "expenses"
)

var (
	// JourneyColumns is the declared header of the journeys table.
	JourneyColumns = []string{"name", "phone", "origin", "destination", "fare", "journey_date"}
	// ExpenseColumns is the declared header of the expenses table.
	ExpenseColumns = []string{"expense_type", "amount", "date", "notes"}
)

// Ports for the record store.
type (
	Initializer interface {
		// Initialize ensures both tables exist for owner. It never truncates data.
		Initialize(ctx context.Context, owner core.OwnerID) error
	}

	JourneyWriter interface {
		AppendJourney(ctx context.Context, owner core.OwnerID, j core.Journey) error
	}

	ExpenseWriter interface {
		AppendExpense(ctx context.Context, owner core.OwnerID, e core.Expense) error
	}

	// Reader returns full tables in insertion order. Missing data reads as an
	// empty, non-nil slice.
	Reader interface {
		ReadJourneys(ctx context.Context, owner core.OwnerID) ([]core.Journey, error)
		ReadExpenses(ctx context.Context, owner core.OwnerID) ([]core.Expense, error)
	}

	Store interface {
		Initializer
		JourneyWriter
		ExpenseWriter
		Reader
	}
)
