// Package sheets mirrors appended records into a spreadsheet. The record
// store stays authoritative; the mirror is a best-effort copy for people who
// read the books in a spreadsheet.
package sheets

import (
	"context"

	"fareboard/internal/core"
	"fareboard/internal/records"
)

// Mirror is the outbound port implemented by the Google and memory adapters.
type Mirror interface {
	// EnsureHeaders writes the header row of each sheet when it is empty.
	EnsureHeaders(ctx context.Context) error
	AppendJourney(ctx context.Context, owner core.OwnerID, j core.Journey) error
	AppendExpense(ctx context.Context, owner core.OwnerID, e core.Expense) error
}

// OwnerColumn prefixes every mirrored row so one sheet can hold many owners.
const OwnerColumn = "owner"

// JourneyHeader is the header row of the journeys sheet.
func JourneyHeader() []string {
	return append([]string{OwnerColumn}, records.JourneyColumns...)
}

// ExpenseHeader is the header row of the expenses sheet.
func ExpenseHeader() []string {
	return append([]string{OwnerColumn}, records.ExpenseColumns...)
}

// JourneyValues is the mirrored row for j.
func JourneyValues(owner core.OwnerID, j core.Journey) []string {
	return append([]string{owner.String()}, records.JourneyRow(j)...)
}

// ExpenseValues is the mirrored row for e.
func ExpenseValues(owner core.OwnerID, e core.Expense) []string {
	return append([]string{owner.String()}, records.ExpenseRow(e)...)
}
