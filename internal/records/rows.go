package records

import (
	"fmt"

	"fareboard/internal/core"
)

// JourneyRow encodes j in JourneyColumns order.
func JourneyRow(j core.Journey) []string {
	return []string{j.Name, j.Phone, j.Origin, j.Destination, j.Fare.String(), j.Date.String()}
}

// ParseJourneyRow decodes a JourneyColumns-ordered row. It converts types
// only; record invariants were enforced when the row was written.
func ParseJourneyRow(row []string) (core.Journey, error) {
	if len(row) != len(JourneyColumns) {
		return core.Journey{}, fmt.Errorf("%w: journey row has %d fields, want %d", core.ErrMalformedData, len(row), len(JourneyColumns))
	}
	fare, err := core.ParseMoney(row[4])
	if err != nil {
		return core.Journey{}, fmt.Errorf("%w: fare: %v", core.ErrMalformedData, err)
	}
	date, err := core.ParseDate(row[5])
	if err != nil {
		return core.Journey{}, fmt.Errorf("%w: journey_date: %v", core.ErrMalformedData, err)
	}
	return core.Journey{
		Name:        row[0],
		Phone:       row[1],
		Origin:      row[2],
		Destination: row[3],
		Fare:        fare,
		Date:        date,
	}, nil
}

// ExpenseRow encodes e in ExpenseColumns order.
func ExpenseRow(e core.Expense) []string {
	return []string{string(e.Type), e.Amount.String(), e.Date.String(), e.Notes}
}

func ParseExpenseRow(row []string) (core.Expense, error) {
	if len(row) != len(ExpenseColumns) {
		return core.Expense{}, fmt.Errorf("%w: expense row has %d fields, want %d", core.ErrMalformedData, len(row), len(ExpenseColumns))
	}
	amount, err := core.ParseMoney(row[1])
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: amount: %v", core.ErrMalformedData, err)
	}
	date, err := core.ParseDate(row[2])
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: date: %v", core.ErrMalformedData, err)
	}
	return core.Expense{
		Type:   core.ExpenseType(row[0]),
		Amount: amount,
		Date:   date,
		Notes:  row[3],
	}, nil
}

// HeaderMatches reports whether got equals the declared columns exactly.
func HeaderMatches(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
