package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Granularity selects how journeys are grouped into revenue periods.
type Granularity string

const (
	Trip    Granularity = "trip"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

var ErrInvalidGranularity = errors.New("invalid granularity")

// ParseGranularity accepts the canonical names plus "daily" and
// "trip-based" as aliases for Trip. Empty input selects Trip.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "trip", "trip-based", "daily":
		return Trip, nil
	case "weekly", "week":
		return Weekly, nil
	case "monthly", "month":
		return Monthly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
	}
}

// PeriodRevenue is the fare total of one aggregation bucket.
type PeriodRevenue struct {
	Period   Date  `json:"period"`
	Revenue  Money `json:"revenue"`
	Journeys int   `json:"journeys"`
}

// Metrics are the headline figures over a date range.
type Metrics struct {
	TotalRevenue     Money `json:"total_revenue"`
	TotalExpenses    Money `json:"total_expenses"`
	NetProfit        Money `json:"net_profit"`
	PassengerCount   int   `json:"passenger_count"`
	UniquePassengers int   `json:"unique_passengers"`
}

// PeriodPerformance is the per-range scorecard. A trip is a distinct
// journey date.
type PeriodPerformance struct {
	TotalTrips           int             `json:"total_trips"`
	TotalPassengers      int             `json:"total_passengers"`
	AvgPassengersPerTrip decimal.Decimal `json:"avg_passengers_per_trip"`
	AvgRevenuePerTrip    Money           `json:"avg_revenue_per_trip"`
	TotalExpenses        Money           `json:"total_expenses"`
}

// ExpenseTypeAmount is the expense total of one type.
type ExpenseTypeAmount struct {
	Type   ExpenseType `json:"expense_type"`
	Amount Money       `json:"amount"`
}
