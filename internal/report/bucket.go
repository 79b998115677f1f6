// Package report aggregates journeys and expenses into revenue buckets,
// range metrics, the period scorecard and the expense breakdown.
//
// Bucketing uses the Strategy pattern: each granularity has a Bucketer that
// maps a journey date to the label date of its period.
package report

import (
	"fmt"
	"time"

	"fareboard/internal/core"
)

// Bucketer maps a date to the label of the period containing it.
type Bucketer interface {
	Bucket(d core.Date) core.Date
}

// TripBucketer groups by exact journey date.
type TripBucketer struct{}

func (TripBucketer) Bucket(d core.Date) core.Date { return d }

// WeeklyBucketer groups by ISO week; the label is the week's Monday.
type WeeklyBucketer struct{}

func (WeeklyBucketer) Bucket(d core.Date) core.Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// MonthlyBucketer groups by calendar month; the label is the month's last day.
type MonthlyBucketer struct{}

func (MonthlyBucketer) Bucket(d core.Date) core.Date {
	return core.Date{Time: time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC)}
}

var bucketers = map[core.Granularity]Bucketer{
	core.Trip:    TripBucketer{},
	core.Weekly:  WeeklyBucketer{},
	core.Monthly: MonthlyBucketer{},
}

// BucketerFor returns the strategy for g.
func BucketerFor(g core.Granularity) (Bucketer, error) {
	b, ok := bucketers[g]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidGranularity, g)
	}
	return b, nil
}
