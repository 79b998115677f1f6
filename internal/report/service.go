package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fareboard/internal/core"
	"fareboard/internal/log"
	"fareboard/internal/records"
)

// Service computes reports over a record store fixed at construction.
// Every call re-reads the owner's tables; nothing is cached here.
type Service struct {
	store  records.Reader
	logger *log.Logger
}

func NewService(store records.Reader, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{store: store, logger: logger.WithComponent(log.ComponentReport)}
}

func granularityError(g core.Granularity, err error) error {
	return &core.ValidationError{Field: "granularity", Msg: fmt.Sprintf("unsupported granularity %q", g), Err: err}
}

// AggregateRevenue sums fares per period for journeys with start <= date <= end.
// Only non-empty periods are returned, in ascending order.
func (s *Service) AggregateRevenue(ctx context.Context, owner core.OwnerID, start, end core.Date, g core.Granularity) ([]core.PeriodRevenue, error) {
	b, err := BucketerFor(g)
	if err != nil {
		return nil, granularityError(g, err)
	}
	journeys, err := s.store.ReadJourneys(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("aggregate revenue: %w", err)
	}
	return aggregate(journeys, start, end, b), nil
}

// ComputeMetrics returns revenue, expense and passenger totals for the range.
func (s *Service) ComputeMetrics(ctx context.Context, owner core.OwnerID, start, end core.Date) (core.Metrics, error) {
	journeys, err := s.store.ReadJourneys(ctx, owner)
	if err != nil {
		return core.Metrics{}, fmt.Errorf("compute metrics: %w", err)
	}
	expenses, err := s.store.ReadExpenses(ctx, owner)
	if err != nil {
		return core.Metrics{}, fmt.Errorf("compute metrics: %w", err)
	}
	return metrics(journeys, expenses, start, end), nil
}

// ComputePeriodPerformance returns the scorecard for the range. The bool is
// false when no journey falls in range; callers should show nothing rather
// than a zero row. The granularity is validated but does not change the
// figures, which are always per trip-date.
func (s *Service) ComputePeriodPerformance(ctx context.Context, owner core.OwnerID, start, end core.Date, g core.Granularity) (core.PeriodPerformance, bool, error) {
	if _, err := BucketerFor(g); err != nil {
		return core.PeriodPerformance{}, false, granularityError(g, err)
	}
	journeys, err := s.store.ReadJourneys(ctx, owner)
	if err != nil {
		return core.PeriodPerformance{}, false, fmt.Errorf("compute performance: %w", err)
	}
	expenses, err := s.store.ReadExpenses(ctx, owner)
	if err != nil {
		return core.PeriodPerformance{}, false, fmt.Errorf("compute performance: %w", err)
	}
	p, ok := performance(journeys, expenses, start, end)
	return p, ok, nil
}

// ExpenseBreakdown sums expense amounts per type in range, sorted by type.
func (s *Service) ExpenseBreakdown(ctx context.Context, owner core.OwnerID, start, end core.Date) ([]core.ExpenseTypeAmount, error) {
	expenses, err := s.store.ReadExpenses(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("expense breakdown: %w", err)
	}
	return breakdown(expenses, start, end), nil
}

// Summary bundles every report for one range.
type Summary struct {
	Owner       core.OwnerID             `json:"owner"`
	Start       core.Date                `json:"start"`
	End         core.Date                `json:"end"`
	Granularity core.Granularity         `json:"granularity"`
	Metrics     core.Metrics             `json:"metrics"`
	Revenue     []core.PeriodRevenue     `json:"revenue"`
	Performance *core.PeriodPerformance  `json:"performance,omitempty"`
	Expenses    []core.ExpenseTypeAmount `json:"expenses"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// BuildSummary computes all reports from a single read of each table.
func (s *Service) BuildSummary(ctx context.Context, owner core.OwnerID, start, end core.Date, g core.Granularity) (Summary, error) {
	b, err := BucketerFor(g)
	if err != nil {
		return Summary{}, granularityError(g, err)
	}
	journeys, err := s.store.ReadJourneys(ctx, owner)
	if err != nil {
		return Summary{}, fmt.Errorf("build summary: %w", err)
	}
	expenses, err := s.store.ReadExpenses(ctx, owner)
	if err != nil {
		return Summary{}, fmt.Errorf("build summary: %w", err)
	}

	sum := Summary{
		Owner:       owner,
		Start:       start,
		End:         end,
		Granularity: g,
		Metrics:     metrics(journeys, expenses, start, end),
		Revenue:     aggregate(journeys, start, end, b),
		Expenses:    breakdown(expenses, start, end),
		GeneratedAt: time.Now().UTC(),
	}
	if p, ok := performance(journeys, expenses, start, end); ok {
		sum.Performance = &p
	}
	s.logger.DebugContext(ctx, "Summary built",
		log.FieldOwner, owner,
		log.FieldStart, start.String(),
		log.FieldEnd, end.String(),
		log.FieldGranularity, g,
		log.FieldRows, len(journeys)+len(expenses))
	return sum, nil
}

func aggregate(journeys []core.Journey, start, end core.Date, b Bucketer) []core.PeriodRevenue {
	byPeriod := make(map[core.Date]*core.PeriodRevenue)
	for _, j := range journeys {
		if !j.Date.Within(start, end) {
			continue
		}
		label := b.Bucket(j.Date)
		pr, ok := byPeriod[label]
		if !ok {
			pr = &core.PeriodRevenue{Period: label}
			byPeriod[label] = pr
		}
		pr.Revenue = pr.Revenue.Add(j.Fare)
		pr.Journeys++
	}

	out := make([]core.PeriodRevenue, 0, len(byPeriod))
	for _, pr := range byPeriod {
		out = append(out, *pr)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Period.Before(out[k].Period.Time) })
	return out
}

func metrics(journeys []core.Journey, expenses []core.Expense, start, end core.Date) core.Metrics {
	var m core.Metrics
	phones := make(map[string]struct{})
	for _, j := range journeys {
		if !j.Date.Within(start, end) {
			continue
		}
		m.TotalRevenue = m.TotalRevenue.Add(j.Fare)
		m.PassengerCount++
		phones[j.Phone] = struct{}{}
	}
	m.UniquePassengers = len(phones)
	m.TotalExpenses = expenseTotal(expenses, start, end)
	m.NetProfit = m.TotalRevenue.Sub(m.TotalExpenses)
	return m
}

func performance(journeys []core.Journey, expenses []core.Expense, start, end core.Date) (core.PeriodPerformance, bool) {
	var (
		p       core.PeriodPerformance
		revenue core.Money
		dates   = make(map[core.Date]struct{})
	)
	for _, j := range journeys {
		if !j.Date.Within(start, end) {
			continue
		}
		dates[j.Date] = struct{}{}
		p.TotalPassengers++
		revenue = revenue.Add(j.Fare)
	}
	if p.TotalPassengers == 0 {
		return core.PeriodPerformance{}, false
	}

	p.TotalTrips = len(dates)
	trips := decimal.NewFromInt(int64(p.TotalTrips))
	p.AvgPassengersPerTrip = decimal.NewFromInt(int64(p.TotalPassengers)).Div(trips).Round(2)
	p.AvgRevenuePerTrip = core.MoneyFromDecimal(revenue.Decimal().Div(trips))
	p.TotalExpenses = expenseTotal(expenses, start, end)
	return p, true
}

func breakdown(expenses []core.Expense, start, end core.Date) []core.ExpenseTypeAmount {
	totals := make(map[core.ExpenseType]core.Money)
	for _, e := range expenses {
		if e.Date.Within(start, end) {
			totals[e.Type] = totals[e.Type].Add(e.Amount)
		}
	}
	out := make([]core.ExpenseTypeAmount, 0, len(totals))
	for t, amount := range totals {
		out = append(out, core.ExpenseTypeAmount{Type: t, Amount: amount})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Type < out[k].Type })
	return out
}

func expenseTotal(expenses []core.Expense, start, end core.Date) core.Money {
	var total core.Money
	for _, e := range expenses {
		if e.Date.Within(start, end) {
			total = total.Add(e.Amount)
		}
	}
	return total
}
