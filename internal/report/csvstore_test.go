package report

import (
	"context"
	"testing"

	"fareboard/internal/core"
	"fareboard/internal/records/csvstore"
)

func TestReportsOverCSVStore(t *testing.T) {
	ctx := context.Background()
	store := csvstore.New(t.TempDir(), nil)
	if err := store.Initialize(ctx, owner); err != nil {
		t.Fatal(err)
	}
	for _, j := range []core.Journey{
		trip("14155550001", 1000, d(2024, 1, 5)),
		trip("14155550002", 1500, d(2024, 1, 20)),
	} {
		if err := store.AppendJourney(ctx, owner, j); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.AppendExpense(ctx, owner, expense("Fuel", 400, d(2024, 1, 10))); err != nil {
		t.Fatal(err)
	}
	svc := NewService(store, nil)

	monthly, err := svc.AggregateRevenue(ctx, owner, d(2024, 1, 1), d(2024, 1, 31), core.Monthly)
	if err != nil {
		t.Fatal(err)
	}
	if len(monthly) != 1 || monthly[0].Period.String() != "2024-01-31" || monthly[0].Revenue.Cents != 2500 {
		t.Fatalf("monthly = %+v", monthly)
	}

	byTrip, err := svc.AggregateRevenue(ctx, owner, d(2024, 1, 1), d(2024, 1, 31), core.Trip)
	if err != nil {
		t.Fatal(err)
	}
	if len(byTrip) != 2 ||
		byTrip[0].Period.String() != "2024-01-05" || byTrip[0].Revenue.Cents != 1000 ||
		byTrip[1].Period.String() != "2024-01-20" || byTrip[1].Revenue.Cents != 1500 {
		t.Fatalf("by trip = %+v", byTrip)
	}

	m, err := svc.ComputeMetrics(ctx, owner, d(2024, 1, 1), d(2024, 1, 31))
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalRevenue.Cents != 2500 || m.TotalExpenses.Cents != 400 || m.NetProfit.Cents != 2100 || m.PassengerCount != 2 {
		t.Fatalf("metrics = %+v", m)
	}

	perf, ok, err := svc.ComputePeriodPerformance(ctx, owner, d(2024, 1, 1), d(2024, 1, 31), core.Trip)
	if err != nil || !ok {
		t.Fatalf("performance ok=%v err=%v", ok, err)
	}
	if perf.TotalTrips != 2 || perf.AvgRevenuePerTrip.Cents != 1250 {
		t.Fatalf("performance = %+v", perf)
	}
}
