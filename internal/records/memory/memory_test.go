package memory

import (
	"context"
	"testing"

	"fareboard/internal/core"
)

func TestStoreAppendAndRead(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Initialize(ctx, "default"); err != nil {
		t.Fatal(err)
	}
	js, _ := s.ReadJourneys(ctx, "default")
	if js == nil || len(js) != 0 {
		t.Fatalf("expected empty slice, got %v", js)
	}

	j := core.Journey{Name: "Ada", Phone: "14155551234", Origin: "A", Destination: "B", Fare: core.Cents(500), Date: core.NewDate(2024, 1, 1)}
	if err := s.AppendJourney(ctx, "default", j); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendExpense(ctx, "default", core.Expense{Type: "Fuel", Amount: core.Cents(100), Date: core.NewDate(2024, 1, 1)}); err != nil {
		t.Fatal(err)
	}

	js, _ = s.ReadJourneys(ctx, "default")
	if len(js) != 1 || js[0] != j {
		t.Fatalf("journeys = %+v", js)
	}
	// Returned slices are copies.
	js[0].Name = "mutated"
	again, _ := s.ReadJourneys(ctx, "default")
	if again[0].Name != "Ada" {
		t.Fatal("store data mutated through returned slice")
	}

	es, _ := s.ReadExpenses(ctx, "other")
	if len(es) != 0 {
		t.Fatalf("owner isolation broken: %v", es)
	}
}

func TestStoreRejectsInvalidOwner(t *testing.T) {
	if err := New().Initialize(context.Background(), "a/b"); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
