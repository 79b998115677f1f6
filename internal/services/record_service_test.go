package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"fareboard/internal/core"
	"fareboard/internal/records/memory"
)

type fakePublisher struct {
	mu       sync.Mutex
	journeys []core.Journey
	expenses []core.Expense
	err      error
	closed   bool
}

func (f *fakePublisher) PublishJourney(_ context.Context, _ core.OwnerID, j core.Journey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.journeys = append(f.journeys, j)
	return f.err
}

func (f *fakePublisher) PublishExpense(_ context.Context, _ core.OwnerID, e core.Expense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expenses = append(f.expenses, e)
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

// failingStore fails appends after `allow` successful journey writes.
type failingStore struct {
	*memory.Store
	allow int
	calls int
}

func (s *failingStore) AppendJourney(ctx context.Context, owner core.OwnerID, j core.Journey) error {
	s.calls++
	if s.calls > s.allow {
		return &core.StorageError{Op: "append", Table: "journeys", Err: errors.New("read-only file system")}
	}
	return s.Store.AppendJourney(ctx, owner, j)
}

func validTrip() TripSubmission {
	return TripSubmission{
		Date:        core.NewDate(2024, 1, 5),
		Origin:      "Lagos",
		Destination: "Ibadan",
		Fare:        core.Cents(1000),
		Passengers: []Passenger{
			{Name: "Ada", Phone: "+14155551234"},
			{},
			{Name: "Bola", Phone: "14155550000"},
		},
	}
}

func TestRecordTripAppendsOneJourneyPerPassenger(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &fakePublisher{}
	svc := NewRecordService(store, nil, WithPublisher(pub))

	got, err := svc.RecordTrip(ctx, "default", validTrip())
	if err != nil {
		t.Fatalf("RecordTrip: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("recorded %d journeys, want 2", len(got))
	}
	stored, _ := store.ReadJourneys(ctx, "default")
	if len(stored) != 2 || stored[0].Name != "Ada" || stored[1].Name != "Bola" {
		t.Fatalf("stored = %+v", stored)
	}
	for _, j := range stored {
		if j.Origin != "Lagos" || j.Fare.Cents != 1000 || j.Date != core.NewDate(2024, 1, 5) {
			t.Fatalf("trip fields not copied: %+v", j)
		}
	}
	if len(pub.journeys) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.journeys))
	}
}

func TestValidateTripCollectsAllErrors(t *testing.T) {
	svc := NewRecordService(memory.New(), nil)
	sub := TripSubmission{
		Date: core.NewDate(2024, 1, 5),
		Fare: core.Cents(0),
		Passengers: []Passenger{
			{Name: "Ada"},
			{Phone: "+14155551234"},
			{Name: "Bola", Phone: "123"},
		},
	}
	_, err := svc.ValidateTrip(sub)
	msgs := core.ValidationMessages(err)
	want := []string{
		"Origin and destination are required",
		"Fare amount must be greater than 0",
		"Phone number is required for passenger 1",
		"Name is required for passenger 2",
		"Invalid phone number for passenger 3",
		"At least one passenger must be added",
	}
	if len(msgs) != len(want) {
		t.Fatalf("messages = %q", msgs)
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Fatalf("message %d = %q, want %q", i, msgs[i], want[i])
		}
	}
}

func TestRecordTripRejectsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewRecordService(store, nil)

	sub := validTrip()
	sub.Passengers = append(sub.Passengers, Passenger{Name: "Chidi", Phone: "abc4155551234"})
	if _, err := svc.RecordTrip(ctx, "default", sub); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	stored, _ := store.ReadJourneys(ctx, "default")
	if len(stored) != 0 {
		t.Fatalf("validation failure wrote %d rows", len(stored))
	}
}

func TestRecordTripRequiresPassenger(t *testing.T) {
	sub := validTrip()
	sub.Passengers = []Passenger{{}, {Name: " ", Phone: " "}}
	_, err := NewRecordService(memory.New(), nil).RecordTrip(context.Background(), "default", sub)
	msgs := core.ValidationMessages(err)
	if len(msgs) != 1 || msgs[0] != "At least one passenger must be added" {
		t.Fatalf("messages = %q", msgs)
	}
}

func TestRecordTripEnforcesCapacity(t *testing.T) {
	sub := validTrip()
	sub.Passengers = make([]Passenger, 4)
	for i := range sub.Passengers {
		sub.Passengers[i] = Passenger{Name: "P", Phone: "14155551234"}
	}
	svc := NewRecordService(memory.New(), nil, WithTripCapacity(3))
	if _, err := svc.RecordTrip(context.Background(), "default", sub); !core.IsValidation(err) {
		t.Fatalf("expected capacity validation error, got %v", err)
	}
	if svc.TripCapacity() != 3 {
		t.Fatalf("capacity = %d", svc.TripCapacity())
	}
}

func TestRecordTripReportsOverlongRouteOnce(t *testing.T) {
	sub := validTrip()
	sub.Origin = strings.Repeat("x", 300)
	_, err := NewRecordService(memory.New(), nil).ValidateTrip(sub)
	msgs := core.ValidationMessages(err)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "origin too long") {
		t.Fatalf("messages = %q", msgs)
	}
}

func TestRecordTripStorageFailureStopsBatch(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: memory.New(), allow: 1}
	svc := NewRecordService(store, nil)

	got, err := svc.RecordTrip(ctx, "default", validTrip())
	if !core.IsStorage(err) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("returned %d appended journeys, want 1", len(got))
	}
	stored, _ := store.ReadJourneys(ctx, "default")
	if len(stored) != 1 {
		t.Fatalf("stored %d rows, want 1", len(stored))
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewRecordService(memory.New(), nil, WithPublisher(pub))
	if _, err := svc.RecordTrip(context.Background(), "default", validTrip()); err != nil {
		t.Fatalf("publish failure leaked: %v", err)
	}
	if _, err := svc.RecordExpense(context.Background(), "default", ExpenseSubmission{Type: "fuel", Amount: core.Cents(100), Date: core.NewDate(2024, 1, 1)}); err != nil {
		t.Fatalf("publish failure leaked: %v", err)
	}
}

func TestRecordExpense(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewRecordService(store, core.NewExpenseTypes("Tolls"))

	e, err := svc.RecordExpense(ctx, "default", ExpenseSubmission{Type: " tolls ", Amount: core.Cents(250), Date: core.NewDate(2024, 1, 2), Notes: " bridge "})
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != "Tolls" || e.Notes != "bridge" {
		t.Fatalf("expense = %+v", e)
	}

	cases := []ExpenseSubmission{
		{Type: "Snacks", Amount: core.Cents(1), Date: core.NewDate(2024, 1, 1)},
		{Type: "", Amount: core.Cents(1), Date: core.NewDate(2024, 1, 1)},
		{Type: "Fuel", Amount: core.Cents(0), Date: core.NewDate(2024, 1, 1)},
		{Type: "Fuel", Amount: core.Cents(1)},
	}
	for i, c := range cases {
		if _, err := svc.RecordExpense(ctx, "default", c); !core.IsValidation(err) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	stored, _ := store.ReadExpenses(ctx, "default")
	if len(stored) != 1 {
		t.Fatalf("stored %d expenses, want 1", len(stored))
	}
	var ve *core.ValidationError
	_, err = svc.RecordExpense(ctx, "default", cases[0])
	if !errors.As(err, &ve) || !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("unknown type err = %v", err)
	}
}

func TestRecentRecordsReturnTail(t *testing.T) {
	ctx := context.Background()
	svc := NewRecordService(memory.New(), nil)
	for i := 0; i < 25; i++ {
		sub := validTrip()
		sub.Passengers = []Passenger{{Name: string(rune('A' + i)), Phone: "14155551234"}}
		if _, err := svc.RecordTrip(ctx, "default", sub); err != nil {
			t.Fatal(err)
		}
	}
	recent, err := svc.RecentJourneys(ctx, "default", 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 20 || recent[0].Name != "F" || recent[19].Name != "Y" {
		t.Fatalf("recent = %d rows, first %q", len(recent), recent[0].Name)
	}
	all, _ := svc.RecentJourneys(ctx, "default", 0)
	if len(all) != 25 {
		t.Fatalf("all = %d", len(all))
	}
	es, err := svc.RecentExpenses(ctx, "default", 10)
	if err != nil || len(es) != 0 {
		t.Fatalf("expenses = %v, %v", es, err)
	}
}

func TestInvalidOwnerRejected(t *testing.T) {
	svc := NewRecordService(memory.New(), nil)
	if _, err := svc.RecordTrip(context.Background(), "../x", validTrip()); !errors.Is(err, core.ErrInvalidOwner) {
		t.Fatalf("err = %v", err)
	}
}

func TestCloseClosesPublisher(t *testing.T) {
	pub := &fakePublisher{}
	if err := NewRecordService(memory.New(), nil, WithPublisher(pub)).Close(); err != nil {
		t.Fatal(err)
	}
	if !pub.closed {
		t.Fatal("publisher not closed")
	}
	if err := NewRecordService(memory.New(), nil).Close(); err != nil {
		t.Fatalf("Close without publisher: %v", err)
	}
}
