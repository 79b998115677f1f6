package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"fareboard/internal/core"
	"fareboard/internal/log"
	"fareboard/internal/records"
)

// DefaultTripCapacity is the number of passenger rows a trip form offers.
const DefaultTripCapacity = 11

// EventPublisher announces appended records to downstream consumers.
type EventPublisher interface {
	PublishJourney(ctx context.Context, owner core.OwnerID, j core.Journey) error
	PublishExpense(ctx context.Context, owner core.OwnerID, e core.Expense) error
}

type Passenger struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// TripSubmission is one vehicle trip with its passengers. Each passenger
// becomes one journey row sharing the trip's date, route and fare.
type TripSubmission struct {
	Date        core.Date   `json:"journey_date"`
	Origin      string      `json:"origin"`
	Destination string      `json:"destination"`
	Fare        core.Money  `json:"fare"`
	Passengers  []Passenger `json:"passengers"`
}

type ExpenseSubmission struct {
	Type   string     `json:"expense_type"`
	Amount core.Money `json:"amount"`
	Date   core.Date  `json:"date"`
	Notes  string     `json:"notes"`
}

// RecordService validates submissions and appends them to the record store.
// Publishing is best effort: a failed publish is logged, never returned.
type RecordService struct {
	store            records.Store
	types            *core.ExpenseTypes
	publisher        EventPublisher
	capacity         int
	logger           *log.Logger
	onPublishFailure func()
	initialized      sync.Map
}

type Option func(*RecordService)

func WithPublisher(p EventPublisher) Option {
	return func(s *RecordService) { s.publisher = p }
}

func WithTripCapacity(n int) Option {
	return func(s *RecordService) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithPublishFailureHook registers fn to run after every failed publish.
func WithPublishFailureHook(fn func()) Option {
	return func(s *RecordService) { s.onPublishFailure = fn }
}

func WithLogger(l *log.Logger) Option {
	return func(s *RecordService) { s.logger = l }
}

func NewRecordService(store records.Store, types *core.ExpenseTypes, opts ...Option) *RecordService {
	s := &RecordService{
		store:    store,
		types:    types,
		capacity: DefaultTripCapacity,
		logger:   log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.types == nil {
		s.types = core.NewExpenseTypes()
	}
	s.logger = s.logger.WithComponent(log.ComponentRecords)
	return s
}

// ExpenseTypes lists the configured expense types.
func (s *RecordService) ExpenseTypes() []core.ExpenseType {
	return s.types.List()
}

// TripCapacity is the maximum number of passengers per trip.
func (s *RecordService) TripCapacity() int { return s.capacity }

// Initialize prepares owner's tables. It runs at most once per owner per
// process; the store's own Initialize is idempotent anyway.
func (s *RecordService) Initialize(ctx context.Context, owner core.OwnerID) error {
	if _, done := s.initialized.Load(owner); done {
		return nil
	}
	if err := s.store.Initialize(ctx, owner); err != nil {
		return fmt.Errorf("initialize records: %w", err)
	}
	s.initialized.Store(owner, struct{}{})
	return nil
}

// ValidateTrip checks a submission and returns the journeys it would append.
// All problems are reported together as joined ValidationErrors.
func (s *RecordService) ValidateTrip(sub TripSubmission) ([]core.Journey, error) {
	var errs []error
	fail := func(field, msg string, cause error) {
		errs = append(errs, &core.ValidationError{Field: field, Msg: msg, Err: cause})
	}

	origin, destination := strings.TrimSpace(sub.Origin), strings.TrimSpace(sub.Destination)
	if origin == "" || destination == "" {
		fail("route", "Origin and destination are required", core.ErrRequired)
	}
	if sub.Fare.Validate() != nil {
		fail("fare", "Fare amount must be greater than 0", core.ErrInvalidAmount)
	}
	if sub.Date.Validate() != nil {
		fail("journey_date", "Journey date is required", core.ErrInvalidDate)
	}
	if len(sub.Passengers) > s.capacity {
		fail("passengers", fmt.Sprintf("At most %d passengers per trip", s.capacity), nil)
	}

	tripValid := len(errs) == 0
	reported := make(map[string]bool)
	var (
		journeys []core.Journey
		named    int
	)
	for i, p := range sub.Passengers {
		name, phone := strings.TrimSpace(p.Name), strings.TrimSpace(p.Phone)
		if name == "" && phone == "" {
			continue
		}
		n := i + 1
		switch {
		case name == "":
			fail("name", fmt.Sprintf("Name is required for passenger %d", n), core.ErrRequired)
			continue
		case phone == "":
			fail("phone", fmt.Sprintf("Phone number is required for passenger %d", n), core.ErrRequired)
			continue
		case !core.ValidatePhone(phone):
			fail("phone", fmt.Sprintf("Invalid phone number for passenger %d", n), core.ErrInvalidPhone)
			continue
		}
		named++
		if !tripValid {
			continue
		}
		j, err := core.NewJourney(name, phone, origin, destination, sub.Fare, sub.Date)
		if err != nil {
			var ve *core.ValidationError
			switch {
			case errors.As(err, &ve) && (ve.Field == "name" || ve.Field == "phone"):
				fail(ve.Field, fmt.Sprintf("%s for passenger %d", ve.Msg, n), ve.Err)
			case errors.As(err, &ve) && !reported[ve.Field]:
				reported[ve.Field] = true
				errs = append(errs, ve)
			}
			continue
		}
		journeys = append(journeys, j)
	}
	if named == 0 {
		fail("passengers", "At least one passenger must be added", core.ErrRequired)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return journeys, nil
}

// RecordTrip validates sub and appends one journey per passenger. Nothing is
// written when validation fails. A storage failure stops the batch; rows
// already appended stay, and their journeys are returned with the error.
func (s *RecordService) RecordTrip(ctx context.Context, owner core.OwnerID, sub TripSubmission) ([]core.Journey, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	journeys, err := s.ValidateTrip(sub)
	if err != nil {
		return nil, err
	}
	if err := s.Initialize(ctx, owner); err != nil {
		return nil, err
	}

	for i, j := range journeys {
		if err := s.store.AppendJourney(ctx, owner, j); err != nil {
			s.logger.ErrorContext(ctx, "Trip partially recorded",
				log.FieldOwner, owner,
				log.FieldPassengers, i,
				log.FieldError, err)
			return journeys[:i], fmt.Errorf("record trip: passenger %d: %w", i+1, err)
		}
		s.publishJourney(ctx, owner, j)
	}

	s.logger.InfoContext(ctx, "Trip recorded",
		log.FieldOwner, owner,
		log.FieldDate, sub.Date.String(),
		log.FieldPassengers, len(journeys),
		log.FieldAmountCents, sub.Fare.Cents)
	return journeys, nil
}

// RecordExpense validates sub against the configured types and appends it.
func (s *RecordService) RecordExpense(ctx context.Context, owner core.OwnerID, sub ExpenseSubmission) (core.Expense, error) {
	if err := owner.Validate(); err != nil {
		return core.Expense{}, err
	}
	typ, ok := s.types.Canonical(sub.Type)
	if !ok {
		if strings.TrimSpace(sub.Type) == "" {
			return core.Expense{}, &core.ValidationError{Field: "expense_type", Msg: "expense type is required", Err: core.ErrRequired}
		}
		return core.Expense{}, &core.ValidationError{Field: "expense_type", Msg: fmt.Sprintf("unknown expense type %q", sub.Type), Err: core.ErrUnknownCategory}
	}
	e, err := core.NewExpense(typ, sub.Amount, sub.Date, sub.Notes)
	if err != nil {
		return core.Expense{}, err
	}
	if err := s.Initialize(ctx, owner); err != nil {
		return core.Expense{}, err
	}
	if err := s.store.AppendExpense(ctx, owner, e); err != nil {
		return core.Expense{}, fmt.Errorf("record expense: %w", err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishExpense(ctx, owner, e); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish expense event", log.FieldOwner, owner, log.FieldError, err)
			s.publishFailed()
		}
	}
	return e, nil
}

func (s *RecordService) publishJourney(ctx context.Context, owner core.OwnerID, j core.Journey) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJourney(ctx, owner, j); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish journey event", log.FieldOwner, owner, log.FieldError, err)
		s.publishFailed()
	}
}

func (s *RecordService) publishFailed() {
	if s.onPublishFailure != nil {
		s.onPublishFailure()
	}
}

// RecentJourneys returns the last limit journeys in insertion order.
// A non-positive limit returns all of them.
func (s *RecordService) RecentJourneys(ctx context.Context, owner core.OwnerID, limit int) ([]core.Journey, error) {
	js, err := s.store.ReadJourneys(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("recent journeys: %w", err)
	}
	return tail(js, limit), nil
}

func (s *RecordService) RecentExpenses(ctx context.Context, owner core.OwnerID, limit int) ([]core.Expense, error) {
	es, err := s.store.ReadExpenses(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("recent expenses: %w", err)
	}
	return tail(es, limit), nil
}

func tail[T any](in []T, n int) []T {
	if n <= 0 || len(in) <= n {
		return in
	}
	return in[len(in)-n:]
}

// Close releases the publisher when it holds a connection.
func (s *RecordService) Close() error {
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
