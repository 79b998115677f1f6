package http

import (
	"context"
	"net/http"

	"fareboard/internal/core"
	"fareboard/internal/log"
	"fareboard/internal/records"
	"fareboard/internal/services"
)

// RecordService is the part of services.RecordService the handlers use.
type RecordService interface {
	ExpenseTypes() []core.ExpenseType
	TripCapacity() int
	RecordTrip(ctx context.Context, owner core.OwnerID, sub services.TripSubmission) ([]core.Journey, error)
	RecordExpense(ctx context.Context, owner core.OwnerID, sub services.ExpenseSubmission) (core.Expense, error)
	RecentJourneys(ctx context.Context, owner core.OwnerID, limit int) ([]core.Journey, error)
	RecentExpenses(ctx context.Context, owner core.OwnerID, limit int) ([]core.Expense, error)
}

const (
	defaultJourneyLimit = 20
	defaultExpenseLimit = 10
)

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) handleExpenseTypes(w http.ResponseWriter, _ *http.Request) {
	NewResponse().JSON(map[string]any{
		"expense_types": s.records.ExpenseTypes(),
		"trip_capacity": s.records.TripCapacity(),
	}).Write(w)
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := parseTripSubmission(r, s.records.TripCapacity())
	if err != nil {
		writeError(w, r, err)
		return
	}
	journeys, err := s.records.RecordTrip(r.Context(), owner, sub)
	if len(journeys) > 0 {
		s.reports.Invalidate(owner)
		if s.metrics != nil {
			s.metrics.RecordAppended(records.JourneysTable, len(journeys))
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(map[string]any{
		"journeys": journeys,
		"count":    len(journeys),
	}).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := parseExpenseSubmission(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	expense, err := s.records.RecordExpense(r.Context(), owner, sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.reports.Invalidate(owner)
	if s.metrics != nil {
		s.metrics.RecordAppended(records.ExpensesTable, 1)
	}
	NewResponse().Status(http.StatusCreated).JSON(expense).Write(w)
}

func (s *Server) handleListJourneys(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := parseLimit(r.URL.Query(), defaultJourneyLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	journeys, err := s.records.RecentJourneys(r.Context(), owner, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if journeys == nil {
		journeys = []core.Journey{}
	}
	NewResponse().JSON(map[string]any{"journeys": journeys}).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := parseLimit(r.URL.Query(), defaultExpenseLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	expenses, err := s.records.RecentExpenses(r.Context(), owner, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	NewResponse().JSON(map[string]any{"expenses": expenses}).Write(w)
}
