package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fareboard/internal/core"
	"fareboard/internal/services"
)

const maxBodyBytes = 1 << 20

// RequestBodyParser reads a JSON or form-encoded body once and serves
// scalar fields from whichever it was.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body. Content that starts with '{' is JSON, anything
// else is form-encoded.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}
	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		p.err = json.Unmarshal(p.body, &p.jsonData)
		return p.err
	}
	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a scalar field, sanitized and trimmed.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Decode unmarshals a JSON body into v.
func (p *RequestBodyParser) Decode(v any) error {
	return json.Unmarshal(p.body, v)
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// parseTripSubmission reads a trip from JSON (passengers as an array) or a
// form (passenger_name_N / passenger_phone_N for N = 1..capacity).
func parseTripSubmission(r *http.Request, capacity int) (services.TripSubmission, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return services.TripSubmission{}, badRequest("malformed request body")
	}
	if p.IsJSON() {
		var sub services.TripSubmission
		if err := p.Decode(&sub); err != nil {
			return services.TripSubmission{}, badRequest(fmt.Sprintf("malformed trip: %v", err))
		}
		return sub, nil
	}

	sub := services.TripSubmission{
		Origin:      p.Get("origin"),
		Destination: p.Get("destination"),
	}
	var err error
	if sub.Date, err = formDate(p.Get("journey_date"), "journey_date"); err != nil {
		return sub, err
	}
	if sub.Fare, err = formAmount(p.Get("fare"), "fare"); err != nil {
		return sub, err
	}
	for i := 1; i <= capacity; i++ {
		sub.Passengers = append(sub.Passengers, services.Passenger{
			Name:  p.Get(fmt.Sprintf("passenger_name_%d", i)),
			Phone: p.Get(fmt.Sprintf("passenger_phone_%d", i)),
		})
	}
	return sub, nil
}

func parseExpenseSubmission(r *http.Request) (services.ExpenseSubmission, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return services.ExpenseSubmission{}, badRequest("malformed request body")
	}
	if p.IsJSON() {
		var sub services.ExpenseSubmission
		if err := p.Decode(&sub); err != nil {
			return services.ExpenseSubmission{}, badRequest(fmt.Sprintf("malformed expense: %v", err))
		}
		return sub, nil
	}

	sub := services.ExpenseSubmission{Type: p.Get("expense_type"), Notes: p.Get("notes")}
	var err error
	if sub.Date, err = formDate(p.Get("date"), "date"); err != nil {
		return sub, err
	}
	if sub.Amount, err = formAmount(p.Get("amount"), "amount"); err != nil {
		return sub, err
	}
	return sub, nil
}

// formDate leaves an empty field zero so the record validation reports it.
func formDate(v, field string) (core.Date, error) {
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: field, Msg: "date must be YYYY-MM-DD", Err: err}
	}
	return d, nil
}

func formAmount(v, field string) (core.Money, error) {
	if v == "" {
		return core.Money{}, nil
	}
	m, err := core.ParseAmount(v)
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: field, Msg: "amount must be a positive number", Err: err}
	}
	return m, nil
}

// reportQuery holds the inclusive range and grouping of a report request.
type reportQuery struct {
	Start       core.Date
	End         core.Date
	Granularity core.Granularity
}

func (q reportQuery) key(kind string) string {
	return kind + "|" + q.Start.String() + "|" + q.End.String() + "|" + string(q.Granularity)
}

// parseReportQuery reads start, end and granularity. A missing end is
// today; a missing start is the first day of end's month.
func parseReportQuery(query url.Values, today core.Date) (reportQuery, error) {
	q := reportQuery{End: today}
	var err error
	if v := strings.TrimSpace(query.Get("end")); v != "" {
		if q.End, err = core.ParseDate(v); err != nil {
			return q, badRequest("end must be YYYY-MM-DD")
		}
	}
	q.Start = core.NewDate(q.End.Year(), int(q.End.Month()), 1)
	if v := strings.TrimSpace(query.Get("start")); v != "" {
		if q.Start, err = core.ParseDate(v); err != nil {
			return q, badRequest("start must be YYYY-MM-DD")
		}
	}
	if q.Start.After(q.End.Time) {
		return q, badRequest("start must not be after end")
	}
	if q.Granularity, err = core.ParseGranularity(query.Get("granularity")); err != nil {
		return q, badRequest("granularity must be trip, weekly or monthly")
	}
	return q, nil
}

// parseLimit reads a positive limit, falling back to def.
func parseLimit(query url.Values, def int) (int, error) {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("limit must be a non-negative integer")
	}
	return n, nil
}
