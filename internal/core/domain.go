package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

type (
	// OwnerID scopes every record and report to one operator account.
	OwnerID string

	// ExpenseType names an expense category such as Fuel or Insurance.
	ExpenseType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Journey is one passenger-trip: a row per passenger on a given trip date.
	Journey struct {
		Name        string `json:"name"`
		Phone       string `json:"phone"`
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
		Fare        Money  `json:"fare"`
		Date        Date   `json:"journey_date"`
	}

	Expense struct {
		Type   ExpenseType `json:"expense_type"`
		Amount Money       `json:"amount"`
		Date   Date        `json:"date"`
		Notes  string      `json:"notes"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrInvalidOwner    = errors.New("invalid owner")
	ErrRequired        = errors.New("value is required")
	ErrUnknownCategory = errors.New("unknown expense type")
)

const (
	maxTextLength  = 200
	maxNotesLength = 1000
)

var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{0,127}$`)

// Validate reports whether the owner can be used as a storage key.
// Owners double as directory names for the CSV backend, so path
// separators and leading dots are rejected.
func (o OwnerID) Validate() error {
	if !ownerPattern.MatchString(string(o)) {
		return &ValidationError{Field: "owner", Msg: fmt.Sprintf("%q is not a valid owner", string(o)), Err: ErrInvalidOwner}
	}
	return nil
}

func (o OwnerID) String() string { return string(o) }

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current calendar date in UTC.
func Today() Date {
	return DateOf(time.Now().UTC())
}

// ParseDate parses an ISO-8601 calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Within reports whether start <= d <= end.
func (d Date) Within(start, end Date) bool {
	return !d.Before(start.Time) && !d.After(end.Time)
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NewJourney builds a Journey and enforces the record invariants:
// non-empty name, origin and destination, a valid phone and a positive fare.
func NewJourney(name, phone, origin, destination string, fare Money, date Date) (Journey, error) {
	j := Journey{
		Name:        strings.TrimSpace(name),
		Phone:       strings.TrimSpace(phone),
		Origin:      strings.TrimSpace(origin),
		Destination: strings.TrimSpace(destination),
		Fare:        fare,
		Date:        date,
	}
	if err := j.Validate(); err != nil {
		return Journey{}, err
	}
	return j, nil
}

func (j Journey) Validate() error {
	if err := requireText("name", j.Name); err != nil {
		return err
	}
	if j.Phone == "" {
		return &ValidationError{Field: "phone", Msg: "phone number is required", Err: ErrRequired}
	}
	if !ValidatePhone(j.Phone) {
		return &ValidationError{Field: "phone", Msg: fmt.Sprintf("invalid phone number %q", j.Phone), Err: ErrInvalidPhone}
	}
	if err := requireText("origin", j.Origin); err != nil {
		return err
	}
	if err := requireText("destination", j.Destination); err != nil {
		return err
	}
	if err := j.Fare.Validate(); err != nil {
		return &ValidationError{Field: "fare", Msg: "fare must be greater than 0", Err: err}
	}
	if err := j.Date.Validate(); err != nil {
		return &ValidationError{Field: "journey_date", Msg: "journey date is required", Err: err}
	}
	return nil
}

// NewExpense builds an Expense. Membership of typ in the configured
// expense type set is checked by the caller that owns that set.
func NewExpense(typ ExpenseType, amount Money, date Date, notes string) (Expense, error) {
	e := Expense{
		Type:   ExpenseType(strings.TrimSpace(string(typ))),
		Amount: amount,
		Date:   date,
		Notes:  strings.TrimSpace(notes),
	}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

func (e Expense) Validate() error {
	if err := requireText("expense_type", string(e.Type)); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Msg: "amount must be greater than 0", Err: err}
	}
	if err := e.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Msg: "date is required", Err: err}
	}
	if len(e.Notes) > maxNotesLength {
		return &ValidationError{Field: "notes", Msg: fmt.Sprintf("notes too long (max %d characters)", maxNotesLength)}
	}
	return nil
}

func requireText(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return &ValidationError{Field: field, Msg: field + " is required", Err: ErrRequired}
	}
	if len(v) > maxTextLength {
		return &ValidationError{Field: field, Msg: fmt.Sprintf("%s too long (max %d characters)", field, maxTextLength)}
	}
	return nil
}
