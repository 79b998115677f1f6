package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fareboard/internal/core"
)

const (
	KindJourney = "journey.appended"
	KindExpense = "expense.appended"
)

// RecordEvent announces one appended record. The full record travels in the
// message so consumers never read the owner's store.
type RecordEvent struct {
	Kind      string        `json:"kind"`
	Owner     core.OwnerID  `json:"owner"`
	Journey   *core.Journey `json:"journey,omitempty"`
	Expense   *core.Expense `json:"expense,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

var ErrInvalidEvent = errors.New("invalid record event")

func NewJourneyEvent(owner core.OwnerID, j core.Journey) *RecordEvent {
	return &RecordEvent{Kind: KindJourney, Owner: owner, Journey: &j, Timestamp: time.Now().UTC()}
}

func NewExpenseEvent(owner core.OwnerID, e core.Expense) *RecordEvent {
	return &RecordEvent{Kind: KindExpense, Owner: owner, Expense: &e, Timestamp: time.Now().UTC()}
}

func (m *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate checks that the payload matches the kind.
func (m *RecordEvent) Validate() error {
	if err := m.Owner.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	switch m.Kind {
	case KindJourney:
		if m.Journey == nil {
			return fmt.Errorf("%w: %s without journey", ErrInvalidEvent, m.Kind)
		}
	case KindExpense:
		if m.Expense == nil {
			return fmt.Errorf("%w: %s without expense", ErrInvalidEvent, m.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, m.Kind)
	}
	return nil
}

// RecordEventFromJSON decodes and validates an event body.
func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var msg RecordEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
