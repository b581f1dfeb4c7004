package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventSucceeded EventType = "payment.succeeded"
	EventFailed    EventType = "payment.failed"
	EventRefunded  EventType = "payment.refunded"
)

// Known reports whether the type is handled; others are acknowledged and ignored.
func (t EventType) Known() bool {
	switch t {
	case EventSucceeded, EventFailed, EventRefunded:
		return true
	}
	return false
}

// Event is a webhook delivery from the payments gateway.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`
	Data EventData `json:"data"`
}

type EventData struct {
	PaymentReference string          `json:"payment_reference"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	FailureReason    string          `json:"failure_reason,omitempty"`
}

// ParseEvent decodes a webhook body. id and type are required; the payment
// reference is required for known types.
func ParseEvent(body []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("payment: decoding event: %w", err)
	}
	if evt.ID == "" || evt.Type == "" {
		return nil, errors.New("payment: event id and type are required")
	}
	if evt.Type.Known() && evt.Data.PaymentReference == "" {
		return nil, errors.New("payment: payment_reference is required")
	}
	return &evt, nil
}
