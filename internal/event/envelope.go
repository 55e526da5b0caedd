package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType discriminator for domain events
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeCollateralDeposited
	EventTypeCollateralRedeemed
)

// Event is implemented by every domain event the engine emits.
type Event interface {
	EventType() EventType
}

// Envelope wraps one event for the outbound stream.
type Envelope struct {
	// Sequence of the operation that emitted the event
	Sequence int64 `json:"sequence"`

	// Index of the event within its operation
	Index int `json:"index"`

	CommandID string    `json:"command_id,omitempty"`
	Operation string    `json:"operation"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`

	Payload json.RawMessage `json:"payload"`

	// Log encoding as the contract would emit it
	Topics []common.Hash `json:"topics"`
	Data   string        `json:"data"`

	StateHash common.Hash `json:"state_hash"`
}

func (et EventType) String() string {
	switch et {
	case EventTypeCollateralDeposited:
		return "CollateralDeposited"
	case EventTypeCollateralRedeemed:
		return "CollateralRedeemed"
	default:
		return "Unknown"
	}
}

// Subject is the NATS subject token for the type.
func (et EventType) Subject() string {
	switch et {
	case EventTypeCollateralDeposited:
		return "collateral_deposited"
	case EventTypeCollateralRedeemed:
		return "collateral_redeemed"
	default:
		return "unknown"
	}
}

// ParseEventType is the inverse of String.
func ParseEventType(name string) (EventType, error) {
	switch name {
	case "CollateralDeposited":
		return EventTypeCollateralDeposited, nil
	case "CollateralRedeemed":
		return EventTypeCollateralRedeemed, nil
	default:
		return EventTypeUnknown, fmt.Errorf("unknown event type %q", name)
	}
}

type record struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalEvents encodes a list of events with their type names, the form
// stored in the operation log.
func MarshalEvents(events []Event) ([]byte, error) {
	records := make([]record, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", e.EventType(), err)
		}
		records = append(records, record{Event: e.EventType().String(), Payload: payload})
	}
	return json.Marshal(records)
}

func UnmarshalEvents(data []byte) ([]Event, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(records))
	for _, r := range records {
		et, err := ParseEventType(r.Event)
		if err != nil {
			return nil, err
		}
		var e Event
		switch et {
		case EventTypeCollateralDeposited:
			e = &CollateralDeposited{}
		case EventTypeCollateralRedeemed:
			e = &CollateralRedeemed{}
		}
		if err := json.Unmarshal(r.Payload, e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", r.Event, err)
		}
		events = append(events, e)
	}
	return events, nil
}
