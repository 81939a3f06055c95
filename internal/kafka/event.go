package kafka

import "time"

type EventType string

const (
	EventHoldPlaced     EventType = "hold_placed"
	EventHoldReleased   EventType = "hold_released"
	EventOrderPlaced    EventType = "order_placed"
	EventOrderPaid      EventType = "order_paid"
	EventOrderCancelled EventType = "order_cancelled"
	EventOrderExpired   EventType = "order_expired"
)

// SlotEvent is published for every change to slot consumption.
type SlotEvent struct {
	Type       EventType `json:"type"`
	SlotDate   string    `json:"slot_date"`
	SlotTime   string    `json:"slot_time"`
	SessionID  string    `json:"session_id,omitempty"`
	OrderID    string    `json:"order_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Key partitions events by slot so consumers see per-slot order.
func (e SlotEvent) Key() string {
	return e.SlotDate + "T" + e.SlotTime
}

// IsOrderEvent reports whether the event concerns a placed order.
func (e SlotEvent) IsOrderEvent() bool {
	switch e.Type {
	case EventOrderPlaced, EventOrderPaid, EventOrderCancelled, EventOrderExpired:
		return true
	}
	return false
}
