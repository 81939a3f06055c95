package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Booking is a placed order bound to exactly one slot. It consumes capacity
// unless cancelled.
type Booking struct {
	OrderID              string
	SessionID            string
	Email                string
	Key                  SlotKey
	PaymentStatus        PaymentStatus
	ReservationExpiresAt time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (b Booking) CountsAgainstCapacity() bool {
	return b.PaymentStatus != PaymentStatusCancelled
}
