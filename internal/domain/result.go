package domain

import "time"

// Reason explains why a slot cannot be used. Capacity and availability
// outcomes are reported with a Reason instead of an error.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonFull             Reason = "full"
	ReasonDisabled         Reason = "disabled"
	ReasonClosed           Reason = "closed"
	ReasonNotFound         Reason = "not_found"
	ReasonCategoryMismatch Reason = "category_mismatch"
)

// Message is the shopper-facing text for a reason.
func (r Reason) Message() string {
	switch r {
	case ReasonNone:
		return "slot is available"
	case ReasonFull:
		return "This pickup time is fully booked. Please choose another slot."
	case ReasonDisabled, ReasonNotFound:
		return "This pickup time is no longer offered. Please choose another slot."
	case ReasonClosed:
		return "We are closed on this day. Please choose another date."
	case ReasonCategoryMismatch:
		return "Some items in your cart cannot be picked up at this time. Please choose another slot."
	default:
		return "This pickup time cannot be used. Please choose another slot."
	}
}

type Availability struct {
	Available bool   `json:"available"`
	Remaining int    `json:"remaining_capacity"`
	Reason    Reason `json:"reason,omitempty"`
}

type HoldResult struct {
	Success   bool      `json:"success"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Reason    Reason    `json:"reason,omitempty"`
}

type FinalCheck struct {
	Valid   bool   `json:"valid"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message"`
}

type PlaceOrderResult struct {
	Success bool     `json:"success"`
	Reason  Reason   `json:"reason,omitempty"`
	Message string   `json:"message,omitempty"`
	Booking *Booking `json:"-"`
}
