package domain

import "errors"

var (
	// Slot errors
	ErrSlotNotFound      = errors.New("slot not found")
	ErrSlotUnavailable   = errors.New("slot is unavailable")
	ErrCapacityExhausted = errors.New("slot is full")
	ErrSlotHasBookings   = errors.New("slot has active bookings")
	ErrCategoryMismatch  = errors.New("category is not allowed for this time")

	// Order errors
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderCancelled = errors.New("order is cancelled")

	// Validation errors
	ErrInvalidSlotKey   = errors.New("invalid slot")
	ErrInvalidCapacity  = errors.New("capacity must be greater than zero")
	ErrInvalidSession   = errors.New("session id is required")
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrEmptyPatch       = errors.New("no fields to update")
	ErrInvalidProductID = errors.New("invalid product id")
)

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSlotNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidSlotKey) ||
		errors.Is(err, ErrInvalidCapacity) ||
		errors.Is(err, ErrInvalidSession) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrEmptyPatch) ||
		errors.Is(err, ErrInvalidProductID) ||
		errors.Is(err, ErrCategoryMismatch)
}

func IsConflictError(err error) bool {
	return errors.Is(err, ErrSlotHasBookings) ||
		errors.Is(err, ErrOrderCancelled) ||
		errors.Is(err, ErrCapacityExhausted) ||
		errors.Is(err, ErrSlotUnavailable)
}
