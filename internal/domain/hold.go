package domain

import "time"

// SoftHold is a session-scoped claim on one unit of slot capacity made
// before an order exists. It is active while ExpiresAt is in the future.
type SoftHold struct {
	SessionID string
	Key       SlotKey
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (h SoftHold) Active(now time.Time) bool {
	return h.ExpiresAt.After(now)
}
