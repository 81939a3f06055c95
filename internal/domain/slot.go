package domain

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// SlotKey identifies a pickup slot by calendar date and time of day.
type SlotKey struct {
	Date time.Time
	Time string
}

// NewSlotKey parses a YYYY-MM-DD date and an HH:MM time of day.
func NewSlotKey(date, timeOfDay string) (SlotKey, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return SlotKey{}, fmt.Errorf("%w: date %q", ErrInvalidSlotKey, date)
	}
	t, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return SlotKey{}, err
	}
	return SlotKey{Date: d, Time: t}, nil
}

// ParseTimeOfDay validates an HH:MM value and returns it zero-padded.
func ParseTimeOfDay(s string) (string, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: time %q", ErrInvalidSlotKey, s)
	}
	return t.Format(TimeLayout), nil
}

func (k SlotKey) DateString() string {
	return k.Date.Format(DateLayout)
}

func (k SlotKey) String() string {
	return k.DateString() + " " + k.Time
}

// Start returns the slot start as an instant in loc.
func (k SlotKey) Start(loc *time.Location) time.Time {
	t, _ := time.Parse(TimeLayout, k.Time)
	return time.Date(k.Date.Year(), k.Date.Month(), k.Date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

type Slot struct {
	Key         SlotKey
	MaxCapacity int
	IsAvailable bool
	Category    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SlotAvailability is the read model row shown by slot pickers.
type SlotAvailability struct {
	Date              string `json:"date"`
	Time              string `json:"time"`
	Category          string `json:"category,omitempty"`
	MaxCapacity       int    `json:"max_capacity"`
	RemainingCapacity int    `json:"remaining_capacity"`
	IsAvailable       bool   `json:"is_available"`
}
