package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeWindow is a time-of-day range. End may be "24:00".
type TimeWindow struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// CategoryRules lists, per category, the time windows in which products of
// that category may be picked up. A category without windows is unrestricted.
type CategoryRules map[string][]TimeWindow

// IsTimeRangeWithinCategory reports whether [start, end] fits inside one of the
// category's windows. Malformed input is never within a window.
func (r CategoryRules) IsTimeRangeWithinCategory(category, start, end string) bool {
	windows := r[category]
	if category == "" || len(windows) == 0 {
		return true
	}
	from, err := clockMinutes(start)
	if err != nil {
		return false
	}
	to, err := clockMinutes(end)
	if err != nil || to < from {
		return false
	}
	for _, w := range windows {
		ws, err := clockMinutes(w.Start)
		if err != nil {
			continue
		}
		we, err := clockMinutes(w.End)
		if err != nil {
			continue
		}
		if ws <= from && to <= we {
			return true
		}
	}
	return false
}

// AllowsSlot checks the window [slotTime, slotTime+length].
func (r CategoryRules) AllowsSlot(category, slotTime string, length time.Duration) bool {
	start, err := clockMinutes(slotTime)
	if err != nil {
		return false
	}
	end := start + int(length/time.Minute)
	return r.IsTimeRangeWithinCategory(category, slotTime, formatClock(end))
}

// Validate rejects windows that cannot be parsed or are empty.
func (r CategoryRules) Validate() error {
	for category, windows := range r {
		for _, w := range windows {
			ws, err := clockMinutes(w.Start)
			if err != nil {
				return fmt.Errorf("category %s: %w", category, err)
			}
			we, err := clockMinutes(w.End)
			if err != nil {
				return fmt.Errorf("category %s: %w", category, err)
			}
			if we <= ws {
				return fmt.Errorf("category %s: window %s-%s is empty", category, w.Start, w.End)
			}
		}
	}
	return nil
}

func clockMinutes(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %s", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour: %w", err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute: %w", err)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time: %s", s)
	}
	return h*60 + m, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
