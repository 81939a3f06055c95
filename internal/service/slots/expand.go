package slots

import (
	"fmt"
	"sort"
	"time"

	"github.com/Domenick1991/pickupslots/internal/domain"
)

const maxTargetDays = 366

// Target selects slots as the cross product of the dates in [From, To] whose
// weekday is listed and the given times of day. An empty Weekdays list
// selects every day.
type Target struct {
	From     time.Time
	To       time.Time
	Weekdays []time.Weekday
	Times    []string
}

// Expand lists the slot keys a target covers, ordered by date then time.
func Expand(t Target) ([]domain.SlotKey, error) {
	if t.To.Before(t.From) || t.To.Sub(t.From) > maxTargetDays*24*time.Hour {
		return nil, domain.ErrInvalidDateRange
	}
	if len(t.Times) == 0 {
		return nil, fmt.Errorf("%w: no times given", domain.ErrInvalidSlotKey)
	}

	times := make([]string, 0, len(t.Times))
	seen := make(map[string]struct{}, len(t.Times))
	for _, raw := range t.Times {
		tm, err := domain.ParseTimeOfDay(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[tm]; dup {
			continue
		}
		seen[tm] = struct{}{}
		times = append(times, tm)
	}
	sort.Strings(times)

	days := make(map[time.Weekday]bool, len(t.Weekdays))
	for _, d := range t.Weekdays {
		if d < time.Sunday || d > time.Saturday {
			return nil, fmt.Errorf("%w: weekday %d", domain.ErrInvalidSlotKey, d)
		}
		days[d] = true
	}

	from := truncateDay(t.From)
	to := truncateDay(t.To)

	keys := make([]domain.SlotKey, 0)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if len(days) > 0 && !days[d.Weekday()] {
			continue
		}
		for _, tm := range times {
			keys = append(keys, domain.SlotKey{Date: d, Time: tm})
		}
	}
	return keys, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
