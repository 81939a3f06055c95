package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/pickupslots/config"
	"github.com/Domenick1991/pickupslots/internal/domain"
)

const holidayLayout = "01-02"

// Calendar answers whether the shop is open on a given date.
// Precedence: per-date override, then recurring holiday, then weekly schedule.
type Calendar struct {
	weekdays  map[time.Weekday]bool
	holidays  map[string]struct{}
	overrides map[string]bool
}

func New(cfg config.CalendarConfig) (*Calendar, error) {
	c := &Calendar{
		weekdays:  make(map[time.Weekday]bool, len(cfg.OpenWeekdays)),
		holidays:  make(map[string]struct{}, len(cfg.Holidays)),
		overrides: make(map[string]bool, len(cfg.Overrides)),
	}

	for _, d := range cfg.OpenWeekdays {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("invalid weekday %d", d)
		}
		c.weekdays[time.Weekday(d)] = true
	}

	for _, h := range cfg.Holidays {
		if _, err := time.Parse(holidayLayout, h); err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		c.holidays[h] = struct{}{}
	}

	for date, open := range cfg.Overrides {
		if _, err := time.Parse(domain.DateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid override date %q: %w", date, err)
		}
		c.overrides[date] = open
	}

	return c, nil
}

func (c *Calendar) IsOpen(_ context.Context, date time.Time) (bool, error) {
	if open, ok := c.overrides[date.Format(domain.DateLayout)]; ok {
		return open, nil
	}
	if _, ok := c.holidays[date.Format(holidayLayout)]; ok {
		return false, nil
	}
	return c.weekdays[date.Weekday()], nil
}

// AlwaysOpen is used when no calendar is configured.
type AlwaysOpen struct{}

func (AlwaysOpen) IsOpen(context.Context, time.Time) (bool, error) {
	return true, nil
}
