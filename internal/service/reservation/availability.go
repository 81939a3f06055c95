package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/pickupslots/internal/domain"
	"go.uber.org/zap"
)

// Availability lists slots in [from, to] with their remaining capacity.
// Closed days are omitted; a non-empty category keeps only slots that
// category may use. Results are served from the cache when possible.
func (e *Engine) Availability(ctx context.Context, from, to time.Time, category string) ([]domain.SlotAvailability, error) {
	if to.Before(from) || to.Sub(from) > time.Duration(e.maxRangeDays)*24*time.Hour {
		return nil, domain.ErrInvalidDateRange
	}

	var (
		version   int64
		cacheable bool
	)
	if e.cache != nil {
		cached, v, err := e.cache.GetAvailability(ctx, from, to, category)
		switch {
		case err != nil:
			e.logger.Warn("availability cache read failed", zap.Error(err))
		case cached != nil:
			return cached, nil
		default:
			version, cacheable = v, true
		}
	}

	result, err := e.loadAvailability(ctx, from, to, category)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := e.cache.SetAvailability(ctx, version, from, to, category, result); err != nil {
			e.logger.Warn("availability cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

func (e *Engine) loadAvailability(ctx context.Context, from, to time.Time, category string) ([]domain.SlotAvailability, error) {
	now := e.now()

	slots, err := e.slots.ListRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	confirmed, err := e.bookings.CountActiveByRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	held, err := e.holds.CountActiveByRange(ctx, from, to, now)
	if err != nil {
		return nil, err
	}

	openDays := make(map[string]bool)
	result := make([]domain.SlotAvailability, 0, len(slots))
	for _, slot := range slots {
		day := slot.Key.DateString()
		open, seen := openDays[day]
		if !seen {
			open, err = e.isOpen(ctx, slot.Key.Date)
			if err != nil {
				return nil, fmt.Errorf("calendar %s: %w", day, err)
			}
			openDays[day] = open
		}
		if !open {
			continue
		}

		if category != "" && !e.categoryAllowed(&slot, []string{category}) {
			continue
		}

		remaining := slot.MaxCapacity - confirmed[slot.Key.String()] - held[slot.Key.String()]
		if remaining < 0 {
			remaining = 0
		}

		result = append(result, domain.SlotAvailability{
			Date:              day,
			Time:              slot.Key.Time,
			Category:          slot.Category,
			MaxCapacity:       slot.MaxCapacity,
			RemainingCapacity: remaining,
			IsAvailable:       slot.IsAvailable && remaining > 0,
		})
	}
	return result, nil
}

func (e *Engine) isOpen(ctx context.Context, date time.Time) (bool, error) {
	if e.calendar == nil {
		return true, nil
	}
	return e.calendar.IsOpen(ctx, date)
}
