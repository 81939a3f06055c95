package slots

import (
	"testing"
	"time"

	"github.com/Domenick1991/pickupslots/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(domain.DateLayout, s)
	require.NoError(t, err)
	return d
}

func TestExpand(t *testing.T) {
	keys, err := Expand(Target{
		From:     date(t, "2025-12-01"),
		To:       date(t, "2025-12-07"),
		Weekdays: []time.Weekday{time.Monday, time.Friday},
		Times:    []string{"14:00", "9:30", "14:00"},
	})
	require.NoError(t, err)

	got := make([]string, len(keys))
	for i, k := range keys {
		got[i] = k.String()
	}
	assert.Equal(t, []string{
		"2025-12-01 09:30",
		"2025-12-01 14:00",
		"2025-12-05 09:30",
		"2025-12-05 14:00",
	}, got)
}

func TestExpand_AllWeekdaysWhenEmpty(t *testing.T) {
	keys, err := Expand(Target{From: date(t, "2025-12-01"), To: date(t, "2025-12-07"), Times: []string{"10:00"}})
	require.NoError(t, err)
	assert.Len(t, keys, 7)
}

func TestExpand_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		want   error
	}{
		{"reversed range", Target{From: date(t, "2025-12-07"), To: date(t, "2025-12-01"), Times: []string{"10:00"}}, domain.ErrInvalidDateRange},
		{"too long", Target{From: date(t, "2025-01-01"), To: date(t, "2026-06-01"), Times: []string{"10:00"}}, domain.ErrInvalidDateRange},
		{"no times", Target{From: date(t, "2025-12-01"), To: date(t, "2025-12-01")}, domain.ErrInvalidSlotKey},
		{"bad time", Target{From: date(t, "2025-12-01"), To: date(t, "2025-12-01"), Times: []string{"25:00"}}, domain.ErrInvalidSlotKey},
		{"bad weekday", Target{From: date(t, "2025-12-01"), To: date(t, "2025-12-01"), Times: []string{"10:00"}, Weekdays: []time.Weekday{9}}, domain.ErrInvalidSlotKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Expand(tt.target)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
