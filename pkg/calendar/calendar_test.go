package calendar

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestDailyScheduleNext(t *testing.T) {
	loc := mustLoad(t, "Europe/Berlin")

	tests := []struct {
		name     string
		now      time.Time
		expected time.Time
	}{
		{
			name:     "before fire hour fires today",
			now:      time.Date(2026, 6, 10, 7, 0, 0, 0, loc),
			expected: time.Date(2026, 6, 10, 8, 0, 0, 0, loc),
		},
		{
			name:     "after fire hour fires tomorrow",
			now:      time.Date(2026, 6, 10, 9, 0, 0, 0, loc),
			expected: time.Date(2026, 6, 11, 8, 0, 0, 0, loc),
		},
		{
			name:     "exactly at fire hour fires tomorrow",
			now:      time.Date(2026, 6, 10, 8, 0, 0, 0, loc),
			expected: time.Date(2026, 6, 11, 8, 0, 0, 0, loc),
		},
		{
			name:     "end of month rolls over",
			now:      time.Date(2026, 6, 30, 23, 30, 0, 0, loc),
			expected: time.Date(2026, 7, 1, 8, 0, 0, 0, loc),
		},
		{
			name:     "now given in another zone",
			now:      time.Date(2026, 6, 10, 5, 0, 0, 0, time.UTC), // 07:00 in Berlin
			expected: time.Date(2026, 6, 10, 8, 0, 0, 0, loc),
		},
	}

	schedule, err := NewDailySchedule(8, loc)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := schedule.Next(tt.now)
			assert.True(t, next.Equal(tt.expected), "got %s want %s", next, tt.expected)
			assert.True(t, next.After(tt.now))
		})
	}
}

func TestDailyScheduleAcrossDSTChange(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	schedule, err := NewDailySchedule(8, loc)
	require.NoError(t, err)

	// 2026-03-08 is the spring-forward day in New York
	now := time.Date(2026, 3, 7, 9, 0, 0, 0, loc)
	next := schedule.Next(now)

	assert.Equal(t, 8, next.Hour())
	assert.Equal(t, 8, next.Day())
	assert.Equal(t, 22*time.Hour, next.Sub(now))
}

func TestDailyScheduleSkippedHour(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	schedule, err := NewDailySchedule(2, loc)
	require.NoError(t, err)

	now := time.Date(2026, 3, 8, 0, 30, 0, 0, loc)
	next := schedule.Next(now)

	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, 8, next.Day())
	name, _ := next.Zone()
	assert.Equal(t, "EDT", name)
}

func TestDailyScheduleRepeatedHourFiresOnce(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	schedule, err := NewDailySchedule(1, loc)
	require.NoError(t, err)

	// 2026-11-01 01:00 happens twice in New York
	before := time.Date(2026, 11, 1, 0, 30, 0, 0, loc)
	first := schedule.Next(before)
	_, offset := first.Zone()
	assert.Equal(t, 1, first.Hour())
	assert.Equal(t, -4*3600, offset)

	// from inside the repeated hour the next fire is the following day
	second := schedule.Next(first.Add(90 * time.Minute))
	assert.Equal(t, 2, second.Day())
	assert.Equal(t, 1, second.Hour())
}

func TestNewDailyScheduleValidation(t *testing.T) {
	_, err := NewDailySchedule(24, time.UTC)
	assert.Error(t, err)

	_, err = NewDailySchedule(-1, time.UTC)
	assert.Error(t, err)

	s, err := NewDailySchedule(0, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Local, s.Location)
}

func TestNextDailyRun(t *testing.T) {
	now := time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC)
	next, err := NextDailyRun(now, 8, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC), next)

	_, err = NextDailyRun(now, 30, time.UTC)
	assert.Error(t, err)
}
