package calendar

import (
	"fmt"
	"time"
)

// DailySchedule fires once a day at a fixed wall-clock hour in a given location.
type DailySchedule struct {
	Hour     int
	Location *time.Location
}

func NewDailySchedule(hour int, loc *time.Location) (*DailySchedule, error) {
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("fire hour %d out of range 0-23", hour)
	}
	if loc == nil {
		loc = time.Local
	}
	return &DailySchedule{Hour: hour, Location: loc}, nil
}

// Next returns the first fire time strictly after now.
//
// When the hour does not exist on a day (spring-forward gap) the job fires at the
// first whole hour after the gap. When the hour occurs twice (fall-back) only the
// first occurrence fires.
func (s *DailySchedule) Next(now time.Time) time.Time {
	local := now.In(s.Location)
	candidate := s.on(local.Year(), local.Month(), local.Day())
	if !candidate.After(now) {
		next := local.AddDate(0, 0, 1)
		candidate = s.on(next.Year(), next.Month(), next.Day())
	}
	return candidate
}

func (s *DailySchedule) on(year int, month time.Month, day int) time.Time {
	t := time.Date(year, month, day, s.Hour, 0, 0, 0, s.Location)
	if t.Hour() == s.Hour {
		return t
	}
	// wall clock skipped the hour
	return time.Date(year, month, day, s.Hour+1, 0, 0, 0, s.Location)
}

// NextDailyRun is a shorthand for a one-off computation.
func NextDailyRun(now time.Time, hour int, loc *time.Location) (time.Time, error) {
	s, err := NewDailySchedule(hour, loc)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(now), nil
}
