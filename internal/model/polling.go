package model

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time in UTC. The zero value is unset.
type TimeOfDay struct {
	offset time.Duration
	set    bool
}

// NewTimeOfDay builds a TimeOfDay from its components.
func NewTimeOfDay(hour, minute, second int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %02d:%02d:%02d", hour, minute, second)
	}
	d := time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second
	return TimeOfDay{offset: d, set: true}, nil
}

// MustTimeOfDay is like NewTimeOfDay but panics on invalid input.
func MustTimeOfDay(hour, minute, second int) TimeOfDay {
	t, err := NewTimeOfDay(hour, minute, second)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute(), t.Second())
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM or HH:MM:SS", s)
}

// IsZero reports whether the time of day is unset.
func (t TimeOfDay) IsZero() bool { return !t.set }

// SinceMidnight returns the offset from 00:00:00.
func (t TimeOfDay) SinceMidnight() time.Duration { return t.offset }

// On returns the instant at this time of day on the UTC date of day.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(t.offset)
}

func (t TimeOfDay) String() string {
	if !t.set {
		return "<unset>"
	}
	s := int(t.offset / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

// PollingConfiguration drives the scan scheduler. A zero Interval or an
// unset TimeOfDay means the value is absent.
type PollingConfiguration struct {
	Interval  time.Duration
	TimeOfDay TimeOfDay
}

func (c PollingConfiguration) String() string {
	return fmt.Sprintf("{interval=%s, timeOfDayUTC=%s}", c.Interval, c.TimeOfDay)
}
