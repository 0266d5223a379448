package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rule computes the next firing time strictly after a given instant
type Rule interface {
	Next(after time.Time) time.Time
	String() string
}

type intervalRule struct {
	every time.Duration
}

// Every fires at a fixed interval measured from the previous arm time
func Every(d time.Duration) Rule {
	return intervalRule{every: d}
}

func (r intervalRule) Next(after time.Time) time.Time {
	return after.Add(r.every)
}

func (r intervalRule) String() string {
	return "every " + r.every.String()
}

type clockRule struct {
	hour    int
	minute  int
	weekday time.Weekday
	weekly  bool
	loc     *time.Location
}

// DailyAt fires every day at hour:minute in loc (time.Local when nil)
func DailyAt(hour, minute int, loc *time.Location) Rule {
	if loc == nil {
		loc = time.Local
	}
	return clockRule{hour: hour, minute: minute, loc: loc}
}

// WeeklyAt fires on weekday at hour:minute in loc (time.Local when nil)
func WeeklyAt(weekday time.Weekday, hour, minute int, loc *time.Location) Rule {
	if loc == nil {
		loc = time.Local
	}
	return clockRule{hour: hour, minute: minute, weekday: weekday, weekly: true, loc: loc}
}

// Next returns the first matching wall-clock time after the given instant.
// A target equal to after counts as already passed.
func (r clockRule) Next(after time.Time) time.Time {
	t := after.In(r.loc)

	days := 0
	if r.weekly {
		days = (int(r.weekday) - int(t.Weekday()) + 7) % 7
	}

	target := time.Date(t.Year(), t.Month(), t.Day()+days, r.hour, r.minute, 0, 0, r.loc)
	if !target.After(t) {
		step := 1
		if r.weekly {
			step = 7
		}
		target = time.Date(t.Year(), t.Month(), t.Day()+days+step, r.hour, r.minute, 0, 0, r.loc)
	}

	return target
}

func (r clockRule) String() string {
	if r.weekly {
		return fmt.Sprintf("weekly %s %02d:%02d", r.weekday, r.hour, r.minute)
	}
	return fmt.Sprintf("daily %02d:%02d", r.hour, r.minute)
}

// ParseClock parses "HH:MM" in 24h form
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}

	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}

	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}

	return hour, minute, nil
}

// ParseWeekday accepts English day names, case-insensitive, full or three-letter
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}
