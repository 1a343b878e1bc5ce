package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERVAL
// ══════════════════════════════════════════════════════════════════════════════

// Interval runs a job every d.
type Interval time.Duration

func (i Interval) Next(t time.Time) time.Time { return t.Add(time.Duration(i)) }

func (i Interval) String() string { return "@every " + time.Duration(i).String() }

// ══════════════════════════════════════════════════════════════════════════════
// CRON
// ══════════════════════════════════════════════════════════════════════════════

// Cron is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week. Fields accept *, */n, n, n-m,
// n-m/s and comma lists.
//
//	"*/5 * * * *"  every 5 minutes
//	"0 3 * * *"    every day at 03:00
//	"0 0 * * 0"    every Sunday at midnight
type Cron struct {
	raw                                   string
	minutes, hours, days, months, weekday uint64
}

// ParseCron parses expr.
func ParseCron(expr string) (*Cron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}

	c := &Cron{raw: expr}
	parts := []struct {
		name     string
		min, max int
		dst      *uint64
	}{
		{"minute", 0, 59, &c.minutes},
		{"hour", 0, 23, &c.hours},
		{"day", 1, 31, &c.days},
		{"month", 1, 12, &c.months},
		{"weekday", 0, 6, &c.weekday},
	}
	for i, f := range parts {
		bits, err := parseCronField(fields[i], f.min, f.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", f.name, err)
		}
		*f.dst = bits
	}
	return c, nil
}

// parseCronField returns a bitset with bit v set for every matching value.
func parseCronField(field string, min, max int) (uint64, error) {
	var bits uint64
	for _, part := range strings.Split(field, ",") {
		rangePart, step := part, 1
		if i := strings.IndexByte(part, '/'); i >= 0 {
			s, err := strconv.Atoi(part[i+1:])
			if err != nil || s <= 0 {
				return 0, fmt.Errorf("invalid step in %q", part)
			}
			rangePart, step = part[:i], s
		}

		lo, hi := min, max
		switch {
		case rangePart == "*":
		case strings.Contains(rangePart, "-"):
			a, b, _ := strings.Cut(rangePart, "-")
			var err1, err2 error
			lo, err1 = strconv.Atoi(a)
			hi, err2 = strconv.Atoi(b)
			if err1 != nil || err2 != nil {
				return 0, fmt.Errorf("invalid range %q", rangePart)
			}
		default:
			v, err := strconv.Atoi(rangePart)
			if err != nil {
				return 0, fmt.Errorf("invalid value %q", rangePart)
			}
			lo = v
			if step == 1 {
				hi = v
			}
		}
		if lo < min || hi > max || lo > hi {
			return 0, fmt.Errorf("%q out of range [%d-%d]", part, min, max)
		}
		for v := lo; v <= hi; v += step {
			bits |= 1 << uint(v)
		}
	}
	return bits, nil
}

func (c *Cron) String() string { return c.raw }

// Next returns the first matching minute after t, or the zero time when
// nothing matches within a year.
func (c *Cron) Next(t time.Time) time.Time {
	next := t.Truncate(time.Minute).Add(time.Minute)
	for i := 0; i < 366*24*60; i++ {
		if c.matches(next) {
			return next
		}
		next = next.Add(time.Minute)
	}
	return time.Time{}
}

func (c *Cron) matches(t time.Time) bool {
	has := func(bits uint64, v int) bool { return bits&(1<<uint(v)) != 0 }
	return has(c.minutes, t.Minute()) &&
		has(c.hours, t.Hour()) &&
		has(c.days, t.Day()) &&
		has(c.months, int(t.Month())) &&
		has(c.weekday, int(t.Weekday()))
}

// ScheduleFor returns the cron schedule when expr is set, otherwise the
// interval.
func ScheduleFor(interval time.Duration, expr string) (Schedule, error) {
	if strings.TrimSpace(expr) != "" {
		return ParseCron(expr)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	return Interval(interval), nil
}
