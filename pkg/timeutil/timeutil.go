// Package timeutil provides calendar-day arithmetic in a configured timezone.
// Streaks and time-of-day rules are evaluated on local calendar days, so all
// conversions from instants to days go through a Zone.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// DefaultZoneName is used when no timezone is configured.
const DefaultZoneName = "Asia/Almaty"

// almatyFallback is used when the tz database is unavailable.
// Kazakhstan has no DST, so a fixed offset is exact.
var almatyFallback = time.FixedZone(DefaultZoneName, 5*60*60)

// Zone converts instants into local calendar dates and hours.
type Zone struct {
	loc *time.Location
}

// UTC is the zero-offset zone.
var UTC = Zone{loc: time.UTC}

// NewZone wraps an existing location.
func NewZone(loc *time.Location) Zone {
	if loc == nil {
		loc = time.UTC
	}
	return Zone{loc: loc}
}

// LoadZone resolves an IANA name such as "Europe/Berlin".
func LoadZone(name string) (Zone, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultZoneName
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		if name == DefaultZoneName {
			return Zone{loc: almatyFallback}, nil
		}
		return Zone{}, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return Zone{loc: loc}, nil
}

// Location returns the underlying location (UTC for the zero Zone).
func (z Zone) Location() *time.Location {
	if z.loc == nil {
		return time.UTC
	}
	return z.loc
}

// String returns the zone name.
func (z Zone) String() string { return z.Location().String() }

// In converts t to the zone.
func (z Zone) In(t time.Time) time.Time { return t.In(z.Location()) }

// DateOf returns the local calendar date of t.
func (z Zone) DateOf(t time.Time) Date { return DateOf(z.In(t)) }

// Hour returns the local wall-clock hour of t.
func (z Zone) Hour(t time.Time) int { return z.In(t).Hour() }

// StartOfDay returns local midnight of the day containing t.
func (z Zone) StartOfDay(t time.Time) time.Time {
	l := z.In(t)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, z.Location())
}

// At returns the instant for a local wall-clock time.
func (z Zone) At(d Date, hour, min int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, min, 0, 0, z.Location())
}

// Date is a civil calendar date without a timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateLayout is the wire format of a Date.
const DateLayout = "2006-01-02"

// NewDate builds a normalized date (e.g. Jan 32 becomes Feb 1).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

// Time returns UTC midnight of d.
func (d Date) Time() time.Time { return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC) }

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date { return DateOf(d.Time().AddDate(0, 0, n)) }

// DaysUntil returns the signed number of calendar days from d to other.
// Computed on UTC midnights so DST transitions never skew the count.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

func (d Date) Before(other Date) bool { return d.Time().Before(other.Time()) }
func (d Date) After(other Date) bool  { return d.Time().After(other.Time()) }
func (d Date) Equal(other Date) bool  { return d == other }

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
