package seismic

import (
	"fmt"
	"time"
)

// Date is a civil calendar day at UTC (spec §6: "Dates are civil calendar
// days at UTC"). It intentionally carries no time-of-day or location so
// that two stations evaluated on "the same day" are always comparable by
// value equality.
type Date struct {
	Year  int
	Month int
	Day   int
}

// DateFromTime truncates a time to its UTC calendar day.
func DateFromTime(t time.Time) Date {
	u := t.UTC()
	y, m, d := u.Date()
	return Date{Year: y, Month: int(m), Day: d}
}

// DateFromMicros truncates a microsecond epoch timestamp to its UTC
// calendar day, the form channel-day sample runs and epochs arrive in.
func DateFromMicros(us int64) Date {
	return DateFromTime(time.UnixMicro(us))
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Time returns the start of the day in UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}
