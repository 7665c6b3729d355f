package domain

import (
	"fmt"
	"math"
	"time"
)

// Date is a UTC calendar day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateFromTime returns the UTC calendar day containing t.
func DateFromTime(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

// instant floors ts to whole seconds, so pre-epoch fractions land in the
// earlier second.
func instant(ts float64) time.Time {
	return time.Unix(int64(math.Floor(ts)), 0).UTC()
}

// DateOf returns the UTC calendar day of a Unix timestamp.
func DateOf(ts float64) Date {
	return DateFromTime(instant(ts))
}

// HourMinuteOf returns the UTC hour of day and minute of hour of a Unix timestamp.
func HourMinuteOf(ts float64) (hour, minute int) {
	t := instant(ts)
	return t.Hour(), t.Minute()
}
