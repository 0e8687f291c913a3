package ledger

import (
	"fmt"
	"time"

	"github.com/finsync/backend/internal/domain/shared"
)

// Period is a calendar month, the unit every synchronization and dashboard
// query is keyed by.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod creates a period, normalizing out-of-range months
func NewPeriod(year int, month time.Month) Period {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Year: t.Year(), Month: t.Month()}
}

// PeriodOf returns the period containing the given date
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses a "YYYY-MM" string
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil || len(s) != 7 {
		return Period{}, shared.ErrInvalidPeriod
	}
	return PeriodOf(t), nil
}

// String renders the period as "YYYY-MM"
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// FirstDay returns the first day of the period at UTC midnight
func (p Period) FirstDay() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// LastDay returns the last day of the period at UTC midnight
func (p Period) LastDay() time.Time {
	return p.FirstDay().AddDate(0, 1, -1)
}

// Days returns the number of days in the period
func (p Period) Days() int {
	return p.LastDay().Day()
}

// AddMonths shifts the period by n months (negative goes back)
func (p Period) AddMonths(n int) Period {
	return NewPeriod(p.Year, p.Month+time.Month(n))
}

// Contains reports whether the date falls inside the period
func (p Period) Contains(d time.Time) bool {
	return d.Year() == p.Year && d.Month() == p.Month
}

// Before reports whether p is strictly earlier than other
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// DayIn returns the given day-of-month inside the period, clamped to the last
// valid day (day 31 in a 30-day month becomes day 30).
func (p Period) DayIn(day int) time.Time {
	if day < 1 {
		day = 1
	}
	if last := p.Days(); day > last {
		day = last
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

// DateOnly drops the time-of-day and location, keeping the calendar date
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddMonths shifts a date by n months keeping the day-of-month, clamped to the
// target month's last day. Unlike time.AddDate it never overflows into the
// following month.
func AddMonths(d time.Time, n int) time.Time {
	return PeriodOf(d).AddMonths(n).DayIn(d.Day())
}

// IsWeekday reports whether the date falls Monday through Friday
func IsWeekday(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
