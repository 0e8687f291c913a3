package dashboard

import (
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
)

// Period keywords accepted by the dashboard
const (
	PeriodCurrentMonth  = "mes-atual"
	PeriodPreviousMonth = "mes-anterior"
	PeriodQuarter       = "trimestre"
	PeriodYear          = "ano"
)

// quarterDays is how far back "trimestre" reaches from today
const quarterDays = 90

// DateRange is an inclusive range of calendar dates
type DateRange struct {
	From time.Time
	To   time.Time
}

// ResolvePeriod turns a dashboard period keyword or "YYYY-MM" into a date
// range relative to today. Unknown values resolve to the current month.
func ResolvePeriod(periodo string, today time.Time) DateRange {
	today = ledger.DateOnly(today)

	if len(periodo) == 7 && periodo[4] == '-' {
		if p, err := ledger.ParsePeriod(periodo); err == nil {
			return monthRange(p)
		}
	}

	current := ledger.PeriodOf(today)
	switch periodo {
	case PeriodPreviousMonth:
		return monthRange(current.AddMonths(-1))
	case PeriodQuarter:
		return DateRange{From: today.AddDate(0, 0, -quarterDays), To: today}
	case PeriodYear:
		return DateRange{
			From: time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(today.Year(), time.December, 31, 0, 0, 0, 0, time.UTC),
		}
	}
	return monthRange(current)
}

func monthRange(p ledger.Period) DateRange {
	return DateRange{From: p.FirstDay(), To: p.LastDay()}
}

// Days returns the number of days in the range
func (r DateRange) Days() int {
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

// Previous returns the range of equal length ending the day before From
func (r DateRange) Previous() DateRange {
	n := r.Days()
	return DateRange{From: r.From.AddDate(0, 0, -n), To: r.From.AddDate(0, 0, -1)}
}

// Contains reports whether d falls in the range
func (r DateRange) Contains(d time.Time) bool {
	d = ledger.DateOnly(d)
	return !d.Before(r.From) && !d.After(r.To)
}

// Each calls fn for every day in the range, in order
func (r DateRange) Each(fn func(day time.Time)) {
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		fn(d)
	}
}

// Periods returns the calendar months the range overlaps
func (r DateRange) Periods() []ledger.Period {
	var out []ledger.Period
	last := ledger.PeriodOf(r.To)
	for p := ledger.PeriodOf(r.From); !last.Before(p); p = p.AddMonths(1) {
		out = append(out, p)
	}
	return out
}
