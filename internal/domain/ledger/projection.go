package ledger

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// ProjectionMonths is the trailing history length averaged by the projector
const ProjectionMonths = 3

// Entry is one valued, date-adjusted line fed to the projector
type Entry struct {
	Account      int
	Date         time.Time
	Value        decimal.Decimal
	Projected    bool
	Branch       int
	CostCenter   int
	Counterparty string
}

// PayableEntry converts a payable record into a projector entry
func PayableEntry(p PayableRecord) Entry {
	return Entry{
		Account:      p.LedgerAccount,
		Date:         p.AdjustedDate(),
		Value:        p.Value(),
		Branch:       p.BranchCode,
		CostCenter:   p.CostCenter,
		Counterparty: p.SupplierName,
	}
}

// PayableEntries converts a slice of payable records
func PayableEntries(rows []PayableRecord) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, PayableEntry(r))
	}
	return out
}

type accountBucket struct {
	sums    [ProjectionMonths]decimal.Decimal
	actual  decimal.Decimal
	current []Entry
	latest  *Entry
}

// Project applies the trailing-average rule for the target period.
//
// Entries of the three preceding months are returned unchanged. For each
// ledger account, the target period keeps its actual entries when their sum is
// strictly greater than the three-month average; otherwise a single projected
// entry valued at the average replaces them, dated on the day-of-month of the
// account's latest entry in the previous month. Entries outside the four
// months are dropped.
func Project(target Period, entries []Entry) []Entry {
	history := make([]Entry, 0, len(entries))
	buckets := make(map[int]*accountBucket)
	bucket := func(account int) *accountBucket {
		b, ok := buckets[account]
		if !ok {
			b = &accountBucket{}
			buckets[account] = b
		}
		return b
	}

	for i := range entries {
		e := entries[i]
		p := PeriodOf(e.Date)
		if p == target {
			b := bucket(e.Account)
			b.actual = b.actual.Add(e.Value)
			b.current = append(b.current, e)
			continue
		}
		back := monthsBetween(p, target)
		if back < 1 || back > ProjectionMonths {
			continue
		}
		history = append(history, e)
		b := bucket(e.Account)
		b.sums[back-1] = b.sums[back-1].Add(e.Value)
		if back == 1 && (b.latest == nil || !e.Date.Before(b.latest.Date)) {
			b.latest = &entries[i]
		}
	}

	accounts := make([]int, 0, len(buckets))
	for k := range buckets {
		accounts = append(accounts, k)
	}
	slices.Sort(accounts)

	three := decimal.NewFromInt(ProjectionMonths)
	out := history
	for _, k := range accounts {
		b := buckets[k]
		avg := b.sums[0].Add(b.sums[1]).Add(b.sums[2]).Div(three)

		switch {
		case b.actual.GreaterThan(avg):
			out = append(out, b.current...)
		case avg.IsPositive() && b.latest != nil:
			synth := *b.latest
			synth.Value = avg
			synth.Date = target.DayIn(b.latest.Date.Day())
			synth.Projected = true
			out = append(out, synth)
		case len(b.current) > 0:
			out = append(out, b.current...)
		}
	}
	return out
}

// ProjectedTotal sums the projector output that falls inside the target period
func ProjectedTotal(target Period, entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range Project(target, entries) {
		if target.Contains(e.Date) {
			total = total.Add(e.Value)
		}
	}
	return total
}

// monthsBetween returns how many months p lies before target (negative when after)
func monthsBetween(p, target Period) int {
	return (target.Year-p.Year)*12 + int(target.Month) - int(p.Month)
}
