package ledger

import "time"

// Flow distinguishes the two ledgers. Each has its own date and value rule.
type Flow string

const (
	FlowPayable    Flow = "payable"
	FlowReceivable Flow = "receivable"
)

// maxShift is the largest forward offset any rule applies
const maxShift = 3

// Day offsets indexed by time.Weekday (Sunday = 0).
var (
	payableShift    = [7]int{time.Sunday: 1, time.Saturday: 2}
	receivableShift = [7]int{
		time.Sunday:    2,
		time.Monday:    1,
		time.Tuesday:   1,
		time.Wednesday: 1,
		time.Thursday:  1,
		time.Friday:    3,
		time.Saturday:  3,
	}
)

// AdjustPayableDate moves weekend due dates to the following Monday.
// Weekdays are unchanged.
func AdjustPayableDate(d time.Time) time.Time {
	d = DateOnly(d)
	return d.AddDate(0, 0, payableShift[d.Weekday()])
}

// AdjustReceivableDate maps a projected-payment date to the business day the
// money is expected to be available: Fri and Sat +3, Sun +2, Mon-Thu +1.
func AdjustReceivableDate(d time.Time) time.Time {
	d = DateOnly(d)
	return d.AddDate(0, 0, receivableShift[d.Weekday()])
}

// Adjust applies the flow's rule to a raw date. Callers apply it exactly once.
func (f Flow) Adjust(d time.Time) time.Time {
	if f == FlowReceivable {
		return AdjustReceivableDate(d)
	}
	return AdjustPayableDate(d)
}

// RawRange returns the contiguous range of raw dates whose adjusted date lies
// in [from, to]. Both rules are monotone non-decreasing, so the preimage of a
// date interval is itself an interval. Returns ok=false when no raw date maps
// into the range.
func (f Flow) RawRange(from, to time.Time) (rawFrom, rawTo time.Time, ok bool) {
	from, to = DateOnly(from), DateOnly(to)
	if to.Before(from) {
		return time.Time{}, time.Time{}, false
	}

	rawFrom = from.AddDate(0, 0, -maxShift)
	for f.Adjust(rawFrom).Before(from) {
		rawFrom = rawFrom.AddDate(0, 0, 1)
	}

	rawTo = to
	for f.Adjust(rawTo).After(to) {
		rawTo = rawTo.AddDate(0, 0, -1)
	}

	if rawTo.Before(rawFrom) {
		return time.Time{}, time.Time{}, false
	}
	return rawFrom, rawTo, true
}
