package ledger

import (
	"slices"
	"time"
)

// DefaultBranches is the branch set synchronized when none is configured
var DefaultBranches = []int{1001, 1002, 1003, 3001, 3002, 3003}

// PayableHistoryMonths is how many months before the target period a payable
// sync also refreshes, so the projector always has its trailing context.
const PayableHistoryMonths = 3

// Window is the slice of a ledger replaced by one synchronization run:
// rows whose adjusted date lies in [From, To] and whose branch is in Branches.
type Window struct {
	Flow     Flow
	Period   Period
	From     time.Time
	To       time.Time
	RawFrom  time.Time
	RawTo    time.Time
	Branches []int
}

// NewWindow builds a window over an adjusted-date range
func NewWindow(flow Flow, period Period, from, to time.Time, branches []int) Window {
	w := Window{
		Flow:     flow,
		Period:   period,
		From:     DateOnly(from),
		To:       DateOnly(to),
		Branches: slices.Clone(branches),
	}
	if rawFrom, rawTo, ok := flow.RawRange(w.From, w.To); ok {
		w.RawFrom, w.RawTo = rawFrom, rawTo
	} else {
		// empty preimage: an inverted raw range matches nothing
		w.RawFrom, w.RawTo = w.From, w.From.AddDate(0, 0, -1)
	}
	return w
}

// ReceivableWindow covers the adjusted dates of the target month
func ReceivableWindow(p Period, branches []int) Window {
	return NewWindow(FlowReceivable, p, p.FirstDay(), p.LastDay(), branches)
}

// PayableWindow covers the target month plus the three months before it
func PayableWindow(p Period, branches []int) Window {
	return NewWindow(FlowPayable, p, p.AddMonths(-PayableHistoryMonths).FirstDay(), p.LastDay(), branches)
}

// Empty reports whether no raw date can fall in the window
func (w Window) Empty() bool {
	return w.RawTo.Before(w.RawFrom)
}

// Contains reports whether an adjusted date falls inside the window
func (w Window) Contains(adjusted time.Time) bool {
	d := DateOnly(adjusted)
	return !d.Before(w.From) && !d.After(w.To)
}

// HasBranch reports whether the branch belongs to the window's branch set
func (w Window) HasBranch(branch int) bool {
	return slices.Contains(w.Branches, branch)
}

// Matches applies the full window predicate to a raw date and branch
func (w Window) Matches(raw time.Time, branch int) bool {
	return w.HasBranch(branch) && w.Contains(w.Flow.Adjust(raw))
}
