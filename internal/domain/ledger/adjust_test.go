package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdjustPayableDate(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"sunday moves to monday", date(2025, 6, 1), date(2025, 6, 2)},
		{"monday unchanged", date(2025, 6, 2), date(2025, 6, 2)},
		{"tuesday unchanged", date(2025, 6, 3), date(2025, 6, 3)},
		{"wednesday unchanged", date(2025, 6, 4), date(2025, 6, 4)},
		{"thursday unchanged", date(2025, 6, 5), date(2025, 6, 5)},
		{"friday unchanged", date(2025, 6, 6), date(2025, 6, 6)},
		{"saturday moves to monday", date(2025, 6, 7), date(2025, 6, 9)},
		{"weekend crosses month", date(2025, 5, 31), date(2025, 6, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdjustPayableDate(tt.in))
		})
	}
}

func TestAdjustReceivableDate(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"sunday plus two", date(2025, 6, 1), date(2025, 6, 3)},
		{"monday plus one", date(2025, 6, 2), date(2025, 6, 3)},
		{"tuesday plus one", date(2025, 6, 3), date(2025, 6, 4)},
		{"wednesday plus one", date(2025, 6, 4), date(2025, 6, 5)},
		{"thursday plus one", date(2025, 6, 5), date(2025, 6, 6)},
		{"friday plus three", date(2025, 6, 6), date(2025, 6, 9)},
		{"saturday plus three", date(2025, 6, 7), date(2025, 6, 10)},
		{"friday crosses month", date(2025, 8, 29), date(2025, 9, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdjustReceivableDate(tt.in))
		})
	}
}

func TestAdjust_AlwaysWeekday(t *testing.T) {
	d := date(2024, 1, 1)
	for i := 0; i < 800; i++ {
		assert.True(t, IsWeekday(FlowPayable.Adjust(d)), "payable %s", d)
		assert.True(t, IsWeekday(FlowReceivable.Adjust(d)), "receivable %s", d)
		d = d.AddDate(0, 0, 1)
	}
}

func TestAdjust_IgnoresTimeOfDay(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	in := time.Date(2025, 6, 7, 23, 59, 0, 0, loc)
	assert.Equal(t, date(2025, 6, 9), AdjustPayableDate(in))
	assert.Equal(t, date(2025, 6, 10), AdjustReceivableDate(in))
}

func TestFlow_RawRange(t *testing.T) {
	tests := []struct {
		name     string
		flow     Flow
		from, to time.Time
		rawFrom  time.Time
		rawTo    time.Time
	}{
		{
			name:    "receivable june 2025",
			flow:    FlowReceivable,
			from:    date(2025, 6, 1),
			to:      date(2025, 6, 30),
			rawFrom: date(2025, 5, 30),
			rawTo:   date(2025, 6, 27),
		},
		{
			name:    "payable june 2025",
			flow:    FlowPayable,
			from:    date(2025, 6, 1),
			to:      date(2025, 6, 30),
			rawFrom: date(2025, 5, 31),
			rawTo:   date(2025, 6, 30),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rawFrom, rawTo, ok := tt.flow.RawRange(tt.from, tt.to)
			require.True(t, ok)
			assert.Equal(t, tt.rawFrom, rawFrom)
			assert.Equal(t, tt.rawTo, rawTo)
		})
	}
}

func TestFlow_RawRange_IsExactPreimage(t *testing.T) {
	for _, flow := range []Flow{FlowPayable, FlowReceivable} {
		from, to := date(2025, 2, 1), date(2025, 2, 28)
		rawFrom, rawTo, ok := flow.RawRange(from, to)
		require.True(t, ok)

		for d := from.AddDate(0, 0, -10); d.Before(to.AddDate(0, 0, 10)); d = d.AddDate(0, 0, 1) {
			adj := flow.Adjust(d)
			inWindow := !adj.Before(from) && !adj.After(to)
			inRaw := !d.Before(rawFrom) && !d.After(rawTo)
			assert.Equal(t, inWindow, inRaw, "%s %s", flow, d.Format(time.DateOnly))
		}
	}
}

func TestFlow_RawRange_Empty(t *testing.T) {
	// nothing adjusts onto a saturday
	_, _, ok := FlowReceivable.RawRange(date(2025, 6, 7), date(2025, 6, 8))
	assert.False(t, ok)

	_, _, ok = FlowPayable.RawRange(date(2025, 6, 10), date(2025, 6, 9))
	assert.False(t, ok)
}
