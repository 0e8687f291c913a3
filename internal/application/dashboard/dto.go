package dashboard

import (
	"time"

	"github.com/shopspring/decimal"
)

// Query selects the data a dashboard view aggregates
type Query struct {
	Periodo  string `form:"periodo"`
	Branches []int  `form:"-"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// DefaultLimit is the ranking size used when Query.Limit is not positive
const DefaultLimit = 10

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// SummaryResponse is the consolidated financial summary of a period
type SummaryResponse struct {
	PeriodStart          string  `json:"period_start"`
	PeriodEnd            string  `json:"period_end"`
	ReceivablesTotal     float64 `json:"receivables_total"`
	PayablesTotal        float64 `json:"payables_total"`
	Balance              float64 `json:"balance"`
	PayablesProjected    bool    `json:"payables_projected"`
	PreviousReceivables  float64 `json:"previous_receivables_total"`
	PreviousPayables     float64 `json:"previous_payables_total"`
	PreviousBalance      float64 `json:"previous_balance"`
	ReceivablesChangePct float64 `json:"receivables_change_pct"`
	PayablesChangePct    float64 `json:"payables_change_pct"`
	BalanceChangePct     float64 `json:"balance_change_pct"`
}

// DailyPoint is one calendar day of the receipts/payments chart
type DailyPoint struct {
	Label       string  `json:"label"`
	Date        string  `json:"date"`
	Receivables float64 `json:"receivables"`
	Payables    float64 `json:"payables"`
	Balance     float64 `json:"balance"`
}

// ProjectedDay is one calendar day of projected payables
type ProjectedDay struct {
	Label     string  `json:"label"`
	Date      string  `json:"date"`
	Payables  float64 `json:"payables"`
	Projected int     `json:"projected_accounts"`
}

// MonthlyPoint is the total of one adjusted month
type MonthlyPoint struct {
	Period      string  `json:"period"`
	Label       string  `json:"label"`
	Receivables float64 `json:"receivables"`
	Payables    float64 `json:"payables"`
	Balance     float64 `json:"balance"`
}

// RankingItem is one entry of a top-N list
type RankingItem struct {
	Rank  int     `json:"rank"`
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Total float64 `json:"total"`
	Kind  string  `json:"kind,omitempty"`
	Level int     `json:"level,omitempty"`
}

// CashFlowPoint is the running balance at the end of one day
type CashFlowPoint struct {
	Label       string  `json:"label"`
	Date        string  `json:"date"`
	Receivables float64 `json:"receivables"`
	Payables    float64 `json:"payables"`
	Balance     float64 `json:"balance"`
}

// DaySummary is the receivable total of one business day
type DaySummary struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

const dateLayout = "2006-01-02"

func formatDate(d time.Time) string {
	return d.Format(dateLayout)
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func pct(d decimal.Decimal) float64 {
	return d.Round(1).InexactFloat64()
}
