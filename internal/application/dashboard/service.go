// Package dashboard aggregates the synchronized ledger into the figures shown
// on the financial dashboard. It reads only the local store and groups rows
// with the same date and value rules the synchronization uses.
package dashboard

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/infrastructure/logger"
	"github.com/finsync/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// NoCostCenter labels payables without a cost center
const NoCostCenter = "Sem Centro de Custo"

var monthLabels = [...]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// Service is the aggregation service
type Service struct {
	receivables ledger.ReceivableStore
	payables    ledger.PayableStore
	reference   ledger.ReferenceStore
	loc         *time.Location
	now         func() time.Time
	logger      *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLocation sets the time zone "today" is evaluated in
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the fallback logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates the aggregation service
func NewService(
	receivables ledger.ReceivableStore,
	payables ledger.PayableStore,
	reference ledger.ReferenceStore,
	opts ...Option,
) *Service {
	s := &Service{
		receivables: receivables,
		payables:    payables,
		reference:   reference,
		loc:         time.UTC,
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current calendar date in the configured time zone
func (s *Service) Today() time.Time {
	return ledger.DateOnly(s.now().In(s.loc))
}

// Range resolves a period keyword against today
func (s *Service) Range(periodo string) DateRange {
	return ResolvePeriod(periodo, s.Today())
}

// Summary returns the period totals and their change against the previous
// period of equal length. Payables are projected when the period starts in
// the current month or later.
func (s *Service) Summary(ctx context.Context, q Query) (*SummaryResponse, error) {
	r := s.Range(q.Periodo)
	ctx, span := telemetry.StartSpan(ctx, "dashboard.summary",
		attribute.String("period.from", formatDate(r.From)), attribute.String("period.to", formatDate(r.To)))
	defer span.End()

	projected := !r.From.Before(ledger.PeriodOf(s.Today()).FirstDay())

	receivables, err := s.receivableTotal(ctx, r, q.Branches)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	var payables decimal.Decimal
	if projected {
		payables, err = s.projectedPayableTotal(ctx, r, q.Branches)
	} else {
		payables, err = s.payableTotal(ctx, r, q.Branches)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	prev := r.Previous()
	prevReceivables, err := s.receivableTotal(ctx, prev, q.Branches)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	prevPayables, err := s.payableTotal(ctx, prev, q.Branches)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	balance := receivables.Sub(payables)
	prevBalance := prevReceivables.Sub(prevPayables)

	s.log(ctx).Debug("dashboard summary computed",
		zap.String("from", formatDate(r.From)),
		zap.String("to", formatDate(r.To)),
		zap.Bool("projected", projected))

	return &SummaryResponse{
		PeriodStart:          formatDate(r.From),
		PeriodEnd:            formatDate(r.To),
		ReceivablesTotal:     money(receivables),
		PayablesTotal:        money(payables),
		Balance:              money(balance),
		PayablesProjected:    projected,
		PreviousReceivables:  money(prevReceivables),
		PreviousPayables:     money(prevPayables),
		PreviousBalance:      money(prevBalance),
		ReceivablesChangePct: pct(ledger.PercentChange(receivables, prevReceivables)),
		PayablesChangePct:    pct(ledger.PercentChange(payables, prevPayables)),
		BalanceChangePct:     pct(ledger.PercentChange(balance, prevBalance)),
	}, nil
}

// Daily returns one point per calendar day of the period with actual
// receipts and payments. No projection is applied.
func (s *Service) Daily(ctx context.Context, q Query) ([]DailyPoint, error) {
	r := s.Range(q.Periodo)
	inflow, outflow, err := s.dailyActuals(ctx, r, q.Branches)
	if err != nil {
		return nil, err
	}

	out := make([]DailyPoint, 0, r.Days())
	r.Each(func(day time.Time) {
		in, outv := inflow[day], outflow[day]
		out = append(out, DailyPoint{
			Label:       fmt.Sprintf("%02d", day.Day()),
			Date:        formatDate(day),
			Receivables: money(in),
			Payables:    money(outv),
			Balance:     money(in.Sub(outv)),
		})
	})
	return out, nil
}

// CashFlow returns the running balance at the end of every day of the period
func (s *Service) CashFlow(ctx context.Context, q Query) ([]CashFlowPoint, error) {
	r := s.Range(q.Periodo)
	inflow, outflow, err := s.dailyActuals(ctx, r, q.Branches)
	if err != nil {
		return nil, err
	}

	out := make([]CashFlowPoint, 0, r.Days())
	running := decimal.Zero
	r.Each(func(day time.Time) {
		in, outv := inflow[day], outflow[day]
		running = running.Add(in).Sub(outv)
		out = append(out, CashFlowPoint{
			Label:       fmt.Sprintf("%02d", day.Day()),
			Date:        formatDate(day),
			Receivables: money(in),
			Payables:    money(outv),
			Balance:     money(running),
		})
	})
	return out, nil
}

// ProjectedDaily returns the per-day payables of the period after the
// trailing-average projection, one point per calendar day.
func (s *Service) ProjectedDaily(ctx context.Context, q Query) ([]ProjectedDay, error) {
	r := s.Range(q.Periodo)
	entries, err := s.projectedEntries(ctx, r, q.Branches)
	if err != nil {
		return nil, err
	}

	totals := make(map[time.Time]decimal.Decimal)
	synthesized := make(map[time.Time]int)
	for _, e := range entries {
		totals[e.Date] = totals[e.Date].Add(e.Value)
		if e.Projected {
			synthesized[e.Date]++
		}
	}

	out := make([]ProjectedDay, 0, r.Days())
	r.Each(func(day time.Time) {
		out = append(out, ProjectedDay{
			Label:     fmt.Sprintf("%02d", day.Day()),
			Date:      formatDate(day),
			Payables:  money(totals[day]),
			Projected: synthesized[day],
		})
	})
	return out, nil
}

// Monthly returns actual totals grouped by adjusted month
func (s *Service) Monthly(ctx context.Context, q Query) ([]MonthlyPoint, error) {
	r := s.Range(q.Periodo)
	recv, err := s.receivableRows(ctx, r, q.Branches)
	if err != nil {
		return nil, err
	}
	pay, err := s.payableRows(ctx, r, q.Branches)
	if err != nil {
		return nil, err
	}

	inflow := make(map[ledger.Period]decimal.Decimal)
	for _, row := range recv {
		p := ledger.PeriodOf(row.AdjustedDate())
		inflow[p] = inflow[p].Add(row.Value())
	}
	outflow := make(map[ledger.Period]decimal.Decimal)
	for _, row := range pay {
		p := ledger.PeriodOf(row.AdjustedDate())
		outflow[p] = outflow[p].Add(row.Value())
	}

	periods := r.Periods()
	out := make([]MonthlyPoint, 0, len(periods))
	for _, p := range periods {
		in, outv := inflow[p], clampZero(outflow[p])
		out = append(out, MonthlyPoint{
			Period:      p.String(),
			Label:       monthLabels[p.Month-1],
			Receivables: money(in),
			Payables:    money(outv),
			Balance:     money(in.Sub(outv)),
		})
	}
	return out, nil
}

// TopExpenses ranks level-6 expense accounts of the financial plan by payables
func (s *Service) TopExpenses(ctx context.Context, q Query) ([]RankingItem, error) {
	rows, err := s.payableRows(ctx, s.Range(q.Periodo), q.Branches)
	if err != nil {
		return nil, err
	}
	plan, err := s.categories(ctx, ledger.NatureExpense)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*bucket)
	for _, row := range rows {
		entry, ok := plan[row.LedgerAccount]
		if !ok {
			continue
		}
		addCategory(buckets, entry, row.Value())
	}
	return rank(buckets, q.limit()), nil
}

// TopRevenues ranks level-6 revenue accounts of the financial plan by receivables
func (s *Service) TopRevenues(ctx context.Context, q Query) ([]RankingItem, error) {
	rows, err := s.receivableRows(ctx, s.Range(q.Periodo), q.Branches)
	if err != nil {
		return nil, err
	}
	plan, err := s.categories(ctx, ledger.NatureRevenue)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*bucket)
	for _, row := range rows {
		entry, ok := plan[row.LedgerAccount]
		if !ok {
			continue
		}
		addCategory(buckets, entry, row.Value())
	}
	return rank(buckets, q.limit()), nil
}

// TopSuppliers ranks suppliers by payables in the period
func (s *Service) TopSuppliers(ctx context.Context, q Query) ([]RankingItem, error) {
	rows, err := s.payableRows(ctx, s.Range(q.Periodo), q.Branches)
	if err != nil {
		return nil, err
	}
	buckets := make(map[string]*bucket)
	for _, row := range rows {
		add(buckets, strconv.Itoa(row.SupplierCode), row.SupplierName, row.Value())
	}
	return rank(buckets, q.limit()), nil
}

// TopClients ranks clients by receivables in the period
func (s *Service) TopClients(ctx context.Context, q Query) ([]RankingItem, error) {
	rows, err := s.receivableRows(ctx, s.Range(q.Periodo), q.Branches)
	if err != nil {
		return nil, err
	}
	buckets := make(map[string]*bucket)
	for _, row := range rows {
		add(buckets, strconv.Itoa(row.ClientCode), row.ClientName, row.Value())
	}
	return rank(buckets, q.limit()), nil
}

// CostCenters breaks the period's payables down by cost center. A positive
// Query.Limit truncates the list.
func (s *Service) CostCenters(ctx context.Context, q Query) ([]RankingItem, error) {
	rows, err := s.payableRows(ctx, s.Range(q.Periodo), q.Branches)
	if err != nil {
		return nil, err
	}
	centers, err := s.reference.CostCenters(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cost centers: %w", err)
	}
	names := make(map[string]string, len(centers))
	for _, c := range centers {
		names[c.CostCenter] = c.Description
	}

	buckets := make(map[string]*bucket)
	for _, row := range rows {
		if row.CostCenter == 0 {
			add(buckets, "", NoCostCenter, row.Value())
			continue
		}
		code := strconv.Itoa(row.CostCenter)
		name, ok := names[code]
		if !ok || name == "" {
			name = code
		}
		add(buckets, code, name, row.Value())
	}
	return rank(buckets, q.Limit), nil
}

// ReceivablesByDay groups the receivables of a month by adjusted date. Only
// business days inside the month are reported.
func (s *Service) ReceivablesByDay(ctx context.Context, period ledger.Period, branches []int) ([]DaySummary, error) {
	rows, err := s.receivableRows(ctx, monthRange(period), branches)
	if err != nil {
		return nil, err
	}
	days := newDayGroups()
	for _, row := range rows {
		d := row.AdjustedDate()
		if !period.Contains(d) || !ledger.IsWeekday(d) {
			continue
		}
		days.add(d, row.Value())
	}
	return days.summaries(), nil
}

// SettledByDay groups the settled receivables of a month by last payment
// date, unadjusted, valued at the original amount.
func (s *Service) SettledByDay(ctx context.Context, period ledger.Period, branches []int) ([]DaySummary, error) {
	rows, err := s.receivables.FindSettled(ctx, period.FirstDay(), period.LastDay(), branches)
	if err != nil {
		return nil, fmt.Errorf("load settled receivables: %w", err)
	}
	days := newDayGroups()
	for _, row := range rows {
		if row.LastPaymentDate == nil {
			continue
		}
		d := ledger.DateOnly(*row.LastPaymentDate)
		if !period.Contains(d) || !ledger.IsWeekday(d) {
			continue
		}
		days.add(d, row.OriginalAmount)
	}
	return days.summaries(), nil
}

// receivableRows loads the receivables whose adjusted date falls in r
func (s *Service) receivableRows(ctx context.Context, r DateRange, branches []int) ([]ledger.ReceivableRecord, error) {
	rawFrom, rawTo, ok := ledger.FlowReceivable.RawRange(r.From, r.To)
	if !ok {
		return nil, nil
	}
	rows, err := s.receivables.Find(ctx, ledger.RecordFilter{RawFrom: rawFrom, RawTo: rawTo, Branches: branches})
	if err != nil {
		return nil, fmt.Errorf("load receivables: %w", err)
	}
	out := make([]ledger.ReceivableRecord, 0, len(rows))
	for _, row := range rows {
		if row.Status == ledger.StatusCancelled || !r.Contains(row.AdjustedDate()) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// payableRows loads the canonical, non-cancelled payables whose adjusted date
// falls in r
func (s *Service) payableRows(ctx context.Context, r DateRange, branches []int) ([]ledger.PayableRecord, error) {
	rawFrom, rawTo, ok := ledger.FlowPayable.RawRange(r.From, r.To)
	if !ok {
		return nil, nil
	}
	rows, err := s.payables.Find(ctx, ledger.RecordFilter{RawFrom: rawFrom, RawTo: rawTo, Branches: branches})
	if err != nil {
		return nil, fmt.Errorf("load payables: %w", err)
	}
	out := make([]ledger.PayableRecord, 0, len(rows))
	for _, row := range rows {
		if !row.IsCanonical() || row.Status == ledger.StatusCancelled || !r.Contains(row.AdjustedDate()) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Service) receivableTotal(ctx context.Context, r DateRange, branches []int) (decimal.Decimal, error) {
	rows, err := s.receivableRows(ctx, r, branches)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Value())
	}
	return total, nil
}

func (s *Service) payableTotal(ctx context.Context, r DateRange, branches []int) (decimal.Decimal, error) {
	rows, err := s.payableRows(ctx, r, branches)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Value())
	}
	return clampZero(total), nil
}

func (s *Service) projectedPayableTotal(ctx context.Context, r DateRange, branches []int) (decimal.Decimal, error) {
	entries, err := s.projectedEntries(ctx, r, branches)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Value)
	}
	return clampZero(total), nil
}

// projectedEntries runs the projector for every month r overlaps and keeps
// the target-month entries that fall in r.
func (s *Service) projectedEntries(ctx context.Context, r DateRange, branches []int) ([]ledger.Entry, error) {
	periods := r.Periods()
	history := DateRange{From: periods[0].AddMonths(-ledger.ProjectionMonths).FirstDay(), To: r.To}
	rows, err := s.payableRows(ctx, history, branches)
	if err != nil {
		return nil, err
	}
	entries := ledger.PayableEntries(rows)

	var out []ledger.Entry
	for _, p := range periods {
		for _, e := range ledger.Project(p, entries) {
			if p.Contains(e.Date) && r.Contains(e.Date) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (s *Service) dailyActuals(ctx context.Context, r DateRange, branches []int) (inflow, outflow map[time.Time]decimal.Decimal, err error) {
	recv, err := s.receivableRows(ctx, r, branches)
	if err != nil {
		return nil, nil, err
	}
	pay, err := s.payableRows(ctx, r, branches)
	if err != nil {
		return nil, nil, err
	}
	inflow = make(map[time.Time]decimal.Decimal)
	for _, row := range recv {
		d := row.AdjustedDate()
		inflow[d] = inflow[d].Add(row.Value())
	}
	outflow = make(map[time.Time]decimal.Decimal)
	for _, row := range pay {
		d := row.AdjustedDate()
		outflow[d] = outflow[d].Add(row.Value())
	}
	return inflow, outflow, nil
}

// categories indexes the level-6 financial plan accounts of one nature by
// reduced account
func (s *Service) categories(ctx context.Context, nature ledger.AccountNature) (map[int]ledger.FinancialPlanEntry, error) {
	plan, err := s.reference.FinancialPlan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load financial plan: %w", err)
	}
	out := make(map[int]ledger.FinancialPlanEntry)
	for _, e := range plan {
		if e.Level == ledger.CategoryLevel && e.Nature == nature {
			out[e.ReducedAccount] = e
		}
	}
	return out, nil
}

func (s *Service) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, logger.FromContextOr(ctx, s.logger))
}

type bucket struct {
	code  string
	name  string
	kind  string
	level int
	total decimal.Decimal
}

func add(buckets map[string]*bucket, code, name string, v decimal.Decimal) *bucket {
	b, ok := buckets[code]
	if !ok {
		b = &bucket{code: code, name: name}
		buckets[code] = b
	}
	b.total = b.total.Add(v)
	return b
}

func addCategory(buckets map[string]*bucket, e ledger.FinancialPlanEntry, v decimal.Decimal) {
	b := add(buckets, strconv.Itoa(e.ReducedAccount), e.Label(), v)
	b.kind = e.Nature.Label()
	b.level = e.Level
}

// rank orders buckets by total, largest first, and keeps the first limit
// (all when limit is not positive)
func rank(buckets map[string]*bucket, limit int) []RankingItem {
	list := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		list = append(list, b)
	}
	slices.SortFunc(list, func(a, b *bucket) int {
		if c := b.total.Cmp(a.total); c != 0 {
			return c
		}
		return cmp.Compare(a.code, b.code)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]RankingItem, len(list))
	for i, b := range list {
		out[i] = RankingItem{
			Rank:  i + 1,
			Code:  b.code,
			Name:  b.name,
			Total: money(b.total),
			Kind:  b.kind,
			Level: b.level,
		}
	}
	return out
}

type dayGroups struct {
	totals map[time.Time]decimal.Decimal
	counts map[time.Time]int
}

func newDayGroups() *dayGroups {
	return &dayGroups{totals: make(map[time.Time]decimal.Decimal), counts: make(map[time.Time]int)}
}

func (g *dayGroups) add(d time.Time, v decimal.Decimal) {
	g.totals[d] = g.totals[d].Add(v)
	g.counts[d]++
}

func (g *dayGroups) summaries() []DaySummary {
	days := make([]time.Time, 0, len(g.totals))
	for d := range g.totals {
		days = append(days, d)
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	out := make([]DaySummary, len(days))
	for i, d := range days {
		out[i] = DaySummary{Date: formatDate(d), Total: money(g.totals[d]), Count: g.counts[d]}
	}
	return out
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
