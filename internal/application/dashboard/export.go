package dashboard

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/finsync/backend/internal/infrastructure/export"
	"github.com/finsync/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
)

var rankingColumns = []export.Column{
	{Header: "#", Kind: export.KindInt},
	{Header: "Código", Kind: export.KindText, Width: 12},
	{Header: "Nome", Kind: export.KindText},
	{Header: "Total", Kind: export.KindMoney},
}

// Export writes the period's summary, daily chart and rankings as an xlsx
// workbook.
func (s *Service) Export(ctx context.Context, q Query, w io.Writer) error {
	ctx, span := telemetry.StartSpan(ctx, "dashboard.export")
	defer span.End()

	wb, err := s.workbook(ctx, q)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if err := export.Write(w, wb); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ExportFilename names the workbook of a period
func (s *Service) ExportFilename(q Query) string {
	r := s.Range(q.Periodo)
	return fmt.Sprintf("dashboard_%s_%s.xlsx", r.From.Format("20060102"), r.To.Format("20060102"))
}

func (s *Service) workbook(ctx context.Context, q Query) (export.Workbook, error) {
	summary, err := s.Summary(ctx, q)
	if err != nil {
		return export.Workbook{}, err
	}
	daily, err := s.Daily(ctx, q)
	if err != nil {
		return export.Workbook{}, err
	}

	sheets := []export.Sheet{summarySheet(summary), dailySheet(daily)}
	rankings := []struct {
		name string
		load func(context.Context, Query) ([]RankingItem, error)
	}{
		{"Top Despesas", s.TopExpenses},
		{"Top Receitas", s.TopRevenues},
		{"Top Fornecedores", s.TopSuppliers},
		{"Top Clientes", s.TopClients},
		{"Centros de Custo", s.CostCenters},
	}
	for _, rk := range rankings {
		items, err := rk.load(ctx, q)
		if err != nil {
			return export.Workbook{}, err
		}
		sheets = append(sheets, rankingSheet(rk.name, items))
	}

	return export.Workbook{
		Title:  fmt.Sprintf("Dashboard financeiro %s a %s", summary.PeriodStart, summary.PeriodEnd),
		Sheets: sheets,
	}, nil
}

func summarySheet(sum *SummaryResponse) export.Sheet {
	row := func(label string, amount float64, change float64) []any {
		return []any{label, amount, export.FormatBRL(decimal.NewFromFloat(amount)), change}
	}
	payables := "Despesas"
	if sum.PayablesProjected {
		payables = "Despesas (projetado)"
	}
	return export.Sheet{
		Name: "Resumo",
		Columns: []export.Column{
			{Header: "Indicador", Kind: export.KindText, Width: 24},
			{Header: "Valor", Kind: export.KindMoney},
			{Header: "Valor (R$)", Kind: export.KindText, Width: 20},
			{Header: "Variação", Kind: export.KindPercent},
		},
		Rows: [][]any{
			row("Receitas", sum.ReceivablesTotal, sum.ReceivablesChangePct),
			row(payables, sum.PayablesTotal, sum.PayablesChangePct),
			row("Saldo", sum.Balance, sum.BalanceChangePct),
		},
	}
}

func dailySheet(points []DailyPoint) export.Sheet {
	rows := make([][]any, 0, len(points))
	for _, p := range points {
		day, _ := time.Parse(dateLayout, p.Date)
		rows = append(rows, []any{day, p.Receivables, p.Payables, p.Balance})
	}
	return export.Sheet{
		Name: "Diário",
		Columns: []export.Column{
			{Header: "Data", Kind: export.KindDate},
			{Header: "Receitas", Kind: export.KindMoney},
			{Header: "Despesas", Kind: export.KindMoney},
			{Header: "Saldo", Kind: export.KindMoney},
		},
		Rows: rows,
	}
}

func rankingSheet(name string, items []RankingItem) export.Sheet {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{it.Rank, it.Code, export.TitleName(it.Name), it.Total})
	}
	return export.Sheet{Name: name, Columns: rankingColumns, Rows: rows}
}
