package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/domain/shared"
	"github.com/finsync/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockReader(t *testing.T, opts ...Option) (*Reader, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)

	return NewReader(db, opts...), mock
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var receivableRowColumns = []string{
	"codemp", "codfil", "codcli", "nomcli", "cidcli", "baicli", "tipcli", "datemi", "numtit",
	"sittit", "codtpt", "vlrabe", "vlrori", "recdec", "vctpro", "vctori", "datppt", "codtns",
	"destns", "obstcr", "numnfv", "codfpg", "ultpgt", "codccu", "ctafin",
}

func TestReader_FetchReceivables(t *testing.T) {
	reader, mock := newMockReader(t, WithQueryTimeout(5*time.Second))
	w := ledger.ReceivableWindow(ledger.NewPeriod(2025, time.June), []int{1001, 3001})

	rows := sqlmock.NewRows(receivableRowColumns).
		AddRow(10, 1001, 77, "ACME LTDA ", "FORTALEZA", "CENTRO", "J", date(2025, 5, 2), "NF-1 ",
			"AB", "DP", "150.00", "200.00", "2", date(2025, 6, 2), date(2025, 6, 2), date(2025, 5, 30), "90100",
			"VENDA", nil, "123", "BOL", date(1900, 1, 1), "20", 3101).
		AddRow(10, 3001, 78, "BETA", "SOBRAL", "", "F", nil, "NF-2",
			"LQ", "DP", "0", "80.00", nil, nil, nil, date(2025, 6, 10), "90100",
			nil, "pago", nil, nil, date(2025, 6, 10), "", 0)

	mock.ExpectQuery(`(?s)SELECT tcr\.CODEMP AS codemp.*FROM E301TCR tcr JOIN E085CLI cli.*` +
		`WHERE tcr\.CODEMP IN \(\$1,\$2,\$3\) AND tcr\.SITTIT IN \(\$4,\$5\) AND tns\.LISMOD = \$6 ` +
		`AND tcr\.VLRABE >= \$7 AND tcr\.VCTORI >= \$8 AND tcr\.CODTPT NOT IN \(\$9,\$10,\$11,\$12,\$13\) ` +
		`AND tcr\.CODCLI NOT IN \(\$14,\$15,\$16,\$17,\$18,\$19,\$20,\$21\) ` +
		`AND tcr\.CODFIL IN \(\$22,\$23\) AND tcr\.DATPPT BETWEEN \$24 AND \$25`).
		WithArgs(10, 20, 30, "AB", "LQ", "CRE", 0, receivableCutoff,
			"MCM", "MCR", "MEM", "MER", "SUB",
			250, 251, 304, 445, 446, 448, 72473, 74207,
			1001, 3001, w.RawFrom, w.RawTo).
		WillReturnRows(rows)

	got, err := reader.FetchReceivables(context.Background(), w)
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "ACME LTDA", first.ClientName)
	assert.Equal(t, "NF-1", first.DocumentNumber)
	assert.Equal(t, ledger.DirectionDebit, first.Direction)
	assert.Equal(t, date(2025, 5, 30), first.ProjectedPaymentDate)
	assert.Equal(t, date(2025, 6, 2), first.AdjustedDate())
	assert.Nil(t, first.LastPaymentDate, "1900 marker means no payment")
	assert.Equal(t, 20, first.CostCenter)
	assert.Equal(t, 3101, first.LedgerAccount)
	assert.True(t, first.Value().Equal(ledger.ReceivableValue(first.OpenAmount, ledger.DirectionDebit, first.OriginalAmount)))

	second := got[1]
	assert.Equal(t, ledger.DirectionCredit, second.Direction)
	assert.Nil(t, second.DueDate)
	require.NotNil(t, second.LastPaymentDate)
	assert.Equal(t, date(2025, 6, 10), *second.LastPaymentDate)
	assert.Equal(t, "pago", second.Notes)
	assert.Zero(t, second.CostCenter)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReader_FetchReceivables_SourceUnavailable(t *testing.T) {
	reader, mock := newMockReader(t)
	w := ledger.ReceivableWindow(ledger.NewPeriod(2025, time.June), ledger.DefaultBranches)

	mock.ExpectQuery(`FROM E301TCR`).WillReturnError(errors.New("login failed for user"))

	_, err := reader.FetchReceivables(context.Background(), w)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "login failed")
}

func TestReader_FetchPayables(t *testing.T) {
	reader, mock := newMockReader(t, WithCompanies([]int{10}))
	w := ledger.PayableWindow(ledger.NewPeriod(2025, time.June), nil)

	cols := []string{
		"codemp", "codfil", "numtit", "codfor", "nomfor", "seqmov", "codtns", "datmov", "codfpg",
		"codtpt", "sittit", "obstcp", "vlrori", "datemi", "ultpgt", "vctpro", "vlrrat", "ctafin",
		"codccu", "ctared", "vlrabe",
	}
	mock.ExpectQuery(`(?s)SELECT DISTINCT mcp\.CODEMP AS codemp.*FROM E501MCP mcp.*JOIN E501RAT rat.*` +
		`WHERE mcp\.CODEMP IN \(\$1\) AND tcp\.SITTIT <> \$2 AND mcp\.SEQMOV = \$3 AND tcp\.VLRABE >= \$4 ` +
		`AND tns\.LISMOD = \$5 AND rat\.CTAFIN NOT IN \(\$6,\$7,\$8,\$9,\$10,\$11,\$12\) ` +
		`AND mcp\.VCTPRO BETWEEN \$13 AND \$14`).
		WithArgs(10, "CA", 1, 0, "CPE", 407, 408, 409, 410, 411, 412, 501, w.RawFrom, w.RawTo).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(10, 1001, "T-9", 55, "FORNECEDOR X", 1, "90500", date(2025, 6, 1), "DIN",
				"NF", "AB", nil, "500.00", date(2025, 5, 20), date(1900, 1, 1), date(2025, 6, 28), "300.00", 4101,
				"20", 88, "500.00"))

	got, err := reader.FetchPayables(context.Background(), w)
	require.NoError(t, err)
	require.Len(t, got, 1)

	p := got[0]
	assert.True(t, p.IsCanonical())
	assert.Equal(t, "FORNECEDOR X", p.SupplierName)
	assert.Equal(t, 20, p.CostCenter)
	assert.Equal(t, 88, p.ReducedAccount)
	assert.Nil(t, p.LastPaymentDate)
	assert.Equal(t, date(2025, 6, 30), p.AdjustedDate())
	assert.True(t, p.Value().Equal(p.ApportionedAmount), "open above apportioned keeps the apportioned amount")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReader_FetchReferenceCharts(t *testing.T) {
	reader, mock := newMockReader(t)
	cols := []string{"codmpc", "ctared", "mskgcc", "defgru", "clacta", "nivcta", "descta", "anasin",
		"natcta", "modctb", "ctactb", "codccu", "tipccu"}

	mock.ExpectQuery(`(?s)FROM E043PCM pcm WHERE CODMPC = \$1 ORDER BY CLACTA, NIVCTA, CTARED, UPPER\(DESCTA\)`).
		WithArgs(ledger.FinancialPlanChart).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(601, 4101, "9.99", nil, "2.1.01.001", 6, "ENERGIA ", "A", "D", nil, 311, nil, nil))
	mock.ExpectQuery(`(?s)FROM E043PCM pcm WHERE CODMPC = \$1`).
		WithArgs(ledger.CostCenterChart).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(602, 20, nil, nil, "1.02", 2, "ADMINISTRATIVO", "A", "D", nil, nil, "20", "1"))

	plan, err := reader.FetchFinancialPlan(context.Background())
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "4101 - ENERGIA", plan[0].Label())
	assert.Equal(t, ledger.NatureExpense, plan[0].Nature)
	assert.Equal(t, 311, plan[0].AccountingAccount)

	centers, err := reader.FetchCostCenters(context.Background())
	require.NoError(t, err)
	require.Len(t, centers, 1)
	assert.Equal(t, "20", centers[0].CostCenter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReader_EmptyWindowSkipsQuery(t *testing.T) {
	reader, mock := newMockReader(t)
	// an adjusted range of a single Saturday has no receivable preimage
	w := ledger.NewWindow(ledger.FlowReceivable, ledger.NewPeriod(2025, time.June), date(2025, 6, 7), date(2025, 6, 7), nil)
	require.True(t, w.Empty())

	got, err := reader.FetchReceivables(context.Background(), w)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialector(t *testing.T) {
	tests := []struct {
		driver  string
		name    string
		wantErr bool
	}{
		{driver: "", name: "sqlserver"},
		{driver: "sqlserver", name: "sqlserver"},
		{driver: "mysql", name: "mysql"},
		{driver: "postgres", name: "postgres"},
		{driver: "oracle", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Dialector(&config.SourceConfig{Driver: tt.driver, Host: "erp", Port: 1433, DBName: "senior"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, d.Name())
		})
	}
}
