package source

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Fixed ERP filters. Titles created before the cutoff predate the current
// chart and are never mirrored.
var (
	receivableCutoff        = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	excludedReceivableTypes = []string{"MCM", "MCR", "MEM", "MER", "SUB"}
	excludedClients         = []int{250, 251, 304, 445, 446, 448, 72473, 74207}
	excludedPayableAccounts = []int{407, 408, 409, 410, 411, 412, 501}
)

const (
	receivableModule = "CRE"
	payableModule    = "CPE"
)

// Aliases are lowercase so every engine reports the same result column names.
const receivableColumns = `tcr.CODEMP AS codemp, tcr.CODFIL AS codfil, tcr.CODCLI AS codcli,
	cli.NOMCLI AS nomcli, cli.CIDCLI AS cidcli, cli.BAICLI AS baicli, cli.TIPCLI AS tipcli,
	tcr.DATEMI AS datemi, tcr.NUMTIT AS numtit, tcr.SITTIT AS sittit, tcr.CODTPT AS codtpt,
	tcr.VLRABE AS vlrabe, tcr.VLRORI AS vlrori, tns.RECDEC AS recdec,
	tcr.VCTPRO AS vctpro, tcr.VCTORI AS vctori, tcr.DATPPT AS datppt,
	tcr.CODTNS AS codtns, tns.DESTNS AS destns, tcr.OBSTCR AS obstcr,
	tcr.NUMNFV AS numnfv, tcr.CODFPG AS codfpg, tcr.ULTPGT AS ultpgt,
	COALESCE((SELECT MIN(rat.CODCCU) FROM E301RAT rat
		WHERE rat.CODEMP = tcr.CODEMP AND rat.CODFIL = tcr.CODFIL
		AND rat.NUMTIT = tcr.NUMTIT AND rat.CODTPT = tcr.CODTPT), '') AS codccu,
	COALESCE((SELECT MIN(rat.CTAFIN) FROM E301RAT rat
		WHERE rat.CODEMP = tcr.CODEMP AND rat.CODFIL = tcr.CODFIL
		AND rat.NUMTIT = tcr.NUMTIT AND rat.CODTPT = tcr.CODTPT), 0) AS ctafin`

const payableColumns = `DISTINCT mcp.CODEMP AS codemp, mcp.CODFIL AS codfil, mcp.NUMTIT AS numtit,
	mcp.CODFOR AS codfor, frn.NOMFOR AS nomfor, mcp.SEQMOV AS seqmov, mcp.CODTNS AS codtns,
	mcp.DATMOV AS datmov, mcp.CODFPG AS codfpg, tcp.CODTPT AS codtpt, tcp.SITTIT AS sittit,
	tcp.OBSTCP AS obstcp, tcp.VLRORI AS vlrori, tcp.DATEMI AS datemi, tcp.ULTPGT AS ultpgt,
	mcp.VCTPRO AS vctpro, rat.VLRRAT AS vlrrat, rat.CTAFIN AS ctafin, rat.CODCCU AS codccu,
	rat.CTARED AS ctared, tcp.VLRABE AS vlrabe`

const chartColumns = `CODMPC AS codmpc, CTARED AS ctared, MSKGCC AS mskgcc, DEFGRU AS defgru,
	CLACTA AS clacta, NIVCTA AS nivcta, DESCTA AS descta, ANASIN AS anasin, NATCTA AS natcta,
	MODCTB AS modctb, CTACTB AS ctactb, CODCCU AS codccu, TIPCCU AS tipccu`

func (r *Reader) receivableQuery(ctx context.Context, branches []int) *gorm.DB {
	q := r.db.WithContext(ctx).
		Table("E301TCR tcr").
		Select(receivableColumns).
		Joins("JOIN E085CLI cli ON cli.CODCLI = tcr.CODCLI").
		Joins("JOIN E085HCL hcl ON hcl.CODCLI = tcr.CODCLI AND hcl.CODEMP = tcr.CODEMP AND hcl.CODFIL = tcr.CODFIL").
		Joins("JOIN E039POR por ON por.CODEMP = tcr.CODEMP AND por.CODPOR = tcr.CODPOR").
		Joins("JOIN E001TNS tns ON tns.CODEMP = tcr.CODEMP AND tns.CODTNS = tcr.CODTNS").
		Joins("JOIN E002TPT tpt ON tpt.CODTPT = tcr.CODTPT").
		Joins("JOIN E070FIL fil ON fil.CODEMP = tcr.CODEMP AND fil.CODFIL = tcr.CODFIL").
		Joins("JOIN E070EMP emp ON emp.CODEMP = tcr.CODEMP").
		Where("tcr.CODEMP IN ?", r.companies).
		Where("tcr.SITTIT IN ?", []string{ledger.StatusOpen, ledger.StatusSettled}).
		Where("tns.LISMOD = ?", receivableModule).
		Where("tcr.VLRABE >= ?", 0).
		Where("tcr.VCTORI >= ?", receivableCutoff).
		Where("tcr.CODTPT NOT IN ?", excludedReceivableTypes).
		Where("tcr.CODCLI NOT IN ?", excludedClients)
	if len(branches) > 0 {
		q = q.Where("tcr.CODFIL IN ?", branches)
	}
	return q
}

func (r *Reader) payableQuery(ctx context.Context, branches []int) *gorm.DB {
	q := r.db.WithContext(ctx).
		Table("E501MCP mcp").
		Select(payableColumns).
		Joins("JOIN E501TCP tcp ON tcp.CODEMP = mcp.CODEMP AND tcp.CODFIL = mcp.CODFIL AND tcp.NUMTIT = mcp.NUMTIT AND tcp.CODTPT = mcp.CODTPT AND tcp.CODFOR = mcp.CODFOR").
		Joins("JOIN E001TNS tns ON tns.CODEMP = tcp.CODEMP AND tns.CODTNS = tcp.CODTNS").
		Joins("JOIN E002TPT tpt ON tpt.CODTPT = mcp.CODTPT").
		Joins("JOIN E095FOR frn ON frn.CODFOR = mcp.CODFOR").
		Joins("JOIN E501RAT rat ON rat.CODEMP = mcp.CODEMP AND rat.CODFIL = mcp.CODFIL AND rat.CODFOR = mcp.CODFOR AND rat.NUMTIT = mcp.NUMTIT AND rat.SEQMOV = mcp.SEQMOV AND rat.CODTPT = mcp.CODTPT").
		Where("mcp.CODEMP IN ?", r.companies).
		Where("tcp.SITTIT <> ?", ledger.StatusCancelled).
		Where("mcp.SEQMOV = ?", 1).
		Where("tcp.VLRABE >= ?", 0).
		Where("tns.LISMOD = ?", payableModule).
		Where("rat.CTAFIN NOT IN ?", excludedPayableAccounts)
	if len(branches) > 0 {
		q = q.Where("mcp.CODFIL IN ?", branches)
	}
	return q
}

func (r *Reader) chartQuery(ctx context.Context, chart int) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("E043PCM pcm").
		Select(chartColumns).
		Where("CODMPC = ?", chart).
		Order("CLACTA, NIVCTA, CTARED, UPPER(DESCTA)")
}

type receivableRow struct {
	Codemp int             `gorm:"column:codemp"`
	Codfil int             `gorm:"column:codfil"`
	Codcli int             `gorm:"column:codcli"`
	Nomcli string          `gorm:"column:nomcli"`
	Cidcli string          `gorm:"column:cidcli"`
	Baicli string          `gorm:"column:baicli"`
	Tipcli string          `gorm:"column:tipcli"`
	Datemi *time.Time      `gorm:"column:datemi"`
	Numtit string          `gorm:"column:numtit"`
	Sittit string          `gorm:"column:sittit"`
	Codtpt string          `gorm:"column:codtpt"`
	Vlrabe decimal.Decimal `gorm:"column:vlrabe"`
	Vlrori decimal.Decimal `gorm:"column:vlrori"`
	Recdec *string         `gorm:"column:recdec"`
	Vctpro *time.Time      `gorm:"column:vctpro"`
	Vctori *time.Time      `gorm:"column:vctori"`
	Datppt time.Time       `gorm:"column:datppt"`
	Codtns string          `gorm:"column:codtns"`
	Destns *string         `gorm:"column:destns"`
	Obstcr *string         `gorm:"column:obstcr"`
	Numnfv *string         `gorm:"column:numnfv"`
	Codfpg *string         `gorm:"column:codfpg"`
	Ultpgt *time.Time      `gorm:"column:ultpgt"`
	Codccu string          `gorm:"column:codccu"`
	Ctafin int             `gorm:"column:ctafin"`
}

func (row *receivableRow) toDomain() ledger.ReceivableRecord {
	return ledger.ReceivableRecord{
		CompanyCode:            row.Codemp,
		BranchCode:             row.Codfil,
		ClientCode:             row.Codcli,
		ClientName:             trim(row.Nomcli),
		ClientCity:             trim(row.Cidcli),
		ClientDistrict:         trim(row.Baicli),
		ClientType:             trim(row.Tipcli),
		DocumentNumber:         trim(row.Numtit),
		DocumentType:           trim(row.Codtpt),
		Status:                 trim(row.Sittit),
		IssueDate:              validDate(row.Datemi),
		DueDate:                validDate(row.Vctpro),
		OriginalDueDate:        validDate(row.Vctori),
		ProjectedPaymentDate:   ledger.DateOnly(row.Datppt),
		OriginalAmount:         row.Vlrori,
		OpenAmount:             row.Vlrabe,
		Direction:              direction(row.Recdec),
		TransactionCode:        trim(row.Codtns),
		TransactionDescription: deref(row.Destns),
		PaymentMethod:          deref(row.Codfpg),
		InvoiceNumber:          deref(row.Numnfv),
		Notes:                  deref(row.Obstcr),
		LedgerAccount:          row.Ctafin,
		CostCenter:             atoi(row.Codccu),
		LastPaymentDate:        validDate(row.Ultpgt),
	}
}

type payableRow struct {
	Codemp int             `gorm:"column:codemp"`
	Codfil int             `gorm:"column:codfil"`
	Numtit string          `gorm:"column:numtit"`
	Codfor int             `gorm:"column:codfor"`
	Nomfor string          `gorm:"column:nomfor"`
	Seqmov int             `gorm:"column:seqmov"`
	Codtns string          `gorm:"column:codtns"`
	Datmov *time.Time      `gorm:"column:datmov"`
	Codfpg *string         `gorm:"column:codfpg"`
	Codtpt string          `gorm:"column:codtpt"`
	Sittit string          `gorm:"column:sittit"`
	Obstcp *string         `gorm:"column:obstcp"`
	Vlrori decimal.Decimal `gorm:"column:vlrori"`
	Datemi *time.Time      `gorm:"column:datemi"`
	Ultpgt *time.Time      `gorm:"column:ultpgt"`
	Vctpro time.Time       `gorm:"column:vctpro"`
	Vlrrat decimal.Decimal `gorm:"column:vlrrat"`
	Ctafin int             `gorm:"column:ctafin"`
	Codccu *string         `gorm:"column:codccu"`
	Ctared int             `gorm:"column:ctared"`
	Vlrabe decimal.Decimal `gorm:"column:vlrabe"`
}

func (row *payableRow) toDomain() ledger.PayableRecord {
	return ledger.PayableRecord{
		CompanyCode:       row.Codemp,
		BranchCode:        row.Codfil,
		DocumentNumber:    trim(row.Numtit),
		DocumentType:      trim(row.Codtpt),
		SupplierCode:      row.Codfor,
		SupplierName:      trim(row.Nomfor),
		Sequence:          row.Seqmov,
		TransactionCode:   trim(row.Codtns),
		MovementDate:      validDate(row.Datmov),
		PaymentMethod:     deref(row.Codfpg),
		Status:            trim(row.Sittit),
		Notes:             deref(row.Obstcp),
		OriginalAmount:    row.Vlrori,
		IssueDate:         validDate(row.Datemi),
		LastPaymentDate:   validDate(row.Ultpgt),
		DueDate:           ledger.DateOnly(row.Vctpro),
		ApportionedAmount: row.Vlrrat,
		LedgerAccount:     row.Ctafin,
		CostCenter:        atoi(deref(row.Codccu)),
		ReducedAccount:    row.Ctared,
		OpenAmount:        row.Vlrabe,
	}
}

type chartRow struct {
	Codmpc int     `gorm:"column:codmpc"`
	Ctared int     `gorm:"column:ctared"`
	Mskgcc *string `gorm:"column:mskgcc"`
	Defgru *string `gorm:"column:defgru"`
	Clacta string  `gorm:"column:clacta"`
	Nivcta int     `gorm:"column:nivcta"`
	Descta string  `gorm:"column:descta"`
	Anasin string  `gorm:"column:anasin"`
	Natcta string  `gorm:"column:natcta"`
	Modctb *string `gorm:"column:modctb"`
	Ctactb *int    `gorm:"column:ctactb"`
	Codccu *string `gorm:"column:codccu"`
	Tipccu *string `gorm:"column:tipccu"`
}

func (row *chartRow) toPlanEntry() ledger.FinancialPlanEntry {
	e := ledger.FinancialPlanEntry{
		ChartCode:         row.Codmpc,
		ReducedAccount:    row.Ctared,
		Mask:              deref(row.Mskgcc),
		GroupDefinition:   deref(row.Defgru),
		Classification:    trim(row.Clacta),
		Level:             row.Nivcta,
		Description:       trim(row.Descta),
		AnalyticSynthetic: trim(row.Anasin),
		Nature:            ledger.AccountNature(trim(row.Natcta)),
		AccountingModel:   deref(row.Modctb),
		CostCenter:        deref(row.Codccu),
		CostCenterType:    deref(row.Tipccu),
	}
	if row.Ctactb != nil {
		e.AccountingAccount = *row.Ctactb
	}
	return e
}

func (row *chartRow) toCostCenterEntry() ledger.CostCenterEntry {
	return ledger.CostCenterEntry{
		ChartCode:         row.Codmpc,
		ReducedAccount:    row.Ctared,
		Classification:    trim(row.Clacta),
		Description:       trim(row.Descta),
		AnalyticSynthetic: trim(row.Anasin),
		Nature:            ledger.AccountNature(trim(row.Natcta)),
		Level:             row.Nivcta,
		CostCenter:        deref(row.Codccu),
		CostCenterType:    deref(row.Tipccu),
	}
}

// validDate drops the ERP's 1900-01-01 "no date" marker
func validDate(t *time.Time) *time.Time {
	if t == nil || t.Year() <= 1900 {
		return nil
	}
	d := ledger.DateOnly(*t)
	return &d
}

func direction(raw *string) ledger.Direction {
	if raw == nil {
		return ledger.DirectionCredit
	}
	return ledger.DirectionOrDefault(ledger.Direction(atoi(*raw)))
}

func trim(s string) string {
	return strings.TrimSpace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
