package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Title status codes as used by the ERP
const (
	StatusOpen      = "AB"
	StatusSettled   = "LQ"
	StatusCancelled = "CA"
)

// ReceivableRecord is one accounts-receivable ledger line
type ReceivableRecord struct {
	ID                     uuid.UUID
	CompanyCode            int
	BranchCode             int
	ClientCode             int
	ClientName             string
	ClientCity             string
	ClientDistrict         string
	ClientType             string
	DocumentNumber         string
	DocumentType           string
	Status                 string
	IssueDate              *time.Time
	DueDate                *time.Time
	OriginalDueDate        *time.Time
	ProjectedPaymentDate   time.Time
	OriginalAmount         decimal.Decimal
	OpenAmount             decimal.Decimal
	Direction              Direction
	TransactionCode        string
	TransactionDescription string
	PaymentMethod          string
	InvoiceNumber          string
	Notes                  string
	LedgerAccount          int
	CostCenter             int
	LastPaymentDate        *time.Time
}

// AdjustedDate is the business date the receivable is grouped under
func (r ReceivableRecord) AdjustedDate() time.Time {
	return AdjustReceivableDate(r.ProjectedPaymentDate)
}

// Value is the amount the receivable contributes to totals
func (r ReceivableRecord) Value() decimal.Decimal {
	return ReceivableValue(r.OpenAmount, DirectionOrDefault(r.Direction), r.OriginalAmount)
}

// NaturalKey identifies the title within a snapshot
func (r ReceivableRecord) NaturalKey() string {
	return fmt.Sprintf("%d/%d/%s/%s", r.CompanyCode, r.BranchCode, r.DocumentType, r.DocumentNumber)
}

// PayableRecord is one accounts-payable ledger line (one apportionment row of
// a title movement)
type PayableRecord struct {
	ID                uuid.UUID
	CompanyCode       int
	BranchCode        int
	DocumentNumber    string
	DocumentType      string
	SupplierCode      int
	SupplierName      string
	Sequence          int
	TransactionCode   string
	MovementDate      *time.Time
	PaymentMethod     string
	Status            string
	Notes             string
	OriginalAmount    decimal.Decimal
	IssueDate         *time.Time
	LastPaymentDate   *time.Time
	DueDate           time.Time
	ApportionedAmount decimal.Decimal
	LedgerAccount     int
	CostCenter        int
	ReducedAccount    int
	OpenAmount        decimal.Decimal
}

// AdjustedDate is the business date the payable is grouped under
func (p PayableRecord) AdjustedDate() time.Time {
	return AdjustPayableDate(p.DueDate)
}

// Value is the amount the payable contributes to totals
func (p PayableRecord) Value() decimal.Decimal {
	return PayableValue(p.OpenAmount, p.ApportionedAmount)
}

// IsCanonical reports whether this is the sequence used for valuation
func (p PayableRecord) IsCanonical() bool {
	return p.Sequence == 1
}

// DedupeReceivables keeps the first occurrence of each natural key and
// returns how many rows were dropped.
func DedupeReceivables(rows []ReceivableRecord) ([]ReceivableRecord, int) {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		key := r.NaturalKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out, len(rows) - len(out)
}
