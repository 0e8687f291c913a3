package models

import (
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// ReceivableModel is the mirrored accounts-receivable line
type ReceivableModel struct {
	BaseModel
	CompanyCode            int             `gorm:"not null"`
	BranchCode             int             `gorm:"not null;index:idx_receivables_window,priority:2"`
	ClientCode             int             `gorm:"not null;index"`
	ClientName             string          `gorm:"type:varchar(200)"`
	ClientCity             string          `gorm:"type:varchar(100)"`
	ClientDistrict         string          `gorm:"type:varchar(100)"`
	ClientType             string          `gorm:"type:varchar(10)"`
	DocumentNumber         string          `gorm:"type:varchar(50);not null"`
	DocumentType           string          `gorm:"type:varchar(10);not null"`
	Status                 string          `gorm:"type:varchar(5);not null"`
	IssueDate              *time.Time      `gorm:"type:date"`
	DueDate                *time.Time      `gorm:"type:date"`
	OriginalDueDate        *time.Time      `gorm:"type:date"`
	ProjectedPaymentDate   time.Time       `gorm:"type:date;not null;index:idx_receivables_window,priority:1"`
	OriginalAmount         decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	OpenAmount             decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Direction              int             `gorm:"not null;default:1"`
	TransactionCode        string          `gorm:"type:varchar(10)"`
	TransactionDescription string          `gorm:"type:varchar(100)"`
	PaymentMethod          string          `gorm:"type:varchar(10)"`
	InvoiceNumber          string          `gorm:"type:varchar(50)"`
	Notes                  string          `gorm:"type:text"`
	LedgerAccount          int             `gorm:"index"`
	CostCenter             int
	LastPaymentDate        *time.Time `gorm:"type:date;index"`
}

// TableName returns the table name for GORM
func (ReceivableModel) TableName() string {
	return "receivables"
}

// ReceivableModelFromDomain creates a persistence model from a receivable record
func ReceivableModelFromDomain(r ledger.ReceivableRecord, syncedAt time.Time) ReceivableModel {
	return ReceivableModel{
		BaseModel:              newBase(r.ID, syncedAt),
		CompanyCode:            r.CompanyCode,
		BranchCode:             r.BranchCode,
		ClientCode:             r.ClientCode,
		ClientName:             r.ClientName,
		ClientCity:             r.ClientCity,
		ClientDistrict:         r.ClientDistrict,
		ClientType:             r.ClientType,
		DocumentNumber:         r.DocumentNumber,
		DocumentType:           r.DocumentType,
		Status:                 r.Status,
		IssueDate:              r.IssueDate,
		DueDate:                r.DueDate,
		OriginalDueDate:        r.OriginalDueDate,
		ProjectedPaymentDate:   ledger.DateOnly(r.ProjectedPaymentDate),
		OriginalAmount:         r.OriginalAmount,
		OpenAmount:             r.OpenAmount,
		Direction:              int(ledger.DirectionOrDefault(r.Direction)),
		TransactionCode:        r.TransactionCode,
		TransactionDescription: r.TransactionDescription,
		PaymentMethod:          r.PaymentMethod,
		InvoiceNumber:          r.InvoiceNumber,
		Notes:                  r.Notes,
		LedgerAccount:          r.LedgerAccount,
		CostCenter:             r.CostCenter,
		LastPaymentDate:        r.LastPaymentDate,
	}
}

// ToDomain converts the persistence model to a receivable record
func (m *ReceivableModel) ToDomain() ledger.ReceivableRecord {
	return ledger.ReceivableRecord{
		ID:                     m.ID,
		CompanyCode:            m.CompanyCode,
		BranchCode:             m.BranchCode,
		ClientCode:             m.ClientCode,
		ClientName:             m.ClientName,
		ClientCity:             m.ClientCity,
		ClientDistrict:         m.ClientDistrict,
		ClientType:             m.ClientType,
		DocumentNumber:         m.DocumentNumber,
		DocumentType:           m.DocumentType,
		Status:                 m.Status,
		IssueDate:              m.IssueDate,
		DueDate:                m.DueDate,
		OriginalDueDate:        m.OriginalDueDate,
		ProjectedPaymentDate:   ledger.DateOnly(m.ProjectedPaymentDate),
		OriginalAmount:         m.OriginalAmount,
		OpenAmount:             m.OpenAmount,
		Direction:              ledger.Direction(m.Direction),
		TransactionCode:        m.TransactionCode,
		TransactionDescription: m.TransactionDescription,
		PaymentMethod:          m.PaymentMethod,
		InvoiceNumber:          m.InvoiceNumber,
		Notes:                  m.Notes,
		LedgerAccount:          m.LedgerAccount,
		CostCenter:             m.CostCenter,
		LastPaymentDate:        m.LastPaymentDate,
	}
}

// PayableModel is the mirrored accounts-payable apportionment line
type PayableModel struct {
	BaseModel
	CompanyCode       int             `gorm:"not null"`
	BranchCode        int             `gorm:"not null;index:idx_payables_window,priority:2"`
	DocumentNumber    string          `gorm:"type:varchar(50);not null"`
	DocumentType      string          `gorm:"type:varchar(10)"`
	SupplierCode      int             `gorm:"not null;index"`
	SupplierName      string          `gorm:"type:varchar(200)"`
	Sequence          int             `gorm:"not null;default:1"`
	TransactionCode   string          `gorm:"type:varchar(10)"`
	MovementDate      *time.Time      `gorm:"type:date"`
	PaymentMethod     string          `gorm:"type:varchar(10)"`
	Status            string          `gorm:"type:varchar(5);not null"`
	Notes             string          `gorm:"type:text"`
	OriginalAmount    decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	IssueDate         *time.Time      `gorm:"type:date"`
	LastPaymentDate   *time.Time      `gorm:"type:date"`
	DueDate           time.Time       `gorm:"type:date;not null;index:idx_payables_window,priority:1"`
	ApportionedAmount decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	LedgerAccount     int             `gorm:"index"`
	CostCenter        int             `gorm:"index"`
	ReducedAccount    int
	OpenAmount        decimal.Decimal `gorm:"type:numeric(18,2);not null"`
}

// TableName returns the table name for GORM
func (PayableModel) TableName() string {
	return "payables"
}

// PayableModelFromDomain creates a persistence model from a payable record
func PayableModelFromDomain(p ledger.PayableRecord, syncedAt time.Time) PayableModel {
	return PayableModel{
		BaseModel:         newBase(p.ID, syncedAt),
		CompanyCode:       p.CompanyCode,
		BranchCode:        p.BranchCode,
		DocumentNumber:    p.DocumentNumber,
		DocumentType:      p.DocumentType,
		SupplierCode:      p.SupplierCode,
		SupplierName:      p.SupplierName,
		Sequence:          p.Sequence,
		TransactionCode:   p.TransactionCode,
		MovementDate:      p.MovementDate,
		PaymentMethod:     p.PaymentMethod,
		Status:            p.Status,
		Notes:             p.Notes,
		OriginalAmount:    p.OriginalAmount,
		IssueDate:         p.IssueDate,
		LastPaymentDate:   p.LastPaymentDate,
		DueDate:           ledger.DateOnly(p.DueDate),
		ApportionedAmount: p.ApportionedAmount,
		LedgerAccount:     p.LedgerAccount,
		CostCenter:        p.CostCenter,
		ReducedAccount:    p.ReducedAccount,
		OpenAmount:        p.OpenAmount,
	}
}

// ToDomain converts the persistence model to a payable record
func (m *PayableModel) ToDomain() ledger.PayableRecord {
	return ledger.PayableRecord{
		ID:                m.ID,
		CompanyCode:       m.CompanyCode,
		BranchCode:        m.BranchCode,
		DocumentNumber:    m.DocumentNumber,
		DocumentType:      m.DocumentType,
		SupplierCode:      m.SupplierCode,
		SupplierName:      m.SupplierName,
		Sequence:          m.Sequence,
		TransactionCode:   m.TransactionCode,
		MovementDate:      m.MovementDate,
		PaymentMethod:     m.PaymentMethod,
		Status:            m.Status,
		Notes:             m.Notes,
		OriginalAmount:    m.OriginalAmount,
		IssueDate:         m.IssueDate,
		LastPaymentDate:   m.LastPaymentDate,
		DueDate:           ledger.DateOnly(m.DueDate),
		ApportionedAmount: m.ApportionedAmount,
		LedgerAccount:     m.LedgerAccount,
		CostCenter:        m.CostCenter,
		ReducedAccount:    m.ReducedAccount,
		OpenAmount:        m.OpenAmount,
	}
}
