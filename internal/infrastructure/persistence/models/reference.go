package models

import "github.com/finsync/backend/internal/domain/ledger"

// FinancialPlanModel mirrors one account of the financial plan chart
type FinancialPlanModel struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	ChartCode         int    `gorm:"not null"`
	ReducedAccount    int    `gorm:"not null;uniqueIndex"`
	Mask              string `gorm:"type:varchar(50)"`
	GroupDefinition   string `gorm:"type:varchar(50)"`
	Classification    string `gorm:"type:varchar(50)"`
	Level             int    `gorm:"not null;index:idx_financial_plan_level_nature,priority:1"`
	Description       string `gorm:"type:varchar(200)"`
	AnalyticSynthetic string `gorm:"type:varchar(1)"`
	Nature            string `gorm:"type:varchar(1);index:idx_financial_plan_level_nature,priority:2"`
	AccountingModel   string `gorm:"type:varchar(20)"`
	AccountingAccount int
	CostCenter        string `gorm:"type:varchar(20)"`
	CostCenterType    string `gorm:"type:varchar(10)"`
}

// TableName returns the table name for GORM
func (FinancialPlanModel) TableName() string {
	return "financial_plan_accounts"
}

// FinancialPlanModelFromDomain creates a persistence model from a plan entry
func FinancialPlanModelFromDomain(e ledger.FinancialPlanEntry) FinancialPlanModel {
	return FinancialPlanModel{
		ChartCode:         e.ChartCode,
		ReducedAccount:    e.ReducedAccount,
		Mask:              e.Mask,
		GroupDefinition:   e.GroupDefinition,
		Classification:    e.Classification,
		Level:             e.Level,
		Description:       e.Description,
		AnalyticSynthetic: e.AnalyticSynthetic,
		Nature:            string(e.Nature),
		AccountingModel:   e.AccountingModel,
		AccountingAccount: e.AccountingAccount,
		CostCenter:        e.CostCenter,
		CostCenterType:    e.CostCenterType,
	}
}

// ToDomain converts the persistence model to a plan entry
func (m *FinancialPlanModel) ToDomain() ledger.FinancialPlanEntry {
	return ledger.FinancialPlanEntry{
		ChartCode:         m.ChartCode,
		ReducedAccount:    m.ReducedAccount,
		Mask:              m.Mask,
		GroupDefinition:   m.GroupDefinition,
		Classification:    m.Classification,
		Level:             m.Level,
		Description:       m.Description,
		AnalyticSynthetic: m.AnalyticSynthetic,
		Nature:            ledger.AccountNature(m.Nature),
		AccountingModel:   m.AccountingModel,
		AccountingAccount: m.AccountingAccount,
		CostCenter:        m.CostCenter,
		CostCenterType:    m.CostCenterType,
	}
}

// CostCenterModel mirrors one node of the cost center chart
type CostCenterModel struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	ChartCode         int    `gorm:"not null"`
	ReducedAccount    int    `gorm:"not null;uniqueIndex"`
	Classification    string `gorm:"type:varchar(50)"`
	Description       string `gorm:"type:varchar(200)"`
	AnalyticSynthetic string `gorm:"type:varchar(1)"`
	Nature            string `gorm:"type:varchar(1)"`
	Level             int
	CostCenter        string `gorm:"type:varchar(20);index"`
	CostCenterType    string `gorm:"type:varchar(10)"`
}

// TableName returns the table name for GORM
func (CostCenterModel) TableName() string {
	return "cost_centers"
}

// CostCenterModelFromDomain creates a persistence model from a cost center entry
func CostCenterModelFromDomain(e ledger.CostCenterEntry) CostCenterModel {
	return CostCenterModel{
		ChartCode:         e.ChartCode,
		ReducedAccount:    e.ReducedAccount,
		Classification:    e.Classification,
		Description:       e.Description,
		AnalyticSynthetic: e.AnalyticSynthetic,
		Nature:            string(e.Nature),
		Level:             e.Level,
		CostCenter:        e.CostCenter,
		CostCenterType:    e.CostCenterType,
	}
}

// ToDomain converts the persistence model to a cost center entry
func (m *CostCenterModel) ToDomain() ledger.CostCenterEntry {
	return ledger.CostCenterEntry{
		ChartCode:         m.ChartCode,
		ReducedAccount:    m.ReducedAccount,
		Classification:    m.Classification,
		Description:       m.Description,
		AnalyticSynthetic: m.AnalyticSynthetic,
		Nature:            ledger.AccountNature(m.Nature),
		Level:             m.Level,
		CostCenter:        m.CostCenter,
		CostCenterType:    m.CostCenterType,
	}
}
