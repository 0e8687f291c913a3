package ledger

import "fmt"

// AccountNature classifies a chart-of-accounts entry
type AccountNature string

const (
	NatureRevenue AccountNature = "C"
	NatureExpense AccountNature = "D"
)

// Label returns the display name used by category rankings
func (n AccountNature) Label() string {
	switch n {
	case NatureRevenue:
		return "RECEITA"
	case NatureExpense:
		return "DESPESA"
	default:
		return ""
	}
}

// CategoryLevel is the chart level category rankings are computed at
const CategoryLevel = 6

// Chart codes inside the ERP chart-of-accounts table
const (
	FinancialPlanChart = 601
	CostCenterChart    = 602
)

// FinancialPlanEntry is one row of the financial plan dimension
type FinancialPlanEntry struct {
	ChartCode         int
	ReducedAccount    int
	Mask              string
	GroupDefinition   string
	Classification    string
	Level             int
	Description       string
	AnalyticSynthetic string
	Nature            AccountNature
	AccountingModel   string
	AccountingAccount int
	CostCenter        string
	CostCenterType    string
}

// Label renders "NNNN - description"
func (e FinancialPlanEntry) Label() string {
	return fmt.Sprintf("%04d - %s", e.ReducedAccount, e.Description)
}

// CostCenterEntry is one row of the cost center dimension
type CostCenterEntry struct {
	ChartCode         int
	ReducedAccount    int
	Classification    string
	Description       string
	AnalyticSynthetic string
	Nature            AccountNature
	Level             int
	CostCenter        string
	CostCenterType    string
}
