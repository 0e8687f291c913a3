package persistence

import (
	"fmt"
	"testing"
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory sqlite database with the schema migrated
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func receivable(doc string, branch int, projected time.Time, open string) ledger.ReceivableRecord {
	return ledger.ReceivableRecord{
		CompanyCode:          10,
		BranchCode:           branch,
		ClientCode:           1,
		ClientName:           "Cliente " + doc,
		DocumentNumber:       doc,
		DocumentType:         "DP",
		Status:               ledger.StatusOpen,
		ProjectedPaymentDate: projected,
		OriginalAmount:       dec(open),
		OpenAmount:           dec(open),
		Direction:            ledger.DirectionCredit,
		LedgerAccount:        3101,
	}
}

func payable(doc string, branch int, due time.Time, open, apportioned string) ledger.PayableRecord {
	return ledger.PayableRecord{
		CompanyCode:       10,
		BranchCode:        branch,
		DocumentNumber:    doc,
		DocumentType:      "NF",
		SupplierCode:      7,
		SupplierName:      "Fornecedor",
		Sequence:          1,
		Status:            ledger.StatusOpen,
		OriginalAmount:    dec(apportioned),
		DueDate:           due,
		ApportionedAmount: dec(apportioned),
		OpenAmount:        dec(open),
		LedgerAccount:     4101,
		CostCenter:        20,
	}
}
