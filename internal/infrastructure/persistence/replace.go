package persistence

import (
	"context"
	"fmt"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// DefaultBatchSize is the number of rows per multi-row insert
const DefaultBatchSize = 5000

// maxBindParams stays below the postgres limit of 65535 placeholders per statement
const maxBindParams = 32000

// effectiveBatchSize shrinks batchSize so one insert never binds more than
// maxBindParams values for model M.
func effectiveBatchSize[M any](tx *gorm.DB, batchSize int) int {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	stmt := &gorm.Statement{DB: tx}
	if err := stmt.Parse(new(M)); err != nil || len(stmt.Schema.DBNames) == 0 {
		return batchSize
	}
	if limit := maxBindParams / len(stmt.Schema.DBNames); limit < batchSize {
		return max(limit, 1)
	}
	return batchSize
}

// replaceRows deletes the rows selected by scope and bulk-inserts rows in one
// transaction. A failure in any batch rolls back the delete as well.
func replaceRows[M any](ctx context.Context, db *gorm.DB, batchSize int, scope func(*gorm.DB) *gorm.DB, rows []M) (ledger.ReplaceResult, error) {
	var result ledger.ReplaceResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := scope(tx.Model(new(M))).Delete(new(M))
		if del.Error != nil {
			return fmt.Errorf("delete window: %w", del.Error)
		}
		result.RowsDeleted = del.RowsAffected

		if len(rows) == 0 {
			return nil
		}
		ins := tx.CreateInBatches(rows, effectiveBatchSize[M](tx, batchSize))
		if ins.Error != nil {
			return fmt.Errorf("insert rows: %w", ins.Error)
		}
		result.RowsInserted = int64(len(rows))
		return nil
	})
	if err != nil {
		return ledger.ReplaceResult{}, shared.StoreWriteFailure(err)
	}
	return result, nil
}

// reloadTable empties the table of model M and bulk-inserts rows in one
// transaction. Postgres gets a real TRUNCATE, other dialects a plain DELETE.
func reloadTable[M any](ctx context.Context, db *gorm.DB, batchSize int, rows []M) (ledger.ReplaceResult, error) {
	var result ledger.ReplaceResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(new(M)).Count(&result.RowsDeleted).Error; err != nil {
			return fmt.Errorf("count rows: %w", err)
		}

		stmt := &gorm.Statement{DB: tx}
		if err := stmt.Parse(new(M)); err != nil {
			return fmt.Errorf("parse model: %w", err)
		}
		table := stmt.Quote(stmt.Schema.Table)
		query := "DELETE FROM " + table
		if tx.Dialector.Name() == "postgres" {
			query = "TRUNCATE TABLE " + table
		}
		if err := tx.Exec(query).Error; err != nil {
			return fmt.Errorf("truncate: %w", err)
		}

		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, effectiveBatchSize[M](tx, batchSize)).Error; err != nil {
			return fmt.Errorf("insert rows: %w", err)
		}
		result.RowsInserted = int64(len(rows))
		return nil
	})
	if err != nil {
		return ledger.ReplaceResult{}, shared.StoreWriteFailure(err)
	}
	return result, nil
}

// branchScope restricts a query to a branch set; an empty set means all branches
func branchScope(branches []int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(branches) == 0 {
			return db
		}
		return db.Where("branch_code IN ?", branches)
	}
}
