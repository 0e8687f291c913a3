package persistence

import (
	"context"
	"fmt"

	"github.com/finsync/backend/internal/domain/cardreceivable"
	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/domain/shared"
	"github.com/finsync/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormCardReceivableRepository implements cardreceivable.Repository using GORM
type GormCardReceivableRepository struct {
	db *gorm.DB
}

// NewGormCardReceivableRepository creates a new GormCardReceivableRepository
func NewGormCardReceivableRepository(db *gorm.DB) *GormCardReceivableRepository {
	return &GormCardReceivableRepository{db: db}
}

func monthScope(month, merchant string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("reference_month = ?", month)
		if merchant != "" {
			db = db.Where("merchant_code = ?", merchant)
		}
		return db
	}
}

// ReplaceMonth deletes the merchant's rows for the month and inserts rows
func (r *GormCardReceivableRepository) ReplaceMonth(ctx context.Context, month, merchant string, rows []cardreceivable.CardReceivable) (int64, error) {
	batch := make([]models.CardReceivableModel, len(rows))
	for i := range rows {
		batch[i] = models.CardReceivableModelFromDomain(&rows[i])
	}
	res, err := replaceRows(ctx, r.db, DefaultBatchSize, monthScope(month, merchant), batch)
	if err != nil {
		return 0, err
	}
	return res.RowsDeleted, nil
}

// Upsert updates the amount of the row sharing the natural key, inserting it
// when none exists.
func (r *GormCardReceivableRepository) Upsert(ctx context.Context, row *cardreceivable.CardReceivable) (bool, error) {
	m := models.CardReceivableModelFromDomain(row)
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CardReceivableModel{}).
			Where("recognition_date = ? AND merchant_code = ? AND reference_month = ? AND status = ?",
				m.RecognitionDate, m.MerchantCode, m.ReferenceMonth, m.Status).
			Updates(map[string]any{
				"amount":      m.Amount,
				"uploaded_by": m.UploadedBy,
				"uploaded_at": m.UploadedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		created = true
		return tx.Create(&m).Error
	})
	if err != nil {
		return false, shared.StoreWriteFailure(err)
	}
	if created {
		row.ID = m.ID
	}
	return created, nil
}

// DeleteMonth removes a month's rows, optionally for one merchant only
func (r *GormCardReceivableRepository) DeleteMonth(ctx context.Context, month, merchant string) (int64, error) {
	res := r.db.WithContext(ctx).Scopes(monthScope(month, merchant)).Delete(&models.CardReceivableModel{})
	if res.Error != nil {
		return 0, shared.StoreWriteFailure(res.Error)
	}
	return res.RowsAffected, nil
}

// DailyTotals sums amounts per recognition date within the filter range
func (r *GormCardReceivableRepository) DailyTotals(ctx context.Context, filter cardreceivable.Filter) ([]cardreceivable.DailyTotal, error) {
	status := filter.Status
	if status == "" {
		status = cardreceivable.StatusProjected
	}
	query := r.db.WithContext(ctx).
		Where("recognition_date BETWEEN ? AND ?", ledger.DateOnly(filter.From), ledger.DateOnly(filter.To)).
		Where("status = ?", string(status))
	if len(filter.Merchants) > 0 {
		query = query.Where("merchant_code IN ?", filter.Merchants)
	}

	var rows []models.CardReceivableModel
	if err := query.Order("recognition_date").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find card receivables: %w", err)
	}

	var out []cardreceivable.DailyTotal
	for _, m := range rows {
		day := ledger.DateOnly(m.RecognitionDate)
		if n := len(out); n > 0 && out[n-1].Date.Equal(day) {
			out[n-1].Total = out[n-1].Total.Add(m.Amount)
			continue
		}
		out = append(out, cardreceivable.DailyTotal{Date: day, Total: m.Amount})
	}
	return out, nil
}

// FindByMonth lists the rows of one reference month ordered by date and merchant
func (r *GormCardReceivableRepository) FindByMonth(ctx context.Context, month string) ([]cardreceivable.CardReceivable, error) {
	var rows []models.CardReceivableModel
	err := r.db.WithContext(ctx).
		Scopes(monthScope(month, "")).
		Order("recognition_date, merchant_code, status").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find card receivables: %w", err)
	}
	out := make([]cardreceivable.CardReceivable, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// MonthStats aggregates the rows of one reference month
func (r *GormCardReceivableRepository) MonthStats(ctx context.Context, month string) (*cardreceivable.MonthStats, error) {
	rows, err := r.FindByMonth(ctx, month)
	if err != nil {
		return nil, err
	}
	stats := &cardreceivable.MonthStats{Total: decimal.Zero, Average: decimal.Zero}
	merchants := make(map[string]struct{})
	for i := range rows {
		row := &rows[i]
		stats.Records++
		stats.Total = stats.Total.Add(row.Amount)
		merchants[row.MerchantCode] = struct{}{}
		uploaded := row.UploadedAt
		if stats.FirstUpload == nil || uploaded.Before(*stats.FirstUpload) {
			stats.FirstUpload = &uploaded
		}
		if stats.LastUpload == nil || uploaded.After(*stats.LastUpload) {
			stats.LastUpload = &uploaded
		}
	}
	stats.Merchants = int64(len(merchants))
	if stats.Records > 0 {
		stats.Average = stats.Total.Div(decimal.NewFromInt(stats.Records))
	}
	return stats, nil
}

var _ cardreceivable.Repository = (*GormCardReceivableRepository)(nil)
