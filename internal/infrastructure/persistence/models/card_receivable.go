package models

import (
	"time"

	"github.com/finsync/backend/internal/domain/cardreceivable"
	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardReceivableModel is one day of an uploaded card-settlement calendar
type CardReceivableModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RecognitionDate time.Time       `gorm:"type:date;not null;uniqueIndex:uq_card_receivables_key,priority:1"`
	Amount          decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	MerchantCode    string          `gorm:"type:varchar(50);not null;uniqueIndex:uq_card_receivables_key,priority:2"`
	ReferenceMonth  string          `gorm:"type:varchar(7);not null;uniqueIndex:uq_card_receivables_key,priority:3;index"`
	Status          string          `gorm:"type:varchar(20);not null;default:'projected';uniqueIndex:uq_card_receivables_key,priority:4"`
	UploadedBy      string          `gorm:"type:varchar(100)"`
	UploadedAt      time.Time       `gorm:"not null"`
	ImageKey        string          `gorm:"type:varchar(300)"`
}

// TableName returns the table name for GORM
func (CardReceivableModel) TableName() string {
	return "card_receivables"
}

// CardReceivableModelFromDomain creates a persistence model from a card receivable
func CardReceivableModelFromDomain(c *cardreceivable.CardReceivable) CardReceivableModel {
	id := c.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return CardReceivableModel{
		ID:              id,
		RecognitionDate: ledger.DateOnly(c.RecognitionDate),
		Amount:          c.Amount,
		MerchantCode:    c.MerchantCode,
		ReferenceMonth:  c.ReferenceMonth,
		Status:          string(c.Status),
		UploadedBy:      c.UploadedBy,
		UploadedAt:      c.UploadedAt,
		ImageKey:        c.ImageKey,
	}
}

// ToDomain converts the persistence model to a card receivable
func (m *CardReceivableModel) ToDomain() cardreceivable.CardReceivable {
	return cardreceivable.CardReceivable{
		ID:              m.ID,
		RecognitionDate: m.RecognitionDate,
		Amount:          m.Amount,
		MerchantCode:    m.MerchantCode,
		ReferenceMonth:  m.ReferenceMonth,
		Status:          cardreceivable.Status(m.Status),
		UploadedBy:      m.UploadedBy,
		UploadedAt:      m.UploadedAt,
		ImageKey:        m.ImageKey,
	}
}
