package cardreceivable

import (
	"context"
	"strings"
	"time"

	"github.com/finsync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status tells whether an amount is still expected or already settled
type Status string

const (
	StatusProjected Status = "projected"
	StatusReceived  Status = "received"
)

// ParseStatus validates a status string, defaulting to projected when empty
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StatusProjected, nil
	case StatusProjected, StatusReceived:
		return st, nil
	}
	return "", shared.NewDomainError(shared.CodeInvalidInput, "status must be projected or received")
}

// CardReceivable is one day of a card-acquirer settlement calendar
type CardReceivable struct {
	ID              uuid.UUID
	RecognitionDate time.Time
	Amount          decimal.Decimal
	MerchantCode    string
	ReferenceMonth  string
	Status          Status
	UploadedBy      string
	UploadedAt      time.Time
	ImageKey        string
}

// Key is the natural key used for upserts
type Key struct {
	RecognitionDate time.Time
	MerchantCode    string
	ReferenceMonth  string
	Status          Status
}

// Key returns the natural key of the record
func (c CardReceivable) Key() Key {
	return Key{
		RecognitionDate: c.RecognitionDate,
		MerchantCode:    c.MerchantCode,
		ReferenceMonth:  c.ReferenceMonth,
		Status:          c.Status,
	}
}

// DailyTotal is the sum of card receivables on one date
type DailyTotal struct {
	Date  time.Time
	Total decimal.Decimal
}

// MonthStats summarizes the uploads of one reference month
type MonthStats struct {
	Records     int64
	Merchants   int64
	Total       decimal.Decimal
	Average     decimal.Decimal
	FirstUpload *time.Time
	LastUpload  *time.Time
}

// Filter selects card receivables by date range
type Filter struct {
	From      time.Time
	To        time.Time
	Merchants []string
	Status    Status
}

// Repository persists card receivables
type Repository interface {
	// ReplaceMonth deletes the merchant's rows for the month and inserts rows, atomically
	ReplaceMonth(ctx context.Context, month, merchant string, rows []CardReceivable) (deleted int64, err error)

	// Upsert updates the amount of the row with the same natural key or inserts it
	Upsert(ctx context.Context, row *CardReceivable) (created bool, err error)

	// DeleteMonth removes a month's rows, optionally for one merchant only
	DeleteMonth(ctx context.Context, month, merchant string) (int64, error)

	// DailyTotals sums amounts per recognition date
	DailyTotals(ctx context.Context, filter Filter) ([]DailyTotal, error)

	// FindByMonth lists the rows of one reference month ordered by date and merchant
	FindByMonth(ctx context.Context, month string) ([]CardReceivable, error)

	// MonthStats aggregates the rows of one reference month
	MonthStats(ctx context.Context, month string) (*MonthStats, error)
}
