package cardreceivable

import (
	"time"

	"github.com/finsync/backend/internal/domain/cardreceivable"
)

// Image is one uploaded settlement calendar
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadRequest is a batch of calendar images
type UploadRequest struct {
	Images     []Image
	Status     cardreceivable.Status
	UploadedBy string
}

// UploadError reports one failed image or calendar entry
type UploadError struct {
	Image        int    `json:"image"`
	MerchantCode string `json:"merchant_code,omitempty"`
	Date         string `json:"date,omitempty"`
	Message      string `json:"message"`
}

// ImageResult is the outcome of one image of a batch
type ImageResult struct {
	Image          int    `json:"image"`
	Name           string `json:"name,omitempty"`
	Success        bool   `json:"success"`
	ReferenceMonth string `json:"reference_month,omitempty"`
	MerchantCode   string `json:"merchant_code,omitempty"`
	RowsInserted   int    `json:"rows_inserted"`
	RowsReplaced   int64  `json:"rows_replaced"`
	ImageKey       string `json:"image_key,omitempty"`
}

// UploadResult summarizes a batch. Success holds when nothing failed or at
// least one row was inserted.
type UploadResult struct {
	Success       bool          `json:"success"`
	TotalImages   int           `json:"total_images"`
	TotalInserted int           `json:"total_inserted"`
	Errors        []UploadError `json:"errors"`
	Items         []ImageResult `json:"items"`
}

// ManualEntryRequest records one amount by hand
type ManualEntryRequest struct {
	Date           string  `json:"date" binding:"required,datetime=2006-01-02"`
	Amount         float64 `json:"amount" binding:"required"`
	MerchantCode   string  `json:"merchant_code" binding:"required,max=50"`
	ReferenceMonth string  `json:"reference_month" binding:"required,datetime=2006-01"`
	Status         string  `json:"status" binding:"omitempty,oneof=projected received"`
	UploadedBy     string  `json:"-"`
}

// ManualEntryResponse echoes the stored entry
type ManualEntryResponse struct {
	Created        bool    `json:"created"`
	Date           string  `json:"date"`
	Amount         float64 `json:"amount"`
	MerchantCode   string  `json:"merchant_code"`
	ReferenceMonth string  `json:"reference_month"`
	Status         string  `json:"status"`
}

// DailyTotalsQuery selects totals per recognition date
type DailyTotalsQuery struct {
	From      string   `form:"from" binding:"required,datetime=2006-01-02"`
	To        string   `form:"to" binding:"required,datetime=2006-01-02"`
	Merchants []string `form:"-"`
	Status    string   `form:"status" binding:"omitempty,oneof=projected received"`
}

// DailyTotalResponse is the total of one date
type DailyTotalResponse struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
}

// EntryResponse is one stored card receivable
type EntryResponse struct {
	ID             string    `json:"id"`
	Date           string    `json:"date"`
	Amount         float64   `json:"amount"`
	MerchantCode   string    `json:"merchant_code"`
	ReferenceMonth string    `json:"reference_month"`
	Status         string    `json:"status"`
	UploadedBy     string    `json:"uploaded_by"`
	UploadedAt     time.Time `json:"uploaded_at"`
	ImageKey       string    `json:"image_key,omitempty"`
}

// StatsResponse summarizes one reference month
type StatsResponse struct {
	ReferenceMonth string     `json:"reference_month"`
	Records        int64      `json:"records"`
	Merchants      int64      `json:"merchants"`
	Total          float64    `json:"total"`
	Average        float64    `json:"average"`
	FirstUpload    *time.Time `json:"first_upload,omitempty"`
	LastUpload     *time.Time `json:"last_upload,omitempty"`
}

// ReconciliationDay compares projected and received amounts of one date
type ReconciliationDay struct {
	Date       string  `json:"date"`
	Projected  float64 `json:"projected"`
	Received   float64 `json:"received"`
	Difference float64 `json:"difference"`
}

// ReconciliationResponse compares a whole month
type ReconciliationResponse struct {
	ReferenceMonth string              `json:"reference_month"`
	Projected      float64             `json:"projected"`
	Received       float64             `json:"received"`
	Difference     float64             `json:"difference"`
	Days           []ReconciliationDay `json:"days"`
}

func toEntryResponse(c cardreceivable.CardReceivable) EntryResponse {
	return EntryResponse{
		ID:             c.ID.String(),
		Date:           c.RecognitionDate.Format(time.DateOnly),
		Amount:         c.Amount.Round(2).InexactFloat64(),
		MerchantCode:   c.MerchantCode,
		ReferenceMonth: c.ReferenceMonth,
		Status:         string(c.Status),
		UploadedBy:     c.UploadedBy,
		UploadedAt:     c.UploadedAt,
		ImageKey:       c.ImageKey,
	}
}
