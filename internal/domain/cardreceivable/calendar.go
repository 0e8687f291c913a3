package cardreceivable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/finsync/backend/internal/domain/shared"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Calendar is the extraction result for one settlement calendar image.
// It comes from an untrusted collaborator and must be validated before use.
type Calendar struct {
	ReferenceMonth string          `json:"reference_month" validate:"required,datetime=2006-01"`
	MerchantCode   string          `json:"merchant_code" validate:"required,max=50"`
	Entries        []CalendarEntry `json:"entries" validate:"required"`
}

// CalendarEntry is one day of an extracted calendar. Amount is kept raw so
// that a quoted or non-numeric amount is rejected instead of coerced.
type CalendarEntry struct {
	Date   string          `json:"date" validate:"required,datetime=2006-01-02"`
	Amount json.RawMessage `json:"amount" validate:"required"`
}

// EntryError describes one rejected calendar entry
type EntryError struct {
	Index int
	Date  string
	Err   error
}

func (e EntryError) Error() string {
	return fmt.Sprintf("entry %d (%s): %v", e.Index, e.Date, e.Err)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseCalendar decodes and validates the header of an extraction result.
// Surrounding markdown code fences are tolerated.
func ParseCalendar(raw []byte) (*Calendar, error) {
	raw = stripFences(raw)
	dec := json.NewDecoder(bytes.NewReader(raw))
	var cal Calendar
	if err := dec.Decode(&cal); err != nil {
		return nil, shared.ValidationFailed("calendar payload is not valid JSON: " + err.Error())
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return &cal, nil
}

// Validate checks the required header fields
func (c *Calendar) Validate() error {
	if err := validate.Struct(c); err != nil {
		return shared.ValidationFailed("calendar payload: " + err.Error())
	}
	return nil
}

// Records converts the entries into card receivables. Invalid entries are
// skipped and reported individually. A date repeated within the calendar
// keeps its first entry; later ones are reported as errors.
func (c *Calendar) Records(status Status, uploadedBy string, now time.Time) ([]CardReceivable, []EntryError) {
	rows := make([]CardReceivable, 0, len(c.Entries))
	seen := make(map[time.Time]int, len(c.Entries))
	var errs []EntryError
	for i, e := range c.Entries {
		row, err := e.toRecord()
		if err != nil {
			errs = append(errs, EntryError{Index: i, Date: e.Date, Err: err})
			continue
		}
		if first, dup := seen[row.RecognitionDate]; dup {
			errs = append(errs, EntryError{Index: i, Date: e.Date,
				Err: shared.ValidationFailed(fmt.Sprintf("date repeats entry %d", first))})
			continue
		}
		seen[row.RecognitionDate] = i
		row.ID = uuid.New()
		row.MerchantCode = c.MerchantCode
		row.ReferenceMonth = c.ReferenceMonth
		row.Status = status
		row.UploadedBy = uploadedBy
		row.UploadedAt = now
		rows = append(rows, row)
	}
	return rows, errs
}

func (e CalendarEntry) toRecord() (CardReceivable, error) {
	if err := validate.Struct(e); err != nil {
		return CardReceivable{}, shared.ValidationFailed(err.Error())
	}
	amount, err := parseAmount(e.Amount)
	if err != nil {
		return CardReceivable{}, err
	}
	d, err := time.Parse(time.DateOnly, e.Date)
	if err != nil {
		return CardReceivable{}, shared.ValidationFailed("invalid date " + e.Date)
	}
	return CardReceivable{RecognitionDate: d, Amount: amount}, nil
}

func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" || strings.HasPrefix(s, `"`) {
		return decimal.Zero, shared.ValidationFailed("amount must be a number")
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, shared.ValidationFailed("amount must be a number")
	}
	return amount, nil
}

func stripFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return []byte(strings.TrimSpace(s))
}
