// Package export renders dashboard reports as xlsx workbooks.
package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the rendered workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ColumnKind selects the cell format of a column
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindMoney
	KindInt
	KindDate
	KindPercent
)

// Column describes one sheet column
type Column struct {
	Header string
	Kind   ColumnKind
	Width  float64
}

// Sheet is one tab of the workbook. Row values are positional and must match
// Columns; money accepts decimal.Decimal, dates accept time.Time.
type Sheet struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// Workbook is the whole export
type Workbook struct {
	Title  string
	Sheets []Sheet
}

var (
	dateFormat    = "dd/mm/yyyy"
	percentFormat = `0.0"%"`
)

// Write renders wb as xlsx into w
func Write(w io.Writer, wb Workbook) error {
	if len(wb.Sheets) == 0 {
		return errors.New("workbook has no sheets")
	}

	f := excelize.NewFile()
	defer f.Close()

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	for i, sheet := range wb.Sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				return fmt.Errorf("rename sheet %q: %w", sheet.Name, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("create sheet %q: %w", sheet.Name, err)
		}
		if err := writeSheet(f, sheet, styles); err != nil {
			return fmt.Errorf("write sheet %q: %w", sheet.Name, err)
		}
	}

	if wb.Title != "" {
		if err := f.SetDocProps(&excelize.DocProperties{
			Title:   wb.Title,
			Creator: "finsync",
			Created: time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type styleSet struct {
	header  int
	money   int
	date    int
	percent int
}

func newStyles(f *excelize.File) (styleSet, error) {
	var s styleSet
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#1F4E78"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return s, err
	}
	if s.money, err = f.NewStyle(&excelize.Style{NumFmt: 4}); err != nil {
		return s, err
	}
	if s.date, err = f.NewStyle(&excelize.Style{CustomNumFmt: &dateFormat}); err != nil {
		return s, err
	}
	if s.percent, err = f.NewStyle(&excelize.Style{CustomNumFmt: &percentFormat}); err != nil {
		return s, err
	}
	return s, nil
}

func writeSheet(f *excelize.File, sheet Sheet, styles styleSet) error {
	if len(sheet.Columns) == 0 {
		return errors.New("sheet has no columns")
	}

	for c, col := range sheet.Columns {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet.Name, cell, col.Header); err != nil {
			return err
		}
		name, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		width := col.Width
		if width == 0 {
			width = defaultWidth(col.Kind)
		}
		if err := f.SetColWidth(sheet.Name, name, name, width); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(sheet.Columns), 1)
	if err := f.SetCellStyle(sheet.Name, "A1", last, styles.header); err != nil {
		return err
	}

	for r, row := range sheet.Rows {
		if len(row) != len(sheet.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", r+1, len(row), len(sheet.Columns))
		}
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet.Name, cell, cellValue(v)); err != nil {
				return err
			}
		}
	}

	if len(sheet.Rows) > 0 {
		for c, col := range sheet.Columns {
			style, ok := styles.forKind(col.Kind)
			if !ok {
				continue
			}
			top, _ := excelize.CoordinatesToCellName(c+1, 2)
			bottom, _ := excelize.CoordinatesToCellName(c+1, len(sheet.Rows)+1)
			if err := f.SetCellStyle(sheet.Name, top, bottom, style); err != nil {
				return err
			}
		}
	}

	return f.SetPanes(sheet.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (s styleSet) forKind(kind ColumnKind) (int, bool) {
	switch kind {
	case KindMoney:
		return s.money, true
	case KindDate:
		return s.date, true
	case KindPercent:
		return s.percent, true
	}
	return 0, false
}

func cellValue(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.Round(2).InexactFloat64()
	case *decimal.Decimal:
		if x == nil {
			return nil
		}
		return x.Round(2).InexactFloat64()
	case *float64:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}

func defaultWidth(kind ColumnKind) float64 {
	switch kind {
	case KindText:
		return 40
	case KindDate:
		return 12
	case KindInt:
		return 10
	}
	return 16
}
