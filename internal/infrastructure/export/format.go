package export

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	brPrinter = message.NewPrinter(language.BrazilianPortuguese)
	brTitle   = cases.Title(language.BrazilianPortuguese)
)

// FormatBRL formats an amount as Brazilian currency, e.g. "R$ 1.234,56"
func FormatBRL(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + "R$ " + brPrinter.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

// TitleName turns an upper-case ERP name into title case
func TitleName(s string) string {
	return brTitle.String(strings.ToLower(strings.TrimSpace(s)))
}
