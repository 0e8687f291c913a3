package ledger

import "github.com/shopspring/decimal"

// Direction is the receivable/debit flag carried by the transaction type
type Direction int

const (
	DirectionCredit Direction = 1
	DirectionDebit  Direction = 2
)

// DirectionOrDefault treats a missing flag as credit
func DirectionOrDefault(d Direction) Direction {
	if d == 0 {
		return DirectionCredit
	}
	return d
}

// PayableValue picks the amount attributed to a payable line.
// The open amount is capped by the apportioned amount; a fully settled line
// (open == 0) is still reported at its apportioned amount.
func PayableValue(open, apportioned decimal.Decimal) decimal.Decimal {
	switch {
	case open.GreaterThan(apportioned):
		return apportioned
	case open.IsZero():
		return apportioned
	default:
		return open
	}
}

// ReceivableValue picks the amount attributed to a receivable line.
// Debit-direction lines count negatively.
func ReceivableValue(open decimal.Decimal, direction Direction, original decimal.Decimal) decimal.Decimal {
	switch {
	case !open.IsZero() && direction == DirectionDebit:
		return open.Neg()
	case open.IsZero() && direction == DirectionDebit:
		return original.Neg()
	case !open.IsZero() && direction == DirectionCredit:
		return open
	default:
		return original
	}
}
