package shared

import "github.com/shopspring/decimal"

// Tolerance is the largest difference still treated as balanced.
var Tolerance = decimal.New(1, -2)

// Nature is the side on which an account's normal balance grows.
type Nature string

const (
	NatureDebit  Nature = "DEBIT"
	NatureCredit Nature = "CREDIT"
)

// Valid reports whether n is a known nature.
func (n Nature) Valid() bool {
	return n == NatureDebit || n == NatureCredit
}

// Round2 rounds half away from zero to cents.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// Balanced reports |a-b| < 0.01.
func Balanced(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Tolerance)
}

// SplitBalance derives the debtor/creditor balance for an account. For a DEBIT
// nature account a positive debit-credit difference is a debtor balance, anything
// else is a creditor balance; CREDIT nature mirrors it.
func SplitBalance(nature Nature, debit, credit decimal.Decimal) (debtor, creditor decimal.Decimal) {
	zero := decimal.Zero
	if nature == NatureCredit {
		diff := credit.Sub(debit)
		if diff.IsPositive() {
			return zero, diff
		}
		return diff.Abs(), zero
	}
	diff := debit.Sub(credit)
	if diff.IsPositive() {
		return diff, zero
	}
	return zero, diff.Abs()
}
