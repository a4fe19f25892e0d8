package entities

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places every stored amount carries
const MoneyPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds to cents, half away from zero
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// PercentOf returns pct percent of amount, rounded to cents.
// PercentOf(150, 0.6) == 0.90
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(pct).Div(hundred))
}

// Money parses a literal amount and panics on malformed input. Intended for
// constants and tests.
func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
