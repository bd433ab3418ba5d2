// Package pricing converts provider token usage into ledger charges.
package pricing

import "github.com/shopspring/decimal"

const (
	// CreditsPerToken applies to input and output tokens alike.
	CreditsPerToken = 1

	SignupBonus          = 10000
	MaxNegativeBalance   = -10000
	MinBalanceForNewWork = -5000
)

var hundred = decimal.NewFromInt(100)

// Cost returns the charge for one generation, rounded up to the nearest 0.01.
// Negative counts are treated as zero.
func Cost(inputTokens, outputTokens int) decimal.Decimal {
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}

	raw := decimal.NewFromInt(int64(inputTokens+outputTokens) * CreditsPerToken)
	return raw.Mul(hundred).Ceil().Div(hundred).Round(2)
}

// ToCents converts a credit amount to integer hundredths, rounding up any
// sub-cent remainder.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Ceil().IntPart()
}

// FromCents converts integer hundredths back to a credit amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
