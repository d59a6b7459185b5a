package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCents renders minor units as a fixed two-decimal amount, e.g. 1999 -> "19.99".
func FormatCents(cents int64) string {
	return decimal.NewFromInt(cents).Shift(-2).StringFixed(2)
}

// FormatMoney prefixes FormatCents with an upper-cased currency code.
func FormatMoney(cents int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return FormatCents(cents)
	}
	return currency + " " + FormatCents(cents)
}
