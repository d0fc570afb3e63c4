package domain

import (
	"math"
	"strings"

	"golang.org/x/text/currency"
)

// currencyScale is the number of minor-unit digits for the currency per its
// ISO 4217 standard rounding, capped at two. Prices are displayed with at
// most two decimals even for three-decimal currencies such as BHD or KWD.
// Unknown codes fall back to two digits.
func currencyScale(code string) int {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	if scale > 2 {
		scale = 2
	}
	return scale
}

// ZeroDecimalCurrency reports whether the currency has no minor unit.
func ZeroDecimalCurrency(code string) bool {
	return currencyScale(code) == 0
}

// RoundAmount rounds a monetary amount to the currency's precision:
// two decimals for most currencies, whole units for the zero-decimal set.
func RoundAmount(amount float64, code string) float64 {
	factor := math.Pow10(currencyScale(code))
	return math.Round(amount*factor) / factor
}
