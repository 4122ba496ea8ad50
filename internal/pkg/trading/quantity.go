// Package trading provides sizing and strike-grid helpers.
package trading

import "github.com/shopspring/decimal"

// Quantity converts lots into contract quantity.
func Quantity(lots, lotSize int) int {
	if lots <= 0 || lotSize <= 0 {
		return 0
	}
	return lots * lotSize
}

// OnStrikeGrid reports whether strike is a positive multiple of the
// exchange's strike gap. Decimal arithmetic avoids float remainder noise on
// values like 24950.00000001.
func OnStrikeGrid(strike, gap float64) bool {
	if strike <= 0 || gap <= 0 {
		return false
	}
	s := decimal.NewFromFloat(strike)
	g := decimal.NewFromFloat(gap)
	return s.Mod(g).IsZero()
}
