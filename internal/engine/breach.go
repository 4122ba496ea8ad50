package engine

import (
	"fmt"

	"hedger/internal/market"
	"hedger/internal/types"
)

// BreachChecker decides whether a completed hourly candle confirms the index
// moving through the short strike. The close must clear the strike by the
// margin; a wick through the level does not count.
type BreachChecker struct {
	Validator *market.CandleValidator
	Margin    float64
}

// Check returns (true, reason, nil) on a confirmed breach. A validation
// failure comes back as an error so the caller can audit the suppressed
// evaluation; it is never treated as "no breach".
func (b *BreachChecker) Check(p types.Position, c market.Candle) (bool, string, error) {
	if err := b.Validator.Validate(c); err != nil {
		return false, "", fmt.Errorf("breach check suppressed: %w", err)
	}
	strike := p.MainLeg.Strike
	switch p.MainLeg.OptionType {
	case types.OptionPE:
		if c.Close < strike-b.Margin {
			return true, fmt.Sprintf("hourly close %.2f below %.0fPE strike by %.2f (margin %.0f)",
				c.Close, strike, strike-c.Close, b.Margin), nil
		}
	case types.OptionCE:
		if c.Close > strike+b.Margin {
			return true, fmt.Sprintf("hourly close %.2f above %.0fCE strike by %.2f (margin %.0f)",
				c.Close, strike, c.Close-strike, b.Margin), nil
		}
	}
	return false, "", nil
}
