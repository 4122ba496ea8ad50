package intake

import (
	"context"
	"fmt"
	"math"

	"hedger/internal/config"
	"hedger/internal/gateway/marketdata"
	"hedger/internal/logger"
	"hedger/internal/pkg/trading"
	"hedger/internal/types"

	"github.com/shopspring/decimal"
)

// Sizer derives main/hedge quantities and the hedge strike for an admitted
// signal. The hedge mode is an explicit configuration choice; it is never
// inferred from which quote fields happen to be present.
type Sizer struct {
	instrument config.InstrumentConfig
	hedge      config.HedgeConfig
	quotes     marketdata.Port
}

func NewSizer(instrument config.InstrumentConfig, hedge config.HedgeConfig, quotes marketdata.Port) *Sizer {
	return &Sizer{instrument: instrument, hedge: hedge, quotes: quotes}
}

// Size fills in the derived fields of a TradeRequest.
func (s *Sizer) Size(ctx context.Context, sig types.Signal) (types.TradeRequest, error) {
	tr := types.TradeRequest{Signal: sig}
	tr.MainQuantity = trading.Quantity(sig.Lots, s.instrument.LotSize)

	mainPremium, err := s.quotes.GetLastPrice(ctx, marketdata.Option(s.instrument.Symbol, sig.Strike, sig.OptionType))
	if err != nil {
		return tr, fmt.Errorf("quoting main leg %s %.0f %s: %w", s.instrument.Symbol, sig.Strike, sig.OptionType, err)
	}
	tr.MainPremium = mainPremium

	switch s.hedge.Mode {
	case config.HedgeModePercentage:
		return s.sizePercentage(ctx, tr)
	case config.HedgeModePriceMatch:
		return s.sizePriceMatch(ctx, tr)
	default:
		return tr, fmt.Errorf("unknown hedge mode %q", s.hedge.Mode)
	}
}

// sizePercentage buys a reduced hedge at a fixed strike distance; the hedge
// quantity is the configured fraction of the main quantity, rounded down to
// whole lots with a one-lot floor.
func (s *Sizer) sizePercentage(ctx context.Context, tr types.TradeRequest) (types.TradeRequest, error) {
	offset := s.instrument.StrikeGap * float64(s.hedge.OffsetSteps)
	tr.HedgeStrike = hedgeDirection(tr.OptionType, tr.Strike, offset)

	lots := int(math.Floor(float64(tr.Signal.Lots) * s.hedge.Percentage))
	if lots < 1 {
		lots = 1
	}
	tr.HedgeQuantity = trading.Quantity(lots, s.instrument.LotSize)

	premium, err := s.quotes.GetLastPrice(ctx, marketdata.Option(s.instrument.Symbol, tr.HedgeStrike, tr.OptionType))
	if err != nil {
		return tr, fmt.Errorf("quoting hedge leg at %.0f: %w", tr.HedgeStrike, err)
	}
	tr.HedgePremium = premium
	return tr, nil
}

// sizePriceMatch walks candidate strikes outward from the main strike and
// picks the one whose premium is closest to main_premium * percentage,
// breaking ties toward the nearer strike. The hedge is sized one-to-one.
func (s *Sizer) sizePriceMatch(ctx context.Context, tr types.TradeRequest) (types.TradeRequest, error) {
	target := decimal.NewFromFloat(tr.MainPremium).Mul(decimal.NewFromFloat(s.hedge.Percentage))
	tr.HedgeQuantity = tr.MainQuantity

	var (
		bestStrike  float64
		bestPremium float64
		bestGap     decimal.Decimal
		found       bool
	)
	for step := 1; step <= s.hedge.MaxSearchSteps; step++ {
		strike := hedgeDirection(tr.OptionType, tr.Strike, s.instrument.StrikeGap*float64(step))
		if strike <= 0 {
			break
		}
		premium, err := s.quotes.GetLastPrice(ctx, marketdata.Option(s.instrument.Symbol, strike, tr.OptionType))
		if err != nil {
			logger.Warnf("hedge search: no quote at strike %.0f: %v", strike, err)
			continue
		}
		gap := decimal.NewFromFloat(premium).Sub(target).Abs()
		// Scanning near-to-far means a tie on premium distance keeps the
		// earlier (closer) strike.
		if !found || gap.LessThan(bestGap) {
			bestStrike, bestPremium, bestGap, found = strike, premium, gap, true
		}
	}
	if !found {
		return tr, fmt.Errorf("hedge search: no quotable strike within %d steps of %.0f", s.hedge.MaxSearchSteps, tr.Strike)
	}
	tr.HedgeStrike = bestStrike
	tr.HedgePremium = bestPremium
	return tr, nil
}

// hedgeDirection moves away from the money: below the strike for puts,
// above it for calls.
func hedgeDirection(ot types.OptionType, strike, offset float64) float64 {
	if ot == types.OptionPE {
		return strike - offset
	}
	return strike + offset
}
