// Package marketdata defines the price/candle port and its adapters.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"hedger/internal/market"
	"hedger/internal/types"
)

// Instrument identifies either the index itself (Strike=0) or one option
// contract on it.
type Instrument struct {
	Symbol     string
	Strike     float64
	OptionType types.OptionType
}

func Index(symbol string) Instrument {
	return Instrument{Symbol: symbol}
}

func Option(symbol string, strike float64, ot types.OptionType) Instrument {
	return Instrument{Symbol: symbol, Strike: strike, OptionType: ot}
}

func (i Instrument) IsIndex() bool { return i.Strike == 0 }

// Key is the wire identifier, e.g. "NIFTY" or "NIFTY25000PE".
func (i Instrument) Key() string {
	if i.IsIndex() {
		return i.Symbol
	}
	return fmt.Sprintf("%s%.0f%s", i.Symbol, i.Strike, i.OptionType)
}

type Port interface {
	GetLastPrice(ctx context.Context, inst Instrument) (float64, error)
	GetCompletedHourlyCandle(ctx context.Context, symbol string, hour time.Time) (market.Candle, error)
}
