package engine

import (
	"hedger/internal/types"

	"github.com/shopspring/decimal"
)

// NetPnL marks the open position to the given leg prices. The short main
// leg profits as premium decays; the long hedge profits as its premium
// rises. The percent figure is relative to the entry credit.
func NetPnL(p types.Position, mainPrice, hedgePrice float64) (pnl, pct float64) {
	main := decimal.NewFromFloat(p.MainLeg.FillPrice).
		Sub(decimal.NewFromFloat(mainPrice)).
		Mul(decimal.NewFromInt(int64(p.MainLeg.Quantity)))
	hedge := decimal.NewFromFloat(hedgePrice).
		Sub(decimal.NewFromFloat(p.HedgeLeg.FillPrice)).
		Mul(decimal.NewFromInt(int64(p.HedgeLeg.Quantity)))
	net := main.Add(hedge)

	credit := decimal.NewFromFloat(p.EntryCredit())
	pnl, _ = net.Float64()
	if credit.IsZero() {
		return pnl, 0
	}
	pct, _ = net.Div(credit).Mul(decimal.NewFromInt(100)).Float64()
	return pnl, pct
}
