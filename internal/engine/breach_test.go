package engine

import (
	"testing"
	"time"

	"hedger/internal/market"
	"hedger/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func breachPosition(ot types.OptionType) types.Position {
	return types.Position{
		ID:      "p-1",
		Symbol:  "NIFTY",
		MainLeg: types.OrderLeg{Strike: 25000, OptionType: ot},
	}
}

func liveCandle(close float64) market.Candle {
	return market.Candle{
		Open: close + 20, High: close + 40, Low: close - 10, Close: close,
		Timestamp: time.Now().Add(-90 * time.Minute),
		Source:    "nse",
	}
}

func newChecker() *BreachChecker {
	return &BreachChecker{
		Validator: market.NewCandleValidator(2*time.Hour, 5000, 60000, nil),
		Margin:    10,
	}
}

func TestBreachPutConfirmedByClose(t *testing.T) {
	b := newChecker()

	breached, reason, err := b.Check(breachPosition(types.OptionPE), liveCandle(24940))
	require.NoError(t, err)
	assert.True(t, breached)
	assert.Contains(t, reason, "below 25000PE")
}

func TestBreachPutWithinMarginHolds(t *testing.T) {
	b := newChecker()

	// 24995 is below the strike but inside the margin band.
	breached, _, err := b.Check(breachPosition(types.OptionPE), liveCandle(24995))
	require.NoError(t, err)
	assert.False(t, breached)
}

func TestBreachCallConfirmedByClose(t *testing.T) {
	b := newChecker()

	breached, _, err := b.Check(breachPosition(types.OptionCE), liveCandle(25060))
	require.NoError(t, err)
	assert.True(t, breached)
}

func TestBreachSuppressedForUntrustedCandles(t *testing.T) {
	b := newChecker()

	mock := liveCandle(24000)
	mock.IsMock = true
	_, _, err := b.Check(breachPosition(types.OptionPE), mock)
	assert.ErrorContains(t, err, "suppressed")

	replay := liveCandle(24000)
	replay.Source = "backtest"
	_, _, err = b.Check(breachPosition(types.OptionPE), replay)
	assert.ErrorContains(t, err, "suppressed")

	stale := liveCandle(24000)
	stale.Timestamp = time.Now().Add(-5 * time.Hour)
	_, _, err = b.Check(breachPosition(types.OptionPE), stale)
	assert.ErrorContains(t, err, "suppressed")
}
