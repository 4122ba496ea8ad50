package intake

import (
	"context"
	"fmt"
	"testing"
	"time"

	"hedger/internal/config"
	"hedger/internal/gateway/marketdata"
	"hedger/internal/market"
	"hedger/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuotes struct {
	prices map[string]float64
}

func (f *fakeQuotes) GetLastPrice(_ context.Context, inst marketdata.Instrument) (float64, error) {
	price, ok := f.prices[inst.Key()]
	if !ok {
		return 0, fmt.Errorf("no quote for %s", inst.Key())
	}
	return price, nil
}

func (f *fakeQuotes) GetCompletedHourlyCandle(context.Context, string, time.Time) (market.Candle, error) {
	return market.Candle{}, fmt.Errorf("not supported")
}

func testInstrument() config.InstrumentConfig {
	return config.InstrumentConfig{Symbol: "NIFTY", LotSize: 75, StrikeGap: 50, MinIndex: 5000, MaxIndex: 60000}
}

func TestSizePercentageMode(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]float64{
		"NIFTY25000PE": 100,
		"NIFTY24500PE": 28,
	}}
	sizer := NewSizer(testInstrument(), config.HedgeConfig{
		Mode: config.HedgeModePercentage, Percentage: 0.3, OffsetSteps: 10, MaxSearchSteps: 10,
	}, quotes)

	tr, err := sizer.Size(context.Background(), testSignal())
	require.NoError(t, err)

	assert.Equal(t, 750, tr.MainQuantity)
	assert.Equal(t, 100.0, tr.MainPremium)
	// PE hedge sits below the main strike: 25000 - 10*50.
	assert.Equal(t, 24500.0, tr.HedgeStrike)
	// 30% of 10 lots = 3 lots = 225 contracts.
	assert.Equal(t, 225, tr.HedgeQuantity)
	assert.Equal(t, 28.0, tr.HedgePremium)
}

func TestSizePercentageModeOneLotFloor(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]float64{
		"NIFTY25000PE": 100,
		"NIFTY24500PE": 28,
	}}
	sizer := NewSizer(testInstrument(), config.HedgeConfig{
		Mode: config.HedgeModePercentage, Percentage: 0.3, OffsetSteps: 10,
	}, quotes)

	sig := testSignal()
	sig.Lots = 1
	tr, err := sizer.Size(context.Background(), sig)
	require.NoError(t, err)
	assert.Equal(t, 75, tr.HedgeQuantity)
}

func TestSizePriceMatchMode(t *testing.T) {
	// target = 100 * 0.3 = 30; 24800 quotes exactly 30.
	quotes := &fakeQuotes{prices: map[string]float64{
		"NIFTY25000PE": 100,
		"NIFTY24950PE": 80,
		"NIFTY24900PE": 62,
		"NIFTY24850PE": 44,
		"NIFTY24800PE": 30,
		"NIFTY24750PE": 21,
	}}
	sizer := NewSizer(testInstrument(), config.HedgeConfig{
		Mode: config.HedgeModePriceMatch, Percentage: 0.3, MaxSearchSteps: 6,
	}, quotes)

	tr, err := sizer.Size(context.Background(), testSignal())
	require.NoError(t, err)
	assert.Equal(t, 24800.0, tr.HedgeStrike)
	assert.Equal(t, 30.0, tr.HedgePremium)
	// Price-match hedges one-to-one.
	assert.Equal(t, 750, tr.HedgeQuantity)
}

func TestSizePriceMatchTieBreaksTowardNearerStrike(t *testing.T) {
	// target = 30; 24900 (dist 2 steps) and 24800 (dist 4 steps) are both
	// 5 away from target. The nearer strike must win.
	quotes := &fakeQuotes{prices: map[string]float64{
		"NIFTY25000PE": 100,
		"NIFTY24950PE": 70,
		"NIFTY24900PE": 35,
		"NIFTY24850PE": 50, // farther from target than both
		"NIFTY24800PE": 25,
	}}
	sizer := NewSizer(testInstrument(), config.HedgeConfig{
		Mode: config.HedgeModePriceMatch, Percentage: 0.3, MaxSearchSteps: 5,
	}, quotes)

	tr, err := sizer.Size(context.Background(), testSignal())
	require.NoError(t, err)
	assert.Equal(t, 24900.0, tr.HedgeStrike)
}

func TestSizePriceMatchSkipsMissingQuotes(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]float64{
		"NIFTY25000PE": 100,
		"NIFTY24850PE": 31,
	}}
	sizer := NewSizer(testInstrument(), config.HedgeConfig{
		Mode: config.HedgeModePriceMatch, Percentage: 0.3, MaxSearchSteps: 4,
	}, quotes)

	tr, err := sizer.Size(context.Background(), testSignal())
	require.NoError(t, err)
	assert.Equal(t, 24850.0, tr.HedgeStrike)
}

func TestSizeCallHedgeGoesAboveStrike(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]float64{
		"NIFTY25000CE": 90,
		"NIFTY25500CE": 25,
	}}
	sizer := NewSizer(testInstrument(), config.HedgeConfig{
		Mode: config.HedgeModePercentage, Percentage: 0.3, OffsetSteps: 10,
	}, quotes)

	sig := testSignal()
	sig.OptionType = types.OptionCE
	tr, err := sizer.Size(context.Background(), sig)
	require.NoError(t, err)
	assert.Equal(t, 25500.0, tr.HedgeStrike)
}
