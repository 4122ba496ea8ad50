package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"hedger/internal/config"
	"hedger/internal/exitrules"
	"hedger/internal/gateway/marketdata"
	"hedger/internal/gateway/predictor"
	"hedger/internal/market"
	"hedger/internal/store/audit"
	"hedger/internal/store/position"
	"hedger/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quotesStub struct {
	prices map[string]float64
}

func (q *quotesStub) GetLastPrice(_ context.Context, inst marketdata.Instrument) (float64, error) {
	price, ok := q.prices[inst.Key()]
	if !ok {
		return 0, fmt.Errorf("no quote for %s", inst.Key())
	}
	return price, nil
}

func (q *quotesStub) GetCompletedHourlyCandle(context.Context, string, time.Time) (market.Candle, error) {
	return market.Candle{}, fmt.Errorf("not supported")
}

type modelStub struct {
	pred types.ModelPrediction
	err  error
}

func (m *modelStub) Predict(context.Context, predictor.PredictRequest) (types.ModelPrediction, error) {
	return m.pred, m.err
}

type testEnv struct {
	engine    *Engine
	positions *position.Store
	audits    *audit.Store
	quotes    *quotesStub
	model     *modelStub
}

func newTestEnv(t *testing.T, cfg config.ExitConfig) *testEnv {
	t.Helper()
	dir := t.TempDir()
	positions, err := position.NewStore(filepath.Join(dir, "positions.db"))
	require.NoError(t, err)
	audits, err := audit.NewStore(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		positions.Close()
		audits.Close()
	})

	session, err := market.NewSession("Asia/Kolkata", "09:15", "15:30")
	require.NoError(t, err)

	rules, err := exitrules.NewRegistry(exitrules.Profile{
		ProfitTargetPct: cfg.ProfitTargetPct,
		ProfitLockPct:   cfg.ProfitLockPct,
		TrailPct:        cfg.TrailPct,
		ModelThreshold:  cfg.ModelThreshold,
		ExitDayOffset:   cfg.ExitDayOffset,
	}, "")
	require.NoError(t, err)

	quotes := &quotesStub{prices: map[string]float64{
		"NIFTY25000PE": 100,
		"NIFTY24500PE": 30,
	}}
	model := &modelStub{}
	breach := &BreachChecker{
		Validator: market.NewCandleValidator(2*time.Hour, 5000, 60000, nil),
		Margin:    cfg.MinBreachMargin,
	}
	instrument := config.InstrumentConfig{Symbol: "NIFTY", LotSize: 75, StrikeGap: 50, MinIndex: 5000, MaxIndex: 60000}

	e := New(cfg, instrument, quotes, model, rules, session, positions, audits, breach)
	return &testEnv{engine: e, positions: positions, audits: audits, quotes: quotes, model: model}
}

func defaultExitConfig() config.ExitConfig {
	return config.ExitConfig{
		ProfitTargetPct:    10,
		ProfitLockPct:      5,
		TrailPct:           5,
		TrailEnabled:       true,
		ModelThreshold:     0.7,
		PreferModel:        true,
		ConsensusThreshold: 0.6,
		MinBreachMargin:    10,
		MaxCandleAge:       "2h",
		ExitDayOffset:      2,
		ExitTime:           "15:15",
	}
}

func activePosition(id string) types.Position {
	return types.Position{
		ID:         id,
		SignalType: types.SignalS1,
		Symbol:     "NIFTY",
		Status:     types.PositionActive,
		EntryTime:  time.Now().Add(-time.Hour),
		MainLeg: types.OrderLeg{
			Role: types.LegMain, Direction: types.DirectionSell,
			Strike: 25000, OptionType: types.OptionPE,
			Quantity: 750, FillPrice: 100, Status: types.OrderFilled,
		},
		HedgeLeg: types.OrderLeg{
			Role: types.LegHedge, Direction: types.DirectionBuy,
			Strike: 24500, OptionType: types.OptionPE,
			Quantity: 750, FillPrice: 30, Status: types.OrderFilled,
		},
	}
}

func TestEvaluateActivatesOpenPosition(t *testing.T) {
	env := newTestEnv(t, defaultExitConfig())
	p := activePosition("p-1")
	p.Status = types.PositionOpen
	require.NoError(t, env.positions.Insert(context.Background(), p))

	decision, updated, err := env.engine.Evaluate(context.Background(), p, nil)
	require.NoError(t, err)
	assert.Equal(t, types.DecisionHold, decision.Kind)
	assert.Equal(t, types.PositionActive, updated.Status)
}

func TestEvaluateProgressiveStopLocksThenExits(t *testing.T) {
	env := newTestEnv(t, defaultExitConfig())
	p := activePosition("p-1")
	require.NoError(t, env.positions.Insert(context.Background(), p))

	// Main premium decays 100 -> 90: +10% of entry credit, lock engages.
	env.quotes.prices["NIFTY25000PE"] = 90
	decision, updated, err := env.engine.Evaluate(context.Background(), p, nil)
	require.NoError(t, err)
	assert.False(t, decision.ShouldExit)
	assert.True(t, updated.ProfitLocked)
	assert.Equal(t, 5.0, updated.LockLevelPct)

	// Premium snaps back to 96: +4%, below the 5% floor.
	env.quotes.prices["NIFTY25000PE"] = 96
	decision, _, err = env.engine.Evaluate(context.Background(), updated, nil)
	require.NoError(t, err)
	assert.True(t, decision.ShouldExit)
	assert.Equal(t, types.DecisionProgressiveSL, decision.Kind)
	assert.InDelta(t, 4.0, decision.NetPnLPct, 1e-9)

	records, err := env.audits.ListDecisions(context.Background(), "p-1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.DecisionProgressiveSL, records[0].Kind)
}

func TestEvaluateModelExitAboveThreshold(t *testing.T) {
	env := newTestEnv(t, defaultExitConfig())
	p := activePosition("p-1")
	require.NoError(t, env.positions.Insert(context.Background(), p))

	env.model.pred = types.ModelPrediction{Available: true, ShouldExit: true, Confidence: 0.85, Reason: "decay exhausted"}
	decision, _, err := env.engine.Evaluate(context.Background(), p, nil)
	require.NoError(t, err)
	assert.True(t, decision.ShouldExit)
	assert.Equal(t, types.DecisionModelPredicted, decision.Kind)
	assert.Equal(t, 0.85, decision.Confidence)
}

func TestEvaluateWeakModelAloneHolds(t *testing.T) {
	env := newTestEnv(t, defaultExitConfig())
	p := activePosition("p-1")
	require.NoError(t, env.positions.Insert(context.Background(), p))

	// Below the model threshold and nothing else corroborating: 0.5*0.6 = 0.3.
	env.model.pred = types.ModelPrediction{Available: true, ShouldExit: true, Confidence: 0.6}
	decision, _, err := env.engine.Evaluate(context.Background(), p, nil)
	require.NoError(t, err)
	assert.False(t, decision.ShouldExit)
	assert.Equal(t, types.DecisionHold, decision.Kind)
}

func TestEvaluateConsensusFusesWeakSignals(t *testing.T) {
	cfg := defaultExitConfig()
	cfg.TrailEnabled = false
	env := newTestEnv(t, cfg)

	p := activePosition("p-1")
	p.MaxProfitPct = 40
	p.ProfitLocked = true
	p.LockLevelPct = 5
	require.NoError(t, env.positions.Insert(context.Background(), p))

	// +8% now, peak was +40%: deep giveback but above the floor.
	env.quotes.prices["NIFTY25000PE"] = 92
	env.model.pred = types.ModelPrediction{Available: true, ShouldExit: true, Confidence: 0.6}

	decision, _, err := env.engine.Evaluate(context.Background(), p, nil)
	require.NoError(t, err)
	assert.True(t, decision.ShouldExit)
	assert.Equal(t, types.DecisionConsensus, decision.Kind)
	// 0.5*0.6 + 0.25 (locked) + 0.25 (drawdown) = 0.8
	assert.InDelta(t, 0.8, decision.Confidence, 1e-9)
}

func TestEvaluateConsensusExcludesSubThresholdModel(t *testing.T) {
	cfg := defaultExitConfig()
	cfg.TrailEnabled = false
	env := newTestEnv(t, cfg)

	p := activePosition("p-1")
	p.MaxProfitPct = 40
	p.ProfitLocked = true
	p.LockLevelPct = 5
	require.NoError(t, env.positions.Insert(context.Background(), p))

	// Same giveback as above, but the model vote is below 0.5 and must not
	// count: locked 0.25 + drawdown 0.25 = 0.5 stays under the threshold.
	env.quotes.prices["NIFTY25000PE"] = 92
	env.model.pred = types.ModelPrediction{Available: true, ShouldExit: true, Confidence: 0.4}

	decision, _, err := env.engine.Evaluate(context.Background(), p, nil)
	require.NoError(t, err)
	assert.False(t, decision.ShouldExit)
	assert.Equal(t, types.DecisionHold, decision.Kind)
}

func TestEvaluateHourlyBreach(t *testing.T) {
	env := newTestEnv(t, defaultExitConfig())
	p := activePosition("p-1")
	require.NoError(t, env.positions.Insert(context.Background(), p))

	breach := liveCandle(24940)
	decision, _, err := env.engine.Evaluate(context.Background(), p, &breach)
	require.NoError(t, err)
	assert.True(t, decision.ShouldExit)
	assert.Equal(t, types.DecisionIndexBreach, decision.Kind)
}

func TestEvaluateHourlyBreachWithinMarginHolds(t *testing.T) {
	env := newTestEnv(t, defaultExitConfig())
	p := activePosition("p-1")
	require.NoError(t, env.positions.Insert(context.Background(), p))

	near := liveCandle(24995)
	decision, _, err := env.engine.Evaluate(context.Background(), p, &near)
	require.NoError(t, err)
	assert.False(t, decision.ShouldExit)
}

func TestEvaluateMockCandleNeverExits(t *testing.T) {
	env := newTestEnv(t, defaultExitConfig())
	p := activePosition("p-1")
	require.NoError(t, env.positions.Insert(context.Background(), p))

	mock := liveCandle(20000)
	mock.IsMock = true
	decision, _, err := env.engine.Evaluate(context.Background(), p, &mock)
	require.NoError(t, err)
	assert.False(t, decision.ShouldExit)

	// The suppressed evaluation still lands in the audit trail.
	records, err := env.audits.ListDecisions(context.Background(), "p-1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Reason, "suppressed")
}

func TestEvaluateTimeExit(t *testing.T) {
	env := newTestEnv(t, defaultExitConfig())
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	p := activePosition("p-1")
	// Entered Monday; T+2 is Wednesday 15:15 IST.
	p.EntryTime = time.Date(2026, 3, 9, 10, 0, 0, 0, ist)
	require.NoError(t, env.positions.Insert(context.Background(), p))

	env.engine.nowFn = func() time.Time { return time.Date(2026, 3, 11, 15, 20, 0, 0, ist) }
	decision, _, err := env.engine.Evaluate(context.Background(), p, nil)
	require.NoError(t, err)
	assert.True(t, decision.ShouldExit)
	assert.Equal(t, types.DecisionTimeExit, decision.Kind)

	// A minute before the deadline it still holds.
	env.engine.nowFn = func() time.Time { return time.Date(2026, 3, 11, 15, 14, 0, 0, ist) }
	p2 := activePosition("p-2")
	p2.EntryTime = time.Date(2026, 3, 9, 10, 0, 0, 0, ist)
	require.NoError(t, env.positions.Insert(context.Background(), p2))
	decision, _, err = env.engine.Evaluate(context.Background(), p2, nil)
	require.NoError(t, err)
	assert.False(t, decision.ShouldExit)
}

func TestEvaluateQuoteFailureFailsSafe(t *testing.T) {
	env := newTestEnv(t, defaultExitConfig())
	p := activePosition("p-1")
	require.NoError(t, env.positions.Insert(context.Background(), p))

	env.quotes.prices = map[string]float64{}
	_, _, err := env.engine.Evaluate(context.Background(), p, nil)
	require.Error(t, err)

	// No decision was recorded and the position is untouched.
	records, err := env.audits.ListDecisions(context.Background(), "p-1", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
