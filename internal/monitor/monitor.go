// Package monitor drives the exit engine. A fast tick cycle re-evaluates
// every monitorable position; a separate hourly pass, aligned to completed
// candles, adds the index-breach check. Positions stuck CLOSING are resumed
// on the fast cycle.
package monitor

import (
	"context"
	"time"

	"hedger/internal/engine"
	"hedger/internal/gateway/marketdata"
	"hedger/internal/logger"
	"hedger/internal/market"
	"hedger/internal/metrics"
	"hedger/internal/scheduler"
	"hedger/internal/sequencer"
	"hedger/internal/store/position"
	"hedger/internal/types"
)

// TickSubscriber registers interest in an instrument's streaming quotes.
// The websocket updater implements it; without one the monitor stays on
// REST pulls.
type TickSubscriber interface {
	Subscribe(inst marketdata.Instrument)
}

type Monitor struct {
	symbol    string
	engine    *engine.Engine
	seq       *sequencer.Sequencer
	positions *position.Store
	candles   marketdata.Port
	session   *market.Session
	ticks     TickSubscriber

	interval     time.Duration
	hourlyOffset time.Duration
}

func New(symbol string, eng *engine.Engine, seq *sequencer.Sequencer, positions *position.Store,
	candles marketdata.Port, session *market.Session, interval, hourlyOffset time.Duration) *Monitor {
	return &Monitor{
		symbol:       symbol,
		engine:       eng,
		seq:          seq,
		positions:    positions,
		candles:      candles,
		session:      session,
		interval:     interval,
		hourlyOffset: hourlyOffset,
	}
}

// WithTicks attaches a streaming-quote subscriber; every monitored leg is
// registered with it so the quote cache is warm before evaluation.
func (m *Monitor) WithTicks(s TickSubscriber) *Monitor {
	m.ticks = s
	return m
}

// Run blocks until ctx is cancelled, driving both cycles.
func (m *Monitor) Run(ctx context.Context) error {
	done := make(chan struct{}, 2)

	fast := scheduler.NewTickScheduler(ctx, "position-monitor", m.interval)
	fast.RunImmediately = true
	go func() {
		fast.Start(func() { m.FastCycle(ctx) })
		done <- struct{}{}
	}()

	hourly := scheduler.NewAlignedScheduler(ctx, "hourly-close", time.Hour, m.hourlyOffset)
	go func() {
		hourly.Start(func(boundary time.Time) { m.HourlyCycle(ctx, boundary) })
		done <- struct{}{}
	}()

	<-done
	<-done
	return nil
}

// FastCycle evaluates every monitorable position without candle data and
// resumes any half-finished closes.
func (m *Monitor) FastCycle(ctx context.Context) {
	open, err := m.positions.ListOpen(ctx)
	if err != nil {
		logger.Errorf("monitor: listing open positions: %v", err)
		return
	}
	metrics.OpenPositions.Set(float64(len(open)))
	if m.ticks != nil && len(open) > 0 {
		m.ticks.Subscribe(marketdata.Index(m.symbol))
	}
	for _, p := range open {
		if ctx.Err() != nil {
			return
		}
		if m.ticks != nil {
			m.ticks.Subscribe(marketdata.Option(p.Symbol, p.MainLeg.Strike, p.MainLeg.OptionType))
			m.ticks.Subscribe(marketdata.Option(p.Symbol, p.HedgeLeg.Strike, p.HedgeLeg.OptionType))
		}
		if p.Status == types.PositionClosing {
			m.resume(ctx, p)
			continue
		}
		m.evaluate(ctx, p, nil)
	}
}

// HourlyCycle fetches the candle that closed at boundary and re-evaluates
// every position with the breach check armed. Outside the trading session
// the pass is skipped entirely.
func (m *Monitor) HourlyCycle(ctx context.Context, boundary time.Time) {
	if !m.session.IsOpen(boundary.Add(-time.Minute)) {
		return
	}
	open, err := m.positions.ListOpen(ctx)
	if err != nil {
		logger.Errorf("monitor: listing open positions: %v", err)
		return
	}
	if len(open) == 0 {
		return
	}
	candle, err := m.candles.GetCompletedHourlyCandle(ctx, m.symbol, boundary.Add(-time.Hour))
	if err != nil {
		logger.Errorf("monitor: hourly candle unavailable, breach pass skipped: %v", err)
		return
	}
	for _, p := range open {
		if ctx.Err() != nil {
			return
		}
		if !p.Status.Monitorable() {
			continue
		}
		m.evaluate(ctx, p, &candle)
	}
}

func (m *Monitor) evaluate(ctx context.Context, p types.Position, hourly *market.Candle) {
	decision, updated, err := m.engine.Evaluate(ctx, p, hourly)
	if err != nil {
		logger.Warnf("monitor: evaluation of %s skipped: %v", p.ID, err)
		return
	}
	if !decision.ShouldExit {
		return
	}
	if _, err := m.seq.Exit(ctx, updated.ID, string(decision.Kind)); err != nil {
		logger.Errorf("monitor: exit of %s (%s) did not complete: %v", updated.ID, decision.Kind, err)
	}
}

// resume retries a close that did not finish, keeping the original reason.
func (m *Monitor) resume(ctx context.Context, p types.Position) {
	logger.Infof("monitor: resuming close of %s (reason=%s)", p.ID, p.ExitReason)
	if _, err := m.seq.Exit(ctx, p.ID, p.ExitReason); err != nil {
		logger.Errorf("monitor: resume of %s did not complete: %v", p.ID, err)
	}
}
