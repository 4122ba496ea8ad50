// Package engine is the exit-decision core. Every monitoring cycle it marks
// a position to market, advances the profit ratchet, and fuses rule and
// model views into a single ExitDecision. Rules always hold veto power: a
// missing or failing model degrades the engine to rule-only, never to
// no-protection.
package engine

import (
	"context"
	"fmt"
	"time"

	"hedger/internal/config"
	"hedger/internal/exitrules"
	"hedger/internal/gateway/marketdata"
	"hedger/internal/gateway/predictor"
	"hedger/internal/logger"
	"hedger/internal/market"
	"hedger/internal/metrics"
	"hedger/internal/store/audit"
	"hedger/internal/store/position"
	"hedger/internal/types"
)

type Engine struct {
	cfg        config.ExitConfig
	instrument config.InstrumentConfig
	quotes     marketdata.Port
	model      predictor.Port
	rules      *exitrules.Registry
	session    *market.Session
	positions  *position.Store
	audits     *audit.Store
	breach     *BreachChecker
	nowFn      func() time.Time
}

func New(cfg config.ExitConfig, instrument config.InstrumentConfig, quotes marketdata.Port,
	model predictor.Port, rules *exitrules.Registry, session *market.Session,
	positions *position.Store, audits *audit.Store, breach *BreachChecker) *Engine {
	return &Engine{
		cfg:        cfg,
		instrument: instrument,
		quotes:     quotes,
		model:      model,
		rules:      rules,
		session:    session,
		positions:  positions,
		audits:     audits,
		breach:     breach,
		nowFn:      time.Now,
	}
}

// Evaluate runs one decision cycle for p. hourly is non-nil only on the
// aligned hourly pass; the fast cycle never sees candles. The returned
// position carries the persisted ratchet state.
func (e *Engine) Evaluate(ctx context.Context, p types.Position, hourly *market.Candle) (types.ExitDecision, types.Position, error) {
	if p.Status == types.PositionOpen {
		activated, err := e.positions.AtomicUpdate(ctx, p.ID, types.PositionOpen, func(pos *types.Position) error {
			pos.Status = types.PositionActive
			return nil
		})
		if err != nil {
			return types.ExitDecision{}, p, fmt.Errorf("activating %s: %w", p.ID, err)
		}
		p = activated
	}
	if p.Status != types.PositionActive {
		return types.ExitDecision{}, p, fmt.Errorf("position %s is %s, not evaluatable", p.ID, p.Status)
	}

	mainPrice, err := e.quotes.GetLastPrice(ctx, marketdata.Option(p.Symbol, p.MainLeg.Strike, p.MainLeg.OptionType))
	if err != nil {
		return types.ExitDecision{}, p, fmt.Errorf("quoting main leg: %w", err)
	}
	hedgePrice, err := e.quotes.GetLastPrice(ctx, marketdata.Option(p.Symbol, p.HedgeLeg.Strike, p.HedgeLeg.OptionType))
	if err != nil {
		return types.ExitDecision{}, p, fmt.Errorf("quoting hedge leg: %w", err)
	}
	pnl, pct := NetPnL(p, mainPrice, hedgePrice)

	profile := e.rules.ProfileFor(p.SignalType)
	floorBreached := UpdateLock(&p, pct, profile, e.cfg.TrailEnabled)

	decision := e.decide(ctx, p, pct, floorBreached, profile, hourly)
	decision.NetPnL = pnl
	decision.NetPnLPct = pct
	decision.LockLevelPct = p.LockLevelPct

	persisted, err := e.positions.AtomicUpdate(ctx, p.ID, types.PositionActive, func(pos *types.Position) error {
		pos.MaxProfitPct = p.MaxProfitPct
		pos.ProfitLocked = p.ProfitLocked
		pos.LockLevelPct = p.LockLevelPct
		return nil
	})
	if err != nil {
		return decision, p, fmt.Errorf("persisting ratchet on %s: %w", p.ID, err)
	}

	if decision.ShouldExit {
		metrics.ExitDecisionsTotal.WithLabelValues(string(decision.Kind)).Inc()
		if err := e.audits.RecordDecision(ctx, p.ID, decision); err != nil {
			logger.Errorf("engine: recording decision for %s: %v", p.ID, err)
		}
		logger.Infof("engine: %s EXIT %s conf=%.2f pnl=%.2f (%.2f%%): %s",
			p.ID, decision.Kind, decision.Confidence, pnl, pct, decision.Reason)
	}
	return decision, persisted, nil
}

// decide applies the exit checks in strict priority order. The first check
// that fires wins; later checks are not consulted.
func (e *Engine) decide(ctx context.Context, p types.Position, pct float64, floorBreached bool,
	profile exitrules.Profile, hourly *market.Candle) types.ExitDecision {
	if floorBreached {
		return types.ExitDecision{
			ShouldExit: true,
			Kind:       types.DecisionProgressiveSL,
			Confidence: 1,
			Reason: fmt.Sprintf("profit %.2f%% fell through locked floor %.2f%% (peak %.2f%%)",
				pct, p.LockLevelPct, p.MaxProfitPct),
		}
	}

	pred := e.predict(ctx, p, pct)
	if e.cfg.PreferModel && pred.Available && pred.ShouldExit && pred.Confidence >= profile.ModelThreshold {
		return types.ExitDecision{
			ShouldExit: true,
			Kind:       types.DecisionModelPredicted,
			Confidence: pred.Confidence,
			Reason:     fmt.Sprintf("model exit at confidence %.2f: %s", pred.Confidence, pred.Reason),
		}
	}

	if score := consensusScore(pred, p, pct); score >= e.cfg.ConsensusThreshold {
		return types.ExitDecision{
			ShouldExit: true,
			Kind:       types.DecisionConsensus,
			Confidence: score,
			Reason: fmt.Sprintf("consensus %.2f >= %.2f (model=%v locked=%v peak=%.2f%% now=%.2f%%)",
				score, e.cfg.ConsensusThreshold, pred.Available && pred.ShouldExit, p.ProfitLocked, p.MaxProfitPct, pct),
		}
	}

	if hourly != nil {
		breached, reason, err := e.breach.Check(p, *hourly)
		if err != nil {
			// A candle that fails validation must never trigger an exit, but
			// the suppression itself is worth an audit entry.
			suppressed := types.ExitDecision{Kind: types.DecisionHold, Reason: err.Error(), NetPnLPct: pct}
			if aerr := e.audits.RecordDecision(ctx, p.ID, suppressed); aerr != nil {
				logger.Errorf("engine: recording suppressed breach for %s: %v", p.ID, aerr)
			}
			logger.Warnf("engine: %s %v", p.ID, err)
		} else if breached {
			return types.ExitDecision{
				ShouldExit: true,
				Kind:       types.DecisionIndexBreach,
				Confidence: 1,
				Reason:     reason,
			}
		}
	}

	if deadline, err := e.timeExitDeadline(p, profile); err == nil && !e.nowFn().Before(deadline) {
		return types.ExitDecision{
			ShouldExit: true,
			Kind:       types.DecisionTimeExit,
			Confidence: 1,
			Reason:     fmt.Sprintf("held past %s", deadline.Format("2006-01-02 15:04 MST")),
		}
	}

	return types.ExitDecision{Kind: types.DecisionHold, Reason: "no exit condition met"}
}

func (e *Engine) predict(ctx context.Context, p types.Position, pct float64) types.ModelPrediction {
	pred, err := e.model.Predict(ctx, predictor.PredictRequest{
		PositionID:   p.ID,
		SignalType:   string(p.SignalType),
		OptionType:   string(p.MainLeg.OptionType),
		Strike:       p.MainLeg.Strike,
		NetPnLPct:    pct,
		MaxProfitPct: p.MaxProfitPct,
		MinutesOpen:  int(e.nowFn().Sub(p.EntryTime).Minutes()),
	})
	if err != nil {
		logger.Warnf("engine: predictor unavailable for %s, running rule-only: %v", p.ID, err)
		return types.ModelPrediction{}
	}
	return pred
}

func (e *Engine) timeExitDeadline(p types.Position, profile exitrules.Profile) (time.Time, error) {
	day := e.session.AddTradingDays(p.EntryTime, profile.ExitDayOffset)
	return e.session.At(day, e.cfg.ExitTime)
}
