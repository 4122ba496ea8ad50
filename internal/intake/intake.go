// Package intake validates, deduplicates and sizes inbound signals. Admit
// guarantees at most one TradeRequest per fingerprint per dedup window.
package intake

import (
	"context"
	"time"

	"hedger/internal/config"
	"hedger/internal/killswitch"
	"hedger/internal/logger"
	"hedger/internal/market"
	"hedger/internal/pkg/trading"
	"hedger/internal/types"
)

type Service struct {
	instrument config.InstrumentConfig
	maxLots    int
	session    *market.Session
	kill       *killswitch.Switch
	dedup      *DedupCache
	sizer      *Sizer
	nowFn      func() time.Time
}

func NewService(instrument config.InstrumentConfig, maxLots int, session *market.Session,
	kill *killswitch.Switch, dedup *DedupCache, sizer *Sizer) *Service {
	return &Service{
		instrument: instrument,
		maxLots:    maxLots,
		session:    session,
		kill:       kill,
		dedup:      dedup,
		sizer:      sizer,
		nowFn:      time.Now,
	}
}

// WithClock overrides the admission clock. Tests use it to pin the session
// check to a known instant.
func (s *Service) WithClock(fn func() time.Time) *Service {
	s.nowFn = fn
	return s
}

// Admit turns a raw signal into a TradeRequest or a terminal *Rejection.
// Any other error is a dependency failure (quotes unavailable) and may be
// retried by the caller with a fresh signal.
func (s *Service) Admit(ctx context.Context, sig types.Signal) (types.TradeRequest, error) {
	if s.kill != nil && s.kill.Engaged() {
		return types.TradeRequest{}, reject(RejectKillSwitch, "kill switch is engaged")
	}
	if err := s.validate(sig); err != nil {
		return types.TradeRequest{}, err
	}
	now := s.nowFn()
	if !s.session.IsOpen(now) {
		return types.TradeRequest{}, reject(RejectMarketClosed, "outside market session at %s", now.Format(time.RFC3339))
	}

	fp := Fingerprint(sig, s.dedup.Window())
	if !s.dedup.CheckAndInsert(fp) {
		logger.Warnf("intake: duplicate signal %s (fingerprint=%s)", sig, fp)
		return types.TradeRequest{}, reject(RejectDuplicate, "signal %s already admitted within %s", sig, s.dedup.Window())
	}

	tr, err := s.sizer.Size(ctx, sig)
	if err != nil {
		// The failure is a dependency's, not the signal's. Release the
		// claim so the caller's retry is not rejected as a replay.
		s.dedup.Release(fp)
		return types.TradeRequest{}, err
	}
	tr.Fingerprint = fp
	logger.Infof("intake: admitted %s main_qty=%d hedge_qty=%d hedge_strike=%.0f main_premium=%.2f",
		sig, tr.MainQuantity, tr.HedgeQuantity, tr.HedgeStrike, tr.MainPremium)
	return tr, nil
}

func (s *Service) validate(sig types.Signal) *Rejection {
	if !sig.Type.Valid() {
		return reject(RejectInvalidParameter, "unknown signal type %q", sig.Type)
	}
	if !sig.OptionType.Valid() {
		return reject(RejectInvalidParameter, "option type must be CE or PE, got %q", sig.OptionType)
	}
	if !trading.OnStrikeGrid(sig.Strike, s.instrument.StrikeGap) {
		return reject(RejectInvalidParameter, "strike %.2f is not a positive multiple of %.0f", sig.Strike, s.instrument.StrikeGap)
	}
	if sig.Lots < 1 || sig.Lots > s.maxLots {
		return reject(RejectInvalidParameter, "lots %d outside [1, %d]", sig.Lots, s.maxLots)
	}
	return nil
}
