// Package sequencer executes the two-leg order protocol. Entries are
// hedge-first: the protective leg must be confirmed filled before the short
// leg is sent, so the book is never short and unhedged. Exits unwind in
// reverse, main leg first.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hedger/internal/gateway/broker"
	"hedger/internal/logger"
	"hedger/internal/metrics"
	"hedger/internal/store/audit"
	"hedger/internal/store/position"
	"hedger/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Sequencer struct {
	symbol       string
	broker       broker.Port
	positions    *position.Store
	audits       *audit.Store
	pollInterval time.Duration
	pollAttempts int
	nowFn        func() time.Time
}

func New(symbol string, b broker.Port, positions *position.Store, audits *audit.Store,
	pollInterval time.Duration, pollAttempts int) *Sequencer {
	return &Sequencer{
		symbol:       symbol,
		broker:       b,
		positions:    positions,
		audits:       audits,
		pollInterval: pollInterval,
		pollAttempts: pollAttempts,
		nowFn:        time.Now,
	}
}

// Enter opens a hedged position from an admitted trade request. On any
// failure the position ends FAILED with a recorded reason; a hedge that
// filled before the main leg was rejected is sold back.
func (s *Sequencer) Enter(ctx context.Context, tr types.TradeRequest) (types.Position, error) {
	p := types.Position{
		ID:         uuid.NewString(),
		SignalType: tr.Type,
		Symbol:     s.symbol,
		Status:     types.PositionPending,
		EntryTime:  s.nowFn(),
		MainLeg: types.OrderLeg{
			Role:           types.LegMain,
			Direction:      types.DirectionSell,
			Strike:         tr.Strike,
			OptionType:     tr.OptionType,
			Quantity:       tr.MainQuantity,
			RequestedPrice: tr.MainPremium,
			Status:         types.OrderPending,
		},
		HedgeLeg: types.OrderLeg{
			Role:           types.LegHedge,
			Direction:      types.DirectionBuy,
			Strike:         tr.HedgeStrike,
			OptionType:     tr.OptionType,
			Quantity:       tr.HedgeQuantity,
			RequestedPrice: tr.HedgePremium,
			Status:         types.OrderPending,
		},
	}
	if err := s.positions.Insert(ctx, p); err != nil {
		return p, fmt.Errorf("persisting pending position: %w", err)
	}
	logger.Infof("sequencer: %s entering %s, hedge %s first", p.ID, p.MainLeg.Direction, p.HedgeLeg.Direction)

	hedgeID, hedgeState, err := s.placeAndAwait(ctx, s.legOrder(p, p.HedgeLeg, false))
	metrics.OrderLegsTotal.WithLabelValues(string(types.LegHedge), string(hedgeState.Status)).Inc()
	if err != nil || hedgeState.Status != types.OrderFilled {
		reason := describeLegFailure("hedge", hedgeState, err)
		s.failEntry(ctx, p.ID, "ENTRY_HEDGE", reason, "MAIN_NOT_SENT")
		return p, &EntryError{Kind: entryKind(err, FailHedge), PositionID: p.ID, Err: errors.New(reason)}
	}
	p.HedgeLeg.OrderID = hedgeID
	p.HedgeLeg.FillPrice = hedgeState.FillPrice
	p.HedgeLeg.Status = types.OrderFilled

	mainID, mainState, err := s.placeAndAwait(ctx, s.legOrder(p, p.MainLeg, false))
	metrics.OrderLegsTotal.WithLabelValues(string(types.LegMain), string(mainState.Status)).Inc()
	if err != nil || mainState.Status != types.OrderFilled {
		reason := describeLegFailure("main", mainState, err)
		action := s.reverseHedge(ctx, p)
		s.failEntry(ctx, p.ID, "ENTRY_MAIN", reason, action)
		return p, &EntryError{Kind: FailPartial, PositionID: p.ID, Err: errors.New(reason)}
	}
	p.MainLeg.OrderID = mainID
	p.MainLeg.FillPrice = mainState.FillPrice
	p.MainLeg.Status = types.OrderFilled

	opened, err := s.positions.AtomicUpdate(ctx, p.ID, types.PositionPending, func(pos *types.Position) error {
		pos.MainLeg = p.MainLeg
		pos.HedgeLeg = p.HedgeLeg
		pos.Status = types.PositionOpen
		return nil
	})
	if err != nil {
		return p, fmt.Errorf("opening position %s: %w", p.ID, err)
	}
	logger.Infof("sequencer: %s OPEN main@%.2f hedge@%.2f credit=%.2f",
		opened.ID, opened.MainLeg.FillPrice, opened.HedgeLeg.FillPrice, opened.EntryCredit())
	return opened, nil
}

// Exit unwinds a position: main leg bought back first, hedge sold after.
// It is resumable: a leg whose close order was submitted but not confirmed
// is re-polled on the next call instead of re-submitted.
func (s *Sequencer) Exit(ctx context.Context, positionID, reason string) (types.Position, error) {
	p, err := s.positions.Get(ctx, positionID)
	if err != nil {
		return types.Position{}, err
	}
	switch {
	case p.Status.Terminal() || p.Status == types.PositionPending:
		return p, &ExitError{Kind: FailConflict, PositionID: positionID,
			Err: fmt.Errorf("position is %s", p.Status)}
	case p.Status != types.PositionClosing:
		p, err = s.positions.AtomicUpdate(ctx, positionID, p.Status, func(pos *types.Position) error {
			pos.Status = types.PositionClosing
			pos.ExitReason = reason
			return nil
		})
		if errors.Is(err, position.ErrConflict) {
			return p, &ExitError{Kind: FailConflict, PositionID: positionID, Err: err}
		}
		if err != nil {
			return p, err
		}
	}

	if err := s.closeLeg(ctx, &p, types.LegMain); err != nil {
		return p, err
	}
	if err := s.closeLeg(ctx, &p, types.LegHedge); err != nil {
		return p, err
	}

	pnl := realizedPnL(p)
	closed, err := s.positions.AtomicUpdate(ctx, positionID, types.PositionClosing, func(pos *types.Position) error {
		now := s.nowFn()
		pos.Status = types.PositionClosed
		pos.ExitTime = &now
		pos.RealizedPnL = pnl
		return nil
	})
	if err != nil {
		return p, fmt.Errorf("closing position %s: %w", positionID, err)
	}
	if err := s.audits.MarkOutcome(ctx, positionID, pnl > 0); err != nil {
		logger.Errorf("sequencer: marking outcome for %s: %v", positionID, err)
	}
	metrics.AddRealizedPnL(pnl)
	logger.Infof("sequencer: %s CLOSED pnl=%.2f reason=%s", positionID, pnl, closed.ExitReason)
	return closed, nil
}

func (s *Sequencer) closeLeg(ctx context.Context, p *types.Position, role types.LegRole) error {
	leg := p.MainLeg
	if role == types.LegHedge {
		leg = p.HedgeLeg
	}
	if leg.Closed {
		return nil
	}

	orderID := leg.ExitOrderID
	if orderID == "" {
		ack, err := s.broker.PlaceOrder(ctx, s.legOrder(*p, leg, true))
		if err != nil {
			s.recordFailure(ctx, p.ID, exitStage(role), err.Error(), "WILL_RETRY")
			return &ExitError{Kind: entryKind(err, FailExitLeg), PositionID: p.ID, Err: err}
		}
		if ack.Status == types.OrderRejected {
			s.recordFailure(ctx, p.ID, exitStage(role), "close order rejected", "WILL_RETRY")
			return &ExitError{Kind: FailExitLeg, PositionID: p.ID,
				Err: fmt.Errorf("%s close order rejected", role)}
		}
		orderID = ack.OrderID
		if err := s.storeLeg(ctx, p, role, func(l *types.OrderLeg) { l.ExitOrderID = orderID }); err != nil {
			return err
		}
	}

	state, err := s.awaitFill(ctx, orderID)
	if err != nil || state.Status != types.OrderFilled {
		s.abandonExitOrder(ctx, p, role, orderID, state)
		reason := describeLegFailure(string(role), state, err)
		s.recordFailure(ctx, p.ID, exitStage(role), reason, "WILL_RETRY")
		return &ExitError{Kind: entryKind(err, FailExitLeg), PositionID: p.ID, Err: errors.New(reason)}
	}
	return s.storeLeg(ctx, p, role, func(l *types.OrderLeg) {
		l.ExitFillPrice = state.FillPrice
		l.Closed = true
	})
}

// abandonExitOrder cancels a stuck close order so the next cycle submits a
// fresh one. If the cancel loses the race to a fill, the order id stays
// recorded and the next cycle confirms it instead.
func (s *Sequencer) abandonExitOrder(ctx context.Context, p *types.Position, role types.LegRole, orderID string, state broker.OrderState) {
	if state.Status != types.OrderPending {
		if err := s.storeLeg(ctx, p, role, func(l *types.OrderLeg) { l.ExitOrderID = "" }); err != nil {
			logger.Errorf("sequencer: clearing exit order on %s: %v", p.ID, err)
		}
		return
	}
	cancelled, err := s.broker.CancelOrder(ctx, orderID)
	if err != nil {
		logger.Errorf("sequencer: cancelling %s close order %s: %v", role, orderID, err)
		return
	}
	if cancelled {
		if err := s.storeLeg(ctx, p, role, func(l *types.OrderLeg) { l.ExitOrderID = "" }); err != nil {
			logger.Errorf("sequencer: clearing exit order on %s: %v", p.ID, err)
		}
	}
}

func (s *Sequencer) storeLeg(ctx context.Context, p *types.Position, role types.LegRole, mutate func(*types.OrderLeg)) error {
	updated, err := s.positions.AtomicUpdate(ctx, p.ID, types.PositionClosing, func(pos *types.Position) error {
		if role == types.LegMain {
			mutate(&pos.MainLeg)
		} else {
			mutate(&pos.HedgeLeg)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persisting %s leg on %s: %w", role, p.ID, err)
	}
	*p = updated
	return nil
}

// reverseHedge sells back a filled hedge after the main leg failed. Returns
// the audit action describing what happened.
func (s *Sequencer) reverseHedge(ctx context.Context, p types.Position) string {
	_, state, err := s.placeAndAwait(ctx, s.legOrder(p, p.HedgeLeg, true))
	if err != nil || state.Status != types.OrderFilled {
		logger.Errorf("sequencer: %s hedge reversal FAILED, manual intervention required: %s",
			p.ID, describeLegFailure("reversal", state, err))
		return "HEDGE_REVERSAL_FAILED"
	}
	logger.Warnf("sequencer: %s hedge reversed at %.2f after main leg failure", p.ID, state.FillPrice)
	return "HEDGE_REVERSED"
}

func (s *Sequencer) failEntry(ctx context.Context, id, stage, reason, action string) {
	s.recordFailure(ctx, id, stage, reason, action)
	if _, err := s.positions.AtomicUpdate(ctx, id, types.PositionPending, func(pos *types.Position) error {
		now := s.nowFn()
		pos.Status = types.PositionFailed
		pos.FailureReason = reason
		pos.ExitTime = &now
		return nil
	}); err != nil {
		logger.Errorf("sequencer: marking %s FAILED: %v", id, err)
	}
}

func exitStage(role types.LegRole) string {
	if role == types.LegMain {
		return "EXIT_MAIN"
	}
	return "EXIT_HEDGE"
}

func (s *Sequencer) recordFailure(ctx context.Context, id, stage, reason, action string) {
	if err := s.audits.RecordFailure(ctx, audit.FailureRecord{
		PositionID: id, Stage: stage, Reason: reason, Action: action,
	}); err != nil {
		logger.Errorf("sequencer: recording failure for %s: %v", id, err)
	}
}

// placeAndAwait submits an order and polls until it reaches a terminal
// status or the poll budget runs out. A still-pending order is cancelled.
func (s *Sequencer) placeAndAwait(ctx context.Context, req broker.OrderRequest) (string, broker.OrderState, error) {
	ack, err := s.broker.PlaceOrder(ctx, req)
	if err != nil {
		return "", broker.OrderState{}, err
	}
	if ack.Status == types.OrderRejected {
		return ack.OrderID, broker.OrderState{Status: types.OrderRejected}, nil
	}
	state, err := s.awaitFill(ctx, ack.OrderID)
	if err != nil {
		return ack.OrderID, state, err
	}
	if state.Status == types.OrderPending {
		if cancelled, cerr := s.broker.CancelOrder(ctx, ack.OrderID); cerr == nil && !cancelled {
			// Filled between the last poll and the cancel.
			return ack.OrderID, broker.OrderState{}, fmt.Errorf("order %s fill raced cancel, confirm manually", ack.OrderID)
		}
		state.Status = types.OrderCancelled
	}
	return ack.OrderID, state, nil
}

func (s *Sequencer) awaitFill(ctx context.Context, orderID string) (broker.OrderState, error) {
	var state broker.OrderState
	for attempt := 0; attempt < s.pollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return state, ctx.Err()
			case <-time.After(s.pollInterval):
			}
		}
		var err error
		state, err = s.broker.GetOrderStatus(ctx, orderID)
		if err != nil {
			return state, err
		}
		if state.Status != types.OrderPending {
			return state, nil
		}
	}
	return state, nil
}

func (s *Sequencer) legOrder(p types.Position, leg types.OrderLeg, exit bool) broker.OrderRequest {
	direction := leg.Direction
	tag := fmt.Sprintf("%s:%s", p.ID, leg.Role)
	if exit {
		direction = opposite(leg.Direction)
		tag += ":exit"
	}
	return broker.OrderRequest{
		Symbol:     p.Symbol,
		Strike:     leg.Strike,
		OptionType: leg.OptionType,
		Direction:  direction,
		Quantity:   leg.Quantity,
		Tag:        tag,
	}
}

func opposite(d types.Direction) types.Direction {
	if d == types.DirectionBuy {
		return types.DirectionSell
	}
	return types.DirectionBuy
}

func entryKind(err error, fallback FailKind) FailKind {
	if errors.Is(err, broker.ErrUnavailable) {
		return FailBrokerUnavailable
	}
	return fallback
}

func describeLegFailure(leg string, state broker.OrderState, err error) string {
	if err != nil {
		return fmt.Sprintf("%s leg: %v", leg, err)
	}
	return fmt.Sprintf("%s leg ended %s", leg, state.Status)
}

// realizedPnL settles a fully closed position: the short main leg earns
// entry minus exit, the long hedge earns exit minus entry.
func realizedPnL(p types.Position) float64 {
	main := decimal.NewFromFloat(p.MainLeg.FillPrice).
		Sub(decimal.NewFromFloat(p.MainLeg.ExitFillPrice)).
		Mul(decimal.NewFromInt(int64(p.MainLeg.Quantity)))
	hedge := decimal.NewFromFloat(p.HedgeLeg.ExitFillPrice).
		Sub(decimal.NewFromFloat(p.HedgeLeg.FillPrice)).
		Mul(decimal.NewFromInt(int64(p.HedgeLeg.Quantity)))
	pnl, _ := main.Add(hedge).Float64()
	return pnl
}
