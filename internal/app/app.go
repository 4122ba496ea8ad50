// Package app assembles the process: configuration in, wired services out,
// one Run call that supervises every long-lived loop.
package app

import (
	"context"
	"time"

	"hedger/internal/config"
	"hedger/internal/exitrules"
	"hedger/internal/gateway/marketdata"
	"hedger/internal/killswitch"
	"hedger/internal/logger"
	"hedger/internal/monitor"
	"hedger/internal/store/audit"
	"hedger/internal/store/position"
	transport "hedger/internal/transport/http"
	"hedger/internal/types"

	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg       *config.Config
	positions *position.Store
	audits    *audit.Store
	kill      *killswitch.Switch
	rules     *exitrules.Registry
	ws        *marketdata.WSUpdater
	monitor   *monitor.Monitor
	server    *transport.Server
}

// Run blocks until ctx is cancelled or a supervised loop fails.
func (a *App) Run(ctx context.Context) error {
	defer a.positions.Close()
	defer a.audits.Close()

	if err := a.recover(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server.Run(ctx) })
	g.Go(func() error { return a.monitor.Run(ctx) })
	g.Go(func() error { return a.kill.Watch(ctx) })
	g.Go(func() error { return a.rules.Watch(ctx) })
	if a.ws != nil {
		g.Go(func() error {
			a.ws.Run(ctx)
			return nil
		})
	}
	return g.Wait()
}

// recover cleans up after an unclean shutdown. A position still PENDING at
// boot died mid-entry with unknown broker state; it is failed and flagged
// for manual reconciliation. CLOSING positions resume through the monitor.
func (a *App) recover(ctx context.Context) error {
	pending, err := a.positions.ListByStatus(ctx, types.PositionPending)
	if err != nil {
		return err
	}
	for _, p := range pending {
		logger.Warnf("recovery: position %s was PENDING at boot, marking FAILED for manual reconciliation", p.ID)
		if _, err := a.positions.AtomicUpdate(ctx, p.ID, types.PositionPending, func(pos *types.Position) error {
			now := time.Now()
			pos.Status = types.PositionFailed
			pos.FailureReason = "orphaned by restart during entry, reconcile with broker"
			pos.ExitTime = &now
			return nil
		}); err != nil {
			return err
		}
	}
	closing, err := a.positions.ListByStatus(ctx, types.PositionClosing)
	if err != nil {
		return err
	}
	for _, p := range closing {
		logger.Infof("recovery: position %s was CLOSING at boot, monitor will resume the close", p.ID)
	}
	return nil
}
